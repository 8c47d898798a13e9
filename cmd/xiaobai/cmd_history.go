// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/XiaobaiBridge/pkg/ux"
)

func runHistory(cmd *cobra.Command, args []string) {
	st := buildStack(true)
	defer st.close()

	if st.history == nil {
		ux.Error("历史记录未启用")
		return
	}

	userID := cliUserID
	if len(args) > 0 {
		userID = args[0]
	}

	exchanges, err := st.history.Recent(userID, historyLimit)
	if err != nil {
		ux.Error("读取历史记录失败: " + err.Error())
		return
	}
	if len(exchanges) == 0 {
		ux.Muted("暂无历史记录")
		return
	}

	for _, ex := range exchanges {
		header := fmt.Sprintf("[%s] %s %s",
			ex.Timestamp.Local().Format("2006-01-02 15:04:05"), ex.Mode, ex.Query)
		ux.Title(header)
		ux.Answer(ex.Answer)
		ux.Muted("")
	}
}
