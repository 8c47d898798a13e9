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
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
	"github.com/AleutianAI/XiaobaiBridge/pkg/ux"
	"github.com/AleutianAI/XiaobaiBridge/services/login"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// runLogin drives the same state machine hosts use, fronted by a
// terminal form. The phone number only ever lives in form state and the
// flow's enclave; it is never written to disk.
func runLogin(cmd *cobra.Command, args []string) {
	st := buildStack(false)
	defer st.close()

	ctx := context.Background()

	if st.login.Authenticated() {
		ux.Info("已有登录状态，重新登录将覆盖当前会话")
	}

	ux.Muted(st.login.Begin())

	var phone string
	phoneForm := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("手机号码").
			Description("仅用于发送验证码，不会保存").
			Value(&phone).
			Validate(func(s string) error {
				if !phonePattern.MatchString(strings.TrimSpace(s)) {
					return errors.New("请输入正确的手机号（11位数字）")
				}
				return nil
			}),
	))
	if err := phoneForm.Run(); err != nil {
		log.Fatalf("login aborted: %v", err)
	}

	reply := st.login.Handle(ctx, strings.TrimSpace(phone))
	if reply != login.PromptCodeSent {
		ux.Error(reply)
		return
	}
	ux.Info(reply)

	// Three attempts before giving up, mirroring the hosted flow's
	// retry prompt.
	for attempt := 0; attempt < 3; attempt++ {
		var code string
		codeForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("验证码").
				Value(&code).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("验证码不能为空")
					}
					return nil
				}),
		))
		if err := codeForm.Run(); err != nil {
			log.Fatalf("login aborted: %v", err)
		}

		reply = st.login.Handle(ctx, strings.TrimSpace(code))
		if reply == login.PromptLoginDone {
			ux.Success("登录成功")
			return
		}
		ux.Warning(reply)
	}
	ux.Error("验证码多次错误，请重新运行 xiaobai login")
}

// runLogout clears the session token and conversation id but keeps the
// device id, so a later login reuses the same device identity.
func runLogout(cmd *cobra.Command, args []string) {
	st := buildStack(false)
	defer st.close()

	err := st.store.Update(func(c *credstore.Credentials) {
		c.Token = ""
		c.UserID = ""
		c.ConversationID = ""
	})
	if err != nil {
		log.Fatalf("could not clear the credentials: %v", err)
	}
	ux.Success(fmt.Sprintf("已退出登录（%s）", st.store.Path()))
}
