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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/XiaobaiBridge/pkg/ux"
	"github.com/AleutianAI/XiaobaiBridge/services/router"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

// runExchange sends one command-prefixed message through the bridge and
// prints the replies.
func runExchange(text, waitMessage string) {
	st := buildStack(true)
	defer st.close()

	if !st.login.Authenticated() {
		ux.Error("尚未登录，请先运行 xiaobai login")
		return
	}

	spin := ux.NewSpinner(waitMessage)
	spin.Start()
	replies := st.bridge.HandleText(context.Background(), cliUserID, text)
	spin.Stop()

	printReplies(replies)
}

func runChat(cmd *cobra.Command, args []string) {
	runExchange("小白 "+strings.Join(args, " "), "等待响应...")
}

func runSearch(cmd *cobra.Command, args []string) {
	runExchange("小白搜索 "+strings.Join(args, " "), "搜索中...")
}

func runDraw(cmd *cobra.Command, args []string) {
	text := "小白生图 " + strings.Join(args, " ")
	style := drawStyle
	// A bare ratio suffix would be read as the style, so the default
	// style is spelled out whenever a size is given.
	if drawSize != "" && style == "" {
		style = wenxiaobai.DefaultImageStyle
	}
	if style != "" {
		text += "-" + style
	}
	if drawSize != "" {
		text += "-" + drawSize
	}
	runExchange(text, "生成图片中...")
}

func runVision(cmd *cobra.Command, args []string) {
	st := buildStack(true)
	defer st.close()

	if !st.login.Authenticated() {
		ux.Error("尚未登录，请先运行 xiaobai login")
		return
	}

	image, err := os.ReadFile(visionImage)
	if err != nil {
		ux.Error("无法读取图片文件: " + err.Error())
		return
	}

	ctx := context.Background()
	replies := st.bridge.HandleText(ctx, cliUserID, "小白识图 "+strings.Join(args, " "))
	if hasErrorReply(replies) {
		printReplies(replies)
		return
	}

	spin := ux.NewSpinner("识别图片中...")
	spin.Start()
	replies = st.bridge.HandleImage(ctx, cliUserID, image)
	spin.Stop()

	printReplies(replies)
}

func printReplies(replies []router.Reply) {
	if replies == nil {
		ux.Warning("消息未被处理")
		return
	}
	for _, r := range replies {
		switch r.Kind {
		case router.ReplyImageURL:
			ux.Info(r.Content)
		case router.ReplyError:
			ux.Error(r.Content)
		default:
			ux.Answer(r.Content)
		}
	}
}

func hasErrorReply(replies []router.Reply) bool {
	for _, r := range replies {
		if r.Kind == router.ReplyError {
			return true
		}
	}
	return false
}
