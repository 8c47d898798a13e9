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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	plainOutput  bool
	drawStyle    string // style name inside 「」, e.g. 水彩
	drawSize     string // aspect ratio like 16:9
	visionImage  string // path to the image file for vision queries
	historyLimit int

	rootCmd = &cobra.Command{
		Use:   "xiaobai",
		Short: "A cli for the Wenxiaobai conversational AI bridge",
		Long: `xiaobai talks to the Wenxiaobai (问小白) service: chat, web
				search, image generation and image understanding. Credentials
				are shared with the gateway through ~/.xiaobai.`,
	}

	// --- Login ---
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in with a phone number and SMS verification code",
		Run:   runLogin, // Defined in cmd_login.go
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		Run:   runLogout, // Defined in cmd_login.go
	}

	// --- Exchanges ---
	chatCmd = &cobra.Command{
		Use:   "chat [question]",
		Short: "Ask a question with deep-think enabled",
		Args:  cobra.MinimumNArgs(1),
		Run:   runChat, // Defined in cmd_chat.go
	}

	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Ask with web search enabled",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch, // Defined in cmd_chat.go
	}

	drawCmd = &cobra.Command{
		Use:   "draw [prompt]",
		Short: "Generate an image from a prompt",
		Args:  cobra.MinimumNArgs(1),
		Run:   runDraw, // Defined in cmd_chat.go
	}

	visionCmd = &cobra.Command{
		Use:   "vision [question]",
		Short: "Ask a question about a local image file",
		Args:  cobra.MinimumNArgs(1),
		Run:   runVision, // Defined in cmd_chat.go
	}

	// --- Gateway ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the host gateway in the foreground",
		Run:   runServe, // Defined in cmd_serve.go
	}

	// --- History ---
	historyCmd = &cobra.Command{
		Use:   "history [user_id]",
		Short: "Show recent exchanges, newest first",
		Run:   runHistory, // Defined in cmd_history.go
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false,
		"unstyled single-line output for scripts")

	drawCmd.Flags().StringVar(&drawStyle, "style", "",
		"image style, e.g. 水彩 (default 电影写真)")
	drawCmd.Flags().StringVar(&drawSize, "size", "",
		"aspect ratio like 16:9 or 1:1 (default 16:9)")

	visionCmd.Flags().StringVar(&visionImage, "image", "",
		"path to the image file")
	visionCmd.MarkFlagRequired("image")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20,
		"maximum number of exchanges to show")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(drawCmd)
	rootCmd.AddCommand(visionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
}
