// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/XiaobaiBridge/services/router"
)

// WSRequest is one inbound frame on the chat socket.
type WSRequest struct {
	UserID     string `json:"user_id"`
	Kind       string `json:"kind"`
	Text       string `json:"text,omitempty"`
	Base64Data string `json:"base64data,omitempty"`
}

// WSResponse is one outbound frame.
type WSResponse struct {
	Handled bool           `json:"handled"`
	Replies []router.Reply `json:"replies,omitempty"`
	Error   string         `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	// 10MB buffers so inline base64 images fit in one frame.
	ReadBufferSize:  10 * 1024 * 1024,
	WriteBufferSize: 10 * 1024 * 1024,
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("failed to write websocket JSON", "error", err)
	}
	return err
}

// sendInterim pushes a wait notice ahead of the real result frame.
func sendInterim(ws *websocket.Conn, notice string) error {
	return sendJSON(ws, WSResponse{Handled: true, Replies: []router.Reply{
		{Kind: router.ReplyText, Content: notice},
	}})
}

// HandleChatWebSocket returns the GET /v1/chat/ws handler. Each socket
// is one host connection that may multiplex messages for many users.
func HandleChatWebSocket(bridge Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		slog.Info("websocket host connected", "sessionID", sessionID)

		if err := sendJSON(ws, map[string]interface{}{
			"action":    "session_created",
			"sessionId": sessionID,
		}); err != nil {
			return
		}

		for {
			var req WSRequest
			if err := ws.ReadJSON(&req); err != nil {
				slog.Info("websocket host disconnected", "error", err.Error())
				break
			}

			ctx := c.Request.Context()

			var replies []router.Reply
			switch req.Kind {
			case "text":
				// Slow exchanges get a wait notice before the result.
				if notice, ok := bridge.InterimText(req.Text); ok {
					if sendInterim(ws, notice) != nil {
						return
					}
				}
				replies = bridge.HandleText(ctx, req.UserID, req.Text)
			case "image":
				data, err := base64.StdEncoding.DecodeString(req.Base64Data)
				if err != nil {
					if sendJSON(ws, WSResponse{Error: "invalid base64data"}) != nil {
						return
					}
					continue
				}
				if notice, ok := bridge.InterimImage(req.UserID); ok {
					if sendInterim(ws, notice) != nil {
						return
					}
				}
				replies = bridge.HandleImage(ctx, req.UserID, data)
			default:
				if sendJSON(ws, WSResponse{Error: "unknown kind"}) != nil {
					return
				}
				continue
			}

			if sendJSON(ws, WSResponse{Handled: replies != nil, Replies: replies}) != nil {
				return
			}
		}
	}
}
