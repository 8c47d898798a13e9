// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the gateway HTTP and WebSocket surface.
// Host chat frameworks post inbound messages here and receive the
// replies the bridge produced for them.
package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/XiaobaiBridge/services/gateway/observability"
	"github.com/AleutianAI/XiaobaiBridge/services/router"
)

// Bridge is the slice of the router the gateway exposes. The Interim
// accessors feed the wait notices sent on the WebSocket path; the plain
// HTTP path is one request, one response, and cannot carry them.
type Bridge interface {
	HandleText(ctx context.Context, userID, text string) []router.Reply
	HandleImage(ctx context.Context, userID string, image []byte) []router.Reply
	AwaitingImage(userID string) bool
	InterimText(text string) (string, bool)
	InterimImage(userID string) (string, bool)
}

// MessageRequest is one inbound host message. Kind selects which
// payload field is read.
type MessageRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Kind        string `json:"kind" binding:"required,oneof=text image"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// MessageResponse carries the replies for the host to deliver. Handled
// false means the message was not addressed to the bridge.
type MessageResponse struct {
	Handled bool           `json:"handled"`
	Replies []router.Reply `json:"replies,omitempty"`
}

// HandleMessage returns the POST /v1/messages handler.
func HandleMessage(bridge Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		start := time.Now()
		var replies []router.Reply
		switch req.Kind {
		case "text":
			replies = bridge.HandleText(c.Request.Context(), req.UserID, req.Text)
		case "image":
			data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid image_base64"})
				return
			}
			replies = bridge.HandleImage(c.Request.Context(), req.UserID, data)
		}

		span := trace.SpanFromContext(c.Request.Context())
		recordMessage(req.Kind, replies, time.Since(start), span.SpanContext().TraceID())
		c.JSON(http.StatusOK, MessageResponse{
			Handled: replies != nil,
			Replies: replies,
		})
	}
}

// HandleAwaiting returns the GET /v1/messages/awaiting/:userId handler.
// Hosts poll it to decide whether to forward a user's next picture.
func HandleAwaiting(bridge Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		c.JSON(http.StatusOK, gin.H{"awaiting_image": bridge.AwaitingImage(userID)})
	}
}

func recordMessage(kind string, replies []router.Reply, elapsed time.Duration, traceID trace.TraceID) {
	status := "success"
	switch {
	case replies == nil:
		status = "ignored"
	case hasError(replies):
		status = "error"
	}
	if m := observability.DefaultMetrics; m != nil {
		m.RecordMessage(kind, status)
		if replies != nil {
			m.ObserveExchange(kind, elapsed.Seconds())
		}
	}
	slog.Debug("message handled", "kind", kind, "status", status,
		"elapsed", elapsed, "trace_id", traceID.String())
}

func hasError(replies []router.Reply) bool {
	for _, r := range replies {
		if r.Kind == router.ReplyError {
			return true
		}
	}
	return false
}
