// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/XiaobaiBridge/services/router"
)

type fakeBridge struct {
	textReplies  []router.Reply
	imageReplies []router.Reply
	awaiting     bool
	interimText  string
	interimImage string

	lastUserID string
	lastText   string
	lastImage  []byte
}

func (f *fakeBridge) HandleText(ctx context.Context, userID, text string) []router.Reply {
	f.lastUserID = userID
	f.lastText = text
	return f.textReplies
}

func (f *fakeBridge) HandleImage(ctx context.Context, userID string, image []byte) []router.Reply {
	f.lastUserID = userID
	f.lastImage = image
	return f.imageReplies
}

func (f *fakeBridge) AwaitingImage(userID string) bool { return f.awaiting }

func (f *fakeBridge) InterimText(text string) (string, bool) {
	return f.interimText, f.interimText != ""
}

func (f *fakeBridge) InterimImage(userID string) (string, bool) {
	return f.interimImage, f.interimImage != ""
}

func newTestEngine(bridge Bridge) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/v1/messages", HandleMessage(bridge))
	engine.GET("/v1/messages/awaiting/:userId", HandleAwaiting(bridge))
	engine.GET("/health", HealthCheck)
	engine.GET("/v1/help", GetHelp)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHandleMessageText(t *testing.T) {
	bridge := &fakeBridge{textReplies: []router.Reply{
		{Kind: router.ReplyText, Content: "你好"},
	}}
	engine := newTestEngine(bridge)

	w := postJSON(t, engine, "/v1/messages", MessageRequest{
		UserID: "u1", Kind: "text", Text: "小白 你好",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Handled)
	require.Len(t, resp.Replies, 1)
	assert.Equal(t, "你好", resp.Replies[0].Content)
	assert.Equal(t, "u1", bridge.lastUserID)
	assert.Equal(t, "小白 你好", bridge.lastText)
}

func TestHandleMessageUnmatchedTextIsNotHandled(t *testing.T) {
	bridge := &fakeBridge{textReplies: nil}
	engine := newTestEngine(bridge)

	w := postJSON(t, engine, "/v1/messages", MessageRequest{
		UserID: "u1", Kind: "text", Text: "unrelated chatter",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp MessageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Handled)
	assert.Empty(t, resp.Replies)
}

func TestHandleMessageImage(t *testing.T) {
	bridge := &fakeBridge{imageReplies: []router.Reply{
		{Kind: router.ReplyText, Content: "识别结果"},
	}}
	engine := newTestEngine(bridge)

	raw := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	w := postJSON(t, engine, "/v1/messages", MessageRequest{
		UserID:      "u2",
		Kind:        "image",
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, raw, bridge.lastImage)
}

func TestHandleMessageRejectsBadBase64(t *testing.T) {
	engine := newTestEngine(&fakeBridge{})

	w := postJSON(t, engine, "/v1/messages", MessageRequest{
		UserID: "u1", Kind: "image", ImageBase64: "not-base64!!!",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessageValidatesKind(t *testing.T) {
	engine := newTestEngine(&fakeBridge{})

	w := postJSON(t, engine, "/v1/messages", map[string]string{
		"user_id": "u1", "kind": "video",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleMessageRequiresUserID(t *testing.T) {
	engine := newTestEngine(&fakeBridge{})

	w := postJSON(t, engine, "/v1/messages", map[string]string{
		"kind": "text", "text": "小白 你好",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleAwaiting(t *testing.T) {
	bridge := &fakeBridge{awaiting: true}
	engine := newTestEngine(bridge)

	req := httptest.NewRequest(http.MethodGet, "/v1/messages/awaiting/u3", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp["awaiting_image"])
}

func TestGetHelp(t *testing.T) {
	engine := newTestEngine(&fakeBridge{})

	req := httptest.NewRequest(http.MethodGet, "/v1/help", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "问小白插件使用说明")
	assert.Contains(t, w.Body.String(), "小白生图")
}

func TestHealthCheck(t *testing.T) {
	engine := newTestEngine(&fakeBridge{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}
