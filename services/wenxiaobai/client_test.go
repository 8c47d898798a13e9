// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package wenxiaobai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// testCreds is a static CredentialSource for transport tests.
type testCreds struct {
	token, deviceID, userID, conversationID, webID string
}

func (c testCreds) Token() string          { return c.token }
func (c testCreds) DeviceID() string       { return c.deviceID }
func (c testCreds) UserID() string         { return c.userID }
func (c testCreds) ConversationID() string { return c.conversationID }
func (c testCreds) WebID() string          { return c.webID }

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(ClientConfig{
		BaseURL:     srv.URL,
		TrackingURL: srv.URL,
	}, testCreds{token: "tok", deviceID: "dev", userID: "42", conversationID: "conv"})
	return client, srv
}

func TestPostUnwrapsEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("x-yuanshi-authorization"); got != "Bearer tok" {
			t.Errorf("bearer = %q", got)
		}
		if got := r.Header.Get("x-yuanshi-deviceid"); got != "dev" {
			t.Errorf("device id = %q", got)
		}
		if r.Header.Get("digest") == "" || r.Header.Get("x-date") == "" {
			t.Error("request not signed")
		}
		fmt.Fprint(w, `{"code":0,"msg":"","data":{"value":7}}`)
	}))

	data, err := client.Post(context.Background(), "/api/test", map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(data) != `{"value":7}` {
		t.Errorf("data = %s", data)
	}
}

func TestPostServerApplicationError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":4011,"msg":"token expired"}`)
	}))

	_, err := client.Post(context.Background(), "/api/test", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Code != 4011 || apiErr.Message != "token expired" {
		t.Errorf("got %+v", apiErr)
	}
}

func TestPostHTTPStatusError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))

	_, err := client.Post(context.Background(), "/api/test", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Code != http.StatusForbidden {
		t.Errorf("code = %d", apiErr.Code)
	}
}

func TestPostTransportFailureIsLocal(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1"}, testCreds{})
	_, err := client.Post(context.Background(), "/api/test", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Code != CodeLocal {
		t.Errorf("code = %d, want %d", apiErr.Code, CodeLocal)
	}
}

func TestStreamChatReturnsLiveBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case chatPath:
			if got := r.Header.Get("accept"); !strings.Contains(got, "text/event-stream") {
				t.Errorf("accept = %q", got)
			}
			w.Header().Set("Content-Type", "text/event-stream")
			fmt.Fprint(w, "data:{\"content\":\"hi\",\"contentIndex\":0}\n")
		default:
			// heartbeat / tracking side calls
			fmt.Fprint(w, `{"code":0}`)
		}
	}))

	req, err := NewChatRequest(42, 1, "conv", "你好", ModeChat)
	if err != nil {
		t.Fatalf("NewChatRequest: %v", err)
	}
	body, err := client.StreamChat(context.Background(), req)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer body.Close()
	raw, _ := io.ReadAll(body)
	if !strings.Contains(string(raw), `"content":"hi"`) {
		t.Errorf("stream body = %s", raw)
	}
}

func TestStreamChatHTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == chatPath {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"code":0}`)
	}))

	req, _ := NewChatRequest(42, 0, "conv", "你好", ModeChat)
	_, err := client.StreamChat(context.Background(), req)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d", apiErr.Code)
	}
}

func TestCreateConversation(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/api/v1.0/core/conversations/users/42/bots/200006/conversation"
		if r.URL.Path != wantPath {
			t.Errorf("path = %s", r.URL.Path)
		}
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"visitorId":"dev"`) {
			t.Errorf("body = %s", raw)
		}
		fmt.Fprint(w, `{"code":0,"data":"conv-123"}`)
	}))

	id, err := client.CreateConversation(context.Background(), "42", "dev")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if id != "conv-123" {
		t.Errorf("id = %q", id)
	}
}

func TestCreateSession(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body := string(raw)
		for _, want := range []string{`"phone":"13812345678"`, `"code":"9999"`, `"deviceId":"dev-1"`} {
			if !strings.Contains(body, want) {
				t.Errorf("body missing %s: %s", want, body)
			}
		}
		fmt.Fprint(w, `{"code":0,"data":{"token":"tok-1","user":{"id":777}}}`)
	}))

	sess, err := client.CreateSession(context.Background(), "13812345678", "9999", "dev-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.Token != "tok-1" || sess.UserID != "777" {
		t.Errorf("session = %+v", sess)
	}
}

func TestCreateSessionRejectsIncompleteResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"token":""}}`)
	}))
	if _, err := client.CreateSession(context.Background(), "13812345678", "9999", "dev-1"); err == nil {
		t.Fatal("expected error for incomplete session response")
	}
}

func TestUploadImagePipeline(t *testing.T) {
	var putSeen bool
	mux := http.NewServeMux()
	srvURL := ""
	mux.HandleFunc(preSignPath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"code":0,"data":{"fileId":"f-1","preSignUrl":"%s/put-here"}}`, srvURL)
	})
	mux.HandleFunc("/put-here", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("Content-Type"); got != "image/jpeg" {
			t.Errorf("content type = %q", got)
		}
		putSeen = true
	})
	mux.HandleFunc(parsePath, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"parseState":2,"fileMd5":"md5-1","downloadUrl":"https://x/y"}}`)
	})

	client, srv := newTestClient(t, mux)
	srvURL = srv.URL

	info, err := client.UploadImage(context.Background(), []byte{0xff, 0xd8})
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !putSeen {
		t.Error("pre-signed PUT never issued")
	}
	if info.FileID != "f-1" || info.FileMD5 != "md5-1" {
		t.Errorf("info = %+v", info)
	}
}

func TestPollParseGivesUpAfterRetries(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"parseState":1}}`)
	}))

	// Cancel up front so the retry loop exits at its first wait instead
	// of sleeping out the full poll schedule.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.PollParse(ctx, "f-1")
	if err == nil {
		t.Fatal("expected failure when parse never completes")
	}
}

func TestSendCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"type":"login"`) {
			t.Errorf("body = %s", raw)
		}
		fmt.Fprint(w, `{"code":0}`)
	}))
	if err := client.SendCode(context.Background(), "13812345678"); err != nil {
		t.Fatalf("SendCode: %v", err)
	}
}

func TestWebID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webid" {
			t.Errorf("path = %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"web_id":"w-1"}`)
	}))
	id, err := client.WebID(context.Background())
	if err != nil {
		t.Fatalf("WebID: %v", err)
	}
	if id != "w-1" {
		t.Errorf("web id = %q", id)
	}
}
