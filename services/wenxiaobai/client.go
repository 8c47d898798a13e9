// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package wenxiaobai implements the signed HTTP transport and wire
// contract of the Wenxiaobai API: code dispatch, login, conversation
// allocation, streaming chat and file upload.
//
// All failures surface as *APIError values carrying an application code
// or HTTP status (CodeLocal for failures that never reached the server).
// Nothing in this package panics across the API boundary.
package wenxiaobai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("xiaobai.wenxiaobai.client")

const (
	defaultBaseURL     = "https://api-bj.wenxiaobai.com"
	defaultTrackingURL = "https://gator.volces.com"

	chatPath      = "/api/v1.0/core/conversation/chat/v1"
	heartbeatPath = "/api/v1.0/user/time/heartbeat"

	trackingAppID = 20001987
	touristURL    = "https://www.wenxiaobai.com/chat/tourist"

	defaultTimeout       = 30 * time.Second
	defaultStreamTimeout = 120 * time.Second
)

// CredentialSource supplies the per-request identity. Implemented by
// credstore.Store; all methods may return "" before login completes.
type CredentialSource interface {
	Token() string
	DeviceID() string
	UserID() string
	ConversationID() string
	WebID() string
}

// ClientConfig tunes the transport. Zero values select the production
// endpoints and the standard 30s/120s timeouts.
type ClientConfig struct {
	BaseURL       string
	TrackingURL   string
	Timeout       time.Duration
	StreamTimeout time.Duration
}

// Client performs signed buffered and streaming calls against the
// Wenxiaobai API.
type Client struct {
	base     string
	tracking string

	httpClient   *http.Client
	streamClient *http.Client

	signer *Signer
	creds  CredentialSource

	// sideLimiter throttles the best-effort heartbeat and tracking
	// calls so bursts of chat traffic cannot amplify into telemetry
	// floods.
	sideLimiter *rate.Limiter
}

// NewClient builds a transport bound to a credential source.
func NewClient(cfg ClientConfig, creds CredentialSource) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.TrackingURL == "" {
		cfg.TrackingURL = defaultTrackingURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.StreamTimeout == 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	return &Client{
		base:         strings.TrimSuffix(cfg.BaseURL, "/"),
		tracking:     strings.TrimSuffix(cfg.TrackingURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{Timeout: cfg.StreamTimeout},
		signer:       NewSigner(),
		creds:        creds,
		sideLimiter:  rate.NewLimiter(rate.Every(time.Second), 4),
	}
}

// encodeJSON produces the compact UTF-8 payload the signature covers.
// The non-escaping encoder matches what the web client sends; if it
// rejects the value the ASCII-escaping encoder is tried before giving
// up.
func encodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		b, fallbackErr := json.Marshal(v)
		if fallbackErr != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		return b, nil
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Post performs a buffered signed call and returns the envelope's data
// field. Relative paths are resolved against the base URL.
func (c *Client) Post(ctx context.Context, path string, payload any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "Client.Post")
	defer span.End()
	span.SetAttributes(attribute.String("wenxiaobai.path", path))

	body, err := encodeJSON(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, localError(err)
	}

	resp, err := c.do(ctx, c.httpClient, c.url(path), body, false)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, localError(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Code: resp.StatusCode, Message: serverMessage(raw, resp.StatusCode)}
		span.SetStatus(codes.Error, apiErr.Message)
		return nil, apiErr
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, localError(fmt.Errorf("decode envelope: %w", err))
	}
	if env.Code != 0 {
		apiErr := &APIError{Code: env.Code, Message: env.Msg}
		span.SetStatus(codes.Error, apiErr.Message)
		return nil, apiErr
	}
	return env.Data, nil
}

// StreamChat issues the streaming chat call and returns the live event
// source. The caller owns the returned body and must close it after
// consumption. A heartbeat and a tracking event fire before the main
// call; their failures never abort it.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "Client.StreamChat")
	defer span.End()
	span.SetAttributes(
		attribute.String("wenxiaobai.mode", string(modeOf(req))),
		attribute.Int("wenxiaobai.turn_index", req.TurnIndex),
	)

	c.fireSideCalls(req.Query)

	body, err := encodeJSON(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, localError(err)
	}

	resp, err := c.do(ctx, c.streamClient, c.url(chatPath), body, true)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		apiErr := &APIError{Code: resp.StatusCode, Message: serverMessage(raw, resp.StatusCode)}
		span.SetStatus(codes.Error, apiErr.Message)
		return nil, apiErr
	}
	return resp.Body, nil
}

// do builds and sends one signed request.
func (c *Client) do(ctx context.Context, client *http.Client, url string, body []byte, chat bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, localError(fmt.Errorf("build request: %w", err))
	}
	req.Header = c.signer.Headers(body, headerOptions{
		chat:     chat,
		token:    c.creds.Token(),
		deviceID: c.creds.DeviceID(),
	})
	resp, err := client.Do(req)
	if err != nil {
		return nil, localError(fmt.Errorf("call %s: %w", url, err))
	}
	return resp, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return c.base + path
}

// serverMessage extracts a usable message from a failed response body.
func serverMessage(raw []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Msg != "" {
		return env.Msg
	}
	return http.StatusText(status)
}

func modeOf(req ChatRequest) Mode {
	switch {
	case req.ImageGenerate != nil:
		return ModeImage
	case len(req.MediaInfos) > 0:
		return ModeVision
	default:
		return ModeChat
	}
}

// ===== Side calls =====

// fireSideCalls sends the heartbeat and tracking event ahead of a
// streaming chat. Both are best-effort telemetry: they run detached,
// rate limited, and fail silently.
func (c *Client) fireSideCalls(message string) {
	if !c.sideLimiter.Allow() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Heartbeat(ctx); err != nil {
			slog.Debug("heartbeat failed", "error", err)
		}
		if err := c.trackEvent(ctx, message); err != nil {
			slog.Debug("tracking event failed", "error", err)
		}
	}()
}

// Heartbeat pings the user time endpoint.
func (c *Client) Heartbeat(ctx context.Context) error {
	resp, err := c.do(ctx, c.httpClient, c.url(heartbeatPath), nil, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	return nil
}

// trackEvent reports the chat_sse_event analytics record the web client
// emits when a stream begins.
func (c *Client) trackEvent(ctx context.Context, message string) error {
	nowMillis := time.Now().UnixMilli()

	params, err := json.Marshal(map[string]any{
		"conversation_id": c.creds.ConversationID(),
		"turn_id":         fmt.Sprintf("newTurnId_%d", nowMillis),
		"content":         message,
		"sse_event":       "begin",
		"refer_page":      "history",
		"user_id":         c.creds.UserID(),
		"bot_id":          botIDConversation,
		"event_index":     nowMillis - 15000 + 1,
	})
	if err != nil {
		return fmt.Errorf("encode tracking params: %w", err)
	}

	payload := []map[string]any{{
		"events": []map[string]any{{
			"event":         "chat_sse_event",
			"params":        string(params),
			"local_time_ms": nowMillis,
			"session_id":    uuid.NewString(),
		}},
		"user": map[string]any{
			"user_unique_id": c.creds.UserID(),
			"web_id":         c.creds.WebID(),
		},
		"header": map[string]any{
			"app_id":          trackingAppID,
			"os_name":         "windows",
			"os_version":      "10",
			"device_model":    "Windows NT 10.0",
			"platform":        "web",
			"browser":         "Chrome",
			"browser_version": "129.0.0.0",
		},
	}}

	return c.plainPost(ctx, c.tracking+"/list", payload, nil)
}

// plainPost sends an unsigned JSON request to the tracking host.
func (c *Client) plainPost(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://www.wenxiaobai.com")
	req.Header.Set("Referer", "https://www.wenxiaobai.com/")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Code: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
