// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package login drives the phone/OTP login flow.
//
// The state machine is idle until an authenticated command arrives
// without a token, then walks awaiting_phone -> awaiting_code -> idle.
// The phone number lives in a memguard enclave for the duration of the
// exchange and is wiped on completion; it never reaches the credential
// store.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/awnumar/memguard"

	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

// Phase is the login state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingPhone
	PhaseAwaitingCode
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingPhone:
		return "awaiting_phone"
	case PhaseAwaitingCode:
		return "awaiting_code"
	default:
		return "unknown"
	}
}

// phoneRe matches an 11-digit CN mobile number (prefix 13 through 19).
var phoneRe = regexp.MustCompile(`^1[3-9]\d{9}$`)

// User-facing prompts.
const (
	PromptStart       = "首次使用需要登录\n请输入手机号码："
	PromptBadPhone    = "请输入正确的手机号（11位数字）："
	PromptCodeSent    = "验证码已发送，请输入验证码："
	PromptCodeRetry   = "验证码错误或已过期，请重新输入："
	PromptLoginDone   = "登录成功！请重新发送您的问题。"
	PromptUnexpected  = "请输入正确的验证信息"
	promptSendCodeFmt = "发送验证码失败: %s\n请重新输入手机号："
)

// API is the slice of the provider client the flow needs.
type API interface {
	SendCode(ctx context.Context, phone string) error
	CreateSession(ctx context.Context, phone, code, deviceID string) (wenxiaobai.Session, error)
	WebID(ctx context.Context) (string, error)
}

// Flow is one login state machine bound to a credential store. It is
// ephemeral: nothing of it survives a restart except the captured
// credentials.
type Flow struct {
	api   API
	store *credstore.Store

	mu    sync.Mutex
	phase Phase
	phone *memguard.Enclave
}

// New creates an idle flow.
func New(api API, store *credstore.Store) *Flow {
	return &Flow{api: api, store: store}
}

// Authenticated reports whether a token is on file.
func (f *Flow) Authenticated() bool {
	return f.store.Token() != ""
}

// Active reports whether a login exchange is in progress; while true,
// login input handling preempts command classification.
func (f *Flow) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase != PhaseIdle
}

// Phase returns the current state. Exposed for tests and diagnostics.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

// Begin starts the flow and returns the first prompt. A no-op when a
// flow is already in progress.
func (f *Flow) Begin() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.phase == PhaseIdle {
		f.phase = PhaseAwaitingPhone
	}
	return PromptStart
}

// Handle consumes one user message while the flow is active and returns
// the next prompt. Every failure path keeps the machine in a state the
// user can retry from.
func (f *Flow) Handle(ctx context.Context, input string) string {
	f.mu.Lock()
	phase := f.phase
	f.mu.Unlock()

	switch phase {
	case PhaseAwaitingPhone:
		return f.handlePhone(ctx, input)
	case PhaseAwaitingCode:
		return f.handleCode(ctx, input)
	default:
		return PromptUnexpected
	}
}

func (f *Flow) handlePhone(ctx context.Context, input string) string {
	if !phoneRe.MatchString(input) {
		return PromptBadPhone
	}

	// The tracking web id is acquired once, before the first dispatch.
	if f.store.WebID() == "" {
		if webID, err := f.api.WebID(ctx); err != nil {
			slog.Warn("web id acquisition failed", "error", err)
		} else if err := f.store.Update(func(c *credstore.Credentials) { c.WebID = webID }); err != nil {
			slog.Warn("web id persist failed", "error", err)
		}
	}

	if err := f.api.SendCode(ctx, input); err != nil {
		slog.Error("otp dispatch failed", "error", err)
		return fmt.Sprintf(promptSendCodeFmt, errMessage(err))
	}

	f.mu.Lock()
	f.phone = memguard.NewEnclave([]byte(input))
	f.phase = PhaseAwaitingCode
	f.mu.Unlock()
	return PromptCodeSent
}

func (f *Flow) handleCode(ctx context.Context, code string) string {
	f.mu.Lock()
	enclave := f.phone
	f.mu.Unlock()
	if enclave == nil {
		// Phone lost (should not happen); restart from the top.
		f.mu.Lock()
		f.phase = PhaseAwaitingPhone
		f.mu.Unlock()
		return PromptBadPhone
	}

	buf, err := enclave.Open()
	if err != nil {
		slog.Error("phone enclave open failed", "error", err)
		f.mu.Lock()
		f.phone = nil
		f.phase = PhaseAwaitingPhone
		f.mu.Unlock()
		return PromptBadPhone
	}
	phone := buf.String()
	defer buf.Destroy()

	deviceID := f.store.DeviceID()
	if deviceID == "" {
		deviceID = wenxiaobai.NewDeviceID()
	}

	sess, err := f.api.CreateSession(ctx, phone, code, deviceID)
	if err != nil {
		slog.Error("login rejected", "error", err)
		return PromptCodeRetry
	}

	if err := f.store.Update(func(c *credstore.Credentials) {
		c.Token = sess.Token
		c.DeviceID = deviceID
		c.UserID = sess.UserID
	}); err != nil {
		slog.Error("credential persist failed", "error", err)
		return PromptCodeRetry
	}

	f.mu.Lock()
	f.phone = nil
	f.phase = PhaseIdle
	f.mu.Unlock()
	slog.Info("login complete", "user_id", sess.UserID)
	return PromptLoginDone
}

func errMessage(err error) string {
	var apiErr *wenxiaobai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
