// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package router maps free-text user input onto the Wenxiaobai command
// set and orchestrates one exchange end to end: login preemption,
// session liveness, the streaming call, and reassembly of the final
// answer.
package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/XiaobaiBridge/services/history"
	"github.com/AleutianAI/XiaobaiBridge/services/login"
	"github.com/AleutianAI/XiaobaiBridge/services/stream"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

var tracer = otel.Tracer("xiaobai.router")

// Command classification patterns. The plain chat prefix also matches
// the longer commands, so dispatch checks the specific ones first.
var (
	chatRe   = regexp.MustCompile(`^小白\s*(.*)$`)
	searchRe = regexp.MustCompile(`^小白搜索\s*(.*)$`)
	imageRe  = regexp.MustCompile(`^小白生图\s*(.*?)(?:-([^-]+))?(?:-(\d+:\d+))?$`)
	visionRe = regexp.MustCompile(`^小白识图\s*(.*)$`)
)

// Provider is the slice of the transport the router drives.
type Provider interface {
	StreamChat(ctx context.Context, req wenxiaobai.ChatRequest) (io.ReadCloser, error)
	UploadImage(ctx context.Context, data []byte) (wenxiaobai.MediaInfo, error)
}

// Sessions is the conversation continuity contract.
type Sessions interface {
	EnsureLive(ctx context.Context) bool
	TurnIndex() int
	Advance()
}

// LoginFlow is the login state machine contract.
type LoginFlow interface {
	Authenticated() bool
	Active() bool
	Begin() string
	Handle(ctx context.Context, input string) string
}

// Identity supplies the numeric user id and conversation handle for
// chat payloads.
type Identity interface {
	UserID() string
	ConversationID() string
}

// Metrics receives exchange lifecycle events. Implementations must be
// safe for concurrent use.
type Metrics interface {
	StreamStarted()
	StreamEnded()
	RecordLoginEvent(event string)
	RecordUpload(success bool)
}

// Router classifies inbound messages and runs exchanges. Per-user work
// is serialized with a mutex table so concurrent messages from one
// identity cannot interleave turn updates.
type Router struct {
	provider Provider
	sessions Sessions
	login    LoginFlow
	identity Identity
	history  *history.Store
	metrics  Metrics

	pending *pendingImages

	mu    sync.Mutex
	users map[string]*sync.Mutex
}

// New wires a router. The history store may be nil; transcripts are
// then not retained.
func New(provider Provider, sessions Sessions, login LoginFlow, identity Identity, hist *history.Store) *Router {
	return &Router{
		provider: provider,
		sessions: sessions,
		login:    login,
		identity: identity,
		history:  hist,
		pending:  newPendingImages(),
		users:    make(map[string]*sync.Mutex),
	}
}

// WithMetrics attaches an event sink. A nil sink disables recording.
func (r *Router) WithMetrics(m Metrics) *Router {
	r.metrics = m
	return r
}

// userLock returns the serialization lock for one user id.
func (r *Router) userLock(userID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.users[userID]
	if !ok {
		l = &sync.Mutex{}
		r.users[userID] = l
	}
	return l
}

// HandleText processes one inbound text message. A nil result means the
// message is not for this system and the host should ignore it.
func (r *Router) HandleText(ctx context.Context, userID, text string) []Reply {
	ctx, span := tracer.Start(ctx, "Router.HandleText")
	defer span.End()

	// Mid-login input preempts command classification entirely.
	if r.login.Active() {
		reply := r.login.Handle(ctx, text)
		r.loginEvent(reply)
		return []Reply{textReply(reply)}
	}

	visionM := visionRe.FindStringSubmatch(text)
	imageM := imageRe.FindStringSubmatch(text)
	searchM := searchRe.FindStringSubmatch(text)
	chatM := chatRe.FindStringSubmatch(text)
	if visionM == nil && imageM == nil && searchM == nil && chatM == nil {
		return nil
	}

	if !r.login.Authenticated() {
		reply := r.login.Begin()
		r.loginEvent(reply)
		return []Reply{textReply(reply)}
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	switch {
	case visionM != nil:
		span.SetAttributes(attribute.String("command", "vision"))
		return r.handleVisionCommand(userID, visionM[1])
	case imageM != nil:
		span.SetAttributes(attribute.String("command", "image"))
		return r.handleImageCommand(ctx, userID, imageM)
	case searchM != nil:
		span.SetAttributes(attribute.String("command", "search"))
		return r.handleChatCommand(ctx, userID, searchM[1], "search")
	default:
		span.SetAttributes(attribute.String("command", "chat"))
		return r.handleChatCommand(ctx, userID, chatM[1], "chat")
	}
}

// HandleImage processes an inbound image. Only users with a pending
// image-understanding command receive a response; the pairing entry is
// cleared after this one use regardless of outcome.
func (r *Router) HandleImage(ctx context.Context, userID string, image []byte) []Reply {
	ctx, span := tracer.Start(ctx, "Router.HandleImage")
	defer span.End()

	query, ok := r.pending.Take(userID)
	if !ok {
		return nil
	}

	lock := r.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	info, err := r.provider.UploadImage(ctx, image)
	r.recordUpload(err == nil)
	if err != nil {
		slog.Error("image upload failed", "error", err)
		return []Reply{errorReply(replyUploadFailed)}
	}

	answer := r.exchange(ctx, userID, query, wenxiaobai.ModeVision, "vision",
		func(req wenxiaobai.ChatRequest) wenxiaobai.ChatRequest {
			return req.WithMedia(info)
		})
	return []Reply{textReply(answer)}
}

// AwaitingImage reports whether the user owes an image. The gateway uses
// this to tell hosts whether to forward the next picture.
func (r *Router) AwaitingImage(userID string) bool {
	return r.pending.Waiting(userID)
}

// InterimText returns the wait notice to send before a slow text
// exchange. Only image generation warrants one; the other commands
// answer within the host's patience.
func (r *Router) InterimText(text string) (string, bool) {
	if r.login.Active() || !r.login.Authenticated() {
		return "", false
	}
	if imageRe.MatchString(text) {
		return replyGenerating, true
	}
	return "", false
}

// InterimImage returns the wait notice for an inbound picture that is
// about to be paired with a pending recognition query.
func (r *Router) InterimImage(userID string) (string, bool) {
	if r.login.Active() || !r.login.Authenticated() {
		return "", false
	}
	if r.pending.Waiting(userID) {
		return replyProcessing, true
	}
	return "", false
}

func (r *Router) handleVisionCommand(userID, query string) []Reply {
	query = trim(query)
	if query == "" {
		return []Reply{errorReply(replyVisionNoQuery)}
	}
	r.pending.Put(userID, query)
	return []Reply{textReply(replySendImage)}
}

func (r *Router) handleImageCommand(ctx context.Context, userID string, m []string) []Reply {
	prompt := trim(m[1])
	opts := wenxiaobai.ImageOptions{Style: trim(m[2]), Size: trim(m[3])}

	result, ok := r.imageExchange(ctx, userID, prompt, opts)
	if !ok {
		return []Reply{errorReply(result.Prompt)}
	}
	return []Reply{textReply(result.Prompt), imageReply(result.URL)}
}

func (r *Router) handleChatCommand(ctx context.Context, userID, query, kind string) []Reply {
	answer := r.exchange(ctx, userID, trim(query), wenxiaobai.ModeChat, kind, nil)
	return []Reply{textReply(answer)}
}

// exchange performs one text-producing streaming exchange and returns
// the user-facing answer. All failure paths collapse into a deliverable
// string. recordAs names the command in the transcript; search and chat
// share a capability profile but are listed apart.
func (r *Router) exchange(ctx context.Context, userID, query string, mode wenxiaobai.Mode,
	recordAs string, decorate func(wenxiaobai.ChatRequest) wenxiaobai.ChatRequest) string {

	body, ok, failure := r.startStream(ctx, query, mode, decorate)
	if !ok {
		return failure
	}
	defer body.Close()
	r.streamStarted()
	defer r.streamEnded()

	answer := stream.Reassemble(body)
	r.record(userID, recordAs, query, answer)
	return answer
}

// imageExchange runs a generation exchange. On failure the returned
// result's Prompt carries the user-facing error string.
func (r *Router) imageExchange(ctx context.Context, userID, prompt string, opts wenxiaobai.ImageOptions) (stream.ImageResult, bool) {
	body, ok, failure := r.startStream(ctx, prompt, wenxiaobai.ModeImage,
		func(req wenxiaobai.ChatRequest) wenxiaobai.ChatRequest {
			return req.WithImageOptions(opts)
		})
	if !ok {
		return stream.ImageResult{Prompt: failure}, false
	}
	defer body.Close()
	r.streamStarted()
	defer r.streamEnded()

	result, ok := stream.ReassembleImage(body)
	if !ok {
		return stream.ImageResult{Prompt: stream.GenerationFailed}, false
	}
	r.record(userID, string(wenxiaobai.ModeImage), prompt, result.Prompt+"\n"+result.URL)
	return result, true
}

// startStream ensures a live session, issues the streaming call and
// advances the turn. The failure string is set when ok is false.
func (r *Router) startStream(ctx context.Context, query string, mode wenxiaobai.Mode,
	decorate func(wenxiaobai.ChatRequest) wenxiaobai.ChatRequest) (io.ReadCloser, bool, string) {

	if !r.sessions.EnsureLive(ctx) {
		return nil, false, replySessionFailed
	}

	uid, err := strconv.Atoi(r.identity.UserID())
	if err != nil {
		slog.Error("invalid user id in credentials", "error", err)
		return nil, false, fmt.Sprintf(replyRequestFailFmt, "无效的用户ID")
	}

	req, err := wenxiaobai.NewChatRequest(uid, r.sessions.TurnIndex(), r.identity.ConversationID(), query, mode)
	if err != nil {
		slog.Error("chat request build failed", "error", err)
		return nil, false, fmt.Sprintf(replyRequestFailFmt, err.Error())
	}
	if decorate != nil {
		req = decorate(req)
	}

	body, err := r.provider.StreamChat(ctx, req)
	if err != nil {
		slog.Error("streaming call failed", "error", err)
		return nil, false, fmt.Sprintf(replyRequestFailFmt, errMessage(err))
	}

	// The turn advances once the call reached the server, regardless of
	// what the stream contains.
	r.sessions.Advance()
	return body, true, ""
}

func (r *Router) record(userID, mode, query, answer string) {
	if r.history == nil {
		return
	}
	err := r.history.Append(history.Exchange{
		UserID:    userID,
		Mode:      mode,
		Query:     query,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	if err != nil {
		slog.Warn("transcript append failed", "error", err)
	}
}

func (r *Router) streamStarted() {
	if r.metrics != nil {
		r.metrics.StreamStarted()
	}
}

func (r *Router) streamEnded() {
	if r.metrics != nil {
		r.metrics.StreamEnded()
	}
}

func (r *Router) recordUpload(success bool) {
	if r.metrics != nil {
		r.metrics.RecordUpload(success)
	}
}

// loginEvent maps the flow's prompt strings onto metric events. Prompts
// with no metric counterpart (bad phone, retries of the same state) are
// not counted.
func (r *Router) loginEvent(prompt string) {
	if r.metrics == nil {
		return
	}
	switch prompt {
	case login.PromptStart:
		r.metrics.RecordLoginEvent("started")
	case login.PromptCodeSent:
		r.metrics.RecordLoginEvent("code_sent")
	case login.PromptCodeRetry:
		r.metrics.RecordLoginEvent("code_rejected")
	case login.PromptLoginDone:
		r.metrics.RecordLoginEvent("completed")
	}
}

func errMessage(err error) string {
	var apiErr *wenxiaobai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func trim(s string) string { return strings.TrimSpace(s) }
