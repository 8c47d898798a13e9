// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns conversation continuity: the server-assigned
// conversation id, the per-turn counter, and cooldown-based renewal.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
)

var tracer = otel.Tracer("xiaobai.session.manager")

// Cooldown after which an idle conversation is considered stale and
// replaced.
const DefaultCooldown = 180 * time.Second

// Conversations is the slice of the provider client the manager needs.
type Conversations interface {
	CreateConversation(ctx context.Context, userID, deviceID string) (string, error)
}

// Manager decides when a new conversation must be allocated and tracks
// the turn index. The manager exclusively owns both; callers read the
// turn index but never write it.
type Manager struct {
	api      Conversations
	store    *credstore.Store
	cooldown time.Duration
	// clock is swappable for renewal tests.
	clock func() time.Time

	mu           sync.Mutex
	turnIndex    int
	lastActivity time.Time
}

// New creates a manager with the standard cooldown.
func New(api Conversations, store *credstore.Store) *Manager {
	return &Manager{
		api:      api,
		store:    store,
		cooldown: DefaultCooldown,
		clock:    time.Now,
	}
}

// WithCooldown overrides the renewal cooldown. Zero or negative keeps
// the current value.
func (m *Manager) WithCooldown(d time.Duration) *Manager {
	if d > 0 {
		m.cooldown = d
	}
	return m
}

// EnsureLive guarantees a usable conversation before an exchange. A new
// conversation is allocated when the session has idled past the cooldown
// or no conversation id exists yet; allocation resets the turn index to
// 0. Failure is reported as false, never an error value, so the caller
// can produce a user-facing message.
func (m *Manager) EnsureLive(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "Manager.EnsureLive")
	defer span.End()

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	stale := m.lastActivity.IsZero() || now.Sub(m.lastActivity) > m.cooldown
	renew := stale || m.store.ConversationID() == ""
	span.SetAttributes(attribute.Bool("session.renew", renew))

	if renew {
		userID := m.store.UserID()
		if userID == "" {
			slog.Error("conversation requested without a user id")
			return false
		}
		conversationID, err := m.api.CreateConversation(ctx, userID, m.store.DeviceID())
		if err != nil {
			slog.Error("conversation creation failed", "error", err)
			return false
		}
		if err := m.store.Update(func(c *credstore.Credentials) {
			c.ConversationID = conversationID
		}); err != nil {
			slog.Error("conversation id persist failed", "error", err)
			return false
		}
		m.turnIndex = 0
		slog.Info("new conversation created", "conversation_id", conversationID)
	}

	m.lastActivity = now
	return true
}

// TurnIndex returns the position of the next exchange within the
// conversation. Turn 0 marks a new conversation.
func (m *Manager) TurnIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.turnIndex
}

// Advance records one completed exchange. Called after every streaming
// call that reached the server, regardless of outcome content; even an
// empty or garbled response advances the turn.
func (m *Manager) Advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex++
}
