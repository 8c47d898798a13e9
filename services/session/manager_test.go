// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
)

type fakeConversations struct {
	calls int
	err   error
}

func (f *fakeConversations) CreateConversation(context.Context, string, string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("conv-%d", f.calls), nil
}

func newTestManager(t *testing.T, api *fakeConversations) (*Manager, *credstore.Store) {
	t.Helper()
	store, err := credstore.Open(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	require.NoError(t, store.Update(func(c *credstore.Credentials) {
		c.UserID = "42"
		c.DeviceID = "dev"
	}))
	m := New(api, store)
	return m, store
}

func TestEnsureLiveCreatesFirstConversation(t *testing.T) {
	api := &fakeConversations{}
	m, store := newTestManager(t, api)

	require.True(t, m.EnsureLive(context.Background()))
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, "conv-1", store.ConversationID())
	assert.Equal(t, 0, m.TurnIndex())
}

func TestEnsureLiveKeepsFreshSession(t *testing.T) {
	api := &fakeConversations{}
	m, _ := newTestManager(t, api)
	require.True(t, m.EnsureLive(context.Background()))
	m.Advance()
	m.Advance()

	// A second call within the cooldown must not reallocate or touch
	// the turn index.
	require.True(t, m.EnsureLive(context.Background()))
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 2, m.TurnIndex())
}

func TestEnsureLiveRenewsAfterCooldown(t *testing.T) {
	api := &fakeConversations{}
	m, store := newTestManager(t, api)

	now := time.Now()
	m.clock = func() time.Time { return now }
	require.True(t, m.EnsureLive(context.Background()))
	m.Advance()

	m.clock = func() time.Time { return now.Add(DefaultCooldown + time.Second) }
	require.True(t, m.EnsureLive(context.Background()))
	assert.Equal(t, 2, api.calls)
	assert.Equal(t, "conv-2", store.ConversationID())
	assert.Equal(t, 0, m.TurnIndex(), "turn index must reset on renewal")
}

func TestEnsureLiveFailureIsBoolean(t *testing.T) {
	api := &fakeConversations{err: errors.New("rejected")}
	m, _ := newTestManager(t, api)
	assert.False(t, m.EnsureLive(context.Background()))
}

func TestEnsureLiveRequiresUserID(t *testing.T) {
	store, err := credstore.Open(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	m := New(&fakeConversations{}, store)
	assert.False(t, m.EnsureLive(context.Background()))
}

func TestAdvanceIncrementsByExactlyOne(t *testing.T) {
	m, _ := newTestManager(t, &fakeConversations{})
	require.True(t, m.EnsureLive(context.Background()))
	for i := 1; i <= 3; i++ {
		m.Advance()
		assert.Equal(t, i, m.TurnIndex())
	}
}
