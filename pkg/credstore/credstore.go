// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package credstore persists the Wenxiaobai credential document.
//
// The document holds token, device id, conversation id, user id and web
// id. The login phone number is deliberately absent from the schema: it
// exists only in memory during the OTP exchange and must never reach
// disk.
package credstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Credentials is the persisted state. Phone numbers have no field here
// by design of the schema.
type Credentials struct {
	Token          string `json:"token"`
	DeviceID       string `json:"device_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	WebID          string `json:"web_id"`
}

// Store owns the credential document at a single path. Safe for
// concurrent use.
type Store struct {
	path string

	mu    sync.RWMutex
	creds Credentials
}

// Open loads the store from path. A missing file is not an error; the
// store starts empty and is created on the first Save.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if err := json.Unmarshal(raw, &s.creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return s, nil
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current credentials.
func (s *Store) Snapshot() Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds
}

// Update applies fn under the lock and persists the result.
func (s *Store) Update(fn func(*Credentials)) error {
	s.mu.Lock()
	fn(&s.creds)
	creds := s.creds
	s.mu.Unlock()
	return s.save(creds)
}

// save writes the document atomically: temp file in the same directory,
// fsync, rename over the target.
func (s *Store) save(creds Credentials) error {
	raw, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}

// reload re-reads the file after an external edit.
func (s *Store) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return err
	}
	s.mu.Lock()
	s.creds = creds
	s.mu.Unlock()
	return nil
}

// Watch reloads the store when the file changes on disk, until ctx is
// done. External edits (operator pasting a fresh token) take effect
// without a restart.
func (s *Store) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: atomic renames replace the inode.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch credential dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != s.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					slog.Warn("credential reload failed", "error", err)
				} else {
					slog.Info("credentials reloaded from disk")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("credential watcher error", "error", err)
			}
		}
	}()
	return nil
}

// ===== CredentialSource =====

// Token returns the bearer token, or "" before login.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

// DeviceID returns the stable device identity.
func (s *Store) DeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.DeviceID
}

// UserID returns the server-assigned user id.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.UserID
}

// ConversationID returns the current conversation handle.
func (s *Store) ConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.ConversationID
}

// WebID returns the analytics web id.
func (s *Store) WebID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.WebID
}
