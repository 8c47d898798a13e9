// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history retains per-user exchange transcripts in an embedded
// BadgerDB store. Every completed exchange is appended; the CLI browses
// the most recent ones.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Exchange is one completed question/answer pair.
type Exchange struct {
	UserID    string    `json:"user_id"`
	Mode      string    `json:"mode"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds configuration for the history store.
type Config struct {
	// Path is the directory for the database files. Required unless
	// InMemory is set.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// Logger receives BadgerDB's internal output. Nil disables it.
	Logger *slog.Logger
}

// Store is the transcript store. Safe for concurrent use.
type Store struct {
	db *badger.DB
}

// keyPrefix namespaces exchange records; keys sort by user then time so
// a prefix scan walks one user's transcript chronologically.
const keyPrefix = "exchange/"

// Open creates the store, creating the directory when needed.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent history")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create history directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func exchangeKey(userID string, ts time.Time) []byte {
	// RFC 3339 with nanoseconds sorts lexicographically in time order.
	return []byte(keyPrefix + userID + "/" + ts.UTC().Format("2006-01-02T15:04:05.000000000Z"))
}

// Append records one exchange.
func (s *Store) Append(ex Exchange) error {
	if ex.UserID == "" {
		return errors.New("exchange without user id")
	}
	if ex.Timestamp.IsZero() {
		ex.Timestamp = time.Now()
	}
	raw, err := json.Marshal(ex)
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(exchangeKey(ex.UserID, ex.Timestamp), raw)
	})
}

// Recent returns up to limit exchanges for a user, newest first.
func (s *Store) Recent(userID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		limit = 20
	}
	prefix := []byte(keyPrefix + userID + "/")

	var out []Exchange
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts just past the prefix range.
		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var ex Exchange
				if err := json.Unmarshal(val, &ex); err != nil {
					return fmt.Errorf("decode exchange: %w", err)
				}
				out = append(out, ex)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Users lists the user ids with at least one recorded exchange.
func (s *Store) Users() ([]string, error) {
	seen := map[string]struct{}{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			key := string(it.Item().Key())
			rest := strings.TrimPrefix(key, keyPrefix)
			if i := strings.IndexByte(rest, '/'); i > 0 {
				seen[rest[:i]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	return users, nil
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
