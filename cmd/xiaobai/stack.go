// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/XiaobaiBridge/cmd/xiaobai/config"
	"github.com/AleutianAI/XiaobaiBridge/pkg/credstore"
	"github.com/AleutianAI/XiaobaiBridge/pkg/logging"
	"github.com/AleutianAI/XiaobaiBridge/services/history"
	"github.com/AleutianAI/XiaobaiBridge/services/login"
	"github.com/AleutianAI/XiaobaiBridge/services/router"
	"github.com/AleutianAI/XiaobaiBridge/services/session"
	"github.com/AleutianAI/XiaobaiBridge/services/wenxiaobai"
)

// cliUserID names the local operator in transcripts and the per-user
// serialization table. The CLI is single-user by construction.
const cliUserID = "cli"

// stack bundles the wired bridge components one CLI invocation needs.
type stack struct {
	store   *credstore.Store
	client  *wenxiaobai.Client
	login   *login.Flow
	bridge  *router.Router
	history *history.Store
	logger  *logging.Logger
}

// buildStack wires the full bridge from the loaded config. Fatal on
// credential store errors; a missing history store only disables
// transcripts.
func buildStack(withHistory bool) *stack {
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Logging.Level),
		LogDir:  cfg.Logging.Dir,
		Service: "cli",
		Quiet:   true,
	})
	slog.SetDefault(logger.Slog())

	store, err := credstore.Open(filepath.Join(cfg.Storage.DataDir, "credentials.json"))
	if err != nil {
		log.Fatalf("could not open the credential store: %v", err)
	}

	client := wenxiaobai.NewClient(wenxiaobai.ClientConfig{
		BaseURL:       cfg.Upstream.BaseURL,
		TrackingURL:   cfg.Upstream.TrackingURL,
		Timeout:       time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		StreamTimeout: time.Duration(cfg.Upstream.StreamTimeoutSeconds) * time.Second,
	}, store)

	loginFlow := login.New(client, store)
	sessions := session.New(client, store).
		WithCooldown(time.Duration(cfg.Session.CooldownSeconds) * time.Second)

	var hist *history.Store
	if withHistory && cfg.Storage.HistoryEnabled {
		hist, err = history.Open(history.Config{
			Path:   filepath.Join(cfg.Storage.DataDir, "history"),
			Logger: logger.Slog(),
		})
		if err != nil {
			slog.Warn("history store unavailable, transcripts disabled", "error", err)
			hist = nil
		}
	}

	return &stack{
		store:   store,
		client:  client,
		login:   loginFlow,
		bridge:  router.New(client, sessions, loginFlow, store, hist),
		history: hist,
		logger:  logger,
	}
}

func (s *stack) close() {
	if s.history != nil {
		s.history.Close()
	}
	s.logger.Close()
}
