// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "testsvc",
		Quiet:   true,
	})
	logger.Info("hello", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	name := "testsvc_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"msg":"hello"`) {
		t.Errorf("log file missing message: %s", content)
	}
	if !strings.Contains(content, `"service":"testsvc"`) {
		t.Errorf("log file missing service attribute: %s", content)
	}
}

func TestLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "filter",
		Quiet:   true,
	})
	logger.Debug("dropped debug")
	logger.Info("dropped info")
	logger.Warn("kept warn")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	name := "filter_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Errorf("filtered message leaked into log: %s", content)
	}
	if !strings.Contains(content, "kept warn") {
		t.Errorf("warn message missing from log: %s", content)
	}
}

func TestWithAttachesAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "child",
		Quiet:   true,
	})
	logger.With("user_id", "42").Info("attached")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	name := "child_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"user_id":"42"`) {
		t.Errorf("child attribute missing: %s", data)
	}
}

func TestCloseWithoutFile(t *testing.T) {
	logger := New(Config{Quiet: true})
	if err := logger.Close(); err != nil {
		t.Errorf("Close() without file should be nil, got %v", err)
	}
}

func TestMultiHandlerFanOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelInfo}),
	}}
	logger := slog.New(h)
	logger.Info("fan out")

	if !strings.Contains(a.String(), "fan out") {
		t.Errorf("text handler missing record: %q", a.String())
	}
	if !strings.Contains(b.String(), "fan out") {
		t.Errorf("json handler missing record: %q", b.String())
	}
}

func TestMultiHandlerEnabledRespectsLevels(t *testing.T) {
	var buf bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(debug) should be false when all handlers require error")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled(error) should be true")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got := expandPath("~/logs")
	if got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %q", got)
	}
	if expandPath("/abs/path") != "/abs/path" {
		t.Error("absolute path should pass through")
	}
}
