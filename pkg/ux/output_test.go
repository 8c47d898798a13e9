// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"
)

// Helper to capture stdout.
func captureStdout(f func()) string {
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	f()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

// Helper to capture stderr.
func captureStderr(f func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	f()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func TestSuccess_PlainMode(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Success("logged in") })
	if out != "OK: logged in\n" {
		t.Errorf("plain success output = %q", out)
	}
}

func TestError_PlainModeGoesToStderr(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStderr(func() { Error("upload failed") })
	if out != "ERROR: upload failed\n" {
		t.Errorf("plain error output = %q", out)
	}
}

func TestWarning_PlainModeGoesToStderr(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStderr(func() { Warning("code expired") })
	if out != "WARN: code expired\n" {
		t.Errorf("plain warning output = %q", out)
	}
}

func TestAnswer_PlainModePassesThrough(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Answer("已深度思考（用时3秒）\n你好") })
	if out != "已深度思考（用时3秒）\n你好\n" {
		t.Errorf("plain answer output = %q", out)
	}
}

func TestMuted_SuppressedInPlainMode(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Muted("detail") })
	if out != "" {
		t.Errorf("muted output should be suppressed, got %q", out)
	}
}

func TestStyledOutputContainsText(t *testing.T) {
	out := captureStdout(func() { Success("done") })
	if !strings.Contains(out, "done") {
		t.Errorf("styled output missing text: %q", out)
	}
}

func TestBox_PlainMode(t *testing.T) {
	SetPlain(true)
	defer SetPlain(false)

	out := captureStdout(func() { Box("提示词", "雨中的猫") })
	if out != "提示词: 雨中的猫\n" {
		t.Errorf("plain box output = %q", out)
	}
}

func TestIconRender(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow} {
		if !strings.Contains(icon.Render(), string(icon)) {
			t.Errorf("icon %q missing from rendered form", icon)
		}
	}
}
