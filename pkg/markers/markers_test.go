// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package markers

import "testing"

func TestStripCitations(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"with ref suffix", "见报告[12](@ref)结果", "见报告结果"},
		{"bare marker", "数据[3]显示", "数据显示"},
		{"multiple markers", "a[1]b[2](@ref)c", "abc"},
		{"no marker", "plain text", "plain text"},
		{"idempotent", "见报告结果", "见报告结果"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := StripCitations(tc.in); got != tc.want {
				t.Errorf("StripCitations(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestThinkingDuration(t *testing.T) {
	d, ok := ThinkingDuration("已深度思考（用时5秒）")
	if !ok || d != "5秒" {
		t.Fatalf("got (%q, %v), want (5秒, true)", d, ok)
	}
	if _, ok := ThinkingDuration("普通内容"); ok {
		t.Error("plain content should not parse as a preamble")
	}
	if got := ThinkingLine("5秒"); got != "已深度思考（用时5秒）" {
		t.Errorf("ThinkingLine = %q", got)
	}
}

func TestThinkingSeconds(t *testing.T) {
	s, ok := ThinkingSeconds("<end>已深度思考（用时12秒）")
	if !ok || s != "12" {
		t.Fatalf("got (%q, %v), want (12, true)", s, ok)
	}
	// Without the <end> tag the fragment is a chat preamble, not the
	// image-generation end marker.
	if _, ok := ThinkingSeconds("已深度思考（用时12秒）"); ok {
		t.Error("chat preamble should not parse as image end marker")
	}
}

func TestIsMarkup(t *testing.T) {
	for _, s := range []string{"```go", "<think>", "a > b", "<end>"} {
		if !IsMarkup(s) {
			t.Errorf("IsMarkup(%q) = false, want true", s)
		}
	}
	if IsMarkup("普通正文，没有标记") {
		t.Error("plain text flagged as markup")
	}
}

func TestImageURL(t *testing.T) {
	url, ok := ImageURL("content image_url https://example.com/x.png")
	if !ok || url != "https://example.com/x.png" {
		t.Fatalf("got (%q, %v)", url, ok)
	}
	// URL terminates at whitespace and backticks.
	url, _ = ImageURL("content image_url https://example.com/x.png `tail")
	if url != "https://example.com/x.png" {
		t.Errorf("url not bounded at whitespace: %q", url)
	}
	if _, ok := ImageURL("no marker here https://example.com"); ok {
		t.Error("bare URL without marker should not match")
	}
}

func TestPromptDelimiters(t *testing.T) {
	if got := StripPromptLead("\n\n\n「a cat"); got != "a cat" {
		t.Errorf("StripPromptLead = %q", got)
	}
	if got := StripPromptLead("「a cat"); got != "a cat" {
		t.Errorf("StripPromptLead without artifact = %q", got)
	}
	if got := StripPromptClose("in the rain」"); got != "in the rain" {
		t.Errorf("StripPromptClose = %q", got)
	}
}
