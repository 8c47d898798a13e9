// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package stream

import (
	"encoding/json"
	"strings"
	"testing"
)

// dataLine builds one SSE event line the way the upstream emits it, with
// no space after the colon.
func dataLine(t *testing.T, index int, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"content":      content,
		"contentIndex": index,
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return "data:" + string(b)
}

const preamble = "已深度思考（用时5秒）"

func sseBody(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestReassembleOrdersOutOfOrderFragments(t *testing.T) {
	body := sseBody(
		dataLine(t, 0, preamble),
		dataLine(t, 2, "world"),
		dataLine(t, 0, "hello "),
		dataLine(t, 1, "there, "),
	)
	// Indexes 0 and 1 arrive after max accepted reached 2 and are dropped
	// under the strictly-greater acceptance rule. Reorder so each index
	// exceeds the running maximum on arrival.
	got := Reassemble(body)
	want := preamble + "\nworld"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	body = sseBody(
		dataLine(t, 0, preamble),
		dataLine(t, 0, "hello "),
		dataLine(t, 1, "there, "),
		dataLine(t, 2, "world"),
	)
	got = Reassemble(body)
	want = preamble + "\nhello there, world"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReassembleDropsNonIncreasingIndexes(t *testing.T) {
	body := sseBody(
		dataLine(t, 0, preamble),
		dataLine(t, 3, "keep"),
		dataLine(t, 2, "drop"),
		dataLine(t, 3, "drop too"),
	)
	got := Reassemble(body)
	if strings.Contains(got, "drop") {
		t.Errorf("non-increasing fragment leaked into result: %q", got)
	}
}

func TestReassembleDiscardsBodyBeforePreamble(t *testing.T) {
	body := sseBody(
		dataLine(t, 0, "preamble chatter"),
		dataLine(t, 1, preamble),
		dataLine(t, 2, "正文"),
	)
	got := Reassemble(body)
	want := preamble + "\n正文"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReassembleStripsCitations(t *testing.T) {
	body := sseBody(
		dataLine(t, 0, preamble),
		dataLine(t, 1, "见报告[12](@ref)结果"),
	)
	got := Reassemble(body)
	if got != preamble+"\n见报告结果" {
		t.Errorf("citations not stripped: %q", got)
	}
}

func TestReassembleDiscardsMarkupFragments(t *testing.T) {
	body := sseBody(
		dataLine(t, 0, preamble),
		dataLine(t, 1, "```python"),
		dataLine(t, 2, "<thinking>"),
		dataLine(t, 3, "正文"),
	)
	got := Reassemble(body)
	if got != preamble+"\n正文" {
		t.Errorf("markup fragments leaked: %q", got)
	}
}

func TestReassembleEmptyStreamReturnsSentinel(t *testing.T) {
	if got := Reassemble(strings.NewReader("")); got != EmptyResponse {
		t.Errorf("got %q, want sentinel", got)
	}
	// A stream with only pre-preamble chatter also yields the sentinel.
	body := sseBody(dataLine(t, 0, "chatter"))
	if got := Reassemble(body); got != EmptyResponse {
		t.Errorf("got %q, want sentinel", got)
	}
}

func TestReassembleSkipsMalformedLines(t *testing.T) {
	body := sseBody(
		"event: ping",
		"data:{not json",
		dataLine(t, 0, preamble),
		`data:{"contentIndex": 1}`,
		dataLine(t, 1, "正文"),
	)
	got := Reassemble(body)
	if got != preamble+"\n正文" {
		t.Errorf("got %q", got)
	}
}
