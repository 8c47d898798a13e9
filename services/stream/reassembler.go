// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stream reconstructs a single deterministic answer from the
// Wenxiaobai server-sent-event stream.
//
// The upstream service delivers partial content fragments that may arrive
// out of logical order. Each meaningful line has the form `data:<json>`
// with at least {content: string, contentIndex: int}. Reassemble buffers
// accepted fragments as (index, text) pairs and performs a final sort by
// index; the sort is the correctness-critical step since network delivery
// order does not match logical order.
package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/AleutianAI/XiaobaiBridge/pkg/markers"
)

// EmptyResponse is returned when a stream yields no body text after all
// filtering. Callers always receive a deliverable string, never "".
const EmptyResponse = "收到空响应"

// dataPrefix tags meaningful SSE lines. The upstream emits no space after
// the colon.
const dataPrefix = "data:"

// maxLineSize bounds a single SSE line. Generation streams carry long
// base64-free payloads but stay well under this.
const maxLineSize = 1024 * 1024

// Fragment is one unit of streamed partial content with its explicit
// ordering index.
type Fragment struct {
	Index int
	Text  string
}

type streamEvent struct {
	Content      *string `json:"content"`
	ContentIndex int     `json:"contentIndex"`
}

// parseEvent decodes one SSE line into a fragment. The second return is
// false for ignorable lines: non-data lines, malformed JSON, and events
// without a content field. Malformed lines are skipped, never fatal.
func parseEvent(line string) (Fragment, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return Fragment{}, false
	}
	var ev streamEvent
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &ev); err != nil {
		slog.Debug("skipping malformed stream line", "error", err)
		return Fragment{}, false
	}
	if ev.Content == nil {
		return Fragment{}, false
	}
	return Fragment{Index: ev.ContentIndex, Text: *ev.Content}, true
}

// Reassemble consumes a chat/search/vision response stream and produces
// one cleaned string.
//
// Body accumulation does not begin until the deep-thought preamble has
// been observed; fragments before it are preamble and discarded. Once
// started, a fragment is accepted only if its index is strictly greater
// than the highest index accepted so far. Fragments carrying raw markup
// are discarded entirely.
func Reassemble(r io.Reader) string {
	var (
		accepted     []Fragment
		thinkingTime string
		lastIndex    = -1
		started      bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		frag, ok := parseEvent(scanner.Text())
		if !ok {
			continue
		}
		text := markers.StripCitations(frag.Text)

		if thinkingTime == "" {
			if d, ok := markers.ThinkingDuration(text); ok {
				thinkingTime = d
				started = true
				continue
			}
		}
		if markers.IsMarkup(text) {
			continue
		}
		if started && frag.Index > lastIndex {
			accepted = append(accepted, Fragment{Index: frag.Index, Text: text})
			lastIndex = frag.Index
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("stream read aborted", "error", err)
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Index < accepted[j].Index })
	var b strings.Builder
	for _, f := range accepted {
		b.WriteString(f.Text)
	}

	// Stripping is idempotent; reapplying catches markers split across
	// fragment boundaries.
	final := strings.TrimSpace(markers.StripCitations(b.String()))
	if thinkingTime != "" {
		final = markers.ThinkingLine(thinkingTime) + "\n" + final
	}
	if final == "" {
		return EmptyResponse
	}
	return final
}
