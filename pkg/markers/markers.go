// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package markers holds the pure text transforms applied to Wenxiaobai
// stream content: citation-marker stripping, thinking-preamble detection,
// prompt delimiter handling and image URL extraction.
//
// Everything here is independent of I/O so the stream reassembly logic
// can be tested without network mocking.
package markers

import (
	"regexp"
	"strings"
)

const (
	// PromptOpen and PromptClose bound the rewritten image prompt inside
	// the generation stream.
	PromptOpen  = "「"
	PromptClose = "」"

	// promptLeadArtifact precedes the opening delimiter in the first
	// prompt fragment and carries no content.
	promptLeadArtifact = "\n\n\n「"

	// thinkingPrefix opens the deep-thought preamble line emitted before
	// the body of every answer.
	thinkingPrefix = "已深度思考（用时"

	// imageURLMarker tags the fragment that carries the generated image
	// location.
	imageURLMarker = "content image_url"
)

var (
	citationRe    = regexp.MustCompile(`\[\d+\](?:\(@ref\))?`)
	thinkingRe    = regexp.MustCompile(`已深度思考（用时(.*?)）`)
	thinkingSecRe = regexp.MustCompile(`已深度思考（用时(\d+)秒）`)
	imageURLRe    = regexp.MustCompile("content image_url\\s+(https?://[^\\s\n`]+)")
)

// StripCitations removes citation markers of the form [12] or [12](@ref).
// The transform is idempotent.
func StripCitations(s string) string {
	return citationRe.ReplaceAllString(s, "")
}

// ThinkingDuration reports the elapsed-time annotation from a deep-thought
// preamble fragment, e.g. "5秒" from "已深度思考（用时5秒）". The second
// return is false when the fragment carries no preamble.
func ThinkingDuration(s string) (string, bool) {
	if !strings.Contains(s, thinkingPrefix) {
		return "", false
	}
	m := thinkingRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ThinkingLine formats the standard preamble line for a recorded duration.
func ThinkingLine(duration string) string {
	return thinkingPrefix + duration + "）"
}

// ThinkingSeconds reports the elapsed seconds from an end-of-thinking
// fragment in an image-generation stream ("<end>已深度思考（用时12秒）").
func ThinkingSeconds(s string) (string, bool) {
	if !strings.Contains(s, "<end>"+thinkingPrefix) {
		return "", false
	}
	m := thinkingSecRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsMarkup reports whether a fragment carries raw markup (code fences or
// angle brackets). Such fragments are control text from the upstream model
// and never contribute to the reassembled answer.
func IsMarkup(s string) bool {
	return strings.Contains(s, "```") ||
		strings.Contains(s, "<") ||
		strings.Contains(s, ">")
}

// ImageURL extracts the generated image location from a marker fragment.
// The URL runs from the scheme to the next whitespace, backtick or newline.
func ImageURL(s string) (string, bool) {
	if !strings.Contains(s, imageURLMarker) {
		return "", false
	}
	m := imageURLRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StripPromptLead removes the opening prompt delimiter together with the
// artifact sequence that precedes it in the first prompt fragment.
func StripPromptLead(s string) string {
	s = strings.ReplaceAll(s, promptLeadArtifact, "")
	return strings.ReplaceAll(s, PromptOpen, "")
}

// StripPromptClose removes the closing prompt delimiter.
func StripPromptClose(s string) string {
	return strings.ReplaceAll(s, PromptClose, "")
}
