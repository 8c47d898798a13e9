// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stream

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"github.com/AleutianAI/XiaobaiBridge/pkg/markers"
)

// GenerationFailed is the user-facing result when an image-generation
// stream ends without both a prompt and an image URL.
const GenerationFailed = "生成失败，未获取到完整响应"

// ImageResult pairs the rewritten prompt text with the generated image
// location.
type ImageResult struct {
	Prompt string
	URL    string
}

// ReassembleImage consumes an image-generation response stream.
//
// Prompt text is collected between the 「 and 」 delimiters, the elapsed
// thinking time is taken from the <end> marker fragment, and the image
// URL from the content marker fragment. The three scans are independent;
// fragment order within the stream only matters for prompt collection.
// The second return is false when either the prompt or the URL is
// missing, in which case callers report GenerationFailed.
func ReassembleImage(r io.Reader) (ImageResult, bool) {
	var (
		promptParts  []string
		imageURL     string
		thinkingSecs string
		collecting   bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		frag, ok := parseEvent(scanner.Text())
		if !ok {
			continue
		}
		content := frag.Text

		if strings.Contains(content, markers.PromptOpen) {
			collecting = true
			content = markers.StripPromptLead(content)
		}
		if collecting {
			if strings.Contains(content, markers.PromptClose) {
				promptParts = append(promptParts, markers.StripPromptClose(content))
				collecting = false
			} else {
				promptParts = append(promptParts, content)
			}
		}
		if s, ok := markers.ThinkingSeconds(content); ok {
			thinkingSecs = s
		}
		if u, ok := markers.ImageURL(content); ok {
			imageURL = u
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("image stream read aborted", "error", err)
	}

	prompt := strings.TrimSpace(strings.Join(promptParts, ""))
	if prompt == "" || imageURL == "" {
		return ImageResult{}, false
	}

	formatted := "提示词：\n" + prompt
	if thinkingSecs != "" {
		formatted = markers.ThinkingLine(thinkingSecs+"秒") + "\n" + formatted
	}
	return ImageResult{Prompt: formatted, URL: imageURL}, true
}
