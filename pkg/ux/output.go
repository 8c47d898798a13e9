// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides styled terminal output for the xiaobai CLI.
package ux

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"
)

// Xiaobai palette - ink blues with a violet accent.
var (
	ColorInkBright  = lipgloss.Color("#5B8DEF") // bright ink blue - highlights
	ColorInkPrimary = lipgloss.Color("#3D6FDB") // primary brand color
	ColorViolet     = lipgloss.Color("#8B6FE8") // accent for generated content
	ColorSlate      = lipgloss.Color("#5C6B7A") // muted text, borders

	ColorSuccess = lipgloss.Color("#4BC98A")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Answer    lipgloss.Style
	Box       lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorInkBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorInkBright).Bold(true),
	Answer:    lipgloss.NewStyle().Foreground(ColorViolet),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorInkPrimary).
		Padding(0, 1),
}

// Icon provides themed status icons.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// plain switches output to unstyled single-line form, for pipes and
// scripted use.
var plain atomic.Bool

// SetPlain toggles plain output mode.
func SetPlain(v bool) { plain.Store(v) }

// Plain reports whether plain output mode is active.
func Plain() bool { return plain.Load() }

// Title prints a styled section title.
func Title(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Title.Render(text))
}

// Success prints a success message with checkmark.
func Success(text string) {
	if Plain() {
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints a warning message.
func Warning(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints an error message.
func Error(text string) {
	if Plain() {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", text)
		return
	}
	fmt.Printf("%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Info prints an informational message.
func Info(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints secondary text; suppressed entirely in plain mode.
func Muted(text string) {
	if Plain() {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// Answer prints a model answer, styled as generated content.
func Answer(text string) {
	if Plain() {
		fmt.Println(text)
		return
	}
	fmt.Println(Styles.Answer.Render(text))
}

// Box prints content in a rounded box with a title line.
func Box(title, content string) {
	if Plain() {
		fmt.Printf("%s: %s\n", title, content)
		return
	}
	boxStyle := Styles.Box.Width(60)
	titleLine := Styles.Title.Render(title)
	fmt.Println(boxStyle.Render(titleLine + "\n" + content))
}
