// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui is the presentation adapter: styled console output,
// markdown rendering of assistant answers and the interactive prompts
// used for input, confirmation and record selection.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY AND COLOR DETECTION
// =============================================================================

// IsStdinTTY reports whether stdin is a terminal, so interactive prompts
// are possible.
func IsStdinTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal, so styled output and
// markdown rendering are appropriate.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// colorProfile returns the termenv profile honoring NO_COLOR and
// non-TTY output.
func colorProfile() termenv.Profile {
	if !IsStdoutTTY() || os.Getenv("NO_COLOR") != "" {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// errorStyle marks failures on stderr.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// infoStyle marks advisory output: listings, stats, notes.
	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)

	// exitStyle marks normal-completion messages and user turns when
	// replaying a restored conversation.
	exitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	// promptStyle marks interactive prompt text.
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)
