// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/averyross/otama/internal/ollama"
)

// Console renders all user-visible output. A single implementation
// carries the color flag; call sites never branch on it.
type Console struct {
	color    bool
	out      io.Writer
	err      io.Writer
	markdown *glamour.TermRenderer

	// spinner is the active wait indicator, nil when none. It is
	// stopped before any answer output so its ticker goroutine never
	// writes concurrently with a render.
	spinner *Spinner
}

// NewConsole creates the console presenter. Markdown rendering degrades
// to plain text when the renderer cannot be initialized or color is off.
func NewConsole(color bool) *Console {
	c := &Console{
		color: color && colorProfile() != termenv.Ascii,
		out:   os.Stdout,
		err:   os.Stderr,
	}
	lipgloss.SetColorProfile(colorProfile())
	if c.color {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			c.markdown = r
		}
	}
	return c
}

// Info prints advisory output: listings, stats, notes.
func (c *Console) Info(msg string) {
	if c.color {
		fmt.Fprintln(c.out, infoStyle.Render(msg))
		return
	}
	fmt.Fprintln(c.out, msg)
}

// Error prints a failure message to stderr.
func (c *Console) Error(msg string) {
	if c.color {
		fmt.Fprintln(c.err, errorStyle.Render(msg))
		return
	}
	fmt.Fprintln(c.err, msg)
}

// Exit prints a normal-completion message.
func (c *Console) Exit(msg string) {
	if c.color {
		fmt.Fprintln(c.out, exitStyle.Render(msg))
		return
	}
	fmt.Fprintln(c.out, msg)
}

// clearSpinner stops an active spinner without a closing message.
func (c *Console) clearSpinner() {
	s := c.spinner
	if s == nil {
		return
	}
	c.spinner = nil
	s.Stop()
}

// finishSpinner closes an active wait spinner with its completion
// message, before the output it was waiting for renders.
func (c *Console) finishSpinner() {
	s := c.spinner
	if s == nil {
		return
	}
	c.spinner = nil
	s.Stop()
	c.Exit("Done")
}

// FailSpinner closes an active wait spinner with a failure marker. A
// console without an active spinner ignores the call.
func (c *Console) FailSpinner(msg string) {
	s := c.spinner
	if s == nil {
		return
	}
	c.spinner = nil
	s.Stop()
	c.Error(msg)
}

// Answer renders a complete assistant response, as markdown when the
// terminal supports it. An active wait spinner is finished first.
func (c *Console) Answer(text string) {
	c.finishSpinner()
	if c.markdown != nil {
		if rendered, err := c.markdown.Render(text); err == nil {
			fmt.Fprint(c.out, rendered)
			return
		}
	}
	fmt.Fprintln(c.out, text)
}

// AnswerChunk renders one streamed fragment without buffering: partial
// output is the user-visible contract of streaming mode, so fragments
// pass through as plain text rather than waiting for a markdown pass.
func (c *Console) AnswerChunk(text string) {
	c.finishSpinner()
	fmt.Fprint(c.out, text)
}

// AnswerDone terminates a streamed response.
func (c *Console) AnswerDone() {
	fmt.Fprintln(c.out)
}

// Stats renders verbose accounting after a turn.
func (c *Console) Stats(s ollama.Stats) {
	c.Info("\nDone")
	c.Info(fmt.Sprintf("* Model: %s\n* Tokens in prompt: %d\n* Tokens in response: %d\n* Time taken: %.3fs",
		s.Model, s.PromptTokens, s.ResponseTokens, s.ElapsedSeconds))
}

// Layer reports pull progress; it satisfies ollama.PullProgress.
func (c *Console) Layer(n int, status string) {
	c.Info(fmt.Sprintf("layer %d: %s", n, status))
}
