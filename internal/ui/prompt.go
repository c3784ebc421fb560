// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/peterh/liner"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl-C.
var ErrAborted = errors.New("prompt aborted")

// Prompter reads interactive input with history and line editing.
type Prompter struct {
	line        *liner.State
	console     *Console
	historyFile string
}

// NewPrompter creates a prompter. historyFile may be empty to skip
// persistent input history.
func NewPrompter(console *Console, historyFile string) *Prompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	p := &Prompter{
		line:        line,
		console:     console,
		historyFile: historyFile,
	}
	if historyFile != "" {
		if f, err := os.Open(historyFile); err == nil {
			p.line.ReadHistory(f)
			f.Close()
		}
	}
	return p
}

// Close saves history and restores the terminal.
func (p *Prompter) Close() {
	if p.historyFile != "" {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			p.line.WriteHistory(f)
			f.Close()
		}
	}
	p.line.Close()
}

func (p *Prompter) styled(prompt string) string {
	if p.console.color {
		return promptStyle.Render(prompt) + " "
	}
	return prompt + " "
}

// Input reads one line. An empty entry falls back to def when given.
func (p *Prompter) Input(prompt, def string) (string, error) {
	display := prompt
	if def != "" {
		display = fmt.Sprintf("%s [%s]", prompt, def)
	}
	input, err := p.line.Prompt(p.styled(display + ":"))
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", ErrAborted
		}
		return "", err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return def, nil
	}
	p.line.AppendHistory(input)
	return input, nil
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(prompt string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		input, err := p.line.Prompt(p.styled(fmt.Sprintf("%s [%s]:", prompt, hint)))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return false, ErrAborted
			}
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(input)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		p.console.Error("answer y or n")
	}
}

// Select renders numbered items and reads a single choice, returning its
// index.
func (p *Prompter) Select(prompt string, items []string) (int, error) {
	p.console.Info(prompt)
	for i, item := range items {
		p.console.Info(fmt.Sprintf("  %d) %s", i+1, item))
	}
	for {
		input, err := p.line.Prompt(p.styled("Choice:"))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return 0, ErrAborted
			}
			return 0, err
		}
		n, err := strconv.Atoi(strings.TrimSpace(input))
		if err == nil && n >= 1 && n <= len(items) {
			return n - 1, nil
		}
		p.console.Error(fmt.Sprintf("enter a number between 1 and %d", len(items)))
	}
}

// MultiSelect renders numbered items and reads a comma-separated set of
// choices, returning their indices. An empty entry selects nothing.
func (p *Prompter) MultiSelect(prompt string, items []string) ([]int, error) {
	p.console.Info(prompt)
	for i, item := range items {
		p.console.Info(fmt.Sprintf("  %d) %s", i+1, item))
	}
	for {
		input, err := p.line.Prompt(p.styled("Choices (comma-separated, empty for none):"))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return nil, ErrAborted
			}
			return nil, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return nil, nil
		}
		indices, err := parseChoices(input, len(items))
		if err != nil {
			p.console.Error(err.Error())
			continue
		}
		return indices, nil
	}
}

func parseChoices(input string, n int) ([]int, error) {
	seen := make(map[int]bool)
	var indices []int
	for _, part := range strings.Split(input, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || v < 1 || v > n {
			return nil, fmt.Errorf("enter numbers between 1 and %d", n)
		}
		if !seen[v] {
			seen[v] = true
			indices = append(indices, v-1)
		}
	}
	return indices, nil
}
