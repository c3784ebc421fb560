// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"time"
)

var spinnerFrames = []string{"▹▹▹▹▹", "▸▹▹▹▹", "▹▸▹▹▹", "▹▹▸▹▹", "▹▹▹▸▹", "▹▹▹▹▸"}

// spinnerTTY is a hook so tests can run without a terminal attached.
var spinnerTTY = IsStdoutTTY

// Spinner shows an advisory wait indicator while a batch generate
// request is in flight. It writes nothing on non-TTY output. The console
// owns the active spinner and stops it before any other output reaches
// the terminal, so the ticker goroutine never interleaves with a
// rendered answer.
type Spinner struct {
	console *Console
	message string
	stop    chan struct{}
	done    chan struct{}
	active  bool
}

// StartSpinner begins ticking with the given message. Any previously
// active spinner is stopped first; the console tracks at most one.
func (c *Console) StartSpinner(message string) *Spinner {
	c.clearSpinner()
	s := &Spinner{
		console: c,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.spinner = s
	if !spinnerTTY() {
		close(s.done)
		return s
	}
	s.active = true
	go s.run()
	return s
}

func (s *Spinner) run() {
	defer close(s.done)
	ticker := time.NewTicker(120 * time.Millisecond)
	defer ticker.Stop()
	frame := 0
	for {
		select {
		case <-s.stop:
			fmt.Fprint(s.console.out, "\r\033[K")
			return
		case <-ticker.C:
			text := fmt.Sprintf("%s %s", s.message, spinnerFrames[frame%len(spinnerFrames)])
			if s.console.color {
				text = infoStyle.Render(text)
			}
			fmt.Fprintf(s.console.out, "\r\033[K%s", text)
			frame++
		}
	}
}

// Stop halts the ticker, waits for the goroutine to clear the line and
// exit, and is safe to call more than once.
func (s *Spinner) Stop() {
	if !s.active {
		return
	}
	s.active = false
	close(s.stop)
	<-s.done
}
