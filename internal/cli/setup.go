// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/averyross/otama/internal/config"
	"github.com/averyross/otama/internal/ui"
)

// ProbeFunc checks that a server answers at host:port.
type ProbeFunc func(host string, port int) error

// RunSetup walks the first-run wizard: it collects an endpoint, retries
// until the server answers, then fills in the remaining settings.
func RunSetup(console *ui.Console, prompter *ui.Prompter, probe ProbeFunc) (*config.Config, error) {
	console.Info("Configuration not detected: initiating config setup")
	cfg := config.Default()

	color, err := prompter.Confirm("Enable color", true)
	if err != nil {
		return nil, err
	}
	cfg.Color = color

	for {
		host, err := prompter.Input("Enter Ollama server address", cfg.Host)
		if err != nil {
			return nil, err
		}
		port, err := inputPort(console, prompter, cfg.Port)
		if err != nil {
			return nil, err
		}
		if err := probe(host, port); err == nil {
			cfg.Host = host
			cfg.Port = port
			break
		}
		console.Error(fmt.Sprintf("Ollama server not found at http://%s:%d", host, port))
	}

	model, err := prompter.Input("Enter model", cfg.Model)
	if err != nil {
		return nil, err
	}
	cfg.Model = model

	if cfg.Verbose, err = prompter.Confirm("Enable verbose output", true); err != nil {
		return nil, err
	}
	if cfg.Stream, err = prompter.Confirm("Stream responses as they generate", true); err != nil {
		return nil, err
	}
	if cfg.Save, err = prompter.Confirm("Enable autosave on exit", true); err != nil {
		return nil, err
	}

	console.Info("NOTE: Params can be changed in config file.")
	return cfg, nil
}

func inputPort(console *ui.Console, prompter *ui.Prompter, def int) (int, error) {
	for {
		raw, err := prompter.Input("Enter Ollama server port", strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		port, err := strconv.Atoi(raw)
		if err == nil && port >= 1 && port <= 65534 {
			return port, nil
		}
		console.Error("Invalid port")
	}
}
