// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses command-line arguments for otama and enforces the
// flag exclusivity rules. It produces an Action plus config overrides;
// the driver owns everything else.
package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/averyross/otama/internal/config"
)

// Version information (can be overridden at build time).
var (
	Version   = "0.2.0"
	GitCommit = "unknown"
)

// Action is the top-level operation selected by the arguments.
type Action int

const (
	// ActionChat is the default interactive question/answer loop.
	ActionChat Action = iota
	// ActionList prints stored conversation summaries.
	ActionList
	// ActionRestore restores a stored conversation into a new session.
	ActionRestore
	// ActionDeleteConversations deletes stored conversations interactively.
	ActionDeleteConversations
	// ActionListModels prints the server's model catalog.
	ActionListModels
	// ActionPull downloads a model to the server.
	ActionPull
	// ActionDeleteModel deletes a model from the server.
	ActionDeleteModel
	// ActionHelp prints usage.
	ActionHelp
	// ActionVersion prints version information.
	ActionVersion
)

// Args holds the parsed command line.
type Args struct {
	Action Action

	// ModelArg is the argument to --pull or --delmodel.
	ModelArg string

	// Overrides layer on top of the config file.
	Overrides config.Overrides

	// Debug lowers the log level.
	Debug bool
}

const usageText = `otama - terminal client for a local Ollama server

Usage:
  otama [flags]                 Interactive question/answer session
  otama -l, --list              List saved conversations
  otama -r, --restore           Restore a saved conversation and continue it
  otama -d, --delete            Delete saved conversations (interactive, irreversible)
  otama -L, --listmodels        List models available on the server
  otama -P, --pull MODEL        Pull a model to the server
  otama -D, --delmodel MODEL    Delete a model from the server

Flags:
  -H, --host HOST     Server address (e.g. localhost, 192.168.1.5)
  -p, --port PORT     Server port (e.g. 11434)
  -m, --model MODEL   Model to query (e.g. mistral, llama3:70b)
  -v, --verbose       Print token and timing accounting after responses
  -c, --color         Force styled output on
      --no-color      Force styled output off
  -s, --save          Save the conversation on exit without asking
      --no-save       Never save, never ask
      --stream        Render responses incrementally (default)
      --batch         Wait for the complete response
      --debug         Verbose logging to the log file
  -h, --help          Show this help
      --version       Show version

The list, restore, delete and pull actions are mutually exclusive.
`

// Usage returns the help text.
func Usage() string {
	return usageText
}

// Parse interprets the argument list (without the program name).
func Parse(argv []string) (*Args, error) {
	args := &Args{Action: ActionChat}

	// Exclusive action groups, tracked by flag name for error messages.
	var actions []string
	setAction := func(a Action, name string) {
		args.Action = a
		actions = append(actions, name)
	}

	var (
		colorSet, noColorSet bool
		saveSet, noSaveSet   bool
		streamSet, batchSet  bool
	)

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(argv) || strings.HasPrefix(argv[i], "-") {
			return "", fmt.Errorf("flag %s requires a value", flag)
		}
		return argv[i], nil
	}

	for ; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-H", "--host":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			args.Overrides.Host = &v
		case "-p", "--port":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			port, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q", v)
			}
			args.Overrides.Port = &port
		case "-m", "--model":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			args.Overrides.Model = &v
		case "-v", "--verbose":
			args.Overrides.Verbose = boolPtr(true)
		case "-c", "--color":
			colorSet = true
			args.Overrides.Color = boolPtr(true)
		case "--no-color":
			noColorSet = true
			args.Overrides.Color = boolPtr(false)
		case "-s", "--save":
			saveSet = true
			args.Overrides.Save = boolPtr(true)
		case "--no-save":
			noSaveSet = true
			args.Overrides.Save = boolPtr(false)
		case "--stream":
			streamSet = true
			args.Overrides.Stream = boolPtr(true)
		case "--batch":
			batchSet = true
			args.Overrides.Stream = boolPtr(false)
		case "--debug":
			args.Debug = true
		case "-l", "--list":
			setAction(ActionList, "--list")
		case "-r", "--restore":
			setAction(ActionRestore, "--restore")
		case "-d", "--delete":
			setAction(ActionDeleteConversations, "--delete")
		case "-L", "--listmodels":
			setAction(ActionListModels, "--listmodels")
		case "-P", "--pull":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			args.ModelArg = v
			setAction(ActionPull, "--pull")
		case "-D", "--delmodel":
			v, err := next(arg)
			if err != nil {
				return nil, err
			}
			args.ModelArg = v
			setAction(ActionDeleteModel, "--delmodel")
		case "-h", "--help":
			args.Action = ActionHelp
			return args, nil
		case "--version":
			args.Action = ActionVersion
			return args, nil
		default:
			return nil, fmt.Errorf("unknown flag %q", arg)
		}
	}

	if len(actions) > 1 {
		return nil, fmt.Errorf("conflicting flags: %s", strings.Join(actions, " and "))
	}
	if colorSet && noColorSet {
		return nil, fmt.Errorf("conflicting flags: --color and --no-color")
	}
	if saveSet && noSaveSet {
		return nil, fmt.Errorf("conflicting flags: --save and --no-save")
	}
	if streamSet && batchSet {
		return nil, fmt.Errorf("conflicting flags: --stream and --batch")
	}
	return args, nil
}

func boolPtr(b bool) *bool {
	return &b
}
