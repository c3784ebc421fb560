// otama - terminal client for a local Ollama server.
//
// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/averyross/otama/internal/cli"
	"github.com/averyross/otama/internal/config"
	"github.com/averyross/otama/internal/logging"
	"github.com/averyross/otama/internal/model"
	"github.com/averyross/otama/internal/ollama"
	"github.com/averyross/otama/internal/store"
	"github.com/averyross/otama/internal/ui"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the only place fatal conditions terminate the process.
func run(argv []string) int {
	args, err := cli.Parse(argv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprint(os.Stderr, cli.Usage())
		return 1
	}
	switch args.Action {
	case cli.ActionHelp:
		fmt.Print(cli.Usage())
		return 0
	case cli.ActionVersion:
		fmt.Printf("otama %s (%s)\n", cli.Version, cli.GitCommit)
		return 0
	}

	if err := config.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "error setting up file structure: %v\n", err)
		return 1
	}

	logPath, err := config.LogPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log, logCloser, err := logging.New(logging.Options{Path: logPath, Debug: args.Debug})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logCloser.Close()

	app, err := newApp(args, log)
	if err != nil {
		log.WithField("component", "main").Error(err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer app.Close()

	if err := app.Run(context.Background(), args); err != nil {
		app.fatal(err)
		return 1
	}
	return 0
}

// =============================================================================
// APPLICATION
// =============================================================================

type app struct {
	cfg      *config.Config
	log      logrus.FieldLogger
	console  *ui.Console
	prompter *ui.Prompter
	client   *ollama.Client
	store    *store.Store
	catalog  ollama.Catalog

	// saveDecided is true when --save/--no-save was given, which
	// suppresses the exit-time "Save conversation?" prompt.
	saveDecided bool
}

// newApp resolves config (running the first-run wizard when the file is
// absent) and wires up the collaborators.
func newApp(args *cli.Args, log logrus.FieldLogger) (*app, error) {
	cfgPath, err := config.Path()
	if err != nil {
		return nil, err
	}

	var cfg *config.Config
	if config.Exists(cfgPath) {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config from file: %w", err)
		}
	} else {
		cfg, err = runSetup(log)
		if err != nil {
			return nil, err
		}
		if err := config.Save(cfg, cfgPath); err != nil {
			return nil, err
		}
	}

	cfg.Apply(args.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.WithField("component", "conf").Infof("Ollama host %s with model %q", cfg.Endpoint(), cfg.Model)

	console := ui.NewConsole(cfg.Color)
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	dbPath, err := config.DatabasePath()
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:         cfg,
		log:         log,
		console:     console,
		prompter:    ui.NewPrompter(console, filepath.Join(dir, "history")),
		client:      ollama.NewClient(ollama.ClientConfig{Host: cfg.Host, Port: cfg.Port}, log),
		store:       store.New(dbPath, log),
		saveDecided: args.Overrides.Save != nil,
	}, nil
}

// runSetup drives the first-run wizard with a throwaway console and a
// per-candidate endpoint probe.
func runSetup(log logrus.FieldLogger) (*config.Config, error) {
	console := ui.NewConsole(true)
	prompter := ui.NewPrompter(console, "")
	defer prompter.Close()

	return cli.RunSetup(console, prompter, func(host string, port int) error {
		probe := ollama.NewClient(ollama.ClientConfig{Host: host, Port: port}, log)
		return probe.Ping(context.Background())
	})
}

func (a *app) Close() {
	a.prompter.Close()
}

// fatal logs then renders a failure; the caller exits non-zero.
func (a *app) fatal(err error) {
	a.log.WithField("component", "main").Error(err)
	a.console.Error(err.Error())
}

// Run executes the selected action against a validated server.
func (a *app) Run(ctx context.Context, args *cli.Args) error {
	// Conversation-store actions need no server round trip.
	switch args.Action {
	case cli.ActionList:
		return a.listConversations()
	case cli.ActionDeleteConversations:
		return a.deleteConversations()
	}

	if err := a.client.Ping(ctx); err != nil {
		return err
	}
	catalog, err := a.client.FetchCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to get available models from %s: %w", a.cfg.Endpoint(), err)
	}
	a.catalog = catalog
	a.log.WithField("component", "ollama").Debugf("available models: %v", []string(catalog))

	switch args.Action {
	case cli.ActionListModels:
		return a.listModels(ctx)
	case cli.ActionPull:
		return a.pullModel(ctx, args.ModelArg)
	case cli.ActionDeleteModel:
		return a.deleteModel(ctx, args.ModelArg)
	case cli.ActionRestore:
		return a.chat(ctx, true)
	default:
		return a.chat(ctx, false)
	}
}

// =============================================================================
// MODEL CATALOG ACTIONS
// =============================================================================

func (a *app) listModels(ctx context.Context) error {
	models, err := a.client.ListModels(ctx)
	if err != nil {
		return err
	}
	a.console.Info("Available models:")
	for _, m := range models {
		a.console.Info(fmt.Sprintf("  %-40s %8s  %s/%s",
			m.Name, units.HumanSize(float64(m.Size)), m.Details.Family, m.Details.ParameterSize))
	}
	a.console.Info(fmt.Sprintf("Selected model: %q", a.cfg.Model))
	return nil
}

func (a *app) pullModel(ctx context.Context, name string) error {
	if a.catalog.Contains(name) {
		a.console.Exit("Model already exists on server")
		return nil
	}
	a.console.Info(fmt.Sprintf("Downloading %q", name))
	if err := a.client.Pull(ctx, name, a.catalog, a.console); err != nil {
		return fmt.Errorf("failed to pull model %q to %s: %w", name, a.cfg.Endpoint(), err)
	}
	a.console.Exit(fmt.Sprintf("Model %q pulled to %s", name, a.cfg.Endpoint()))
	return nil
}

func (a *app) deleteModel(ctx context.Context, name string) error {
	a.console.Exit(fmt.Sprintf("Attempting to delete model %q", name))
	if err := a.client.Delete(ctx, name, a.catalog); err != nil {
		return fmt.Errorf("failed to delete model %q from %s: %w", name, a.cfg.Endpoint(), err)
	}
	a.console.Exit(fmt.Sprintf("Model %q deleted from %s", name, a.cfg.Endpoint()))
	return nil
}

// =============================================================================
// CONVERSATION STORE ACTIONS
// =============================================================================

func (a *app) listConversations() error {
	records, err := a.store.List()
	if err != nil {
		return err
	}
	a.console.Exit("Previous conversations:")
	for _, line := range store.Summaries(records) {
		a.console.Info(line)
	}
	return nil
}

func (a *app) deleteConversations() error {
	records, err := a.store.List()
	if err != nil {
		return err
	}
	picks, err := a.prompter.MultiSelect("Choose conversations to delete", store.Summaries(records))
	if err != nil {
		return err
	}
	if len(picks) == 0 {
		return nil
	}

	a.console.Error("DELETE (action is irreversible):")
	timestamps := make([]int64, 0, len(picks))
	for _, i := range picks {
		a.console.Info(records[i].Summary())
		timestamps = append(timestamps, records[i].Timestamp)
	}
	confirmed, err := a.prompter.Confirm("Confirm delete conversations", false)
	if err != nil {
		return err
	}
	if !confirmed {
		return nil
	}
	if err := a.store.Delete(timestamps...); err != nil {
		return err
	}
	a.console.Exit("Conversations DELETED")
	return nil
}

// restoreConversation picks one record, replays it and returns its turns
// and context as the active session's starting state.
func (a *app) restoreConversation() (model.Conversation, json.RawMessage, error) {
	records, err := a.store.List()
	if err != nil {
		return nil, nil, err
	}
	idx, err := a.prompter.Select("Choose conversation to restore", store.Summaries(records))
	if err != nil {
		return nil, nil, err
	}
	rec := records[idx]

	a.console.Info("* Restoring conversation *")
	for _, turn := range rec.Conversation {
		switch turn.Role {
		case model.RoleUser:
			a.console.Exit("\n" + turn.Content + "\n")
		case model.RoleAssistant:
			a.console.Answer(turn.Content)
		default:
			a.console.Info(turn.Content)
		}
	}
	return rec.Conversation, json.RawMessage(rec.Context), nil
}

// =============================================================================
// CHAT LOOP
// =============================================================================

func (a *app) chat(ctx context.Context, restore bool) error {
	// The configured model must match the live catalog before any
	// generation is attempted.
	if !a.catalog.Matches(a.cfg.Model) {
		return fmt.Errorf("model %q not available on %s; available models: %v",
			a.cfg.Model, a.cfg.Endpoint(), []string(a.catalog))
	}

	var (
		conversation model.Conversation
		ctxToken     json.RawMessage
		err          error
	)
	if restore {
		conversation, ctxToken, err = a.restoreConversation()
		if err != nil {
			return err
		}
	}

	session := ollama.NewSession(a.client, a.console, a.log, ollama.SessionOptions{
		Model:   a.cfg.Model,
		Stream:  a.cfg.Stream,
		Verbose: a.cfg.Verbose,
		Context: ctxToken,
	})

	for {
		prompt, err := a.prompter.Input("Ask away", "")
		if err != nil {
			if errors.Is(err, ui.ErrAborted) {
				break
			}
			return fmt.Errorf("failed to get user input: %w", err)
		}
		if strings.TrimSpace(prompt) == "" {
			continue
		}
		conversation = conversation.AddUser(prompt)

		// Double quotes would break the raw payload quoting rule on the
		// server side of older releases; normalize like the clients
		// before us did.
		normalized := strings.ReplaceAll(prompt, `"`, "'")

		if !a.cfg.Stream {
			// The console finishes the spinner with "Done" before the
			// answer renders; on failure it is closed below.
			a.console.StartSpinner("Processing")
		}
		answer, err := session.Ask(ctx, normalized)
		if err != nil {
			a.console.FailSpinner("Error")
			return fmt.Errorf("failed to generate response from %s: %w", a.cfg.Endpoint(), err)
		}
		conversation = conversation.AddAssistant(answer)

		again, err := a.prompter.Confirm("Ask another question?", false)
		if err != nil || !again {
			break
		}
	}

	if err := a.maybeSave(conversation, session.Context()); err != nil {
		// The transcript only exists in memory; losing the save is
		// reported but does not turn a finished chat into a failure.
		a.log.WithField("component", "store").Error(err)
		a.console.Error(err.Error())
	}
	a.console.Exit("Goodbye")
	return nil
}

func (a *app) maybeSave(conversation model.Conversation, ctxToken json.RawMessage) error {
	if conversation.Empty() {
		return nil
	}
	save := a.cfg.Save
	if !save && !a.saveDecided {
		confirmed, err := a.prompter.Confirm("Save conversation?", false)
		if err != nil {
			return nil
		}
		save = confirmed
	}
	if !save {
		return nil
	}
	if err := a.store.Save(conversation, string(ctxToken), a.cfg.Endpoint(), a.cfg.Model); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}
