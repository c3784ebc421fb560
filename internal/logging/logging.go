// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging sets up the process-wide file logger. Components
// receive a logrus.FieldLogger tagged with their subsystem; nothing in
// the repo logs through ambient globals.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Options configures the file logger.
type Options struct {
	// Path is the log file location. Empty discards all output, which
	// keeps tests quiet.
	Path string

	// Debug lowers the level from Info to Debug.
	Debug bool
}

// New opens the log file and returns a logger stamped with a per-run
// session id. The returned closer owns the file handle.
func New(opts Options) (logrus.FieldLogger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	logger.SetLevel(logrus.InfoLevel)
	if opts.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}

	if opts.Path == "" {
		logger.SetOutput(io.Discard)
		return logger.WithField("session", uuid.NewString()), nopCloser{}, nil
	}

	f, err := os.OpenFile(opts.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger.WithField("session", uuid.NewString()), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
