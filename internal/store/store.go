// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists conversation transcripts to a local SQLite
// database, keyed by creation timestamp. Records are created once,
// read many times and deleted only by explicit user action; they are
// never updated in place.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/averyross/otama/internal/model"
)

// ErrNoRecords is returned by every read operation on an empty store,
// distinct from transport or schema failures.
var ErrNoRecords = errors.New("no conversations saved")

const (
	createStmt = `CREATE TABLE IF NOT EXISTS Conversations (timestamp INTEGER, host TEXT, model TEXT, conversation TEXT, context TEXT)`
	insertStmt = `INSERT INTO Conversations (timestamp, host, model, conversation, context) VALUES (?, ?, ?, ?, ?)`
	selectStmt = `SELECT timestamp, host, model, conversation, context FROM Conversations ORDER BY timestamp`
	deleteStmt = `DELETE FROM Conversations WHERE timestamp = ?`
)

// Record is one persisted conversation.
type Record struct {
	// Timestamp is the creation instant in milliseconds and the
	// record's identifier.
	Timestamp int64

	// Host is the server endpoint string the conversation ran against.
	Host string

	// Model is the model name used for generation.
	Model string

	// Conversation is the full ordered turn sequence.
	Conversation model.Conversation

	// Context is the serialized opaque context token, "[]" when the
	// session ended without one.
	Context string
}

// Store handles conversation persistence. The database is opened per
// operation; no concurrent writers are assumed.
type Store struct {
	path string
	log  logrus.FieldLogger
}

// New creates a store backed by the SQLite file at path.
func New(path string, log logrus.FieldLogger) *Store {
	return &Store{path: path, log: log.WithField("component", "store")}
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Save persists one conversation. Saving an empty conversation is a
// no-op: empty sessions are never recorded. The schema is created
// idempotently on first use.
func (s *Store) Save(conv model.Conversation, ctxToken, endpoint, modelName string) error {
	if conv.Empty() {
		return nil
	}
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(createStmt); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	turns, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if ctxToken == "" {
		ctxToken = "[]"
	}
	now := time.Now().UnixMilli()
	if _, err := db.Exec(insertStmt, now, endpoint, modelName, string(turns), ctxToken); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	s.log.Debug("conversation saved")
	return nil
}

// List returns every stored record in creation order. An empty or absent
// store yields ErrNoRecords.
func (s *Store) List() ([]Record, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(selectStmt)
	if err != nil {
		// A store that was never written to has no schema yet; treat
		// that the same as an empty table.
		if s.missingTable(db) {
			return nil, ErrNoRecords
		}
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec   Record
			turns string
		)
		if err := rows.Scan(&rec.Timestamp, &rec.Host, &rec.Model, &turns, &rec.Context); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(turns), &rec.Conversation); err != nil {
			return nil, fmt.Errorf("decode conversation %d: %w", rec.Timestamp, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read conversations: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// Delete removes the records with the given timestamps. Deletion is
// irreversible; the interactive confirmation happens in the driver.
func (s *Store) Delete(timestamps ...int64) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, ts := range timestamps {
		if _, err := db.Exec(deleteStmt, ts); err != nil {
			return fmt.Errorf("delete conversation %d: %w", ts, err)
		}
	}
	s.log.Infof("%d conversations deleted", len(timestamps))
	return nil
}

func (s *Store) missingTable(db *sql.DB) bool {
	var name string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='Conversations'`).Scan(&name)
	return errors.Is(err, sql.ErrNoRows)
}
