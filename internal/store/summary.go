// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// previewWidth bounds the first-turn preview in a summary line.
const previewWidth = 32

// Summary renders the one-line listing for a record: local creation
// time, model@endpoint, a bounded preview of the first turn and a
// context-length indicator.
func (r Record) Summary() string {
	ts := time.UnixMilli(r.Timestamp).Local().Format("2006-01-02 1504")
	preview := strings.ReplaceAll(r.Conversation.FirstContent(), "\n", " ")
	preview = runewidth.Truncate(preview, previewWidth, "")
	return fmt.Sprintf("%s: %s@%s -> %s [%d context len]",
		ts, r.Model, r.Host, preview, r.ContextLen())
}

// ContextLen derives a rough context-size indicator from the serialized
// token by counting its separators.
func (r Record) ContextLen() int {
	return strings.Count(r.Context, ",") + 1
}

// Summaries renders one summary line per record, in order.
func Summaries(records []Record) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.Summary())
	}
	return lines
}
