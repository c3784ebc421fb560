// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateRecord is one JSON record from /api/generate. In batch mode the
// body is a single record; in streaming mode the server emits a sequence
// of partial records terminated by one with Done set.
type GenerateRecord struct {
	Error     string `json:"error,omitempty"`
	Model     string `json:"model,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	Done      bool   `json:"done,omitempty"`

	// Response is a pointer so an absent field is distinguishable from
	// a present-but-empty answer, which is valid server output.
	Response *string `json:"response,omitempty"`

	// Context is the opaque conversation token. Structurally an integer
	// array, but the client never looks inside it.
	Context json.RawMessage `json:"context,omitempty"`

	// Accounting fields, present on the terminal record. Durations are
	// reported in nanoseconds.
	TotalDuration      int64 `json:"total_duration,omitempty"`
	LoadDuration       int64 `json:"load_duration,omitempty"`
	PromptEvalCount    int   `json:"prompt_eval_count,omitempty"`
	PromptEvalDuration int64 `json:"prompt_eval_duration,omitempty"`
	EvalCount          int   `json:"eval_count,omitempty"`
	EvalDuration       int64 `json:"eval_duration,omitempty"`
}

// PullRecord is one JSON status record from /api/pull.
type PullRecord struct {
	Error     string `json:"error,omitempty"`
	Status    string `json:"status,omitempty"`
	Digest    string `json:"digest,omitempty"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}

// ListModelsResponse is the body of GET /api/tags.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes one model known to the server.
type ModelInfo struct {
	Name       string       `json:"name"`
	ModifiedAt string       `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest"`
	Details    ModelDetails `json:"details"`
}

// ModelDetails carries format metadata for a model.
type ModelDetails struct {
	Format            string   `json:"format"`
	Family            string   `json:"family"`
	Families          []string `json:"families,omitempty"`
	ParameterSize     string   `json:"parameter_size"`
	QuantizationLevel string   `json:"quantization_level"`
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is the set of model names fetched live from the server.
type Catalog []string

// Contains reports whether name is an exact catalog entry.
func (c Catalog) Contains(name string) bool {
	for _, m := range c {
		if m == name {
			return true
		}
	}
	return false
}

// Matches reports whether any catalog entry contains name as a substring,
// which is how the configured model is gated before generation (so
// "llama3" matches "llama3:latest").
func (c Catalog) Matches(name string) bool {
	for _, m := range c {
		if strings.Contains(m, name) {
			return true
		}
	}
	return false
}

// Stats is the verbose accounting derived from a terminal generate record.
type Stats struct {
	Model          string
	PromptTokens   int
	ResponseTokens int
	ElapsedSeconds float64
}
