// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama implements the protocol handler for a local Ollama
// server: request payload encoding, streamed-record deframing, model
// catalog operations (list/pull/delete) and the per-turn generation
// session that threads the opaque context token between questions.
package ollama
