// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and turns.
package model

// Role represents the sender of a chat turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Turn is a single exchange entry: who said it and what was said.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of turns. The active session owns
// it exclusively until it is persisted.
type Conversation []Turn

// Empty reports whether the conversation holds no turns. Empty
// conversations are never persisted.
func (c Conversation) Empty() bool {
	return len(c) == 0
}

// AddUser appends a user turn.
func (c Conversation) AddUser(content string) Conversation {
	return append(c, Turn{Role: RoleUser, Content: content})
}

// AddAssistant appends an assistant turn.
func (c Conversation) AddAssistant(content string) Conversation {
	return append(c, Turn{Role: RoleAssistant, Content: content})
}

// FirstContent returns the content of the first turn, used for the
// one-line summary previews.
func (c Conversation) FirstContent() string {
	if len(c) == 0 {
		return ""
	}
	return c[0].Content
}
