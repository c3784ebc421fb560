// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "errors"

// ErrorKind categorizes client errors for handling at the driver level.
type ErrorKind int

const (
	// KindTransport covers connection refusals, timeouts and non-2xx
	// statuses. Fatal, never retried.
	KindTransport ErrorKind = iota

	// KindProtocol covers contract mismatches with the server: malformed
	// JSON, a missing response field, a terminal record without context.
	KindProtocol

	// KindApplication covers expected, recoverable outcomes such as a
	// model name absent from the catalog.
	KindApplication
)

// ClientError is the error type surfaced by this package.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches two ClientErrors on kind and message so the sentinels below
// work with errors.Is even when a Cause has been attached.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// Sentinel errors for easy checking.
var (
	ErrServerUnavailable = &ClientError{Kind: KindTransport, Message: "server unreachable"}
	ErrModelNotFound     = &ClientError{Kind: KindApplication, Message: "model not found"}
	ErrMissingResponse   = &ClientError{Kind: KindProtocol, Message: "response not found"}
	ErrMissingContext    = &ClientError{Kind: KindProtocol, Message: "context not found"}
	ErrMalformedRecord   = &ClientError{Kind: KindProtocol, Message: "malformed response record"}
)

// IsApplication reports whether err is a recoverable application-level
// outcome rather than a transport or protocol failure.
func IsApplication(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind == KindApplication
	}
	return false
}
