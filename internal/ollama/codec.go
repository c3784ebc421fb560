// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// PAYLOAD ENCODING
// =============================================================================

// rawFields are emitted without quoting: context is itself a JSON
// array-shaped token and stream is a boolean.
var rawFields = map[string]bool{
	"context": true,
	"stream":  true,
}

// EncodePayload serializes a field map as a single-level JSON object.
// Values for "context" and "stream" are emitted raw; every other value is
// emitted as a JSON string. Callers pre-stringify the raw-valued fields.
func EncodePayload(fields map[string]string) string {
	var sb strings.Builder
	sb.WriteByte('{')
	first := true
	for k, v := range fields {
		if !first {
			sb.WriteByte(',')
		}
		first = false
		key, _ := json.Marshal(k)
		sb.Write(key)
		sb.WriteByte(':')
		if rawFields[k] {
			sb.WriteString(v)
		} else {
			val, _ := json.Marshal(v)
			sb.Write(val)
		}
	}
	sb.WriteByte('}')
	return sb.String()
}

// =============================================================================
// RECORD FRAMER
// =============================================================================

// RecordFramer reconstructs complete top-level JSON objects from a stream
// whose chunk boundaries do not align with record boundaries. It is an
// incremental scanner that tracks brace depth, string state and escapes,
// so a brace inside a string value never terminates a record early.
type RecordFramer struct {
	buf      []byte
	start    int // offset of the current record in buf
	depth    int
	inString bool
	escaped  bool
}

// NewRecordFramer returns a framer ready to accept chunks.
func NewRecordFramer() *RecordFramer {
	return &RecordFramer{}
}

// Feed appends one transport chunk and returns every record completed by
// it, in order. A syntactically invalid record is fatal: partial responses
// cannot be retried without restarting the exchange.
func (f *RecordFramer) Feed(chunk []byte) ([]json.RawMessage, error) {
	scan := len(f.buf)
	f.buf = append(f.buf, chunk...)

	var records []json.RawMessage
	for i := scan; i < len(f.buf); i++ {
		c := f.buf[i]

		if f.inString {
			switch {
			case f.escaped:
				f.escaped = false
			case c == '\\':
				f.escaped = true
			case c == '"':
				f.inString = false
			}
			continue
		}

		switch c {
		case '"':
			// A string token outside a record is as malformed as any
			// other stray byte.
			if f.depth == 0 {
				return nil, ErrMalformedRecord
			}
			f.inString = true
		case '{':
			if f.depth == 0 {
				f.start = i
			}
			f.depth++
		case '}':
			f.depth--
			if f.depth < 0 {
				return nil, ErrMalformedRecord
			}
			if f.depth == 0 {
				raw := f.buf[f.start : i+1]
				if !json.Valid(raw) {
					return nil, &ClientError{
						Kind:    KindProtocol,
						Message: "malformed response record",
					}
				}
				rec := make(json.RawMessage, len(raw))
				copy(rec, raw)
				records = append(records, rec)
			}
		default:
			// Whitespace and separators between records are ignored.
			// Any other byte outside a record is a framing error.
			if f.depth == 0 && !isRecordGap(c) {
				return nil, ErrMalformedRecord
			}
		}
	}

	// Drop fully consumed records from the buffer.
	if f.depth == 0 && len(records) > 0 {
		f.buf = f.buf[:0]
		f.start = 0
	}

	return records, nil
}

// Pending reports whether a partial record is still buffered.
func (f *RecordFramer) Pending() bool {
	return f.depth > 0
}

func isRecordGap(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', ',':
		return true
	}
	return false
}
