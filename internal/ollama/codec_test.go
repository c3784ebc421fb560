// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// PAYLOAD ENCODING TESTS
// =============================================================================

// TestEncodePayload_QuotingRule verifies that context and stream are
// emitted raw while every other field is emitted as a JSON string.
func TestEncodePayload_QuotingRule(t *testing.T) {
	payload := EncodePayload(map[string]string{
		"model":   "llama3:latest",
		"prompt":  "why is the sky blue?",
		"stream":  "false",
		"context": "[1,2,3]",
	})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v\npayload: %s", err, payload)
	}

	if got, ok := decoded["model"].(string); !ok || got != "llama3:latest" {
		t.Errorf("model = %v, want string \"llama3:latest\"", decoded["model"])
	}
	if got, ok := decoded["prompt"].(string); !ok || got != "why is the sky blue?" {
		t.Errorf("prompt = %v, want string \"why is the sky blue?\"", decoded["prompt"])
	}
	if got, ok := decoded["stream"].(bool); !ok || got != false {
		t.Errorf("stream = %v (%T), want unquoted boolean false", decoded["stream"], decoded["stream"])
	}
	arr, ok := decoded["context"].([]any)
	if !ok {
		t.Fatalf("context = %v (%T), want unquoted array", decoded["context"], decoded["context"])
	}
	if len(arr) != 3 {
		t.Errorf("context has %d elements, want 3", len(arr))
	}
}

// TestEncodePayload_EscapesValues verifies that special characters inside
// a quoted value survive a round trip.
func TestEncodePayload_EscapesValues(t *testing.T) {
	prompt := "line one\nline two with \\backslash and 'quotes'"
	payload := EncodePayload(map[string]string{"prompt": prompt})

	var decoded map[string]string
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded["prompt"] != prompt {
		t.Errorf("prompt round trip = %q, want %q", decoded["prompt"], prompt)
	}
}

// TestEncodePayload_Empty verifies the degenerate empty map.
func TestEncodePayload_Empty(t *testing.T) {
	if got := EncodePayload(nil); got != "{}" {
		t.Errorf("EncodePayload(nil) = %q, want {}", got)
	}
}

// =============================================================================
// RECORD FRAMER TESTS
// =============================================================================

const frameRecord = `{"model":"llama3","response":"some } text with { braces","done":false}`

// TestRecordFramer_SingleRecord verifies a record delivered whole.
func TestRecordFramer_SingleRecord(t *testing.T) {
	f := NewRecordFramer()
	records, err := f.Feed([]byte(frameRecord))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if string(records[0]) != frameRecord {
		t.Errorf("record = %s, want %s", records[0], frameRecord)
	}
	if f.Pending() {
		t.Error("Pending() = true after complete record")
	}
}

// TestRecordFramer_SplitRecord verifies that every possible split point,
// including ones inside string values and escapes, reconstructs the
// record byte for byte.
func TestRecordFramer_SplitRecord(t *testing.T) {
	record := `{"response":"quoted \"brace\" } here","done":true,"context":[1,2,3]}`
	for cut := 1; cut < len(record); cut++ {
		f := NewRecordFramer()
		records, err := f.Feed([]byte(record[:cut]))
		if err != nil {
			t.Fatalf("cut %d: first Feed: %v", cut, err)
		}
		if len(records) != 0 {
			t.Fatalf("cut %d: record completed early", cut)
		}
		if !f.Pending() {
			t.Fatalf("cut %d: Pending() = false with partial record buffered", cut)
		}
		records, err = f.Feed([]byte(record[cut:]))
		if err != nil {
			t.Fatalf("cut %d: second Feed: %v", cut, err)
		}
		if len(records) != 1 || string(records[0]) != record {
			t.Fatalf("cut %d: got %v, want one record %s", cut, records, record)
		}
	}
}

// TestRecordFramer_MultipleRecordsPerChunk verifies that several records
// arriving in one chunk come back in order.
func TestRecordFramer_MultipleRecordsPerChunk(t *testing.T) {
	parts := []string{
		`{"response":"a","done":false}`,
		`{"response":"b","done":false}`,
		`{"response":"","done":true,"context":[9]}`,
	}
	f := NewRecordFramer()
	records, err := f.Feed([]byte(strings.Join(parts, "\n")))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(records) != len(parts) {
		t.Fatalf("got %d records, want %d", len(records), len(parts))
	}
	for i, want := range parts {
		if string(records[i]) != want {
			t.Errorf("record %d = %s, want %s", i, records[i], want)
		}
	}
}

// TestRecordFramer_NestedObjects verifies depth tracking through nested
// objects.
func TestRecordFramer_NestedObjects(t *testing.T) {
	record := `{"outer":{"inner":{"leaf":1}},"done":true}`
	f := NewRecordFramer()
	records, err := f.Feed([]byte(record))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(records) != 1 || string(records[0]) != record {
		t.Fatalf("got %v, want one record %s", records, record)
	}
}

// TestRecordFramer_StrayBytes verifies that non-whitespace bytes between
// records are a framing error.
func TestRecordFramer_StrayBytes(t *testing.T) {
	f := NewRecordFramer()
	_, err := f.Feed([]byte(`{"done":true} garbage`))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

// TestRecordFramer_OrphanString verifies that a quoted token between
// records is rejected like any other stray byte instead of being
// swallowed as string state.
func TestRecordFramer_OrphanString(t *testing.T) {
	f := NewRecordFramer()
	_, err := f.Feed([]byte(`{"a":1} "orphan" {"b":2}`))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

// TestRecordFramer_UnbalancedClose verifies that a close brace with no
// open record is fatal.
func TestRecordFramer_UnbalancedClose(t *testing.T) {
	f := NewRecordFramer()
	_, err := f.Feed([]byte(`}`))
	if !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("err = %v, want ErrMalformedRecord", err)
	}
}

// TestRecordFramer_InterRecordSeparators verifies commas and whitespace
// between records are tolerated.
func TestRecordFramer_InterRecordSeparators(t *testing.T) {
	f := NewRecordFramer()
	records, err := f.Feed([]byte("{\"a\":1} ,\r\n\t {\"b\":2}"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}
