// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// PRESENTATION SINK
// =============================================================================

// AnswerSink receives user-visible assistant content. Every chunk of
// rendered output flows through the sink; the session never returns bulk
// text that bypasses it.
type AnswerSink interface {
	// Answer renders a complete batch-mode response.
	Answer(text string)

	// AnswerChunk renders one streamed fragment incrementally.
	AnswerChunk(text string)

	// AnswerDone marks the end of a streamed response.
	AnswerDone()

	// Stats renders optional verbose accounting after a turn.
	Stats(s Stats)
}

// =============================================================================
// SESSION
// =============================================================================

// Session drives question→answer exchanges against one model, carrying
// the opaque context token from each completed turn into the next.
type Session struct {
	client  *Client
	sink    AnswerSink
	log     logrus.FieldLogger
	model   string
	stream  bool
	verbose bool

	// context is nil on the first turn of a fresh session. It is stored
	// as the raw JSON token text and never interpreted.
	context json.RawMessage
}

// SessionOptions configures a generation session.
type SessionOptions struct {
	Model   string
	Stream  bool
	Verbose bool

	// Context restores a saved conversation's token. Leave nil for a
	// fresh session.
	Context json.RawMessage
}

// NewSession creates a session for the given model.
func NewSession(client *Client, sink AnswerSink, log logrus.FieldLogger, opts SessionOptions) *Session {
	return &Session{
		client:  client,
		sink:    sink,
		log:     log.WithField("component", "session"),
		model:   opts.Model,
		stream:  opts.Stream,
		verbose: opts.Verbose,
		context: opts.Context,
	}
}

// Context returns the current opaque context token, nil before the first
// completed turn.
func (s *Session) Context() json.RawMessage {
	return s.context
}

// Ask sends one prompt and renders the answer through the sink. On
// success the accumulated response text is returned and the session
// context advances to the token from the terminal record.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	s.log.Debugf("attempting to generate response from %s", s.client.Endpoint())

	fields := map[string]string{
		"model":  s.model,
		"prompt": prompt,
	}
	if s.stream {
		fields["stream"] = "true"
	} else {
		fields["stream"] = "false"
	}
	if s.context != nil {
		fields["context"] = string(s.context)
	}
	payload := EncodePayload(fields)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.client.baseURL()+"/api/generate", strings.NewReader(payload))
	if err != nil {
		return "", &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	resp, err := s.client.long.Do(req)
	if err != nil {
		s.log.Errorf("generate request failed: %v", err)
		return "", &ClientError{Kind: KindTransport, Message: "generate request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.log.Errorf("generate returned %s", resp.Status)
		return "", &ClientError{Kind: KindTransport, Message: "generate request failed: " + resp.Status}
	}

	var answer string
	if s.stream {
		answer, err = s.receiveStream(resp.Body)
	} else {
		answer, err = s.receiveBatch(resp.Body)
	}
	if err != nil {
		s.log.Errorf("generate failed: %v", err)
		return "", err
	}
	s.log.Debugf("response generated from %s", s.client.Endpoint())
	return answer, nil
}

// receiveBatch parses the body as a single record. done is implied true.
func (s *Session) receiveBatch(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", &ClientError{Kind: KindTransport, Message: "failed to read response", Cause: err}
	}
	var rec GenerateRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", &ClientError{Kind: KindProtocol, Message: "malformed response record", Cause: err}
	}
	if rec.Error != "" {
		return "", &ClientError{Kind: KindApplication, Message: rec.Error}
	}
	// An empty response string is a valid (if unhelpful) answer; only
	// an absent field breaks the contract.
	if rec.Response == nil {
		return "", ErrMissingResponse
	}
	if len(rec.Context) == 0 {
		return "", ErrMissingContext
	}

	s.sink.Answer(*rec.Response)
	s.finishTurn(rec)
	return *rec.Response, nil
}

// receiveStream deframes records as they arrive and forwards each
// response fragment before the transfer completes. The terminal record
// (done = true) must carry the context token; earlier records need not.
func (s *Session) receiveStream(body io.Reader) (string, error) {
	framer := NewRecordFramer()
	var acc strings.Builder
	buf := make([]byte, 4096)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			records, err := framer.Feed(buf[:n])
			if err != nil {
				return "", err
			}
			for _, raw := range records {
				var rec GenerateRecord
				if err := json.Unmarshal(raw, &rec); err != nil {
					return "", &ClientError{Kind: KindProtocol, Message: "malformed response record", Cause: err}
				}
				if rec.Error != "" {
					// Remaining chunks are discarded by returning early.
					return "", &ClientError{Kind: KindApplication, Message: rec.Error}
				}
				if rec.Response != nil && *rec.Response != "" {
					s.sink.AnswerChunk(*rec.Response)
					acc.WriteString(*rec.Response)
				}
				if rec.Done {
					if len(rec.Context) == 0 {
						return "", ErrMissingContext
					}
					s.sink.AnswerDone()
					s.finishTurn(rec)
					return acc.String(), nil
				}
			}
		}
		if readErr == io.EOF {
			return "", &ClientError{Kind: KindProtocol, Message: "stream ended before terminal record"}
		}
		if readErr != nil {
			return "", &ClientError{Kind: KindTransport, Message: "stream interrupted", Cause: readErr}
		}
	}
}

// finishTurn adopts the new context token and emits verbose accounting.
func (s *Session) finishTurn(rec GenerateRecord) {
	token := make(json.RawMessage, len(rec.Context))
	copy(token, rec.Context)
	s.context = token

	if !s.verbose {
		return
	}
	model := rec.Model
	if model == "" {
		model = "Unknown"
	}
	elapsed := float64(rec.TotalDuration) / 1e9
	s.log.Debugf("response accounting: model=%s prompt_tokens=%d eval_tokens=%d elapsed=%.3fs",
		model, rec.PromptEvalCount, rec.EvalCount, elapsed)
	s.sink.Stats(Stats{
		Model:          model,
		PromptTokens:   rec.PromptEvalCount,
		ResponseTokens: rec.EvalCount,
		ElapsedSeconds: elapsed,
	})
}
