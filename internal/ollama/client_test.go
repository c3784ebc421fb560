// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestClient points a client at an httptest server.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	return newTestClientTimeout(t, srv, 0)
}

// newTestClientTimeout points a client at an httptest server with an
// explicit probe timeout.
func newTestClientTimeout(t *testing.T, srv *httptest.Server, probeTimeout time.Duration) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse server port: %v", err)
	}
	return NewClient(ClientConfig{Host: u.Hostname(), Port: port, ProbeTimeout: probeTimeout}, testLogger())
}

// layerRecorder captures Layer calls for assertion.
type layerRecorder struct {
	calls []string
}

func (l *layerRecorder) Layer(n int, status string) {
	l.calls = append(l.calls, fmt.Sprintf("%d:%s", n, status))
}

// TestClient_TimeoutSplit pins the two-client split: liveness, catalog
// and delete calls are bounded by the probe timeout, while generate and
// pull carry no client-enforced timeout at all. An in-flight generation
// therefore runs until the server answers or the connection drops; there
// is no cancellation path beyond the request context, which is the
// accepted behavior for long model operations.
func TestClient_TimeoutSplit(t *testing.T) {
	c := NewClient(ClientConfig{Host: "localhost", Port: 11434, ProbeTimeout: 3 * time.Second}, testLogger())
	if c.probe.Timeout != 3*time.Second {
		t.Errorf("probe timeout = %v, want 3s", c.probe.Timeout)
	}
	if c.long.Timeout != 0 {
		t.Errorf("generate/pull timeout = %v, want unbounded", c.long.Timeout)
	}

	// The zero config falls back to the default probe bound.
	d := NewClient(ClientConfig{Host: "localhost", Port: 11434}, testLogger())
	if d.probe.Timeout != 10*time.Second {
		t.Errorf("default probe timeout = %v, want 10s", d.probe.Timeout)
	}
	if d.long.Timeout != 0 {
		t.Errorf("default generate/pull timeout = %v, want unbounded", d.long.Timeout)
	}
}

// =============================================================================
// LIVENESS TESTS
// =============================================================================

func TestPing_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	defer srv.Close()

	if err := newTestClient(t, srv).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestPing_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Ping(context.Background())
	if err == nil {
		t.Fatal("Ping succeeded against a 500 server")
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Errorf("err = %v, want transport ClientError", err)
	}
}

func TestPing_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, srv)
	srv.Close()

	err := client.Ping(context.Background())
	if err == nil {
		t.Fatal("Ping succeeded against a closed server")
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Errorf("err = %v, want transport ClientError", err)
	}
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

const tagsBody = `{"models":[
	{"name":"llama3:latest","size":4661224676,"digest":"abc","details":{"family":"llama","parameter_size":"8B"}},
	{"name":"mistral:latest","size":4109865159,"digest":"def","details":{"family":"mistral","parameter_size":"7B"}}
]}`

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		fmt.Fprint(w, tagsBody)
	}))
	defer srv.Close()

	models, err := newTestClient(t, srv).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("got %d models, want 2", len(models))
	}
	if models[0].Name != "llama3:latest" || models[0].Details.ParameterSize != "8B" {
		t.Errorf("first model = %+v", models[0])
	}
}

func TestFetchCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, tagsBody)
	}))
	defer srv.Close()

	catalog, err := newTestClient(t, srv).FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("FetchCatalog: %v", err)
	}
	if !catalog.Contains("mistral:latest") {
		t.Errorf("catalog %v missing mistral:latest", catalog)
	}
	if catalog.Contains("mistral") {
		t.Error("Contains should be an exact match")
	}
	if !catalog.Matches("mistral") {
		t.Error("Matches should accept a substring")
	}
}

// =============================================================================
// PULL TESTS
// =============================================================================

func TestPull_AlreadyPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a model already in the catalog")
	}))
	defer srv.Close()

	catalog := Catalog{"llama3:latest"}
	if err := newTestClient(t, srv).Pull(context.Background(), "llama3:latest", catalog, nil); err != nil {
		t.Errorf("Pull: %v", err)
	}
}

func TestPull_StreamsLayers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/pull" {
			t.Errorf("got %s %s, want POST /api/pull", r.Method, r.URL.Path)
		}
		// Two progress records per layer; dedupe is by status label.
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading sha256:aaa","digest":"sha256:aaa","total":100,"completed":10}`)
		fmt.Fprintln(w, `{"status":"downloading sha256:aaa","digest":"sha256:aaa","total":100,"completed":90}`)
		fmt.Fprintln(w, `{"status":"downloading sha256:bbb","digest":"sha256:bbb","total":50,"completed":50}`)
		fmt.Fprintln(w, `{"status":"verifying sha256 digest"}`)
		fmt.Fprintln(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	progress := &layerRecorder{}
	if err := newTestClient(t, srv).Pull(context.Background(), "newmodel", Catalog{}, progress); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	want := []string{"1:downloading sha256:aaa", "2:downloading sha256:bbb"}
	if len(progress.calls) != len(want) {
		t.Fatalf("layer calls = %v, want %v", progress.calls, want)
	}
	for i := range want {
		if progress.calls[i] != want[i] {
			t.Errorf("layer call %d = %s, want %s", i, progress.calls[i], want[i])
		}
	}
}

func TestPull_ErrorRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Pull(context.Background(), "nosuch", Catalog{}, nil)
	if !IsApplication(err) {
		t.Errorf("err = %v, want application ClientError", err)
	}
}

func TestPull_EndsWithoutSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Pull(context.Background(), "newmodel", Catalog{}, nil)
	if err == nil {
		t.Fatal("Pull succeeded without a terminal success record")
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Errorf("err = %v, want transport ClientError", err)
	}
}

// =============================================================================
// DELETE TESTS
// =============================================================================

func TestDelete_NotInCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for a model absent from the catalog")
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Delete(context.Background(), "ghost", Catalog{"llama3:latest"})
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("err = %v, want ErrModelNotFound", err)
	}
}

func TestDelete_OK(t *testing.T) {
	var gotMethod, gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Delete(context.Background(), "llama3:latest", Catalog{"llama3:latest"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/delete" {
		t.Errorf("got %s %s, want DELETE /api/delete", gotMethod, gotPath)
	}
	if gotBody != `{"name":"llama3:latest"}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestDelete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := newTestClient(t, srv).Delete(context.Background(), "llama3:latest", Catalog{"llama3:latest"})
	if err == nil {
		t.Fatal("Delete succeeded against a 500 server")
	}
	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind != KindTransport {
		t.Errorf("err = %v, want transport ClientError", err)
	}
}
