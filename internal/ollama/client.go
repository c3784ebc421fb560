// Copyright (c) 2025 Avery Ross
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds the endpoint and timeout settings for the client.
type ClientConfig struct {
	// Host and Port identify the single server endpoint for this run.
	Host string
	Port int

	// ProbeTimeout bounds the reachability probe and catalog fetch.
	// Generation and pull requests carry no client-enforced timeout:
	// model operations are expected to run long.
	ProbeTimeout time.Duration
}

// DefaultClientConfig returns the defaults for a local server.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:         "localhost",
		Port:         11434,
		ProbeTimeout: 10 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to one Ollama server. A single request is in flight at a
// time; the client performs no retries and no request overlaps by design.
type Client struct {
	config ClientConfig
	probe  *http.Client // bounded: liveness and catalog
	long   *http.Client // unbounded: generate and pull
	log    logrus.FieldLogger
}

// NewClient creates a client for the configured endpoint.
func NewClient(config ClientConfig, log logrus.FieldLogger) *Client {
	if config.ProbeTimeout == 0 {
		config.ProbeTimeout = 10 * time.Second
	}
	return &Client{
		config: config,
		probe:  &http.Client{Timeout: config.ProbeTimeout},
		long:   &http.Client{},
		log:    log.WithField("component", "ollama"),
	}
}

// Endpoint returns the host:port string identifying the server.
func (c *Client) Endpoint() string {
	return c.config.Host + ":" + strconv.Itoa(c.config.Port)
}

func (c *Client) baseURL() string {
	return "http://" + c.Endpoint()
}

// =============================================================================
// LIVENESS
// =============================================================================

// Ping verifies the server is reachable. Any successful response to GET /
// is accepted.
func (c *Client) Ping(ctx context.Context) error {
	c.log.Debugf("probing server at %s", c.Endpoint())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL(), nil)
	if err != nil {
		return &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		c.log.Errorf("server probe failed: %v", err)
		return &ClientError{Kind: KindTransport, Message: "server unreachable", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Errorf("server probe returned %s", resp.Status)
		return &ClientError{Kind: KindTransport, Message: "unexpected status from server: " + resp.Status}
	}
	return nil
}

// =============================================================================
// MODEL CATALOG
// =============================================================================

// ListModels retrieves the full model descriptions from /api/tags.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	c.log.Debugf("fetching model catalog from %s", c.Endpoint())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/api/tags", nil)
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return nil, &ClientError{Kind: KindTransport, Message: "failed to fetch catalog", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ClientError{Kind: KindTransport, Message: "failed to fetch catalog: " + resp.Status}
	}
	var result ListModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &ClientError{Kind: KindProtocol, Message: "failed to decode catalog", Cause: err}
	}
	c.log.Debugf("catalog holds %d models", len(result.Models))
	return result.Models, nil
}

// FetchCatalog returns the set of model names known to the server.
func (c *Client) FetchCatalog(ctx context.Context) (Catalog, error) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	names := make(Catalog, 0, len(models))
	for _, m := range models {
		names = append(names, m.Name)
	}
	return names, nil
}

// =============================================================================
// PULL
// =============================================================================

// PullProgress receives advisory download-layer updates during a pull.
// Reporting must not block completion detection.
type PullProgress interface {
	Layer(n int, status string)
}

// Pull downloads a model to the server. Pulling a model already in the
// catalog is a no-op success. The pull streams status records; each record
// carrying a digest marks a download layer, deduplicated by status label.
// A terminal record with status "success" completes the pull; anything
// else, including the stream ending early, fails it.
func (c *Client) Pull(ctx context.Context, name string, catalog Catalog, progress PullProgress) error {
	c.log.Debugf("attempting to pull model %q to %s", name, c.Endpoint())
	if catalog.Contains(name) {
		c.log.Infof("model %q already present on server", name)
		return nil
	}

	payload := EncodePayload(map[string]string{
		"name":   name,
		"stream": "true",
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/api/pull", strings.NewReader(payload))
	if err != nil {
		return &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	resp, err := c.long.Do(req)
	if err != nil {
		return &ClientError{Kind: KindTransport, Message: "pull request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{Kind: KindTransport, Message: "pull request failed: " + resp.Status}
	}

	framer := NewRecordFramer()
	seen := make(map[string]bool)
	layers := 0
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			records, err := framer.Feed(buf[:n])
			if err != nil {
				return err
			}
			for _, raw := range records {
				var rec PullRecord
				if err := json.Unmarshal(raw, &rec); err != nil {
					return &ClientError{Kind: KindProtocol, Message: "malformed pull record", Cause: err}
				}
				if rec.Error != "" {
					c.log.Errorf("pull of %q failed: %s", name, rec.Error)
					return &ClientError{Kind: KindApplication, Message: rec.Error}
				}
				if rec.Digest != "" && !seen[rec.Status] {
					seen[rec.Status] = true
					layers++
					if progress != nil {
						progress.Layer(layers, rec.Status)
					}
				}
				if rec.Status == "success" {
					c.log.Infof("model %q pulled to %s (%d layers)", name, c.Endpoint(), layers)
					return nil
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return &ClientError{Kind: KindTransport, Message: "pull stream interrupted", Cause: readErr}
		}
	}
	return &ClientError{Kind: KindTransport, Message: "pull ended without success"}
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a model from the server. A name absent from the catalog
// fails fast without a network call.
func (c *Client) Delete(ctx context.Context, name string, catalog Catalog) error {
	c.log.Debugf("attempting to delete model %q from %s", name, c.Endpoint())
	if !catalog.Contains(name) {
		return ErrModelNotFound
	}

	payload := EncodePayload(map[string]string{"name": name})
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL()+"/api/delete", strings.NewReader(payload))
	if err != nil {
		return &ClientError{Kind: KindTransport, Message: "failed to create request", Cause: err}
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return &ClientError{Kind: KindTransport, Message: "delete request failed", Cause: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.log.Errorf("delete of %q returned %s", name, resp.Status)
		return &ClientError{Kind: KindTransport, Message: "server error deleting model: " + resp.Status}
	}
	c.log.Infof("model %q deleted from %s", name, c.Endpoint())
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, r)
	r.Close()
}
