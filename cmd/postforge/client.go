package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"postforge/internal/api"
	"postforge/internal/run"
)

// apiClient talks to the postforged HTTP API.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: base,
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *apiClient) orchestrate(ctx context.Context, req api.OrchestrateRequest) (*api.OrchestrateResponse, error) {
	var resp api.OrchestrateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/orchestrate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *apiClient) status(ctx context.Context, runTraceID string) (*run.RunState, error) {
	var state run.RunState
	if err := c.doJSON(ctx, http.MethodGet, "/api/status?runTraceId="+runTraceID, nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *apiClient) runs(ctx context.Context) ([]run.RunState, error) {
	var states []run.RunState
	if err := c.doJSON(ctx, http.MethodGet, "/api/runs", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is postforged running at %s? %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
