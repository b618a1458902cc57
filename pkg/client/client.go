// Package client calls a running ordframe server's JSON API. The CLI uses
// it to drive the selection from a terminal.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rubiojr/ordframe/pkg/api"
	"github.com/rubiojr/ordframe/pkg/selection"
	"github.com/rubiojr/ordframe/pkg/version"
)

// DefaultServer is the address of a locally running server.
const DefaultServer = "http://localhost:5000"

type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL. Requests are made once;
// there is no retry.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultServer
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			fmt.Printf("Warning: failed to close response body: %v\n", err)
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	// Refusals carry {success:false, message}; surface the message as is.
	var status api.MessageResponse
	if err := json.Unmarshal(data, &status); err == nil && !status.Success && status.Message != "" {
		return &selection.RejectedError{Message: status.Message}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Ordinals returns the server's catalog and stored selection.
func (c *Client) Ordinals(ctx context.Context) (api.OrdinalsResponse, error) {
	var resp api.OrdinalsResponse
	err := c.do(ctx, http.MethodGet, "/api/ordinals", nil, &resp)
	return resp, err
}

// LoadSelection implements selection.Backend.
func (c *Client) LoadSelection(ctx context.Context) ([]string, error) {
	resp, err := c.Ordinals(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Selection.SelectedIDs, nil
}

// SaveSelection implements selection.Backend.
func (c *Client) SaveSelection(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodPost, "/api/update-selection", api.UpdateSelectionRequest{SelectedIDs: ids}, nil)
}

// FetchOrdinals asks the server to fetch the inscriptions of address.
func (c *Client) FetchOrdinals(ctx context.Context, address string) (api.FetchResponse, error) {
	var resp api.FetchResponse
	err := c.do(ctx, http.MethodPost, "/api/fetch-ordinals", api.FetchRequest{Address: address}, &resp)
	return resp, err
}

func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp)
	return resp, err
}
