package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"meridian-hq/feedwatch/pkg/api"
)

// Client talks to the HTTP API of a running feedwatch instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the instance at baseURL. A bare host:port
// is treated as http.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Rules returns the rule snapshots.
func (c *Client) Rules(ctx context.Context) (*api.RulesResponse, error) {
	var resp api.RulesResponse
	if err := c.do(ctx, http.MethodGet, "/failover/rules", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the provider health snapshots.
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	var resp api.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/failover/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Force pins a rule to provider.
func (c *Client) Force(ctx context.Context, ruleID, provider string) (*api.CommandResponse, error) {
	var resp api.CommandResponse
	path := "/failover/" + url.PathEscape(ruleID) + "/force"
	if err := c.do(ctx, http.MethodPost, path, api.ForceRequest{ProviderID: provider}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearOverride drops a rule's manual override.
func (c *Client) ClearOverride(ctx context.Context, ruleID string) (*api.CommandResponse, error) {
	var resp api.CommandResponse
	path := "/failover/" + url.PathEscape(ruleID) + "/override"
	if err := c.do(ctx, http.MethodDelete, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EventFilter selects recorded events.
type EventFilter struct {
	RuleID     string
	ProviderID string
	Type       string
	Since      time.Time
	Limit      int
}

// Events returns recorded events, newest first.
func (c *Client) Events(ctx context.Context, f EventFilter) (*api.EventsResponse, error) {
	q := url.Values{}
	if f.RuleID != "" {
		q.Set("rule", f.RuleID)
	}
	if f.ProviderID != "" {
		q.Set("provider", f.ProviderID)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if !f.Since.IsZero() {
		q.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}

	path := "/failover/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp api.EventsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeAPIError builds an APIError from either the error envelope or a
// simulated command response.
func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{Status: status}

	var envelope api.ErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Code != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
		return apiErr
	}

	var cmd api.CommandResponse
	if err := json.Unmarshal(data, &cmd); err == nil && cmd.IsSimulated {
		apiErr.Simulated = true
		apiErr.Message = cmd.Message
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
