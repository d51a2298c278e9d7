package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PersistenceError reports a save the records service refused or never
// received. StatusCode is zero when the request did not reach the service.
// Saves fail soft: callers keep the result locally instead of failing the
// scan.
type PersistenceError struct {
	StatusCode int
	Reason     string
}

func (e *PersistenceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("records save failed (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("records save failed: %s", e.Reason)
}

// Client is the station-side HTTP client for the records service.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	proxyOrigin string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EnableProxy routes requests through a CORS-relay origin.
func (c *Client) EnableProxy(origin string) {
	c.proxyOrigin = origin
}

func (c *Client) endpoint(path string) string {
	url := c.baseURL + path
	if c.proxyOrigin != "" {
		return c.proxyOrigin + url
	}
	return url
}

// SaveScan submits one completed scan for storage. Every failure of the
// exchange comes back as a *PersistenceError.
func (c *Client) SaveScan(ctx context.Context, req SaveRequest) (*SaveResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/vital-scan/save"), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create save request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.proxyOrigin != "" {
		httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &PersistenceError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &PersistenceError{StatusCode: resp.StatusCode, Reason: strings.TrimSpace(string(body))}
	}

	var out SaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &PersistenceError{StatusCode: resp.StatusCode, Reason: "invalid save response: " + err.Error()}
	}
	if !out.Success {
		reason := out.Error
		if reason == "" {
			reason = "service reported success=false"
		}
		return nil, &PersistenceError{Reason: reason}
	}
	return &out, nil
}

// Reports fetches the most recent stored scans.
func (c *Client) Reports(ctx context.Context) (*ReportsResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/api/user/reports"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create reports request: %w", err)
	}
	if c.proxyOrigin != "" {
		httpReq.Header.Set("X-Requested-With", "XMLHttpRequest")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach records service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("reports fetch failed (status %d)", resp.StatusCode)
	}

	var out ReportsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid reports response: %w", err)
	}
	return &out, nil
}
