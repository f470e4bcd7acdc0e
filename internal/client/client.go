// Package client talks to the telemetry data source: a single HTTP endpoint
// multiplexed on an `action` query parameter (test, getLatest, getHistory).
//
// Failures are classified into three sentinel errors so the poller can fold
// them all into one liveness transition while logs stay specific:
// ErrTransport (no response inside the budget), ErrProtocol (non-2xx), and
// ErrApplication (2xx but a non-success or unparseable payload).
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/voltlab/battwatch/internal/telemetry"
)

var (
	ErrTransport   = errors.New("transport error")
	ErrProtocol    = errors.New("protocol error")
	ErrApplication = errors.New("application error")
)

// StatusSuccess is the payload status value that marks a usable response.
const StatusSuccess = "success"

// Default request budgets. A connectivity probe gets a tighter bound than a
// data fetch.
const (
	DefaultDataTimeout  = 10 * time.Second
	DefaultProbeTimeout = 5 * time.Second
)

// Client is a thin, injectable wrapper over one upstream endpoint.
type Client struct {
	endpoint     string
	dataTimeout  time.Duration
	probeTimeout time.Duration
	httpc        *http.Client
}

// New creates a client for the given endpoint URL. Zero timeouts fall back
// to the defaults.
func New(endpoint string, dataTimeout, probeTimeout time.Duration) *Client {
	if dataTimeout <= 0 {
		dataTimeout = DefaultDataTimeout
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Client{
		endpoint:     endpoint,
		dataTimeout:  dataTimeout,
		probeTimeout: probeTimeout,
		httpc:        &http.Client{},
	}
}

// SetHTTPClient swaps the underlying transport. Used by tests.
func (c *Client) SetHTTPClient(h *http.Client) {
	c.httpc = h
}

// LatestResult is the action=getLatest response envelope. Data is nil when
// the server answered successfully but had no reading to offer (the
// data-absence case, which is not an error).
type LatestResult struct {
	Status        string                `json:"status"`
	Data          *telemetry.LatestData `json:"data"`
	ESPConnected  *bool                 `json:"esp_connected"`
	TimeSinceLast telemetry.Number      `json:"time_since_last"`
}

// HistoryResult is the action=getHistory response envelope.
type HistoryResult struct {
	Status     string                 `json:"status"`
	Data       []telemetry.HistoryRow `json:"data"`
	Pagination Pagination             `json:"pagination"`
}

// Pagination carries the server-side paging bounds. Numeric fields go
// through telemetry.Number because the upstream has been seen emitting them
// as strings.
type Pagination struct {
	Page         telemetry.Number `json:"page"`
	TotalPages   telemetry.Number `json:"totalPages"`
	TotalRecords telemetry.Number `json:"totalRecords"`
}

// Probe performs the action=test connectivity check.
func (c *Client) Probe(ctx context.Context) error {
	var envelope struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, c.probeTimeout, url.Values{"action": {"test"}}, &envelope); err != nil {
		return err
	}
	if envelope.Status != StatusSuccess {
		return fmt.Errorf("%w: probe returned status %q", ErrApplication, envelope.Status)
	}
	return nil
}

// Latest fetches the current reading.
func (c *Client) Latest(ctx context.Context) (*LatestResult, error) {
	var result LatestResult
	if err := c.get(ctx, c.dataTimeout, url.Values{"action": {"getLatest"}}, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: getLatest returned status %q", ErrApplication, result.Status)
	}
	return &result, nil
}

// History fetches one page of the record log.
func (c *Client) History(ctx context.Context, page, limit int) (*HistoryResult, error) {
	params := url.Values{
		"action": {"getHistory"},
		"page":   {strconv.Itoa(page)},
		"limit":  {strconv.Itoa(limit)},
	}
	var result HistoryResult
	if err := c.get(ctx, c.dataTimeout, params, &result); err != nil {
		return nil, err
	}
	if result.Status != StatusSuccess {
		return nil, fmt.Errorf("%w: getHistory returned status %q", ErrApplication, result.Status)
	}
	return &result, nil
}

// get performs one bounded request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, timeout time.Duration, params url.Values, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrTransport, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: server returned %d", ErrProtocol, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrTransport, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: malformed payload: %v", ErrApplication, err)
	}
	return nil
}
