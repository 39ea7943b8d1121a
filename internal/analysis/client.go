// Package analysis is the HTTP client for the external analysis service —
// the collaborator that actually computes answers over uploaded CSV files.
//
// The gateway never interprets file contents beyond the header row; it hands
// the service a file path, the extracted schema, and the user's question, and
// relays whatever comes back.
//
// FAILURE DISCRIMINATION:
// Callers need to tell three upstream failures apart:
//   - the service answered            → success (or a semantic error)
//   - the service took too long       → apperror.ErrUpstreamTimeout (504)
//   - the service isn't running       → apperror.ErrUpstreamUnavailable (503)
//
// This package is the single place where transport-level error shapes
// (url.Error, net.OpError, ECONNREFUSED, deadline exceeded) are translated
// into those two sentinels. Nothing above it inspects network errors.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sakif/datachat/internal/apperror"
)

// DefaultTimeout bounds one analyze round-trip. The analysis service runs
// real computation, so this is generous compared to a normal API call — but
// a hung request must still fail before the client gives up on its own.
const DefaultTimeout = 10 * time.Second

// Request is the payload sent to POST /analyze.
// Context carries prior conversation turns; the gateway treats them as opaque
// and forwards them untouched.
type Request struct {
	FilePath string            `json:"file_path"`
	Schema   Schema            `json:"schema"`
	Question string            `json:"question"`
	Context  []json.RawMessage `json:"context,omitempty"`
}

// Schema is the column-name schema extracted from a CSV header row.
type Schema struct {
	Columns []string `json:"columns"`
}

// Response is what the analysis service returns. Everything except Answer is
// optional; ChartType is null for non-chart answers.
type Response struct {
	Answer    string          `json:"answer"`
	Data      json.RawMessage `json:"data,omitempty"`
	Code      string          `json:"code,omitempty"`
	ChartType *string         `json:"chart_type"`
}

// Client calls the analysis service over HTTP.
type Client struct {
	http *resty.Client
}

// NewClient creates a Client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout).
			SetHeader("User-Agent", "datachat/1.0"),
	}
}

// Analyze sends one question about one dataset and returns the structured
// answer. Timeout and unreachable failures come back tagged with the
// apperror upstream sentinels; anything else is a plain wrapped error that
// the boundary reports as internal.
func (c *Client) Analyze(ctx context.Context, req Request) (*Response, error) {
	var result Response

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		Post("/analyze")
	if err != nil {
		return nil, translateTransportError(err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("analysis: service returned %d: %s", resp.StatusCode(), resp.String())
	}

	return &result, nil
}

// Health probes GET /health. A nil error means the service is reachable and
// reports itself healthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/health")
	if err != nil {
		return translateTransportError(err)
	}
	if resp.IsError() {
		return fmt.Errorf("analysis: health returned %d", resp.StatusCode())
	}
	return nil
}

// translateTransportError maps a transport failure onto exactly one of the
// two upstream sentinels.
//
// ORDER MATTERS: a timed-out dial can satisfy both "is it a timeout" and
// "is it an OpError", so the timeout check runs first — "took too long" is
// the more specific signal and the one the caller can retry against.
func translateTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("analysis: %v: %w", err, apperror.ErrUpstreamTimeout)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("analysis: %v: %w", err, apperror.ErrUpstreamTimeout)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("analysis: %v: %w", err, apperror.ErrUpstreamUnavailable)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		// Any other dial/read failure: host down, connection reset, no route.
		return fmt.Errorf("analysis: %v: %w", err, apperror.ErrUpstreamUnavailable)
	}

	return fmt.Errorf("analysis: request failed: %w", err)
}
