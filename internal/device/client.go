// Package device talks to the weather sensor node's HTTP API.
package device

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/speedwagon-io/weatherdash/internal/model"
)

// TransportError means no response reached us at all: the device is off,
// unreachable, or the request timed out.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("no response from device: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError means the device answered with a non-200 status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device returned status %d", e.Code)
}

type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Close() {
	c.client.CloseIdleConnections()
}

// FetchStatus performs one GET /api/status round trip and parses the result.
// Errors are typed so the poller can tell the user "no response" apart from
// "server returned an error status".
func (c *Client) FetchStatus(ctx context.Context) (*model.Status, error) {
	url := c.baseURL + "/api/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	status, err := model.ParseStatus(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status payload: %w", err)
	}

	return status, nil
}
