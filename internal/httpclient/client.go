// Package httpclient wraps the outbound HTTP call the delivery worker
// makes to a subscriber endpoint. Unlike a typical REST client it does
// not treat a non-2xx response as an error: the worker needs the raw
// status code to tell a subscriber-side rejection apart from a
// transport failure (spec.md §4.5).
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client posts JSON bodies to arbitrary destination URLs with a fixed
// timeout. It is shared by every subscriber a Client talks to; there
// is no per-destination base URL the way a typical service client has
// one, since subscribers are resolved per event at dispatch time.
type Client struct {
	httpClient *http.Client
}

// Response is the result of a successful round trip: a response was
// received, whatever its status code.
type Response struct {
	StatusCode int
	Body       []byte
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Post sends payload as a JSON body to destination. The returned error
// is non-nil only when no usable response was obtained: the payload
// cannot be marshalled, the request cannot be built (for example a
// malformed destination URL), a transport-level failure occurs (DNS,
// dial, timeout, connection reset), or the response body cannot be
// read. A 4xx or 5xx response is returned as a Response, not an error.
func (c *Client) Post(ctx context.Context, destination string, payload interface{}) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

// Ok reports whether the response status is in the 2xx range.
func (r *Response) Ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
