// Package httpjson posts JSON documents and decodes JSON replies, retrying
// throttled and server-side failures.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBackoffs is the wait before each retry. Its length is the number
// of retries after the first attempt.
var DefaultBackoffs = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// StatusError is a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client sends JSON POST requests.
type Client struct {
	HTTP     *http.Client
	Backoffs []time.Duration
}

// New returns a client with the given per-request timeout and the default
// retry schedule.
func New(timeout time.Duration) *Client {
	return &Client{
		HTTP:     &http.Client{Timeout: timeout},
		Backoffs: DefaultBackoffs,
	}
}

// Post marshals body, posts it to url and decodes the reply into result.
// Transport errors, 429 and 5xx replies are retried; other statuses fail
// immediately.
func (c *Client) Post(ctx context.Context, url string, body any, headers map[string]string, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var lastErr error
	for attempt := 0; attempt <= len(c.Backoffs); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.Backoffs[attempt-1]):
			}
		}

		respBody, err := c.do(ctx, httpClient, url, data, headers)
		if err == nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to unmarshal response: %w", err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("all retries failed: %w", lastErr)
}

func (c *Client) do(ctx context.Context, httpClient *http.Client, url string, data []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
