// Package ofs is an HTTP client for the OFS relay.
package ofs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"ofs-bridge/internal/model"
)

// HTTPError is a non-2xx relay reply. Message carries the relay's "error"
// field when the body had one.
type HTTPError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("relay http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("relay http %d: %s", e.Status, string(e.Body))
}

type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient creates a client posting to the relay route at relayURL. A zero
// timeout means requests only end when their context does.
func NewClient(relayURL string, timeout time.Duration) *Client {
	return &Client{
		URL:  relayURL,
		HTTP: &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		herr := &HTTPError{Status: resp.StatusCode, Body: b}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(b, &body) == nil {
			herr.Message = body.Error
		}
		return nil, herr
	}
	return b, nil
}

// Send posts one JSON command and returns the remote's reply bytes as the
// relay passed them through. Cancelling ctx aborts the HTTP request and with
// it the relay's socket.
func (c *Client) Send(ctx context.Context, doc []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Exchanges fetches the relay's journal, most recent first.
func (c *Client) Exchanges(ctx context.Context, limit int) ([]model.Exchange, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, err
	}
	u.Path = "/exchanges"
	u.RawQuery = url.Values{"limit": {strconv.Itoa(limit)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	b, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Exchanges []model.Exchange `json:"exchanges"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decoding exchanges: %w", err)
	}
	return out.Exchanges, nil
}
