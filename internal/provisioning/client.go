// Package provisioning talks to the external identity provider that owns
// credentials. The admin service never stores passwords for new accounts;
// it asks the provider to invite the person and keeps only the returned
// auth id.
package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"aexfy.org/internal/identity"
)

const defaultTimeout = 10 * time.Second

// Client issues credential invites over the provider's admin HTTP API.
type Client struct {
	baseURL    string
	serviceKey string
	httpc      *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpc = c }
}

// NewClient builds a client for the provider at baseURL, authenticating
// every call with the service key.
func NewClient(baseURL, serviceKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("provisioning: base URL is required")
	}
	if serviceKey == "" {
		return nil, errors.New("provisioning: service key is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpc:      &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type inviteRequest struct {
	Email string         `json:"email"`
	Data  map[string]any `json:"data,omitempty"`
}

type inviteResponse struct {
	ID         string `json:"id"`
	ActionLink string `json:"action_link"`
	Message    string `json:"msg"`
}

// IssueInvite asks the provider to create a credential for the email and
// send its invite. The returned auth id links the provider account to the
// local record; the action link lets operators re-share the invite when
// the email never arrives.
func (c *Client) IssueInvite(ctx context.Context, email string, metadata map[string]any) (string, string, error) {
	body, err := json.Marshal(inviteRequest{Email: email, Data: metadata})
	if err != nil {
		return "", "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/v1/invite", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", "", errors.Join(identity.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", "", fmt.Errorf("%w: provider already holds a credential for %s", identity.ErrValidationConflict, email)
	case resp.StatusCode >= 500:
		return "", "", fmt.Errorf("%w: provider returned %s: %s", identity.ErrUnavailable, resp.Status, snippet(resp.Body))
	case resp.StatusCode >= 300:
		return "", "", fmt.Errorf("provisioning: provider returned %s: %s", resp.Status, snippet(resp.Body))
	}

	var out inviteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode invite response: %w", err)
	}
	if out.ID == "" {
		return "", "", errors.New("provisioning: provider response carried no auth id")
	}
	return out.ID, out.ActionLink, nil
}

// snippet reads a short prefix of an error body for diagnostics.
func snippet(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(buf))
}
