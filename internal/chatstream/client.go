// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jeranaias/atlas-tui/internal/model"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 4 * 1024

// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
// No client timeout: streams are bounded by the request context.
var sharedStreamingClient = &http.Client{
	Transport: &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// Request is one chat turn: the history to send plus optional metadata.
type Request struct {
	Messages []model.MessageView
	Data     map[string]any
}

type wireMessage struct {
	Role        string             `json:"role"`
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"experimental_attachments,omitempty"`
}

type wireRequest struct {
	Messages []wireMessage  `json:"messages"`
	Data     map[string]any `json:"data,omitempty"`
}

func (r Request) wire() wireRequest {
	out := wireRequest{Messages: make([]wireMessage, 0, len(r.Messages)), Data: r.Data}
	for _, m := range r.Messages {
		out.Messages = append(out.Messages, wireMessage{
			Role:        m.Role.String(),
			Content:     m.Content,
			Attachments: m.Attachments,
		})
	}
	return out
}

// =============================================================================
// CLIENT
// =============================================================================

// Client posts chat turns and decodes the streamed response.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a client for the chat endpoint, e.g.
// "http://localhost:8000/api/chat".
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: sharedStreamingClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Stream sends req and emits the response events for messageID until the
// stream ends. Cancelling ctx aborts the stream and returns ctx.Err().
func (c *Client) Stream(ctx context.Context, req Request, messageID string, emit func(model.Event)) error {
	target, err := c.streamURL()
	if err != nil {
		return err
	}

	body, err := json.Marshal(req.wire())
	if err != nil {
		return fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("chat rate limited", "retry_after", resp.Header.Get("Retry-After"))
		return rateLimitFromResponse(resp)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	c.logger.Debug("chat stream opened", "message_id", messageID, "messages", len(req.Messages))
	err = NewDecoder(resp.Body, messageID, c.logger).Run(ctx, emit)
	c.logger.Debug("chat stream closed", "message_id", messageID, "elapsed", time.Since(start), "error", err)
	return err
}

// streamURL adds protocol=data to the endpoint.
func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid chat endpoint %q: %w", c.endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid chat endpoint %q: scheme must be http or https", c.endpoint)
	}
	q := u.Query()
	q.Set("protocol", "data")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
