// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chatstream

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrRateLimited indicates the backend refused the request for sending
	// too many messages.
	ErrRateLimited = errors.New("rate limited")

	// ErrMalformedPart marks a stream line that could not be decoded. The
	// decoder logs and skips such lines.
	ErrMalformedPart = errors.New("malformed stream part")
)

// =============================================================================
// RATE LIMIT ERROR
// =============================================================================

// RateLimitError is returned for HTTP 429 responses.
type RateLimitError struct {
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %v", e.RetryAfter)
	}
	return "rate limited"
}

// Is allows RateLimitError to be compared with ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// rateLimitFromResponse parses Retry-After as seconds or an HTTP date.
func rateLimitFromResponse(resp *http.Response) error {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return &RateLimitError{}
	}
	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Duration(seconds) * time.Second}
	}
	if t, err := http.ParseTime(retryAfter); err == nil {
		return &RateLimitError{RetryAfter: time.Until(t)}
	}
	return &RateLimitError{}
}

// =============================================================================
// STREAM ERROR
// =============================================================================

// StreamError is an error reported by the backend inside the stream, or a
// transport failure after the stream started.
type StreamError struct {
	Message string
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("stream error: %v", e.Err)
	}
	return "stream error: " + e.Message
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the backend's message describes rate
// limiting.
func (e *StreamError) RateLimited() bool {
	return isRateLimitMessage(e.Message)
}

// Is matches ErrRateLimited when the message describes rate limiting.
func (e *StreamError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited()
}

func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "too many requests") || strings.Contains(lower, "rate limit")
}

// =============================================================================
// HTTP ERROR
// =============================================================================

// HTTPError is returned for non-2xx responses other than 429.
type HTTPError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("chat endpoint returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("chat endpoint returned %d", e.StatusCode)
}

// Is matches ErrRateLimited when the body describes rate limiting.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRateLimited && isRateLimitMessage(e.Body)
}
