// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the streaming text-generation interface.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the generation client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
)

// Sentinel errors for easy checking.
var (
	ErrNotRunning    = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrModelNotFound = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows
	BaseURL string

	// Model is the model used for all generation calls
	Model string

	// ConnectTimeout bounds establishing the streaming connection.
	// Once a stream is open no read deadline applies: a stalled stream is
	// abandoned only via context cancellation.
	ConnectTimeout time.Duration

	// MaxRetries for transient connection failures (default: 3)
	MaxRetries int

	// RetryDelay between retries (default: 1s)
	RetryDelay time.Duration

	// RequestsPerSecond paces request starts (0 = unlimited)
	RequestsPerSecond float64
}

// DefaultClientConfig returns the default client configuration.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:11434",
		Model:          "qwen2.5-coder:14b",
		ConnectTimeout: 5 * time.Second,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client streams chat completions from a local Ollama server.
//
// The Client is safe for concurrent use; each Generate call opens its own
// stream. It implements the Provider interface.
type Client struct {
	config  *ClientConfig
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client with the given configuration.
// A nil config uses DefaultClientConfig.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultClientConfig()
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}

	return &Client{
		config: config,
		http: &http.Client{
			// No overall timeout: streams stay open as long as the model
			// is producing. Connection establishment is bounded below.
			Transport: &http.Transport{
				ResponseHeaderTimeout: config.ConnectTimeout,
			},
		},
		limiter: limiter,
	}
}

// chatRequest is the request body for the /api/chat endpoint.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Generate implements the Provider interface by streaming from /api/chat.
func (c *Client) Generate(ctx context.Context, req Request, fn StreamFunc) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	messages := make([]Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to encode request", Cause: err}
	}

	resp, err := c.connect(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := NewStreamReader(resp.Body)
	return reader.Process(ctx, fn)
}

// connect opens the streaming request, retrying transient connection
// failures with a fixed delay.
func (c *Client) connect(ctx context.Context, body []byte) (*http.Response, error) {
	var lastErr error

	attempts := c.config.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.config.BaseURL+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to build request", Cause: err}
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = &ClientError{Type: ErrTypeConnection, Message: "connection failed", Cause: err}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			return resp, nil
		case http.StatusNotFound:
			resp.Body.Close()
			return nil, &ClientError{
				Type:    ErrTypeModelNotFound,
				Message: fmt.Sprintf("model %q not found", c.config.Model),
			}
		default:
			resp.Body.Close()
			lastErr = &ClientError{
				Type:    ErrTypeInvalidResponse,
				Message: fmt.Sprintf("unexpected status %d", resp.StatusCode),
			}
		}
	}

	if lastErr == nil {
		lastErr = ErrNotRunning
	}
	return nil, lastErr
}

// Healthy reports whether the server answers its version endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/version", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.config.Model
}

// interface guard
var _ Provider = (*Client)(nil)

// errors.Is support for sentinel comparison on wrapped causes.
func (e *ClientError) Is(target error) bool {
	var ce *ClientError
	if errors.As(target, &ce) {
		return e.Type == ce.Type
	}
	return false
}
