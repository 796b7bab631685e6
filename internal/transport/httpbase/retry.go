// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

package httpbase

import (
	"math"
	"math/rand"
	"time"
)

// RetryConfig controls exponential backoff with jitter for the HTTP-based
// transports (SSE, single-shot HTTP, streamable HTTP) and for the SSE/
// streamable reconnect loop.
type RetryConfig struct {
	MaxRetries        int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff    time.Duration // Initial delay before first retry
	MaxBackoff        time.Duration // Maximum delay between retries
	BackoffMultiplier float64       // Multiplier for exponential backoff
	JitterFraction    float64       // Random jitter fraction (0.0-1.0)
	RetryableStatuses []int         // HTTP status codes that trigger retry
}

// DefaultRetryConfig returns the request-retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		RetryableStatuses: []int{429, 500, 502, 503, 504},
	}
}

// ReconnectConfig returns the SSE/streamable reconnect backoff per §4.2.2:
// base 0.5s, cap 30s, jitter ±25%.
func ReconnectConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        0, // reconnect retries forever; caller loops, doesn't consult MaxRetries
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.25,
	}
}

// CalculateBackoff returns the delay for a given attempt (0-indexed).
// Attempt 0 returns InitialBackoff; subsequent attempts grow exponentially.
func (c *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt <= 0 {
		return c.InitialBackoff
	}

	backoff := float64(c.InitialBackoff) * math.Pow(c.BackoffMultiplier, float64(attempt))
	if backoff > float64(c.MaxBackoff) {
		backoff = float64(c.MaxBackoff)
	}

	if c.JitterFraction > 0 {
		jitterRange := backoff * c.JitterFraction
		jitter := (rand.Float64()*2 - 1) * jitterRange
		backoff += jitter
		if backoff < 0 {
			backoff = 0
		}
	}

	return time.Duration(backoff)
}

// ShouldRetry reports whether a request should be retried given the
// response status and the attempt count already spent.
func (c *RetryConfig) ShouldRetry(statusCode int, attempt int) bool {
	if attempt >= c.MaxRetries {
		return false
	}
	return c.IsRetryableStatus(statusCode)
}

// IsRetryableStatus reports whether statusCode is in the retryable list.
func (c *RetryConfig) IsRetryableStatus(statusCode int) bool {
	for _, code := range c.RetryableStatuses {
		if statusCode == code {
			return true
		}
	}
	return false
}
