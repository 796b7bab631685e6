package httpbase

import (
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.InitialBackoff != 100*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 100ms", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", cfg.MaxBackoff)
	}
	if cfg.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", cfg.BackoffMultiplier)
	}

	expectedStatuses := []int{429, 500, 502, 503, 504}
	for i, status := range expectedStatuses {
		if cfg.RetryableStatuses[i] != status {
			t.Errorf("RetryableStatuses[%d] = %d, want %d", i, cfg.RetryableStatuses[i], status)
		}
	}
}

func TestReconnectConfig(t *testing.T) {
	cfg := ReconnectConfig()

	if cfg.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", cfg.MaxBackoff)
	}
	if cfg.JitterFraction != 0.25 {
		t.Errorf("JitterFraction = %v, want 0.25", cfg.JitterFraction)
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 400 * time.Millisecond},
		{3, 800 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if result := cfg.CalculateBackoff(tt.attempt); result != tt.expected {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestCalculateBackoffMaxCap(t *testing.T) {
	cfg := &RetryConfig{
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{3, 500 * time.Millisecond},
		{10, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			if result := cfg.CalculateBackoff(tt.attempt); result != tt.expected {
				t.Errorf("CalculateBackoff(%d) = %v, want %v", tt.attempt, result, tt.expected)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	cfg := DefaultRetryConfig()

	tests := []struct {
		name       string
		statusCode int
		attempt    int
		expected   bool
	}{
		{"503 first attempt", 503, 0, true},
		{"503 fourth attempt exceeds max", 503, 3, false},
		{"401 is never retryable", 401, 0, false},
		{"200 OK", 200, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := cfg.ShouldRetry(tt.statusCode, tt.attempt); result != tt.expected {
				t.Errorf("ShouldRetry(%d, %d) = %v, want %v", tt.statusCode, tt.attempt, result, tt.expected)
			}
		})
	}
}
