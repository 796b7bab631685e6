// Copyright (c) 2024 OData MCP Contributors
// SPDX-License-Identifier: MIT

package httpbase

import (
	"sync"
	"sync/atomic"
	"time"
)

var pingIDCounter int64

// NextPingID returns a negative, monotonically decreasing ID reserved for
// transport-level inactivity pings sent outside of the session's own
// request/response correlation, so it can never collide with a session's
// positive request IDs.
func NextPingID() int64 {
	return -atomic.AddInt64(&pingIDCounter, 1)
}

// LivenessConfig bounds the §4.2.2 liveness supervisor a streaming
// transport (SSE, streamable-HTTP push) runs alongside its reconnect
// loop: how long to wait for stream activity before sending an
// inactivity ping, how long to wait before forcing a reconnect, how many
// ping failures force a reconnect, and how many reconnect attempts are
// made before surfacing a terminal error instead of trying again.
type LivenessConfig struct {
	PingInterval         time.Duration // send a ping after this much inactivity
	CloseAfter           time.Duration // ~2.5x PingInterval: force teardown+reconnect
	MaxPingFailures      int           // default 3
	MaxReconnectAttempts int           // default 5
}

// DefaultLivenessConfig returns the §9 defaults: a 30s ping interval,
// close_after at 2.5x that, a forced reconnect on the 3rd ping failure,
// and the stream declared dead on the 5th failed reconnect attempt.
func DefaultLivenessConfig() *LivenessConfig {
	interval := 30 * time.Second
	return &LivenessConfig{
		PingInterval:         interval,
		CloseAfter:           time.Duration(float64(interval) * 2.5),
		MaxPingFailures:      3,
		MaxReconnectAttempts: 5,
	}
}

// LivenessMonitor tracks stream activity and the ping/reconnect failure
// counters for a single streaming transport. The counters persist across
// in-session reconnect cycles and are only cleared by Reset, which the
// transport calls on a fresh external Connect.
type LivenessMonitor struct {
	cfg *LivenessConfig

	mu                sync.Mutex
	lastActivity      time.Time
	pingFailures      int
	reconnectAttempts int
	dead              bool
	lastErr           error
}

// NewLivenessMonitor returns a monitor using cfg, or DefaultLivenessConfig
// if cfg is nil.
func NewLivenessMonitor(cfg *LivenessConfig) *LivenessMonitor {
	if cfg == nil {
		cfg = DefaultLivenessConfig()
	}
	m := &LivenessMonitor{cfg: cfg}
	m.Reset()
	return m
}

// Reset clears the failure counters and the dead flag. Call this once
// per external Connect call, not on every internal reconnect.
func (m *LivenessMonitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
	m.pingFailures = 0
	m.reconnectAttempts = 0
	m.dead = false
	m.lastErr = nil
}

// Touch records stream activity (any parsed event, not just a pong),
// which is what inactivity is measured against.
func (m *LivenessMonitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = time.Now()
}

func (m *LivenessMonitor) idle() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.lastActivity)
}

// NeedsPing reports whether the stream has been idle long enough to
// warrant an inactivity ping.
func (m *LivenessMonitor) NeedsPing() bool {
	return m.idle() >= m.cfg.PingInterval
}

// PastCloseAfter reports whether the stream has been idle past
// close_after and should be torn down and reconnected regardless of
// ping outcome.
func (m *LivenessMonitor) PastCloseAfter() bool {
	return m.idle() >= m.cfg.CloseAfter
}

// RecordPingSuccess clears the ping failure counter; a successful ping
// round-trip is evidence the connection is still alive even if no other
// server traffic has arrived.
func (m *LivenessMonitor) RecordPingSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingFailures = 0
}

// RecordPingFailure increments the ping failure counter and reports
// whether it has now reached max_ping_failures.
func (m *LivenessMonitor) RecordPingFailure() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingFailures++
	return m.pingFailures >= m.cfg.MaxPingFailures
}

// RecordReconnectAttempt increments the reconnect counter and reports
// whether it has now reached max_reconnect_attempts.
func (m *LivenessMonitor) RecordReconnectAttempt() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectAttempts++
	return m.reconnectAttempts >= m.cfg.MaxReconnectAttempts
}

// MarkDead records that the supervisor has given up, and the error the
// next user operation should see.
func (m *LivenessMonitor) MarkDead(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = true
	m.lastErr = err
}

// Dead reports whether the supervisor has given up, and the terminal
// error recorded by MarkDead.
func (m *LivenessMonitor) Dead() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dead, m.lastErr
}

// PingInterval exposes the configured interval so callers can size their
// own check tickers off it instead of duplicating the constant.
func (m *LivenessMonitor) PingInterval() time.Duration { return m.cfg.PingInterval }
