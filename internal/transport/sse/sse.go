// Package sse implements the client side of the legacy HTTP+SSE
// transport: a persistent GET to the server's SSE endpoint carries
// server-to-client traffic (responses and notifications), and an
// "endpoint" event announced on that stream gives the URL the client
// POSTs its own requests to. Event framing and the reconnect/backoff
// discipline are grounded on the server-side SSE transport this package
// replaces the role of, inverted from broadcasting-to-clients into
// consuming-from-a-server.
package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
	"github.com/mcpgo/mcpgo/internal/transport/httpbase"
)

// Transport is the client-side SSE back end. Construct with New and call
// Connect before any Deliver.
type Transport struct {
	SSEURL string
	Client *httpbase.Client
	Logger *logging.Logger

	mu           sync.Mutex
	postEndpoint string
	endpointSeen chan struct{}
	lastEventID  string
	dispatcher   transport.Dispatcher
	cancelStream context.CancelFunc
	closed       bool

	liveness *httpbase.LivenessMonitor
}

// New returns a Transport that will GET sseURL to open the event stream.
func New(sseURL string, client *httpbase.Client, logger *logging.Logger) *Transport {
	return &Transport{
		SSEURL:       sseURL,
		Client:       client,
		Logger:       logger,
		endpointSeen: make(chan struct{}),
		liveness:     httpbase.NewLivenessMonitor(nil),
	}
}

func (t *Transport) Shape() transport.Shape { return transport.ShapeStream }

func (t *Transport) SetDispatcher(d transport.Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatcher = d
}

// Connect opens the SSE stream and blocks until the mandatory "endpoint"
// event arrives (or ctx is cancelled), per the legacy transport's
// handshake: no request may be POSTed before the server announces where
// to send it.
func (t *Transport) Connect(ctx context.Context) error {
	streamCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancelStream = cancel
	t.mu.Unlock()

	t.liveness.Reset()
	go t.readStream(streamCtx)

	select {
	case <-t.endpointSeen:
		return nil
	case <-ctx.Done():
		cancel()
		return protocol.NewConnectionError(t.SSEURL, fmt.Errorf("timed out waiting for endpoint event: %w", ctx.Err()))
	}
}

// readStream owns both the reconnect loop and, per §4.2.2/§9, the
// liveness supervisor: each connection attempt runs under its own
// cancelable context so an inactivity timeout can tear it down early
// without tearing down the whole transport. max_ping_failures and
// max_reconnect_attempts are tracked on t.liveness across the whole
// readStream lifetime and only cleared by the next external Connect.
func (t *Transport) readStream(ctx context.Context) {
	backoff := httpbase.ReconnectConfig()
	attempt := 0

	for {
		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		monitorDone := make(chan struct{})
		go t.runLivenessMonitor(attemptCtx, cancelAttempt, monitorDone)

		err := t.runStreamOnce(attemptCtx)
		cancelAttempt()
		<-monitorDone

		if ctx.Err() != nil {
			return
		}
		if err != nil && t.Logger != nil {
			t.Logger.Warnf("sse transport: stream error, reconnecting: %v", err)
		}

		if attempt > 0 {
			if exceeded := t.liveness.RecordReconnectAttempt(); exceeded {
				t.liveness.MarkDead(fmt.Errorf("sse transport: exceeded max reconnect attempts: %w", err))
				if t.Logger != nil {
					t.Logger.Warnf("sse transport: giving up after repeated reconnect failures")
				}
				return
			}
		}

		delay := backoff.CalculateBackoff(attempt)
		attempt++
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runLivenessMonitor watches t.liveness while a single stream attempt is
// in flight. On close_after inactivity it forces a reconnect outright;
// short of that, once the stream has been quiet for PingInterval it
// sends a transport-level ping and counts failures toward
// max_ping_failures, per §4.2.2.
func (t *Transport) runLivenessMonitor(ctx context.Context, forceReconnect context.CancelFunc, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(t.liveness.PingInterval() / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if t.liveness.PastCloseAfter() {
				if t.Logger != nil {
					t.Logger.Warnf("sse transport: no activity for close_after, forcing reconnect")
				}
				forceReconnect()
				return
			}
			if !t.liveness.NeedsPing() {
				continue
			}
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_, err := t.Deliver(pingCtx, pingRequest())
			cancel()
			if err != nil {
				if exceeded := t.liveness.RecordPingFailure(); exceeded {
					if t.Logger != nil {
						t.Logger.Warnf("sse transport: exceeded max ping failures, forcing reconnect: %v", err)
					}
					forceReconnect()
					return
				}
				if t.Logger != nil {
					t.Logger.Warnf("sse transport: inactivity ping failed: %v", err)
				}
				continue
			}
			t.liveness.RecordPingSuccess()
		}
	}
}

func pingRequest() *protocol.Message {
	msg, _ := protocol.NewRequest(httpbase.NextPingID(), "ping", nil)
	return msg
}

func (t *Transport) runStreamOnce(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.SSEURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", t.Client.UserAgent)
	t.mu.Lock()
	lastID := t.lastEventID
	t.mu.Unlock()
	if lastID != "" {
		req.Header.Set("Last-Event-ID", lastID)
	}

	resp, err := t.Client.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse stream returned status %d", resp.StatusCode)
	}

	return t.consumeEvents(ctx, resp.Body)
}

func (t *Transport) consumeEvents(ctx context.Context, body io.Reader) error {
	scanner := bufio.NewReader(body)

	var eventType string
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			eventType = ""
			return
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		t.handleEvent(eventType, data)
		eventType = ""
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := scanner.ReadString('\n')
		if err != nil {
			flush()
			return err
		}
		t.liveness.Touch()
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			t.mu.Lock()
			t.lastEventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			t.mu.Unlock()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive ping, ignore
		}
	}
}

func (t *Transport) handleEvent(eventType, data string) {
	switch eventType {
	case "endpoint":
		t.resolveEndpoint(data)
	case "", "message":
		var msg protocol.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			if t.Logger != nil {
				t.Logger.Warnf("sse transport: dropping unparseable message event: %v", err)
			}
			return
		}
		t.mu.Lock()
		d := t.dispatcher
		t.mu.Unlock()
		if d != nil {
			d.Dispatch(&msg)
		}
	}
}

func (t *Transport) resolveEndpoint(data string) {
	base, err := url.Parse(t.SSEURL)
	endpoint := data
	if err == nil {
		if ref, refErr := url.Parse(data); refErr == nil {
			endpoint = base.ResolveReference(ref).String()
		}
	}

	t.mu.Lock()
	first := t.postEndpoint == ""
	t.postEndpoint = endpoint
	t.mu.Unlock()

	if first {
		close(t.endpointSeen)
	}
}

// Deliver POSTs msg to the announced endpoint. The response, if any,
// arrives asynchronously as a "message" event on the SSE stream.
func (t *Transport) Deliver(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	if dead, lastErr := t.liveness.Dead(); dead {
		return nil, protocol.NewConnectionError(t.SSEURL, fmt.Errorf("stream supervisor gave up: %w", lastErr))
	}

	t.mu.Lock()
	endpoint := t.postEndpoint
	t.mu.Unlock()
	if endpoint == "" {
		return nil, protocol.NewConnectionError(t.SSEURL, fmt.Errorf("no endpoint announced yet"))
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, protocol.NewTransportError(t.SSEURL, err)
	}

	resp, _, err := t.Client.Do(ctx, func() (*http.Request, error) {
		return t.Client.NewRequest(ctx, http.MethodPost, endpoint, body)
	})
	if err != nil {
		return nil, protocol.NewTransportError(t.SSEURL, err)
	}
	if resp.StatusCode >= 300 {
		return nil, protocol.NewTransportError(t.SSEURL, fmt.Errorf("post to endpoint returned status %d", resp.StatusCode))
	}
	return nil, nil
}

// Close stops the stream reader. Safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancelStream
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}
