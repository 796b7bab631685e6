// Package streamable implements the modern streamable-HTTP transport: one
// POST per JSON-RPC message whose response body is either a plain JSON
// object or an SSE event stream, plus an optional separate persistent GET
// that carries server-initiated requests and notifications outside of
// any particular POST's response. The session is pinned to a server
// instance via the Mcp-Session-Id response header, captured on the first
// response and echoed on every request after. Event framing and the
// POST/SSE-upgrade duality are grounded on the server-side streamable
// transport this package replaces the role of.
package streamable

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
	"github.com/mcpgo/mcpgo/internal/transport/httpbase"
)

const sessionIDHeader = "Mcp-Session-Id"

// Transport is the client-side streamable-HTTP back end.
type Transport struct {
	URL    string
	Client *httpbase.Client
	Logger *logging.Logger

	mu          sync.Mutex
	sessionID   string
	lastEventID string
	dispatcher  transport.Dispatcher
	cancelPush  context.CancelFunc
	closed      bool

	liveness *httpbase.LivenessMonitor
}

// New returns a Transport that POSTs to url and, once Connect succeeds,
// attempts a persistent GET to the same url for server-initiated push.
func New(url string, client *httpbase.Client, logger *logging.Logger) *Transport {
	return &Transport{URL: url, Client: client, Logger: logger, liveness: httpbase.NewLivenessMonitor(nil)}
}

func (t *Transport) Shape() transport.Shape { return transport.ShapeStream }

func (t *Transport) SetDispatcher(d transport.Dispatcher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dispatcher = d
}

// Connect starts the optional push stream in the background. Failure to
// open it is non-fatal — some streamable-HTTP servers only ever answer
// inline on the POST response and never need the GET stream — so Connect
// itself always succeeds; push-stream errors are logged.
func (t *Transport) Connect(ctx context.Context) error {
	pushCtx, cancel := context.WithCancel(context.Background())
	t.mu.Lock()
	t.cancelPush = cancel
	t.mu.Unlock()

	t.liveness.Reset()
	go t.runPushStream(pushCtx)
	return nil
}

// runPushStream owns the push-GET reconnect loop and, per §4.2.2/§9, the
// liveness supervisor for it: each attempt runs under its own cancelable
// context so inactivity can force an early reconnect, and
// max_ping_failures/max_reconnect_attempts are tracked on t.liveness for
// the whole runPushStream lifetime, cleared only by the next Connect.
func (t *Transport) runPushStream(ctx context.Context) {
	backoff := httpbase.ReconnectConfig()
	attempt := 0

	for {
		attemptCtx, cancelAttempt := context.WithCancel(ctx)
		monitorDone := make(chan struct{})
		go t.runLivenessMonitor(attemptCtx, cancelAttempt, monitorDone)

		err := t.openPushStream(attemptCtx)
		cancelAttempt()
		<-monitorDone

		if ctx.Err() != nil {
			return
		}
		if err != nil && t.Logger != nil {
			t.Logger.Debugf("streamable transport: push stream unavailable: %v", err)
		}

		if attempt > 0 {
			if exceeded := t.liveness.RecordReconnectAttempt(); exceeded {
				t.liveness.MarkDead(fmt.Errorf("streamable transport: exceeded max reconnect attempts: %w", err))
				if t.Logger != nil {
					t.Logger.Warnf("streamable transport: giving up on push stream after repeated reconnect failures")
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

// runLivenessMonitor mirrors the sse transport's supervisor: it forces a
// reconnect outright past close_after, and short of that sends a
// transport-level ping once the push stream has been quiet for
// PingInterval, counting failures toward max_ping_failures.
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
					t.Logger.Warnf("streamable transport: no push stream activity for close_after, forcing reconnect")
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
						t.Logger.Warnf("streamable transport: exceeded max ping failures, forcing reconnect: %v", err)
					}
					forceReconnect()
					return
				}
				if t.Logger != nil {
					t.Logger.Warnf("streamable transport: inactivity ping failed: %v", err)
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

func (t *Transport) openPushStream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("User-Agent", t.Client.UserAgent)

	t.mu.Lock()
	if t.sessionID != "" {
		req.Header.Set(sessionIDHeader, t.sessionID)
	}
	if t.lastEventID != "" {
		req.Header.Set("Last-Event-ID", t.lastEventID)
	}
	t.mu.Unlock()

	resp, err := t.Client.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return fmt.Errorf("server does not support the GET push stream (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push stream returned status %d", resp.StatusCode)
	}

	return t.consumeSSE(ctx, resp.Body, func(msg *protocol.Message) {
		t.mu.Lock()
		d := t.dispatcher
		t.mu.Unlock()
		if d != nil {
			d.Dispatch(msg)
		}
	})
}

// consumeSSE reads an SSE body, invoking onMessage for every "message"
// event (the only event type this transport's server side emits besides
// blank keepalive comments).
func (t *Transport) consumeSSE(ctx context.Context, body interface {
	Read([]byte) (int, error)
}, onMessage func(*protocol.Message)) error {
	reader := bufio.NewReader(body)
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			return
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		var msg protocol.Message
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			if t.Logger != nil {
				t.Logger.Warnf("streamable transport: dropping unparseable event: %v", err)
			}
			return
		}
		onMessage(&msg)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := reader.ReadString('\n')
		if err != nil {
			flush()
			return err
		}
		t.liveness.Touch()
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "id:"):
			t.mu.Lock()
			t.lastEventID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
			t.mu.Unlock()
		}
	}
}

// Deliver POSTs msg. A JSON response body is parsed and returned
// synchronously; an SSE response body's first "message" event is treated
// as the synchronous answer and any further events on that same response
// are forwarded to the Dispatcher (mid-call progress notifications).
// Deliver runs independently of the optional push GET stream's liveness
// supervisor: per Connect's doc comment, some servers never use the push
// stream at all, so its supervisor giving up must not block the primary
// request/response path.
func (t *Transport) Deliver(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, protocol.NewTransportError(t.URL, err)
	}

	resp, data, err := t.Client.Do(ctx, func() (*http.Request, error) {
		req, reqErr := t.Client.NewRequest(ctx, http.MethodPost, t.URL, body)
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
		t.mu.Lock()
		if t.sessionID != "" {
			req.Header.Set(sessionIDHeader, t.sessionID)
		}
		t.mu.Unlock()
		return req, nil
	})
	if err != nil {
		return nil, protocol.NewTransportError(t.URL, err)
	}

	if sid := resp.Header.Get(sessionIDHeader); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	if resp.StatusCode >= 300 {
		return nil, protocol.NewTransportError(t.URL, fmt.Errorf("server returned status %d", resp.StatusCode))
	}

	if !msg.IsRequest() || len(data) == 0 {
		return nil, nil
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/event-stream") {
		var first *protocol.Message
		err := t.consumeSSE(ctx, strings.NewReader(string(data)), func(m *protocol.Message) {
			if first == nil {
				first = m
				return
			}
			t.mu.Lock()
			d := t.dispatcher
			t.mu.Unlock()
			if d != nil {
				d.Dispatch(m)
			}
		})
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, protocol.NewTransportError(t.URL, err)
		}
		return first, nil
	}

	var respMsg protocol.Message
	if err := json.Unmarshal(data, &respMsg); err != nil {
		return nil, protocol.NewTransportError(t.URL, fmt.Errorf("decode response: %w", err))
	}
	return &respMsg, nil
}

// Close stops the push stream. Safe to call more than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancelPush
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}
