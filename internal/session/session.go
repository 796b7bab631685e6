// Package session implements the JSON-RPC session state machine layered
// on top of any transport.Transport: request ID allocation, request/
// response correlation, the initialize handshake and protocol-version
// negotiation, ping/pong keepalive, inbound notification and
// server-request dispatch, and reconnect. This is the one place
// correlation logic lives — every back end only has to move bytes.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
)

// InboundRequestHandler answers a server-initiated request (elicitation,
// roots/list, sampling). Returning a non-nil rpcErr sends a JSON-RPC
// error response instead of result.
type InboundRequestHandler func(ctx context.Context, params json.RawMessage) (result any, rpcErr *protocol.RPCError)

// NotificationHandler observes an inbound notification. Handlers run
// synchronously on the transport's reader goroutine in arrival order, so
// they must return quickly; anything that blocks on user I/O belongs in
// an InboundRequestHandler instead, which is dispatched on its own
// goroutine.
type NotificationHandler func(ctx context.Context, method string, params json.RawMessage)

// Session is safe for concurrent use: Request/Notify may be called from
// many goroutines at once, and Dispatch is invoked by the transport's own
// reader goroutine.
type Session struct {
	ServerName string

	transport transport.Transport
	logger    *logging.Logger

	ids     idAllocator
	pending *pendingTable

	readTimeout time.Duration

	mu              sync.RWMutex
	initialized     bool
	protocolVersion string
	serverInfo      Implementation
	serverCaps      ServerCapabilities

	elicitationHandler InboundRequestHandler
	rootsListHandler   InboundRequestHandler
	samplingHandler    InboundRequestHandler
	notificationMu     sync.Mutex
	notificationHandlers []NotificationHandler
}

// New wraps t in a Session identified by serverName in logs and errors.
func New(serverName string, t transport.Transport, logger *logging.Logger) *Session {
	s := &Session{
		ServerName:  serverName,
		transport:   t,
		logger:      logger,
		pending:     newPendingTable(),
		readTimeout: 30 * time.Second,
	}
	t.SetDispatcher(s)
	return s
}

// SetReadTimeout overrides the default 30s wait for a response before a
// Request call gives up.
func (s *Session) SetReadTimeout(d time.Duration) { s.readTimeout = d }

// OnNotification registers h to observe every inbound notification,
// including ones the facade already handles by default (cache
// invalidation, logging-level changes) — handlers are additive.
func (s *Session) OnNotification(h NotificationHandler) {
	s.notificationMu.Lock()
	defer s.notificationMu.Unlock()
	s.notificationHandlers = append(s.notificationHandlers, h)
}

// OnElicitationRequest registers the handler for server-initiated
// elicitation/create requests. Calling it with a non-nil handler is what
// causes Initialize to advertise the elicitation capability.
func (s *Session) OnElicitationRequest(h InboundRequestHandler) { s.elicitationHandler = h }

// OnRootsListRequest registers the handler for server-initiated
// roots/list requests.
func (s *Session) OnRootsListRequest(h InboundRequestHandler) { s.rootsListHandler = h }

// OnSamplingRequest registers the handler for server-initiated
// sampling/createMessage requests.
func (s *Session) OnSamplingRequest(h InboundRequestHandler) { s.samplingHandler = h }

// Connect establishes the underlying transport. Initialize must be
// called afterward before any other request.
func (s *Session) Connect(ctx context.Context) error {
	return s.transport.Connect(ctx)
}

// Initialize performs the initialize handshake: sends the client's
// protocol version and capabilities, negotiates a version with the
// server, then sends the mandatory notifications/initialized. No request
// other than initialize may be sent before this returns successfully.
func (s *Session) Initialize(ctx context.Context, clientInfo Implementation) (*InitializeResult, error) {
	caps := ClientCapabilities{}
	if s.elicitationHandler != nil {
		caps.Elicitation = &struct{}{}
	}
	if s.rootsListHandler != nil {
		caps.Roots = &RootsCapability{ListChanged: true}
	}
	if s.samplingHandler != nil {
		caps.Sampling = &struct{}{}
	}

	params := initializeParams{
		ProtocolVersion: protocol.ProtocolVersionLatest,
		Capabilities:    caps,
		ClientInfo:      clientInfo,
	}

	raw, err := s.Request(ctx, "initialize", params)
	if err != nil {
		return nil, err
	}

	var result InitializeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, protocol.NewConnectionError(s.ServerName, fmt.Errorf("decode initialize result: %w", err))
	}

	negotiated := negotiateVersion(result.ProtocolVersion, protocol.SupportedProtocolVersions)

	if err := s.Notify(ctx, "notifications/initialized", nil); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.initialized = true
	s.protocolVersion = negotiated
	s.serverInfo = result.ServerInfo
	s.serverCaps = result.Capabilities
	s.mu.Unlock()

	return &result, nil
}

// ProtocolVersion returns the negotiated version, or "" before Initialize
// completes.
func (s *Session) ProtocolVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.protocolVersion
}

// ServerCapabilities returns the server's declared capabilities from the
// initialize response.
func (s *Session) ServerCapabilities() ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverCaps
}

// Request sends method with params and blocks for the matching response.
// Every call other than "initialize" fails with a ConnectionError until
// Initialize has completed.
func (s *Session) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.RLock()
	ready := s.initialized || method == "initialize"
	s.mu.RUnlock()
	if !ready {
		return nil, protocol.NewConnectionError(s.ServerName, fmt.Errorf("session not initialized"))
	}

	id := s.ids.Next()
	msg, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, protocol.NewValidationError("encode %s params: %v", method, err)
	}

	ch := s.pending.Register(id)
	resp, err := s.transport.Deliver(ctx, msg)
	if err != nil {
		s.pending.Cancel(id)
		return nil, protocol.NewTransportError(s.ServerName, err)
	}

	if resp == nil {
		select {
		case resp = <-ch:
		case <-time.After(s.readTimeout):
			s.pending.Cancel(id)
			return nil, protocol.NewConnectionError(s.ServerName, fmt.Errorf("timed out waiting for %s response", method))
		case <-ctx.Done():
			s.pending.Cancel(id)
			return nil, ctx.Err()
		}
	} else {
		s.pending.Cancel(id)
	}

	if resp.Error != nil {
		return nil, protocol.NewServerError(s.ServerName, resp.Error)
	}
	return resp.Result, nil
}

// Notify sends a fire-and-forget notification; there is no response to
// wait for.
func (s *Session) Notify(ctx context.Context, method string, params any) error {
	msg, err := protocol.NewNotification(method, params)
	if err != nil {
		return protocol.NewValidationError("encode %s params: %v", method, err)
	}
	if _, err := s.transport.Deliver(ctx, msg); err != nil {
		return protocol.NewTransportError(s.ServerName, err)
	}
	return nil
}

// Dispatch implements transport.Dispatcher. It is invoked by the
// transport's reader with every message that wasn't the direct answer to
// a round-trip Deliver call.
func (s *Session) Dispatch(msg *protocol.Message) {
	ctx := context.Background()

	switch {
	case msg.IsResponse():
		var id int64
		if err := json.Unmarshal(msg.ID, &id); err != nil {
			if s.logger != nil {
				s.logger.Warnf("session %s: response with non-numeric id %s dropped", s.ServerName, msg.ID)
			}
			return
		}
		if !s.pending.Resolve(id, msg) {
			if s.logger != nil {
				s.logger.Warnf("session %s: response for id %d has no waiter, dropping", s.ServerName, id)
			}
		}

	case msg.IsRequest():
		s.handleInboundRequest(ctx, msg)

	case msg.IsNotification():
		s.handleNotification(ctx, msg)

	default:
		if s.logger != nil {
			s.logger.Warnf("session %s: message matched no known shape, dropping", s.ServerName)
		}
	}
}

func (s *Session) handleInboundRequest(ctx context.Context, msg *protocol.Message) {
	if msg.Method == "ping" {
		resp, _ := protocol.NewResultResponse(msg.ID, map[string]any{})
		s.transport.Deliver(ctx, resp)
		return
	}

	handler := s.handlerFor(msg.Method)
	if handler == nil {
		resp := protocol.NewErrorResponse(msg.ID, protocol.ErrCodeMethodNotFound, fmt.Sprintf("no handler registered for %s", msg.Method), nil)
		s.transport.Deliver(ctx, resp)
		return
	}

	// Handlers may block on user I/O (a form, an approval prompt); run
	// them off the reader goroutine so the transport keeps draining.
	go func() {
		result, rpcErr := handler(ctx, msg.Params)
		var resp *protocol.Message
		if rpcErr != nil {
			resp = protocol.NewErrorResponse(msg.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		} else {
			var err error
			resp, err = protocol.NewResultResponse(msg.ID, result)
			if err != nil {
				resp = protocol.NewErrorResponse(msg.ID, protocol.ErrCodeInternalError, err.Error(), nil)
			}
		}
		if _, err := s.transport.Deliver(ctx, resp); err != nil && s.logger != nil {
			s.logger.Warnf("session %s: failed to deliver response to %s: %v", s.ServerName, msg.Method, err)
		}
	}()
}

func (s *Session) handlerFor(method string) InboundRequestHandler {
	switch method {
	case "elicitation/create":
		return s.elicitationHandler
	case "roots/list":
		return s.rootsListHandler
	case "sampling/createMessage":
		return s.samplingHandler
	default:
		return nil
	}
}

func (s *Session) handleNotification(ctx context.Context, msg *protocol.Message) {
	s.notificationMu.Lock()
	handlers := append([]NotificationHandler(nil), s.notificationHandlers...)
	s.notificationMu.Unlock()

	for _, h := range handlers {
		h(ctx, msg.Method, msg.Params)
	}
}

// Reconnect swaps in a freshly connected transport while preserving the
// negotiated protocol version and the id allocator's position, so
// in-flight callers get a clean terminal error instead of hanging and a
// subsequent request never reuses an id from before the reconnect. The
// caller must have already connected newTransport.
func (s *Session) Reconnect(newTransport transport.Transport) {
	s.pending.DrainWithError(fmt.Errorf("session %s: reconnecting", s.ServerName))
	newTransport.SetDispatcher(s)
	s.transport = newTransport
}

// Close tears down the underlying transport.
func (s *Session) Close() error {
	s.pending.DrainWithError(fmt.Errorf("session %s: closed", s.ServerName))
	return s.transport.Close()
}
