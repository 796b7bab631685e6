// Package transport defines the uniform contract every MCP back end
// (stdio, SSE, single-shot HTTP, streamable HTTP) implements, and hosts
// the shared HTTP plumbing (httpbase) the HTTP-based back ends compose
// rather than reimplement. The session layer (internal/session) is the
// one place request/response correlation lives; back ends only move
// framed messages.
package transport

import (
	"context"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

// Dispatcher receives every inbound message a Transport's reader observes
// that isn't the direct synchronous answer to a Deliver call: server
// notifications, server-initiated requests, and (for stream transports)
// the asynchronous response to an outstanding request. Implemented by
// *session.Session; kept as an interface here to avoid an import cycle
// between transport and session.
type Dispatcher interface {
	Dispatch(msg *protocol.Message)
}

// Transport is the contract every back end implements. Two shapes exist:
//
//   - stream: stdio, SSE, streamable HTTP. A persistent reader goroutine
//     feeds Dispatch for everything inbound, and Deliver returns
//     (nil, nil) once the bytes are written — the eventual response
//     arrives later via Dispatch. Streamable HTTP differs: its Deliver
//     returns the answer carried on the POST response directly.
//   - round-trip: single-shot HTTP. Deliver blocks for the matching HTTP
//     response body and returns it directly. SetDispatcher is a no-op:
//     this shape can never receive a server-initiated request.
type Transport interface {
	// Connect establishes the underlying channel and performs whatever
	// transport-specific setup precedes the MCP initialize handshake
	// (e.g. SSE's mandatory "endpoint" event). Not idempotent: a second
	// call starts the back end again (stdio spawns another child process,
	// SSE and streamable HTTP start another background stream reader).
	Connect(ctx context.Context) error

	// Deliver sends msg. See the shape distinction above for what the
	// return value means.
	Deliver(ctx context.Context, msg *protocol.Message) (*protocol.Message, error)

	// Close closes channels and stops background readers. Safe to call
	// more than once.
	Close() error

	// SetDispatcher registers the receiver of inbound messages observed
	// outside of a direct Deliver call.
	SetDispatcher(d Dispatcher)
}

// Shape distinguishes the two Transport behaviors described above.
type Shape int

const (
	ShapeStream Shape = iota
	ShapeRoundTrip
)

// Shaped is implemented by every back end in this module so callers don't
// have to infer shape from whether Deliver happens to return nil.
type Shaped interface {
	Shape() Shape
}

// SupportsServerRequests reports whether a transport can ever receive a
// server-initiated request (elicitation, roots/list, sampling). Only
// single-shot HTTP answers false: its response is exactly one JSON-RPC
// message with no channel left over for a callback.
func SupportsServerRequests(t Transport) bool {
	s, ok := t.(Shaped)
	if !ok {
		return true
	}
	return s.Shape() == ShapeStream
}
