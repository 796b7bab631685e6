// Package httpc implements the single-shot HTTP transport: every
// JSON-RPC request is one POST, answered by exactly one JSON-RPC response
// in the HTTP response body. There is no persistent channel and no way
// for the server to initiate a request — SupportsServerRequests reports
// false for this back end.
package httpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/transport"
	"github.com/mcpgo/mcpgo/internal/transport/httpbase"
)

// Transport POSTs every message to URL and parses the response body as a
// single protocol.Message.
type Transport struct {
	URL    string
	Client *httpbase.Client
}

// New returns a Transport that POSTs to url.
func New(url string, client *httpbase.Client) *Transport {
	return &Transport{URL: url, Client: client}
}

func (t *Transport) Shape() transport.Shape { return transport.ShapeRoundTrip }

// SetDispatcher is a no-op: single-shot HTTP never receives a message
// outside of a direct Deliver response.
func (t *Transport) SetDispatcher(d transport.Dispatcher) {}

// Connect is a no-op: there is no persistent channel to establish.
func (t *Transport) Connect(ctx context.Context) error { return nil }

// Deliver POSTs msg and returns the parsed response body. Notifications
// (no id) still POST but the body, if any, is discarded: there's nothing
// to correlate a reply to.
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
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, protocol.NewTransportError(t.URL, err)
	}
	if resp.StatusCode >= 300 {
		return nil, protocol.NewTransportError(t.URL, fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(data)))
	}

	if !msg.IsRequest() || len(data) == 0 {
		return nil, nil
	}

	var respMsg protocol.Message
	if err := json.Unmarshal(data, &respMsg); err != nil {
		return nil, protocol.NewTransportError(t.URL, fmt.Errorf("decode response: %w", err))
	}
	return &respMsg, nil
}

// Close is a no-op: there is no persistent connection to tear down.
func (t *Transport) Close() error { return nil }
