package client

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpgo/mcpgo/internal/config"
	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/session"
	"github.com/mcpgo/mcpgo/internal/transport"
)

// fakeTransport drives a session entirely in-process against a handler
// function, the same pattern internal/session uses to test without a
// real wire.
type fakeTransport struct {
	mu         sync.Mutex
	dispatcher transport.Dispatcher
	server     func(msg *protocol.Message) *protocol.Message
}

func (f *fakeTransport) Connect(ctx context.Context) error { return nil }
func (f *fakeTransport) Close() error                      { return nil }
func (f *fakeTransport) SetDispatcher(d transport.Dispatcher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatcher = d
}
func (f *fakeTransport) Shape() transport.Shape { return transport.ShapeStream }

func (f *fakeTransport) Deliver(ctx context.Context, msg *protocol.Message) (*protocol.Message, error) {
	if msg.IsRequest() || msg.IsNotification() {
		go func() {
			if resp := f.server(msg); resp != nil {
				f.mu.Lock()
				d := f.dispatcher
				f.mu.Unlock()
				if d != nil {
					d.Dispatch(resp)
				}
			}
		}()
	}
	return nil, nil
}

// newTestServer wires up a connected, initialized ServerConnection whose
// responses come from respond, keyed by method name.
func newTestServer(t *testing.T, name string, respond map[string]func(msg *protocol.Message) any) *ServerConnection {
	t.Helper()
	ft := &fakeTransport{}
	ft.server = func(msg *protocol.Message) *protocol.Message {
		if msg.Method == "initialize" {
			result := session.InitializeResult{
				ProtocolVersion: protocol.ProtocolVersionLatest,
				ServerInfo:      session.Implementation{Name: name, Version: "1.0"},
			}
			resp, _ := protocol.NewResultResponse(msg.ID, result)
			return resp
		}
		if h, ok := respond[msg.Method]; ok {
			result := h(msg)
			resp, _ := protocol.NewResultResponse(msg.ID, result)
			return resp
		}
		return nil
	}

	sess := session.New(name, ft, nil)
	require.NoError(t, sess.Connect(context.Background()))
	_, err := sess.Initialize(context.Background(), session.Implementation{Name: "test-client", Version: "1.0"})
	require.NoError(t, err)
	return &ServerConnection{Name: name, Session: sess}
}

func TestListToolsAggregatesAcrossServers(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "add"}}}
		},
	})
	s2 := newTestServer(t, "beta", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "subtract"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "alpha", tools[0].Server)
	assert.Equal(t, "beta", tools[1].Server)
}

// newFailingToolsServer behaves like newTestServer, except tools/list
// answers with a JSON-RPC error instead of a result.
func newFailingToolsServer(t *testing.T, name string) *ServerConnection {
	t.Helper()
	ft := &fakeTransport{}
	ft.server = func(msg *protocol.Message) *protocol.Message {
		if msg.Method == "initialize" {
			result := session.InitializeResult{
				ProtocolVersion: protocol.ProtocolVersionLatest,
				ServerInfo:      session.Implementation{Name: name, Version: "1.0"},
			}
			resp, _ := protocol.NewResultResponse(msg.ID, result)
			return resp
		}
		if msg.Method == "tools/list" {
			return protocol.NewErrorResponse(msg.ID, -32000, "boom", nil)
		}
		return nil
	}

	sess := session.New(name, ft, nil)
	require.NoError(t, sess.Connect(context.Background()))
	_, err := sess.Initialize(context.Background(), session.Implementation{Name: "test-client", Version: "1.0"})
	require.NoError(t, err)
	return &ServerConnection{Name: name, Session: sess}
}

func TestListToolsSkipsFailingNonFirstServer(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "add"}}}
		},
	})
	s2 := newFailingToolsServer(t, "beta")

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err, "a later server's failure should be tolerated, not aborted")
	require.Len(t, tools, 1)
	assert.Equal(t, "alpha", tools[0].Server)
}

func TestListToolsFastFailsOnFirstOAuthServerFailure(t *testing.T) {
	s1 := newFailingToolsServer(t, "alpha")
	s1.Config = config.ServerConfig{Name: "alpha", OAuthEnabled: true}
	s2 := newTestServer(t, "beta", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "subtract"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	_, err := c.ListTools(context.Background())
	require.Error(t, err, "the first server's auth-class failure should fast-fail the whole aggregation")
}

func TestListToolsToleratesFirstServerNonOAuthFailure(t *testing.T) {
	s1 := newFailingToolsServer(t, "alpha")
	s2 := newTestServer(t, "beta", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "subtract"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err, "a non-oauth first server's failure should be tolerated")
	require.Len(t, tools, 1)
	assert.Equal(t, "beta", tools[0].Server)
}

func TestListToolsWarnsOnLegacySchemaKey(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []map[string]any{
				{"name": "legacy-tool", "schema": map[string]any{"type": "object"}},
			}}
		},
	})

	logger := logging.New("test", true)
	traceFile, err := logger.EnableTrace()
	require.NoError(t, err)
	defer os.Remove(traceFile)
	defer logger.DisableTrace()

	c := New("test-client", "1.0", logger)
	c.servers = []*ServerConnection{s1}

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, map[string]any{"type": "object"}, tools[0].InputSchema, "legacy schema key should still populate InputSchema")

	contents, err := os.ReadFile(traceFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(contents), "legacy-tool") && strings.Contains(string(contents), "deprecated"),
		"expected a deprecation warning for the legacy schema key, trace: %s", contents)
}

func TestListToolsCachesPerServer(t *testing.T) {
	calls := 0
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			calls++
			return map[string]any{"tools": []protocol.Tool{{Name: "add"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1}

	c.ListTools(context.Background())
	c.ListTools(context.Background())
	assert.Equal(t, 1, calls, "tools/list should be cached after the first call")
}

func TestCallToolValidatesRequiredArguments(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{
				Name: "add",
				InputSchema: map[string]any{
					"type":     "object",
					"required": []any{"a", "b"},
				},
			}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1}

	_, err := c.CallTool(context.Background(), "add", map[string]any{"a": 1}, ServerSelector{})
	require.Error(t, err, "expected a validation error for missing required argument b")
}

func TestCallToolAmbiguousAcrossServers(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "ping"}}}
		},
	})
	s2 := newTestServer(t, "beta", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "ping"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	_, err := c.CallTool(context.Background(), "ping", nil, ServerSelector{})
	require.Error(t, err)
	mcpErr, ok := err.(*protocol.MCPError)
	require.True(t, ok, "err should be a *protocol.MCPError")
	assert.Equal(t, protocol.KindAmbiguousToolName, mcpErr.Kind)
}

func TestCallToolDisambiguatedBySelector(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "ping"}}}
		},
		"tools/call": func(*protocol.Message) any {
			return map[string]any{"content": []any{map[string]any{"type": "text", "text": "alpha pong"}}}
		},
	})
	s2 := newTestServer(t, "beta", map[string]func(*protocol.Message) any{
		"tools/list": func(*protocol.Message) any {
			return map[string]any{"tools": []protocol.Tool{{Name: "ping"}}}
		},
		"tools/call": func(*protocol.Message) any {
			return map[string]any{"content": []any{map[string]any{"type": "text", "text": "beta pong"}}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1, s2}

	raw, err := c.CallTool(context.Background(), "ping", nil, ServerSelector{Name: "beta"})
	require.NoError(t, err)
	var decoded struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Content, 1)
	assert.Equal(t, "beta pong", decoded.Content[0].Text)
}

func TestReadResourceNotFound(t *testing.T) {
	s1 := newTestServer(t, "alpha", map[string]func(*protocol.Message) any{
		"resources/list": func(*protocol.Message) any {
			return map[string]any{"resources": []protocol.Resource{}}
		},
	})

	c := New("test-client", "1.0", nil)
	c.servers = []*ServerConnection{s1}

	_, err := c.ReadResource(context.Background(), "file:///missing", ServerSelector{})
	require.Error(t, err, "expected a not-found error")
}
