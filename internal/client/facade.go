package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcpgo/mcpgo/internal/config"
	"github.com/mcpgo/mcpgo/internal/logging"
	"github.com/mcpgo/mcpgo/internal/oauth"
	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/session"
	"github.com/mcpgo/mcpgo/internal/transport"
	"github.com/mcpgo/mcpgo/internal/transport/httpbase"
	"github.com/mcpgo/mcpgo/internal/transport/httpc"
	"github.com/mcpgo/mcpgo/internal/transport/sse"
	"github.com/mcpgo/mcpgo/internal/transport/stdio"
	"github.com/mcpgo/mcpgo/internal/transport/streamable"
)

// ServerConnection is one connected MCP server: its config, its session,
// and the caches the facade keeps per server.
type ServerConnection struct {
	Name    string
	Config  config.ServerConfig
	Session *session.Session

	mu        sync.RWMutex
	tools     []protocol.Tool
	prompts   []protocol.Prompt
	resources []protocol.Resource
}

// Client aggregates one or more MCP server connections behind a single
// facade: tool/prompt/resource catalogs merge into one namespace, and
// calls are routed back to the owning server by server name or index.
type Client struct {
	ClientName    string
	ClientVersion string

	OAuthStore *oauth.Store
	Logger     *logging.Logger

	notificationHandler  func(server string, method string, params []byte)
	elicitationHandler   ElicitationHandler
	rootsHandler         RootsHandler
	samplingHandler      SamplingHandler
	roots                []protocol.Root

	mu      sync.RWMutex
	servers []*ServerConnection
}

// New returns an empty Client ready to have servers added via Connect.
func New(clientName, clientVersion string, logger *logging.Logger) *Client {
	return &Client{ClientName: clientName, ClientVersion: clientVersion, Logger: logger}
}

// ConnectResult reports the outcome of connecting to one configured
// server.
type ConnectResult struct {
	Server *ServerConnection
	Err    error
}

// ConnectAll connects to every server in cfgs. If fastFailAuth is true,
// the first authentication failure aborts the whole batch and returns
// immediately; otherwise failures are tolerated and every server that
// did connect is still usable, with failures reported in the results.
func (c *Client) ConnectAll(ctx context.Context, cfgs []config.ServerConfig, fastFailAuth bool) ([]ConnectResult, error) {
	results := make([]ConnectResult, 0, len(cfgs))

	for _, cfg := range cfgs {
		conn, err := c.connectOne(ctx, cfg)
		results = append(results, ConnectResult{Server: conn, Err: err})

		// A failure to connect an OAuth-enabled server is treated as an
		// authentication failure for the fast-fail policy: discovery,
		// registration, and token acquisition dominate why such a server
		// would fail to connect at all.
		if err != nil && fastFailAuth && cfg.OAuthEnabled {
			return results, fmt.Errorf("server %q failed authentication, aborting remaining connections: %w", cfg.Name, err)
		}

		if err == nil {
			c.mu.Lock()
			c.servers = append(c.servers, conn)
			c.mu.Unlock()
		}
	}

	return results, nil
}

func (c *Client) connectOne(ctx context.Context, cfg config.ServerConfig) (*ServerConnection, error) {
	if NeedsProbe(cfg) {
		return c.connectByProbing(ctx, cfg)
	}

	transportType, err := DetectTransport(cfg)
	if err != nil {
		return nil, err
	}
	return c.connectWithTransport(ctx, cfg, transportType)
}

// connectByProbing implements §4.6.1's fallback for a URL that names no
// explicit transport and carries no "/sse" or "/mcp" suffix to pin one
// down: streamable HTTP, then SSE, then plain HTTP are each tried in
// turn, and the first to complete initialize wins. A failure to even
// connect is treated as that candidate being wrong for this server and
// the next is tried; a ServerError (a JSON-RPC error answer to
// initialize, so the connection itself worked) is assumed not to be a
// transport mismatch and surfaces immediately instead of being masked by
// trying more candidates.
func (c *Client) connectByProbing(ctx context.Context, cfg config.ServerConfig) (*ServerConnection, error) {
	var lastErr error
	for _, candidate := range ProbeOrder() {
		conn, err := c.connectWithTransport(ctx, cfg, candidate)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		var mcpErr *protocol.MCPError
		if errors.As(err, &mcpErr) && mcpErr.Kind == protocol.KindServerError {
			return nil, err
		}
		if c.Logger != nil {
			c.Logger.Debugf("server %q: probe as %s failed, trying next transport: %v", cfg.Name, candidate, err)
		}
	}
	return nil, fmt.Errorf("server %q: no transport in the probe order could connect: %w", cfg.Name, lastErr)
}

func (c *Client) connectWithTransport(ctx context.Context, cfg config.ServerConfig, transportType config.TransportType) (*ServerConnection, error) {
	t, err := c.buildTransport(cfg, transportType)
	if err != nil {
		return nil, err
	}

	sess := session.New(cfg.Name, t, c.Logger)
	if cfg.ReadTimeoutSeconds > 0 {
		sess.SetReadTimeout(time.Duration(cfg.ReadTimeoutSeconds) * time.Second)
	}

	conn := &ServerConnection{Name: cfg.Name, Config: cfg, Session: sess}
	c.wireHandlers(conn)

	if err := sess.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to server %q: %w", cfg.Name, err)
	}

	if _, err := sess.Initialize(ctx, session.Implementation{Name: c.ClientName, Version: c.ClientVersion}); err != nil {
		sess.Close()
		return nil, fmt.Errorf("initialize server %q: %w", cfg.Name, err)
	}

	return conn, nil
}

func (c *Client) buildTransport(cfg config.ServerConfig, transportType config.TransportType) (transport.Transport, error) {
	switch transportType {
	case config.TransportStdio:
		return stdio.New(cfg.Command, cfg.Args, cfg.Env, c.Logger), nil

	case config.TransportSSE, config.TransportHTTP, config.TransportStreamableHTTP:
		httpClient := httpbase.NewClient(30 * time.Second)
		for k, v := range cfg.Headers {
			if httpClient.ExtraHeaders == nil {
				httpClient.ExtraHeaders = map[string]string{}
			}
			httpClient.ExtraHeaders[k] = v
		}
		if cfg.OAuthEnabled {
			store := c.OAuthStore
			if store == nil {
				store, _ = oauth.NewStore("")
			}
			mgr, err := oauth.NewManager(cfg.URL, cfg.OAuthClientName, cfg.ParsedOAuthScopes(), nil, store, c.Logger)
			if err != nil {
				return nil, fmt.Errorf("configure oauth for server %q: %w", cfg.Name, err)
			}
			httpClient.TokenSource = mgr
		}

		switch transportType {
		case config.TransportSSE:
			return sse.New(cfg.URL, httpClient, c.Logger), nil
		case config.TransportHTTP:
			return httpc.New(cfg.URL, httpClient), nil
		default:
			return streamable.New(cfg.URL, httpClient, c.Logger), nil
		}

	default:
		return nil, fmt.Errorf("unsupported transport %q for server %q", transportType, cfg.Name)
	}
}

// Servers returns the currently connected servers.
func (c *Client) Servers() []*ServerConnection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*ServerConnection, len(c.servers))
	copy(out, c.servers)
	return out
}

// ServerByName looks up a connected server by its configured name.
func (c *Client) ServerByName(name string) (*ServerConnection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.servers {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Close shuts down every connected server's session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, s := range c.servers {
		if err := s.Session.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.servers = nil
	return firstErr
}
