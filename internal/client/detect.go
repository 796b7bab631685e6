// Package client is the multi-server MCP facade: it auto-detects and
// connects to one or more configured servers, aggregates their tool,
// prompt, and resource catalogs behind a single namespace, and routes
// calls back to the owning server. Session-level protocol concerns
// (handshake, correlation, keepalive) live in internal/session; this
// package is purely about fan-out across servers and disambiguation.
package client

import (
	"fmt"
	"strings"

	"github.com/mcpgo/mcpgo/internal/config"
)

// stdioExecutables are the command names that, when seen as the first
// element of a target vector (or as a bare target string), imply stdio
// even though they aren't themselves a URL scheme.
var stdioExecutables = map[string]bool{
	"npx": true, "node": true, "python": true, "python3": true,
	"ruby": true, "php": true, "java": true, "cargo": true, "go": true,
}

// isLikelyExecutable reports whether name matches the known stdio
// launcher executables, per §4.6.1.
func isLikelyExecutable(name string) bool {
	return stdioExecutables[name]
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DetectTransport resolves the transport to use for cfg. An explicit
// Type always wins. Otherwise a Command implies stdio (including when
// the command itself is one of the known executable launchers, or the
// full command vector contains no URL), and a URL is inspected: a
// "stdio://" scheme forces stdio, a path ending in "/sse" is the legacy
// HTTP+SSE transport, a path ending in "/mcp" is the modern streamable
// HTTP transport. Any other HTTP(S) URL is ambiguous and returned as
// TransportStreamableHTTP provisionally — callers that want the full
// probe-fallback order (streamable, then SSE, then plain HTTP) should
// check NeedsProbe and use ProbeOrder instead of connecting directly.
// This is a pure function so the detection rules can be tested without
// opening a connection.
func DetectTransport(cfg config.ServerConfig) (config.TransportType, error) {
	if cfg.Type != config.TransportAuto {
		return cfg.Type, nil
	}

	if cfg.Command != "" {
		return config.TransportStdio, nil
	}

	if cfg.URL != "" {
		if strings.HasPrefix(cfg.URL, "stdio://") {
			return config.TransportStdio, nil
		}
		if !isHTTPURL(cfg.URL) && isLikelyExecutable(cfg.URL) {
			return config.TransportStdio, nil
		}

		path := cfg.URL
		if idx := strings.IndexAny(path, "?#"); idx >= 0 {
			path = path[:idx]
		}
		if strings.HasSuffix(path, "/sse") {
			return config.TransportSSE, nil
		}
		if strings.HasSuffix(path, "/mcp") {
			return config.TransportStreamableHTTP, nil
		}
		return config.TransportStreamableHTTP, nil
	}

	return config.TransportAuto, fmt.Errorf("server %q has neither a command nor a url, cannot detect a transport", cfg.Name)
}

// NeedsProbe reports whether cfg's URL was ambiguous under §4.6.1: an
// HTTP(S) URL with no explicit type and no "/sse" or "/mcp" suffix to
// pin down the transport unambiguously. Such servers should be tried
// in ProbeOrder rather than connected via DetectTransport's single
// provisional guess.
func NeedsProbe(cfg config.ServerConfig) bool {
	if cfg.Type != config.TransportAuto || cfg.Command != "" || cfg.URL == "" {
		return false
	}
	if strings.HasPrefix(cfg.URL, "stdio://") || (!isHTTPURL(cfg.URL) && isLikelyExecutable(cfg.URL)) {
		return false
	}
	path := cfg.URL
	if idx := strings.IndexAny(path, "?#"); idx >= 0 {
		path = path[:idx]
	}
	return !strings.HasSuffix(path, "/sse") && !strings.HasSuffix(path, "/mcp")
}

// ProbeOrder is the transport trial order for an ambiguous HTTP(S) URL,
// per §4.6.1: streamable HTTP first (the modern default), then the
// legacy SSE transport, then plain unary HTTP.
func ProbeOrder() []config.TransportType {
	return []config.TransportType{
		config.TransportStreamableHTTP,
		config.TransportSSE,
		config.TransportHTTP,
	}
}
