package config

import "strings"

// TransportType names one of the four MCP client transports. The zero
// value TransportAuto means the facade should infer it from the server's
// address, per the detection rules in internal/client.
type TransportType string

const (
	TransportAuto           TransportType = ""
	TransportStdio          TransportType = "stdio"
	TransportSSE            TransportType = "sse"
	TransportHTTP           TransportType = "http"
	TransportStreamableHTTP TransportType = "streamable_http"
)

// ServerConfig describes one MCP server this client can connect to.
type ServerConfig struct {
	Name string `mapstructure:"name"`

	Type TransportType `mapstructure:"type"`

	// stdio
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	Env     []string `mapstructure:"env"`

	// sse / http / streamable_http
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`

	// OAuth
	OAuthEnabled    bool     `mapstructure:"oauth_enabled"`
	OAuthScopes     string   `mapstructure:"oauth_scopes"`
	OAuthClientName string   `mapstructure:"oauth_client_name"`

	// ReadTimeoutSeconds overrides the session's default request timeout when
	// nonzero. In seconds.
	ReadTimeoutSeconds int `mapstructure:"read_timeout_seconds"`
}

// ParsedOAuthScopes splits OAuthScopes on commas, trimming whitespace and
// dropping empty entries.
func (s *ServerConfig) ParsedOAuthScopes() []string {
	if s.OAuthScopes == "" {
		return nil
	}
	var scopes []string
	for _, scope := range strings.Split(s.OAuthScopes, ",") {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// Config holds all configuration options for the MCP client.
type Config struct {
	Servers []ServerConfig `mapstructure:"servers"`

	// OAuthStorePath overrides the default cache location for persisted
	// OAuth tokens and client registrations.
	OAuthStorePath string `mapstructure:"oauth_store_path"`

	// Output and debugging
	Verbose bool `mapstructure:"verbose"`
	Debug   bool `mapstructure:"debug"`
	Trace   bool `mapstructure:"trace"`

	// FastFailAuth, when true, aborts connecting to every server as soon
	// as one fails authentication instead of tolerating the failure and
	// continuing with the servers that succeeded.
	FastFailAuth bool `mapstructure:"fast_fail_auth"`
}

// HasServers reports whether any server is configured.
func (c *Config) HasServers() bool {
	return len(c.Servers) > 0
}