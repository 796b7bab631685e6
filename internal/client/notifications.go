package client

import (
	"encoding/json"
)

// handleNotification applies default handling for server-initiated
// notifications before forwarding to the caller's own handler, if any:
// the *_list_changed family invalidates this server's cache so the next
// list call re-fetches, and notifications/message is mirrored to the
// facade's logger.
func (c *Client) handleNotification(conn *ServerConnection, method string, params json.RawMessage) {
	switch method {
	case "notifications/tools/list_changed":
		conn.mu.Lock()
		conn.tools = nil
		conn.mu.Unlock()

	case "notifications/prompts/list_changed":
		conn.mu.Lock()
		conn.prompts = nil
		conn.mu.Unlock()

	case "notifications/resources/list_changed":
		conn.mu.Lock()
		conn.resources = nil
		conn.mu.Unlock()

	case "notifications/resources/updated":
		c.handleResourceUpdated(conn, params)

	case "notifications/message":
		c.handleLogMessage(conn, params)
	}

	if c.notificationHandler != nil {
		c.notificationHandler(conn.Name, method, params)
	}
}

type resourceUpdatedParams struct {
	URI string `json:"uri"`
}

// handleResourceUpdated logs that a subscribed resource changed. The
// client doesn't track resource subscriptions itself; it just surfaces
// the notification so the caller's own handler (if any) can decide
// whether to re-read the resource.
func (c *Client) handleResourceUpdated(conn *ServerConnection, raw json.RawMessage) {
	if c.Logger == nil {
		return
	}
	var p resourceUpdatedParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	c.Logger.Debugf("[%s] resource updated: %s", conn.Name, p.URI)
}

type logMessageParams struct {
	Level  string `json:"level"`
	Logger string `json:"logger"`
	Data   any    `json:"data"`
}

// handleLogMessage maps an MCP logging level (the RFC 5424 severity
// names the spec reuses: debug, info, notice, warning, error, critical,
// alert, emergency) onto this client's two-level logger.
func (c *Client) handleLogMessage(conn *ServerConnection, raw json.RawMessage) {
	if c.Logger == nil {
		return
	}
	var p logMessageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}

	switch p.Level {
	case "debug", "info", "notice":
		c.Logger.Debugf("[%s] %s: %v", conn.Name, p.Logger, p.Data)
	default:
		c.Logger.Warnf("[%s] %s: %v", conn.Name, p.Logger, p.Data)
	}
}
