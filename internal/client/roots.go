package client

import (
	"context"

	"github.com/mcpgo/mcpgo/internal/protocol"
)

// SetRoots replaces the client's declared root set and notifies every
// connected server via notifications/roots/list_changed, so servers that
// already called roots/list know to ask again.
func (c *Client) SetRoots(ctx context.Context, roots []protocol.Root) {
	c.mu.Lock()
	c.roots = append([]protocol.Root(nil), roots...)
	servers := append([]*ServerConnection(nil), c.servers...)
	c.mu.Unlock()

	for _, s := range servers {
		s.Session.Notify(ctx, "notifications/roots/list_changed", nil)
	}
}

// Roots returns the client's current declared root set.
func (c *Client) Roots() []protocol.Root {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]protocol.Root(nil), c.roots...)
}
