package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/schema"
)

// ServerSelector disambiguates which connected server a call_tool,
// get_prompt, or read_resource should target when the name/uri alone
// matches more than one server. Name takes priority over Index; if
// neither is set, a unique match across all servers is required.
type ServerSelector struct {
	Name  string
	Index int // 1-based position in Client.Servers(); 0 means unset
}

func (c *Client) resolveSelector(sel ServerSelector) (*ServerConnection, error) {
	servers := c.Servers()
	if sel.Name != "" {
		for _, s := range servers {
			if s.Name == sel.Name {
				return s, nil
			}
		}
		return nil, protocol.NewServerNotFound(sel.Name)
	}
	if sel.Index > 0 {
		if sel.Index > len(servers) {
			return nil, protocol.NewServerNotFound(fmt.Sprintf("#%d", sel.Index))
		}
		return servers[sel.Index-1], nil
	}
	return nil, nil
}

// ListTools returns the merged tool catalog across every connected
// server, fetching and caching per server on first access. Per §4.6.2/§7,
// one server's failure does not abort the whole aggregation once at
// least one other server might still answer: only a first-server
// authorization failure (an OAuth-enabled server, with nothing collected
// yet) fast-fails; any later or non-auth failure is logged and skipped.
func (c *Client) ListTools(ctx context.Context) ([]protocol.Tool, error) {
	var all []protocol.Tool
	for i, s := range c.Servers() {
		tools, err := c.serverTools(ctx, s)
		if err != nil {
			if i == 0 && s.Config.OAuthEnabled {
				return nil, err
			}
			if c.Logger != nil {
				c.Logger.Warnf("server %s: tools/list failed, skipping: %v", s.Name, err)
			}
			continue
		}
		all = append(all, tools...)
	}
	return all, nil
}

func (c *Client) serverTools(ctx context.Context, s *ServerConnection) ([]protocol.Tool, error) {
	s.mu.RLock()
	cached := s.tools
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := s.Session.Request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Tools []json.RawMessage `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list response from %q: %w", s.Name, err)
	}

	tools := make([]protocol.Tool, 0, len(result.Tools))
	for _, toolRaw := range result.Tools {
		var t protocol.Tool
		if err := json.Unmarshal(toolRaw, &t); err != nil {
			return nil, fmt.Errorf("decode tool from %q: %w", s.Name, err)
		}
		if protocol.UsedLegacySchemaKey(toolRaw) && c.Logger != nil {
			c.Logger.Warnf(protocol.DeprecatedSchemaKeyWarning, t.Name)
		}
		t.Server = s.Name
		tools = append(tools, t)
	}

	s.mu.Lock()
	s.tools = tools
	s.mu.Unlock()
	return tools, nil
}

// findTool resolves name (optionally disambiguated by sel) to exactly
// one (server, tool) pair across every connected server's cached catalog.
func (c *Client) findTool(ctx context.Context, name string, sel ServerSelector) (*ServerConnection, protocol.Tool, error) {
	if target, err := c.resolveSelector(sel); err != nil {
		return nil, protocol.Tool{}, err
	} else if target != nil {
		tools, err := c.serverTools(ctx, target)
		if err != nil {
			return nil, protocol.Tool{}, err
		}
		for _, t := range tools {
			if t.Name == name {
				return target, t, nil
			}
		}
		return nil, protocol.Tool{}, protocol.NewToolNotFound(name)
	}

	var matches []*ServerConnection
	var matchedTool protocol.Tool
	var candidateNames []string
	for _, s := range c.Servers() {
		tools, err := c.serverTools(ctx, s)
		if err != nil {
			return nil, protocol.Tool{}, err
		}
		for _, t := range tools {
			if t.Name == name {
				matches = append(matches, s)
				matchedTool = t
				candidateNames = append(candidateNames, s.Name)
			}
		}
	}

	switch len(matches) {
	case 0:
		return nil, protocol.Tool{}, protocol.NewToolNotFound(name)
	case 1:
		return matches[0], matchedTool, nil
	default:
		return nil, protocol.Tool{}, protocol.NewAmbiguousToolName(name, candidateNames)
	}
}

// CallTool invokes tool name (optionally disambiguated by sel) with
// arguments, validating arguments against the tool's required parameters
// before dispatch.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, sel ServerSelector) (json.RawMessage, error) {
	srv, tool, err := c.findTool(ctx, name, sel)
	if err != nil {
		return nil, err
	}

	if tool.InputSchema != nil {
		schemaRaw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("marshal tool %q input schema: %w", name, err)
		}
		if err := schema.ValidateRequired(schemaRaw, arguments); err != nil {
			return nil, protocol.NewValidationError("tool %q: %v", name, err)
		}
	}

	params := map[string]any{"name": name, "arguments": arguments}
	raw, err := srv.Session.Request(ctx, "tools/call", params)
	if err != nil {
		return nil, protocol.NewToolCallError(srv.Name, name, err)
	}
	return raw, nil
}

// ListPrompts returns the merged prompt catalog across every connected
// server. See ListTools for the partial-failure policy.
func (c *Client) ListPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	var all []protocol.Prompt
	for i, s := range c.Servers() {
		prompts, err := c.serverPrompts(ctx, s)
		if err != nil {
			if i == 0 && s.Config.OAuthEnabled {
				return nil, err
			}
			if c.Logger != nil {
				c.Logger.Warnf("server %s: prompts/list failed, skipping: %v", s.Name, err)
			}
			continue
		}
		all = append(all, prompts...)
	}
	return all, nil
}

func (c *Client) serverPrompts(ctx context.Context, s *ServerConnection) ([]protocol.Prompt, error) {
	s.mu.RLock()
	cached := s.prompts
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := s.Session.Request(ctx, "prompts/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Prompts []protocol.Prompt `json:"prompts"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode prompts/list response from %q: %w", s.Name, err)
	}
	for i := range result.Prompts {
		result.Prompts[i].Server = s.Name
	}

	s.mu.Lock()
	s.prompts = result.Prompts
	s.mu.Unlock()
	return result.Prompts, nil
}

// GetPrompt resolves name (optionally disambiguated by sel) and fetches
// it with arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments map[string]any, sel ServerSelector) (json.RawMessage, error) {
	target, err := c.resolveSelector(sel)
	if err != nil {
		return nil, err
	}

	var candidates []*ServerConnection
	if target != nil {
		candidates = []*ServerConnection{target}
	} else {
		candidates = c.Servers()
	}

	var owner *ServerConnection
	var candidateNames []string
	for _, s := range candidates {
		prompts, err := c.serverPrompts(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, p := range prompts {
			if p.Name == name {
				owner = s
				candidateNames = append(candidateNames, s.Name)
			}
		}
	}
	if owner == nil {
		return nil, protocol.NewPromptNotFound(name)
	}
	if len(candidateNames) > 1 {
		return nil, protocol.NewAmbiguousPromptName(name, candidateNames)
	}

	params := map[string]any{"name": name, "arguments": arguments}
	raw, err := owner.Session.Request(ctx, "prompts/get", params)
	if err != nil {
		return nil, protocol.NewPromptGetError(owner.Name, name, err)
	}
	return raw, nil
}

// ListResources returns the merged resource catalog across every
// connected server. See ListTools for the partial-failure policy.
func (c *Client) ListResources(ctx context.Context) ([]protocol.Resource, error) {
	var all []protocol.Resource
	for i, s := range c.Servers() {
		resources, err := c.serverResources(ctx, s)
		if err != nil {
			if i == 0 && s.Config.OAuthEnabled {
				return nil, err
			}
			if c.Logger != nil {
				c.Logger.Warnf("server %s: resources/list failed, skipping: %v", s.Name, err)
			}
			continue
		}
		all = append(all, resources...)
	}
	return all, nil
}

func (c *Client) serverResources(ctx context.Context, s *ServerConnection) ([]protocol.Resource, error) {
	s.mu.RLock()
	cached := s.resources
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	raw, err := s.Session.Request(ctx, "resources/list", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Resources []protocol.Resource `json:"resources"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode resources/list response from %q: %w", s.Name, err)
	}
	for i := range result.Resources {
		result.Resources[i].Server = s.Name
	}

	s.mu.Lock()
	s.resources = result.Resources
	s.mu.Unlock()
	return result.Resources, nil
}

// ReadResource resolves uri (optionally disambiguated by sel) and reads
// it.
func (c *Client) ReadResource(ctx context.Context, uri string, sel ServerSelector) (json.RawMessage, error) {
	target, err := c.resolveSelector(sel)
	if err != nil {
		return nil, err
	}

	var candidates []*ServerConnection
	if target != nil {
		candidates = []*ServerConnection{target}
	} else {
		candidates = c.Servers()
	}

	var owner *ServerConnection
	var candidateNames []string
	for _, s := range candidates {
		resources, err := c.serverResources(ctx, s)
		if err != nil {
			return nil, err
		}
		for _, r := range resources {
			if r.URI == uri {
				owner = s
				candidateNames = append(candidateNames, s.Name)
			}
		}
	}
	if owner == nil {
		return nil, protocol.NewResourceNotFound(uri)
	}
	if len(candidateNames) > 1 {
		return nil, protocol.NewAmbiguousResourceURI(uri, candidateNames)
	}

	raw, err := owner.Session.Request(ctx, "resources/read", map[string]any{"uri": uri})
	if err != nil {
		return nil, protocol.NewResourceReadError(owner.Name, uri, err)
	}
	return raw, nil
}
