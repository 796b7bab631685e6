package client

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/mcpgo/mcpgo/internal/protocol"
	"github.com/mcpgo/mcpgo/internal/schema"
)

// ElicitationHandler answers an elicitation/create request: given the
// message and the (flat-shaped) requested schema, it returns the user's
// action ("accept", "decline", or "cancel") and, for "accept", the
// content matching schema.
//
// Any function value of one of these shapes is accepted and adapted by
// reflection, so callers can write the signature that fits their use
// case without wrapping it themselves:
//
//	func() (string, map[string]any, error)
//	func(message string) (string, map[string]any, error)
//	func(message string, schema map[string]any) (string, map[string]any, error)
//	func(ctx context.Context, message string, schema map[string]any) (string, map[string]any, error)
type ElicitationHandler any

// RootsHandler answers a roots/list request with the client's current
// root set. Accepted shapes:
//
//	func() ([]protocol.Root, error)
//	func(ctx context.Context) ([]protocol.Root, error)
type RootsHandler any

// SamplingHandler answers a sampling/createMessage request. Accepted
// shapes:
//
//	func(params map[string]any) (map[string]any, error)
//	func(ctx context.Context, params map[string]any) (map[string]any, error)
type SamplingHandler any

// OnElicitation registers the handler used to answer server-initiated
// elicitation requests from any connected server.
func (c *Client) OnElicitation(h ElicitationHandler) { c.elicitationHandler = h }

// OnRootsList registers the handler used to answer roots/list requests.
func (c *Client) OnRootsList(h RootsHandler) { c.rootsHandler = h }

// OnSampling registers the handler used to answer sampling/createMessage
// requests.
func (c *Client) OnSampling(h SamplingHandler) { c.samplingHandler = h }

// OnNotification registers a callback invoked for every notification
// from any connected server, after default handling (cache invalidation,
// logging-level mapping) runs.
func (c *Client) OnNotification(h func(server, method string, params []byte)) {
	c.notificationHandler = h
}

func (c *Client) wireHandlers(conn *ServerConnection) {
	conn.Session.OnElicitationRequest(func(ctx context.Context, params json.RawMessage) (any, *protocol.RPCError) {
		return c.dispatchElicitation(ctx, conn, params)
	})
	conn.Session.OnRootsListRequest(func(ctx context.Context, params json.RawMessage) (any, *protocol.RPCError) {
		return c.dispatchRootsList(ctx)
	})
	conn.Session.OnSamplingRequest(func(ctx context.Context, params json.RawMessage) (any, *protocol.RPCError) {
		return c.dispatchSampling(ctx, params)
	})
	conn.Session.OnNotification(func(ctx context.Context, method string, params json.RawMessage) {
		c.handleNotification(conn, method, params)
	})
}

type elicitationParams struct {
	Message         string          `json:"message"`
	RequestedSchema json.RawMessage `json:"requestedSchema"`
}

func (c *Client) dispatchElicitation(ctx context.Context, conn *ServerConnection, raw json.RawMessage) (any, *protocol.RPCError) {
	if c.elicitationHandler == nil {
		return map[string]any{"action": "decline"}, nil
	}

	var p elicitationParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInvalidParams, Message: err.Error()}
	}
	if err := schema.ValidateFlatShape(p.RequestedSchema); err != nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInvalidParams, Message: err.Error()}
	}

	var schemaMap map[string]any
	json.Unmarshal(p.RequestedSchema, &schemaMap)

	action, content, err := invokeElicitationHandler(ctx, c.elicitationHandler, conn.Name, p.Message, schemaMap)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warnf("server %s: elicitation handler error, declining: %v", conn.Name, err)
		}
		return map[string]any{"action": "decline"}, nil
	}

	switch action {
	case "accept":
		if v, verr := schema.Compile(p.RequestedSchema); verr == nil {
			if verr := v.Validate(content); verr != nil && c.Logger != nil {
				c.Logger.Warnf("server %s: elicitation response failed schema validation: %v", conn.Name, verr)
			}
		}
		return map[string]any{"action": "accept", "content": content}, nil
	case "decline", "cancel":
		return map[string]any{"action": action}, nil
	default:
		if c.Logger != nil {
			c.Logger.Warnf("server %s: elicitation handler returned unknown action %q, treating as accept", conn.Name, action)
		}
		return map[string]any{"action": "accept", "content": content}, nil
	}
}

func (c *Client) dispatchRootsList(ctx context.Context) (any, *protocol.RPCError) {
	var roots []protocol.Root
	var err error
	if c.rootsHandler != nil {
		roots, err = invokeRootsHandler(ctx, c.rootsHandler)
	} else {
		c.mu.RLock()
		roots = append([]protocol.Root(nil), c.roots...)
		c.mu.RUnlock()
	}
	if err != nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInternalError, Message: err.Error()}
	}
	if roots == nil {
		roots = []protocol.Root{}
	}
	return map[string]any{"roots": roots}, nil
}

func (c *Client) dispatchSampling(ctx context.Context, raw json.RawMessage) (any, *protocol.RPCError) {
	if c.samplingHandler == nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeMethodNotFound, Message: "client does not support sampling"}
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInvalidParams, Message: err.Error()}
	}
	result, err := invokeSamplingHandler(ctx, c.samplingHandler, normalizeSamplingParams(params))
	if err != nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInternalError, Message: err.Error()}
	}
	if result == nil {
		return nil, &protocol.RPCError{Code: protocol.ErrCodeInternalError, Message: "sampling handler returned no result"}
	}
	return normalizeSamplingResult(result), nil
}

// --- reflection adapters ---

var (
	ctxType    = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType    = reflect.TypeOf((*error)(nil)).Elem()
	stringType = reflect.TypeOf("")
	mapType    = reflect.TypeOf(map[string]any{})
)

func invokeElicitationHandler(ctx context.Context, h ElicitationHandler, server, message string, schemaMap map[string]any) (string, map[string]any, error) {
	v := reflect.ValueOf(h)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return "", nil, fmt.Errorf("elicitation handler must be a function, got %T", h)
	}

	args := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		switch t.In(i) {
		case ctxType:
			args = append(args, reflect.ValueOf(ctx))
		case stringType:
			args = append(args, reflect.ValueOf(message))
		case mapType:
			args = append(args, reflect.ValueOf(schemaMap))
		default:
			return "", nil, fmt.Errorf("elicitation handler has unsupported parameter type %s", t.In(i))
		}
	}

	out := v.Call(args)
	return extractActionContentError(out)
}

func extractActionContentError(out []reflect.Value) (string, map[string]any, error) {
	var action string
	var content map[string]any
	var err error
	for _, o := range out {
		switch {
		case o.Type() == stringType:
			action = o.String()
		case o.Type() == mapType:
			if !o.IsNil() {
				content = o.Interface().(map[string]any)
			}
		case o.Type().Implements(errType):
			if !o.IsNil() {
				err = o.Interface().(error)
			}
		}
	}
	if action == "" && err == nil {
		action = "accept"
	}
	return action, content, err
}

func invokeRootsHandler(ctx context.Context, h RootsHandler) ([]protocol.Root, error) {
	v := reflect.ValueOf(h)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("roots handler must be a function, got %T", h)
	}

	args := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		if t.In(i) == ctxType {
			args = append(args, reflect.ValueOf(ctx))
			continue
		}
		return nil, fmt.Errorf("roots handler has unsupported parameter type %s", t.In(i))
	}

	out := v.Call(args)
	var roots []protocol.Root
	var err error
	for _, o := range out {
		switch {
		case o.Type().Implements(errType):
			if !o.IsNil() {
				err = o.Interface().(error)
			}
		default:
			if rs, ok := o.Interface().([]protocol.Root); ok {
				roots = rs
			}
		}
	}
	return roots, err
}

func invokeSamplingHandler(ctx context.Context, h SamplingHandler, params map[string]any) (map[string]any, error) {
	v := reflect.ValueOf(h)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("sampling handler must be a function, got %T", h)
	}

	args := make([]reflect.Value, 0, t.NumIn())
	for i := 0; i < t.NumIn(); i++ {
		switch t.In(i) {
		case ctxType:
			args = append(args, reflect.ValueOf(ctx))
		case mapType:
			args = append(args, reflect.ValueOf(params))
		default:
			return nil, fmt.Errorf("sampling handler has unsupported parameter type %s", t.In(i))
		}
	}

	out := v.Call(args)
	var result map[string]any
	var err error
	for _, o := range out {
		switch {
		case o.Type() == mapType:
			if !o.IsNil() {
				result = o.Interface().(map[string]any)
			}
		case o.Type().Implements(errType):
			if !o.IsNil() {
				err = o.Interface().(error)
			}
		}
	}
	return result, err
}
