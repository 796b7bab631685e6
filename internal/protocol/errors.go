package protocol

import "fmt"

// ErrorKind enumerates the error taxonomy of §4.1. Kinds, not type names:
// callers switch on Kind rather than asserting concrete Go types.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindToolNotFound
	KindPromptNotFound
	KindResourceNotFound
	KindServerNotFound
	KindToolCallError
	KindPromptGetError
	KindResourceReadError
	KindConnectionError
	KindServerError
	KindTransportError
	KindValidationError
	KindAmbiguousToolName
	KindAmbiguousPromptName
	KindAmbiguousResourceURI
	KindTransportDetectionError
	KindTaskNotFound
	KindTaskError
)

func (k ErrorKind) String() string {
	switch k {
	case KindToolNotFound:
		return "ToolNotFound"
	case KindPromptNotFound:
		return "PromptNotFound"
	case KindResourceNotFound:
		return "ResourceNotFound"
	case KindServerNotFound:
		return "ServerNotFound"
	case KindToolCallError:
		return "ToolCallError"
	case KindPromptGetError:
		return "PromptGetError"
	case KindResourceReadError:
		return "ResourceReadError"
	case KindConnectionError:
		return "ConnectionError"
	case KindServerError:
		return "ServerError"
	case KindTransportError:
		return "TransportError"
	case KindValidationError:
		return "ValidationError"
	case KindAmbiguousToolName:
		return "AmbiguousToolName"
	case KindAmbiguousPromptName:
		return "AmbiguousPromptName"
	case KindAmbiguousResourceURI:
		return "AmbiguousResourceURI"
	case KindTransportDetectionError:
		return "TransportDetectionError"
	case KindTaskNotFound:
		return "TaskNotFound"
	case KindTaskError:
		return "TaskError"
	default:
		return "Unknown"
	}
}

// MCPError is the single error type carrying a Kind, a message, the
// originating server identity (when relevant), candidate names (for the
// Ambiguous* kinds), and an optional wrapped cause.
type MCPError struct {
	Kind       ErrorKind
	Message    string
	Server     string
	Candidates []string
	Cause      error
}

func (e *MCPError) Error() string {
	msg := e.Message
	if e.Server != "" {
		msg = fmt.Sprintf("%s (server: %s)", msg, e.Server)
	}
	if len(e.Candidates) > 0 {
		msg = fmt.Sprintf("%s %v", msg, e.Candidates)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *MCPError) Unwrap() error { return e.Cause }

// Is reports whether target is an *MCPError with the same Kind, so callers
// can do errors.Is(err, &MCPError{Kind: KindToolNotFound}).
func (e *MCPError) Is(target error) bool {
	other, ok := target.(*MCPError)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind ErrorKind, format string, args ...any) *MCPError {
	return &MCPError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewToolNotFound reports that name matched no tool on any connected server.
func NewToolNotFound(name string) *MCPError {
	return newErr(KindToolNotFound, "tool %q not found", name)
}

// NewPromptNotFound reports that name matched no prompt.
func NewPromptNotFound(name string) *MCPError {
	return newErr(KindPromptNotFound, "prompt %q not found", name)
}

// NewResourceNotFound reports that uri matched no resource.
func NewResourceNotFound(uri string) *MCPError {
	return newErr(KindResourceNotFound, "resource %q not found", uri)
}

// NewServerNotFound reports that the requested server selector matched
// nothing in the facade's server set.
func NewServerNotFound(selector string) *MCPError {
	return newErr(KindServerNotFound, "server %q not found", selector)
}

// NewAmbiguousToolName reports a cross-server name collision for a tool
// call that did not specify a server.
func NewAmbiguousToolName(name string, candidates []string) *MCPError {
	e := newErr(KindAmbiguousToolName, "tool %q is ambiguous across servers", name)
	e.Candidates = candidates
	return e
}

// NewAmbiguousPromptName is the Prompt analogue of NewAmbiguousToolName.
func NewAmbiguousPromptName(name string, candidates []string) *MCPError {
	e := newErr(KindAmbiguousPromptName, "prompt %q is ambiguous across servers", name)
	e.Candidates = candidates
	return e
}

// NewAmbiguousResourceURI is the Resource analogue of NewAmbiguousToolName.
func NewAmbiguousResourceURI(uri string, candidates []string) *MCPError {
	e := newErr(KindAmbiguousResourceURI, "resource %q is ambiguous across servers", uri)
	e.Candidates = candidates
	return e
}

// NewValidationError reports a parameter or schema validation failure
// raised before dispatch.
func NewValidationError(format string, args ...any) *MCPError {
	return newErr(KindValidationError, format, args...)
}

// NewConnectionError wraps a transport establish/teardown/timeout failure.
func NewConnectionError(server string, cause error) *MCPError {
	e := newErr(KindConnectionError, "connection failed")
	e.Server = server
	e.Cause = cause
	return e
}

// NewTransportError wraps a framing/parse failure at the transport layer.
func NewTransportError(server string, cause error) *MCPError {
	e := newErr(KindTransportError, "transport error")
	e.Server = server
	e.Cause = cause
	return e
}

// NewServerError wraps a JSON-RPC error object returned by a server,
// preserving code/message/data via Cause.
func NewServerError(server string, rpcErr *RPCError) *MCPError {
	e := newErr(KindServerError, "server returned error %d: %s", rpcErr.Code, rpcErr.Message)
	e.Server = server
	e.Cause = rpcErr
	return e
}

// NewToolCallError wraps an unexpected non-connection/non-transport error
// encountered while dispatching a tool call.
func NewToolCallError(server, tool string, cause error) *MCPError {
	e := newErr(KindToolCallError, "tool %q call failed", tool)
	e.Server = server
	e.Cause = cause
	return e
}

// NewPromptGetError is the Prompt analogue of NewToolCallError.
func NewPromptGetError(server, prompt string, cause error) *MCPError {
	e := newErr(KindPromptGetError, "prompt %q get failed", prompt)
	e.Server = server
	e.Cause = cause
	return e
}

// NewResourceReadError is the Resource analogue of NewToolCallError.
func NewResourceReadError(server, uri string, cause error) *MCPError {
	e := newErr(KindResourceReadError, "resource %q read failed", uri)
	e.Server = server
	e.Cause = cause
	return e
}

// NewTransportDetectionError reports that transport auto-detection (§4.6.1)
// could not settle on a back end for target.
func NewTransportDetectionError(target string, cause error) *MCPError {
	e := newErr(KindTransportDetectionError, "could not detect transport for %q", target)
	e.Cause = cause
	return e
}

// NewTaskNotFound reports that id matched no tracked Task.
func NewTaskNotFound(id string) *MCPError {
	return newErr(KindTaskNotFound, "task %q not found", id)
}

// NewTaskError wraps a failure transitioning or observing a Task.
func NewTaskError(id string, cause error) *MCPError {
	e := newErr(KindTaskError, "task %q error", id)
	e.Cause = cause
	return e
}
