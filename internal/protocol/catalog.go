package protocol

import (
	"encoding/json"
	"fmt"
)

// Tool describes a capability a server exposes via tools/list. The
// decoder accepts both `inputSchema` and the deprecated `schema` key (at
// least one real server in the wild sends the latter); the encoder always
// emits `inputSchema` only, per the open question in §9.
type Tool struct {
	Name         string                 `json:"name"`
	Title        string                 `json:"title,omitempty"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  map[string]any         `json:"inputSchema,omitempty"`
	OutputSchema map[string]any         `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations       `json:"annotations,omitempty"`

	// Server is the identity of the server this tool was fetched from.
	// Not part of the wire format; set by the facade cache.
	Server string `json:"-"`
}

// toolWire mirrors Tool's wire shape but additionally accepts the
// deprecated "schema" key so UnmarshalJSON can fall back to it.
type toolWire struct {
	Name         string           `json:"name"`
	Title        string           `json:"title,omitempty"`
	Description  string           `json:"description,omitempty"`
	InputSchema  map[string]any   `json:"inputSchema,omitempty"`
	LegacySchema map[string]any   `json:"schema,omitempty"`
	OutputSchema map[string]any   `json:"outputSchema,omitempty"`
	Annotations  *ToolAnnotations `json:"annotations,omitempty"`
}

// DeprecatedSchemaKeyWarning is emitted (via the caller-supplied logger)
// whenever a Tool is decoded using the legacy "schema" key instead of
// "inputSchema".
const DeprecatedSchemaKeyWarning = "tool %q used deprecated \"schema\" key instead of \"inputSchema\""

// UnmarshalJSON decodes a Tool, preferring inputSchema but falling back to
// the deprecated schema key. UsedLegacySchemaKey reports which happened so
// callers can log the deprecation warning without a package-level logger.
func (t *Tool) UnmarshalJSON(data []byte) error {
	var w toolWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Name = w.Name
	t.Title = w.Title
	t.Description = w.Description
	t.OutputSchema = w.OutputSchema
	t.Annotations = w.Annotations
	if w.InputSchema != nil {
		t.InputSchema = w.InputSchema
	} else {
		t.InputSchema = w.LegacySchema
	}
	return nil
}

// UsedLegacySchemaKey re-decodes data only to check whether the deprecated
// "schema" key was present without "inputSchema"; used by the facade to
// decide whether to log a deprecation warning.
func UsedLegacySchemaKey(data []byte) bool {
	var w toolWire
	if err := json.Unmarshal(data, &w); err != nil {
		return false
	}
	return w.InputSchema == nil && w.LegacySchema != nil
}

// ToolAnnotations carries both the legacy booleans and the MCP-2025-11-25
// hint booleans. Pointer fields distinguish "absent" (apply default) from
// an explicit `false`, per the invariant in §3.
type ToolAnnotations struct {
	// Legacy booleans, no defaulting.
	ReadOnly             *bool `json:"readOnly,omitempty"`
	Destructive          *bool `json:"destructive,omitempty"`
	RequiresConfirmation *bool `json:"requiresConfirmation,omitempty"`

	// 2025-11-25 hint booleans, each with its own default.
	ReadOnlyHint    *bool `json:"readOnlyHint,omitempty"`
	DestructiveHint *bool `json:"destructiveHint,omitempty"`
	IdempotentHint  *bool `json:"idempotentHint,omitempty"`
	OpenWorldHint   *bool `json:"openWorldHint,omitempty"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// EffectiveReadOnlyHint applies the documented default (true) when absent.
func (a *ToolAnnotations) EffectiveReadOnlyHint() bool {
	if a == nil {
		return true
	}
	return boolOr(a.ReadOnlyHint, true)
}

// EffectiveDestructiveHint applies the documented default (false).
func (a *ToolAnnotations) EffectiveDestructiveHint() bool {
	if a == nil {
		return false
	}
	return boolOr(a.DestructiveHint, false)
}

// EffectiveIdempotentHint applies the documented default (false).
func (a *ToolAnnotations) EffectiveIdempotentHint() bool {
	if a == nil {
		return false
	}
	return boolOr(a.IdempotentHint, false)
}

// EffectiveOpenWorldHint applies the documented default (true).
func (a *ToolAnnotations) EffectiveOpenWorldHint() bool {
	if a == nil {
		return true
	}
	return boolOr(a.OpenWorldHint, true)
}

// Prompt describes a server-advertised prompt template.
type Prompt struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`

	Server string `json:"-"`
}

// ResourceAnnotations carries audience/priority hints and the last-modified
// timestamp a server may attach to a resource.
type ResourceAnnotations struct {
	Audience     []string `json:"audience,omitempty"`
	Priority     *float64 `json:"priority,omitempty"`
	LastModified string   `json:"lastModified,omitempty"`
}

// Resource describes a server-advertised addressable document.
type Resource struct {
	URI         string               `json:"uri"`
	Name        string               `json:"name"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	MimeType    string               `json:"mimeType,omitempty"`
	Size        *int64               `json:"size,omitempty"`
	Annotations *ResourceAnnotations `json:"annotations,omitempty"`

	Server string `json:"-"`
}

// ResourceTemplate is a Resource keyed by an RFC 6570 URI template instead
// of a concrete URI.
type ResourceTemplate struct {
	URITemplate string               `json:"uriTemplate"`
	Name        string               `json:"name"`
	Title       string               `json:"title,omitempty"`
	Description string               `json:"description,omitempty"`
	MimeType    string               `json:"mimeType,omitempty"`
	Annotations *ResourceAnnotations `json:"annotations,omitempty"`

	Server string `json:"-"`
}

// ResourceContent is one content item of a resources/read result: either
// text or a base64 blob, never both, never neither. The invariant is
// enforced at construction via NewTextResourceContent/NewBlobResourceContent;
// UnmarshalJSON re-validates decoded wire data.
type ResourceContent struct {
	URI         string               `json:"uri"`
	MimeType    string               `json:"mimeType,omitempty"`
	Text        *string              `json:"text,omitempty"`
	Blob        *string              `json:"blob,omitempty"`
	Annotations *ResourceAnnotations `json:"annotations,omitempty"`
}

// NewTextResourceContent builds a text ResourceContent.
func NewTextResourceContent(uri, mimeType, text string) *ResourceContent {
	return &ResourceContent{URI: uri, MimeType: mimeType, Text: &text}
}

// NewBlobResourceContent builds a base64-blob ResourceContent.
func NewBlobResourceContent(uri, mimeType, blobBase64 string) *ResourceContent {
	return &ResourceContent{URI: uri, MimeType: mimeType, Blob: &blobBase64}
}

// Validate enforces the text-xor-blob invariant.
func (r *ResourceContent) Validate() error {
	if r.Text == nil && r.Blob == nil {
		return fmt.Errorf("resource content for %q has neither text nor blob", r.URI)
	}
	if r.Text != nil && r.Blob != nil {
		return fmt.Errorf("resource content for %q has both text and blob", r.URI)
	}
	return nil
}

func (r *ResourceContent) UnmarshalJSON(data []byte) error {
	type alias ResourceContent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = ResourceContent(a)
	return r.Validate()
}

// TextContent is plain-text tool-result content.
type TextContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// ImageContent is image tool-result content.
type ImageContent struct {
	Type     string `json:"type"` // always "image"
	Data     string `json:"data"` // base64
	MimeType string `json:"mimeType"`
}

// AudioContent is audio tool-result content, MCP's third content variant.
type AudioContent struct {
	Type     string `json:"type"` // always "audio"
	Data     string `json:"data"` // base64
	MimeType string `json:"mimeType"`
}

// ResourceLink is a tool-result content variant pointing at a resource by
// reference rather than embedding it.
type ResourceLink struct {
	Type        string `json:"type"` // always "resource_link"
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// Root is a client-declared filesystem/workspace boundary.
type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

// TaskState enumerates the lifecycle of a long-running operation tracked
// via progress notifications bound to a progressToken.
type TaskState string

const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// IsTerminal reports whether s is one of the terminal states.
func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task tracks a long-running operation correlated by ProgressToken.
type Task struct {
	ID            string
	State         TaskState
	Progress      *float64
	Total         *float64
	ProgressToken string
	Message       string
	Result        any
}

// Transition moves the task to next, rejecting transitions out of a
// terminal state per the invariant in §3.
func (t *Task) Transition(next TaskState) error {
	if t.State.IsTerminal() {
		return fmt.Errorf("task %q: cannot transition out of terminal state %q", t.ID, t.State)
	}
	t.State = next
	return nil
}
