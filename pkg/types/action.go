package types

import (
	"encoding/json"
	"fmt"
)

// ToolKind classifies a proposed tool call for decisions that depend on the
// shape of the action rather than its name (shell redirection checks, edit
// diff surfaces).
type ToolKind string

const (
	KindGeneric ToolKind = "generic"
	KindShell   ToolKind = "shell"
	KindEdit    ToolKind = "edit"
	KindMCP     ToolKind = "mcp"
)

// ToolCall is a proposed action: a named tool plus its arguments. The
// CorrelationID is caller-supplied and opaque; it routes the confirmation
// response back to the proposal that caused it.
type ToolCall struct {
	Name          string         `json:"name"`
	Kind          ToolKind       `json:"kind,omitempty"`
	Args          map[string]any `json:"args,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// SerializedArgs returns a stable string form of the arguments for pattern
// matching. JSON map keys marshal in sorted order, so the result is
// deterministic for a given argument set.
func (c ToolCall) SerializedArgs() string {
	if len(c.Args) == 0 {
		return ""
	}
	b, err := json.Marshal(c.Args)
	if err != nil {
		return fmt.Sprintf("%v", c.Args)
	}
	return string(b)
}

// Command returns the shell command carried by a shell-kind call, or "".
func (c ToolCall) Command() string {
	if s, ok := c.Args["command"].(string); ok {
		return s
	}
	return ""
}
