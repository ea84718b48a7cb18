// Package fabric holds the data model shared by every component of the
// execution fabric: session keys and messages, parsed tool calls, memory
// entries, scheduled jobs, and resource/lifecycle records.
package fabric

import (
	"fmt"
	"strings"
)

// SessionKey is the structured identifier "{agent}:{scope}:{channel}:{peer}".
// The agent field "isolated" denotes non-shared history.
type SessionKey struct {
	Agent   string
	Scope   string
	Channel string
	Peer    string
}

// IsolatedAgent marks a session key whose history is never shared across peers.
const IsolatedAgent = "isolated"

// String renders the canonical colon-joined form.
func (k SessionKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%s", k.Agent, k.Scope, k.Channel, k.Peer)
}

// Isolated reports whether this key denotes non-shared history.
func (k SessionKey) Isolated() bool {
	return k.Agent == IsolatedAgent
}

// ParseSessionKey parses the canonical four-field form. It rejects any
// string that does not split into exactly four non-empty components.
func ParseSessionKey(raw string) (SessionKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 4 {
		return SessionKey{}, fmt.Errorf("fabric: session key %q must have exactly 4 colon-separated fields, got %d", raw, len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return SessionKey{}, fmt.Errorf("fabric: session key %q has an empty field at position %d", raw, i)
		}
	}
	return SessionKey{Agent: parts[0], Scope: parts[1], Channel: parts[2], Peer: parts[3]}, nil
}

// Role identifies which of the four message roles a SessionMessage carries.
type Role string

const (
	RoleSystem     Role = "system"
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// SessionMessage is the tagged variant of spec.md §3: System, User,
// Assistant (with tool calls), or ToolResult.
type SessionMessage struct {
	Role Role

	// Content holds the text for System, User, and Assistant messages.
	Content string

	// ToolCalls is populated only for Assistant messages that invoked tools.
	ToolCalls []ParsedToolCall

	// ToolName, CallID, Success, and Content (reused above as the result
	// body) are populated only for ToolResult messages.
	ToolName string
	CallID   string
	Success  bool
}

// NewSystemMessage builds a System message.
func NewSystemMessage(content string) SessionMessage {
	return SessionMessage{Role: RoleSystem, Content: content}
}

// NewUserMessage builds a User message.
func NewUserMessage(content string) SessionMessage {
	return SessionMessage{Role: RoleUser, Content: content}
}

// NewAssistantMessage builds an Assistant message, optionally carrying parsed tool calls.
func NewAssistantMessage(content string, calls []ParsedToolCall) SessionMessage {
	return SessionMessage{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// NewToolResultMessage builds a ToolResult message.
func NewToolResultMessage(toolName, callID, result string, success bool) SessionMessage {
	return SessionMessage{Role: RoleToolResult, ToolName: toolName, CallID: callID, Content: result, Success: success}
}

// ParsedToolCall is the deterministic output of scanning an assistant turn
// for the tool-invocation grammar (see SPEC_FULL.md §4.2+).
type ParsedToolCall struct {
	Name      string
	Arguments string // raw JSON object
	CallID    string // optional
}
