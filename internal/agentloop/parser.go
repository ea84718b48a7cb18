package agentloop

import (
	"encoding/json"
	"strings"

	"github.com/agentfabric/agentd/pkg/fabric"
)

const (
	toolCallOpenTag  = "<tool_call>"
	toolCallCloseTag = "</tool_call>"
)

// rawToolCall mirrors the JSON blob embedded between <tool_call> tags.
type rawToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	CallID    string          `json:"call_id,omitempty"`
}

// ParseToolCalls scans assistant content for the pinned tool-call grammar
// (SPEC_FULL.md §4.2+): one or more `<tool_call>{json}</tool_call>`
// occurrences. Parsing is deterministic: malformed or unterminated blobs
// are skipped rather than erroring, since a model's prose may legitimately
// contain the literal text without intending a call.
func ParseToolCalls(content string) []fabric.ParsedToolCall {
	var calls []fabric.ParsedToolCall
	rest := content
	for {
		start := strings.Index(rest, toolCallOpenTag)
		if start < 0 {
			break
		}
		afterOpen := rest[start+len(toolCallOpenTag):]
		end := strings.Index(afterOpen, toolCallCloseTag)
		if end < 0 {
			break
		}
		blob := afterOpen[:end]
		rest = afterOpen[end+len(toolCallCloseTag):]

		var raw rawToolCall
		if err := json.Unmarshal([]byte(blob), &raw); err != nil || raw.Name == "" {
			continue
		}
		args := "{}"
		if len(raw.Arguments) > 0 {
			args = string(raw.Arguments)
		}
		calls = append(calls, fabric.ParsedToolCall{Name: raw.Name, Arguments: args, CallID: raw.CallID})
	}
	return calls
}
