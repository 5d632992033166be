package contract

// Message is one transcript entry as sent to a completion endpoint.
type Message struct {
	Role       string      `json:"role"`
	Content    string      `json:"content"`
	Name       string      `json:"name,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []*ToolCall `json:"tool_calls,omitempty"`
}

// ToolDef describes a registered tool to the model.
type ToolDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

// ToolCall is a tool invocation requested by the model. Input is raw text the
// model intends to parse as the tool's declared schema.
type ToolCall struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Input string `json:"input"`
}

type CompletionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []ToolDef `json:"tools,omitempty"`
}

// StreamFunc receives incremental text fragments as they arrive over the
// network. Fragments are forward-only and non-restartable; the caller owns
// assembling them. Tool calls are never delivered mid-stream: they are
// resolved from the fully assembled Completion.
type StreamFunc func(fragment string)

// Completion is the assembled provider response. Content and ToolCalls can
// both be present: narrative text alongside tool requests surfaces as-is.
// An empty ToolCalls slice marks a final answer.
type Completion struct {
	Content   string      `json:"content"`
	ToolCalls []*ToolCall `json:"tool_calls,omitempty"`
}

// IsFinal reports whether this completion ends the turn.
func (c *Completion) IsFinal() bool {
	return len(c.ToolCalls) == 0
}
