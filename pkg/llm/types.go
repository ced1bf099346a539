package llm

import "encoding/json"

// Message roles understood by the chat completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Tool choice policies.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// Message is the wire unit exchanged with the chat completion endpoint.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model-issued request to invoke a registered function.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// FunctionCall names the function and carries its arguments. The endpoint
// emits arguments as JSON-encoded text, but some servers inline a plain
// object; both forms are preserved as raw JSON.
type FunctionCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// DecodeArguments resolves the call arguments into a structured map,
// accepting either a JSON-encoded text payload or an inline object.
func (f FunctionCall) DecodeArguments() (map[string]interface{}, error) {
	if len(f.Arguments) == 0 {
		return map[string]interface{}{}, nil
	}

	var encoded string
	if err := json.Unmarshal(f.Arguments, &encoded); err == nil {
		if encoded == "" {
			return map[string]interface{}{}, nil
		}
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(encoded), &args); err != nil {
			return nil, err
		}
		return args, nil
	}

	var args map[string]interface{}
	if err := json.Unmarshal(f.Arguments, &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ArgumentsText returns the arguments as JSON text, unwrapping one level
// of string encoding when present.
func (f FunctionCall) ArgumentsText() string {
	if len(f.Arguments) == 0 {
		return "{}"
	}
	var encoded string
	if err := json.Unmarshal(f.Arguments, &encoded); err == nil {
		return encoded
	}
	return string(f.Arguments)
}

// Tool is an advertised capability in the completion API function-calling
// schema.
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction describes a callable function and its parameter schema.
type ToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}
