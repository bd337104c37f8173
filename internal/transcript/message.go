// internal/transcript/message.go
package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind identifies a Message variant.
type Kind string

const (
	KindSystem        Kind = "system"
	KindUser          Kind = "user"
	KindAssistantText Kind = "assistant_text"
	KindReasoning     Kind = "assistant_reasoning"
	KindToolCall      Kind = "assistant_tool_call"
	KindToolResult    Kind = "tool_result"
)

// Message is one transcript entry. Which fields are meaningful depends on Kind:
// Content for system, user, assistant_text and tool_result; Reasoning for
// assistant_reasoning; ToolName for tool calls and results; Arguments for
// tool calls.
type Message struct {
	Kind      Kind
	Content   string
	Reasoning []string
	ToolName  string
	Arguments json.RawMessage
}

// Role returns the chat role the message is serialized under.
func (m Message) Role() string {
	switch m.Kind {
	case KindSystem:
		return "system"
	case KindUser:
		return "user"
	case KindToolResult:
		return "tool"
	default:
		return "assistant"
	}
}

type contentMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type reasoningMessage struct {
	Role      string   `json:"role"`
	Reasoning []string `json:"reasoning"`
}

type toolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type toolCallMessage struct {
	Role     string   `json:"role"`
	ToolCall toolCall `json:"tool_call"`
}

type toolResultMessage struct {
	Role    string `json:"role"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// MarshalJSON renders the chat wire shape for the message's variant.
func (m Message) MarshalJSON() ([]byte, error) {
	var v any
	switch m.Kind {
	case KindSystem, KindUser, KindAssistantText:
		v = contentMessage{Role: m.Role(), Content: m.Content}
	case KindReasoning:
		reasoning := m.Reasoning
		if reasoning == nil {
			reasoning = []string{}
		}
		v = reasoningMessage{Role: m.Role(), Reasoning: reasoning}
	case KindToolCall:
		args := m.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		v = toolCallMessage{Role: m.Role(), ToolCall: toolCall{Name: m.ToolName, Arguments: args}}
	case KindToolResult:
		v = toolResultMessage{Role: m.Role(), Name: m.ToolName, Content: m.Content}
	default:
		return nil, fmt.Errorf("unknown message kind %q", m.Kind)
	}
	return marshal(v)
}

// UnmarshalJSON recovers the variant from its wire shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role      string    `json:"role"`
		Content   *string   `json:"content"`
		Name      string    `json:"name"`
		Reasoning []string  `json:"reasoning"`
		ToolCall  *toolCall `json:"tool_call"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*m = Message{}
	switch {
	case wire.Role == "system":
		m.Kind = KindSystem
	case wire.Role == "user":
		m.Kind = KindUser
	case wire.Role == "tool":
		m.Kind = KindToolResult
		m.ToolName = wire.Name
	case wire.Role == "assistant" && wire.ToolCall != nil:
		m.Kind = KindToolCall
		m.ToolName = wire.ToolCall.Name
		m.Arguments = wire.ToolCall.Arguments
		return nil
	case wire.Role == "assistant" && wire.Reasoning != nil:
		m.Kind = KindReasoning
		m.Reasoning = wire.Reasoning
		return nil
	case wire.Role == "assistant":
		m.Kind = KindAssistantText
	default:
		return fmt.Errorf("unknown message role %q", wire.Role)
	}
	if wire.Content != nil {
		m.Content = *wire.Content
	}
	return nil
}

// marshal encodes v without HTML escaping so transcript text survives verbatim.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
