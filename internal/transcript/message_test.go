package transcript

import (
	"encoding/json"
	"testing"
)

func TestMessage_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"system", Message{Kind: KindSystem, Content: "be nice"}, `{"role":"system","content":"be nice"}`},
		{"user", Message{Kind: KindUser, Content: "hi <there>"}, `{"role":"user","content":"hi <there>"}`},
		{"assistant", Message{Kind: KindAssistantText, Content: "ok"}, `{"role":"assistant","content":"ok"}`},
		{"reasoning", Message{Kind: KindReasoning, Reasoning: []string{"think"}}, `{"role":"assistant","reasoning":["think"]}`},
		{"tool call", Message{Kind: KindToolCall, ToolName: "calc", Arguments: json.RawMessage(`{"__arg1":"2+2"}`)},
			`{"role":"assistant","tool_call":{"name":"calc","arguments":{"__arg1":"2+2"}}}`},
		{"tool call without args", Message{Kind: KindToolCall, ToolName: "now"},
			`{"role":"assistant","tool_call":{"name":"now","arguments":{}}}`},
		{"tool result", Message{Kind: KindToolResult, ToolName: "calc", Content: "4"}, `{"role":"tool","name":"calc","content":"4"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.msg)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			// json.Marshal re-escapes HTML in marshaler output; compare decoded forms.
			var gotV, wantV any
			if err := json.Unmarshal(got, &gotV); err != nil {
				t.Fatalf("unmarshal got: %v", err)
			}
			if err := json.Unmarshal([]byte(tt.want), &wantV); err != nil {
				t.Fatalf("unmarshal want: %v", err)
			}
			g, _ := json.Marshal(gotV)
			w, _ := json.Marshal(wantV)
			if string(g) != string(w) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMessage_MarshalUnknownKind(t *testing.T) {
	if _, err := json.Marshal(Message{Kind: "bogus"}); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestMessage_UnmarshalJSON(t *testing.T) {
	msgs := []Message{
		{Kind: KindSystem, Content: "sys"},
		{Kind: KindUser, Content: "hi"},
		{Kind: KindReasoning, Reasoning: []string{"a", "b"}},
		{Kind: KindToolCall, ToolName: "calc", Arguments: json.RawMessage(`{"x":1}`)},
		{Kind: KindToolResult, ToolName: "calc", Content: "{\n  \"r\": 4\n}"},
		{Kind: KindAssistantText, Content: "done"},
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back []Message
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(back) != len(msgs) {
		t.Fatalf("expected %d messages, got %d", len(msgs), len(back))
	}
	for i := range msgs {
		if back[i].Kind != msgs[i].Kind {
			t.Errorf("message %d: kind %q, want %q", i, back[i].Kind, msgs[i].Kind)
		}
	}
	if back[3].ToolName != "calc" || string(back[3].Arguments) != `{"x":1}` {
		t.Errorf("tool call not recovered: %+v", back[3])
	}
	if back[4].Content != msgs[4].Content {
		t.Errorf("tool result content mismatch: %q", back[4].Content)
	}
}
