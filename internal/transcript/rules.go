// internal/transcript/rules.go
package transcript

import "strings"

// Record is the logical view of one log row that the builder reads. Absent
// columns are empty strings.
type Record struct {
	TurnID        string
	EventType     string
	Role          string
	Content       string
	ToolName      string
	ToolArguments string
	ToolResult    string
}

// TextSource selects which record field carries a rule's text.
type TextSource int

const (
	FromContent TextSource = iota
	FromToolResult
)

// Bucket is the position of a message kind inside one turn.
type Bucket int

const (
	BucketUser Bucket = iota
	BucketReasoning
	BucketTooling
	BucketResponse
	numBuckets
)

// Rule maps a set of (event type, role) pairs to one message kind.
type Rule struct {
	EventTypes []string
	Roles      []string
	Kind       Kind
	// Text is the primary text field for reasoning rules. When it is empty
	// the other field is used.
	Text TextSource
}

// DefaultRules covers both event vocabularies seen in conversation logs.
// A new schema variant is supported by adding rows here.
var DefaultRules = []Rule{
	{EventTypes: []string{"user_message"}, Roles: []string{"user"}, Kind: KindUser},
	{EventTypes: []string{"thought"}, Roles: []string{"assistant", "system"}, Kind: KindReasoning, Text: FromContent},
	{EventTypes: []string{"reasoning_completed"}, Roles: []string{"assistant", "system"}, Kind: KindReasoning, Text: FromToolResult},
	{EventTypes: []string{"tool_call", "tool_call_interrupt"}, Roles: []string{"assistant"}, Kind: KindToolCall},
	{EventTypes: []string{"tool_execution", "tool_execution_approved"}, Roles: []string{"tool"}, Kind: KindToolResult},
	{EventTypes: []string{"ai_response", "final_answer"}, Roles: []string{"assistant"}, Kind: KindAssistantText},
}

func (r Rule) matches(eventType, role string) bool {
	return contains(r.EventTypes, eventType) && contains(r.Roles, role)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// match returns the first rule accepting rec.
func match(rules []Rule, rec Record) (Rule, bool) {
	eventType := strings.TrimSpace(rec.EventType)
	role := strings.TrimSpace(rec.Role)
	for _, r := range rules {
		if r.matches(eventType, role) {
			return r, true
		}
	}
	return Rule{}, false
}

// BucketOf returns the turn bucket a message kind belongs to.
func BucketOf(k Kind) Bucket {
	switch k {
	case KindUser:
		return BucketUser
	case KindReasoning:
		return BucketReasoning
	case KindToolCall, KindToolResult:
		return BucketTooling
	default:
		return BucketResponse
	}
}
