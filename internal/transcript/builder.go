// internal/transcript/builder.go
package transcript

import (
	"log/slog"
	"strings"
)

// Mode selects how a conversation's records are ordered into messages.
type Mode string

const (
	// ModeFlat emits messages in record order.
	ModeFlat Mode = "flat"
	// ModeTurn groups records by turn and orders each turn as user,
	// reasoning, tooling, response.
	ModeTurn Mode = "turn"
)

// DefaultSystemPrompt opens every transcript unless Options.SystemPrompt is set.
const DefaultSystemPrompt = "You are a helpful AI assistant specialized in synthesizing information.\n\n" +
	"IMPORTANT: Your role is to provide ONLY text-based responses. Do NOT make any tool calls during summary generation.\n\n" +
	"Your task is to:\n" +
	"1. Take information from multiple tools that were already executed\n" +
	"2. Combine and synthesize the information into a coherent response\n" +
	"3. Answer the user's question directly and comprehensively\n" +
	"4. Present the information in a natural, conversational way\n\n" +
	"You have access to tools but should NOT use them during this final summary phase. TOOLS:\n" +
	"- current_time(q:str)->{current_time_result}\n" +
	"- google_trends(q:str)->{google_trends_result}\n" +
	"- mealdb_food(q:str)->{mealdb_food_result}\n" +
	"- tmdb_movies(q:str)->{tmdb_movies_result}\n" +
	"- pubmed(q:str)->{pubmed_result}\n" +
	"- arxiv_papers(q:str)->{arxiv_papers_result}\n" +
	"- weather(q:str)->{weather_result}\n" +
	"- google_places(q:str)->{google_places_result}\n" +
	"- youtube_summarizer(q:str)->{youtube_summarizer_result}\n" +
	"- youtube_search(q:str)->{youtube_search_result}\n" +
	"- calculator(q:str)->{calculator_result}\n" +
	"- amadeus_travel(q:str)->{amadeus_travel_result}\n" +
	"- github(q:str)->{github_result}\n" +
	"- email_sender(q:str)->{email_sender_result}\n" +
	"- web_search(q:str)->{web_search_result}\n" +
	"- steam_search(q:str)->{steam_search_result}\n" +
	"- yahoo_finance(q:str)->{yahoo_finance_result}\n" +
	"- wikipedia(q:str)->{wikipedia_result}\n" +
	"- tavily_search(q:str)->{tavily_search_result}\n" +
	"- multiply(q:str)->{multiply_result}"

// Options configures a Builder.
type Options struct {
	Mode           Mode
	SystemPrompt   string
	HTMLToMarkdown bool
	// Rules replaces DefaultRules when non-nil.
	Rules []Rule
}

// Builder turns one conversation's ordered records into a message sequence.
// A Builder holds no per-conversation state and may be reused.
type Builder struct {
	mode           Mode
	systemPrompt   string
	htmlToMarkdown bool
	rules          []Rule
	logger         *slog.Logger
}

// NewBuilder creates a Builder. A nil logger uses slog.Default().
func NewBuilder(opts Options, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{
		mode:           opts.Mode,
		systemPrompt:   opts.SystemPrompt,
		htmlToMarkdown: opts.HTMLToMarkdown,
		rules:          opts.Rules,
		logger:         logger,
	}
	if b.mode == "" {
		b.mode = ModeFlat
	}
	if b.systemPrompt == "" {
		b.systemPrompt = DefaultSystemPrompt
	}
	if b.rules == nil {
		b.rules = DefaultRules
	}
	return b
}

// Mode reports the ordering strategy in use.
func (b *Builder) Mode() Mode {
	return b.mode
}

// Build returns the transcript for records. The first message is always the
// system message, even when records is empty.
func (b *Builder) Build(records []Record) []Message {
	msgs := make([]Message, 0, len(records)+1)
	msgs = append(msgs, Message{Kind: KindSystem, Content: b.systemPrompt})

	if b.mode == ModeTurn {
		return b.buildTurns(msgs, records)
	}
	for i, rec := range records {
		if m, ok := b.classify(rec, true); ok {
			msgs = append(msgs, m)
		} else {
			b.logDrop(i, rec)
		}
	}
	return msgs
}

// turn collects one turn's messages by bucket.
type turn struct {
	buckets [numBuckets][]Message
	// early holds tool results that arrived before any call to their tool.
	early []Message
}

func (t *turn) add(m Message) {
	switch m.Kind {
	case KindToolResult:
		if !t.called(m.ToolName) {
			t.early = append(t.early, m)
			return
		}
	case KindToolCall:
		t.buckets[BucketTooling] = append(t.buckets[BucketTooling], m)
		kept := t.early[:0]
		for _, r := range t.early {
			if r.ToolName == m.ToolName {
				t.buckets[BucketTooling] = append(t.buckets[BucketTooling], r)
			} else {
				kept = append(kept, r)
			}
		}
		t.early = kept
		return
	}
	b := BucketOf(m.Kind)
	t.buckets[b] = append(t.buckets[b], m)
}

func (t *turn) called(tool string) bool {
	for _, m := range t.buckets[BucketTooling] {
		if m.Kind == KindToolCall && m.ToolName == tool {
			return true
		}
	}
	return false
}

func (t *turn) messages() []Message {
	var out []Message
	for b, msgs := range t.buckets {
		out = append(out, msgs...)
		if Bucket(b) == BucketTooling {
			out = append(out, t.early...)
		}
	}
	return out
}

// buildTurns groups records by turn id in first-seen order and emits each
// turn's buckets in fixed order. Within the tooling bucket records keep their
// arrival order, except that a result seen before its tool was called is
// moved to follow that call.
func (b *Builder) buildTurns(msgs []Message, records []Record) []Message {
	var order []string
	turns := make(map[string]*turn)

	for i, rec := range records {
		m, ok := b.classify(rec, false)
		if !ok {
			b.logDrop(i, rec)
			continue
		}
		id := strings.TrimSpace(rec.TurnID)
		t, seen := turns[id]
		if !seen {
			t = &turn{}
			turns[id] = t
			order = append(order, id)
		}
		t.add(m)
	}

	for _, id := range order {
		msgs = append(msgs, turns[id].messages()...)
	}
	return msgs
}

// classify applies the rule table to rec. legacy enables the role-only
// fallback for records without an event type.
func (b *Builder) classify(rec Record, legacy bool) (Message, bool) {
	rule, ok := match(b.rules, rec)
	if !ok {
		if legacy {
			return legacyMessage(rec)
		}
		return Message{}, false
	}

	switch rule.Kind {
	case KindUser, KindAssistantText:
		content := strings.TrimSpace(rec.Content)
		if content == "" {
			return Message{}, false
		}
		return Message{Kind: rule.Kind, Content: content}, true

	case KindReasoning:
		primary, secondary := rec.Content, rec.ToolResult
		if rule.Text == FromToolResult {
			primary, secondary = secondary, primary
		}
		text := strings.TrimSpace(primary)
		if text == "" {
			text = strings.TrimSpace(secondary)
		}
		if text == "" {
			return Message{}, false
		}
		return Message{Kind: KindReasoning, Reasoning: []string{text}}, true

	case KindToolCall:
		name := strings.TrimSpace(rec.ToolName)
		if name == "" || strings.TrimSpace(rec.ToolArguments) == "" {
			return Message{}, false
		}
		return Message{Kind: KindToolCall, ToolName: name, Arguments: NormalizeArguments(rec.ToolArguments)}, true

	case KindToolResult:
		name := strings.TrimSpace(rec.ToolName)
		if name == "" || strings.TrimSpace(rec.ToolResult) == "" {
			return Message{}, false
		}
		return Message{Kind: KindToolResult, ToolName: name, Content: b.result(rec.ToolResult)}, true
	}
	return Message{}, false
}

func (b *Builder) result(raw string) string {
	content := NormalizeResult(raw)
	if content != raw || !b.htmlToMarkdown {
		return content
	}
	if md, ok := htmlResult(raw); ok {
		return md
	}
	return content
}

// legacyMessage handles schemas without an event type column: a record with
// a role and content and no event type becomes a user or assistant message.
func legacyMessage(rec Record) (Message, bool) {
	if strings.TrimSpace(rec.EventType) != "" {
		return Message{}, false
	}
	content := strings.TrimSpace(rec.Content)
	if content == "" {
		return Message{}, false
	}
	switch strings.TrimSpace(rec.Role) {
	case "user":
		return Message{Kind: KindUser, Content: content}, true
	case "assistant":
		return Message{Kind: KindAssistantText, Content: content}, true
	}
	return Message{}, false
}

func (b *Builder) logDrop(i int, rec Record) {
	b.logger.Debug("record produced no message",
		"index", i,
		"event_type", rec.EventType,
		"role", rec.Role,
	)
}
