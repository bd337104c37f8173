// internal/convert/metadata.go
package convert

import (
	"strings"
	"time"

	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/table"
	"github.com/user/logscribe/internal/transcript"
)

// Metadata summarizes one conversation. Only requested fields are set.
type Metadata struct {
	TotalMessages       *int      `json:"total_messages,omitempty"`
	ConversationStart   string    `json:"conversation_start,omitempty"`
	ConversationEnd     string    `json:"conversation_end,omitempty"`
	UniqueModels        *[]string `json:"unique_models,omitempty"`
	ProcessingTimestamp string    `json:"processing_timestamp,omitempty"`
	TotalTokens         *int      `json:"total_tokens,omitempty"`
}

// Summarizer derives Metadata for a conversation.
type Summarizer struct {
	fields         map[string]bool
	timestampField string
	modelField     string
	tokens         TokenCounter
	now            func() time.Time
}

// NewSummarizer creates a Summarizer computing the named metadata fields.
// tokens may be nil, in which case total_tokens is omitted.
func NewSummarizer(fields []string, timestampField, modelField string, tokens TokenCounter) *Summarizer {
	return &Summarizer{
		fields:         toSet(fields),
		timestampField: timestampField,
		modelField:     modelField,
		tokens:         tokens,
		now:            time.Now,
	}
}

// Summarize computes metadata from a group's rows and its built messages.
// Timestamps that do not parse are ignored.
func (s *Summarizer) Summarize(rows []table.Row, msgs []transcript.Message) Metadata {
	var md Metadata

	if s.fields[config.MetaTotalMessages] {
		n := len(rows)
		md.TotalMessages = &n
	}

	if s.fields[config.MetaConversationStart] || s.fields[config.MetaConversationEnd] {
		var first, last time.Time
		found := false
		for _, r := range rows {
			t, ok := ParseTimestamp(r.Value(s.timestampField))
			if !ok {
				continue
			}
			if !found || t.Before(first) {
				first = t
			}
			if !found || t.After(last) {
				last = t
			}
			found = true
		}
		if found {
			if s.fields[config.MetaConversationStart] {
				md.ConversationStart = FormatTimestamp(first)
			}
			if s.fields[config.MetaConversationEnd] {
				md.ConversationEnd = FormatTimestamp(last)
			}
		}
	}

	if s.fields[config.MetaUniqueModels] {
		models := []string{}
		seen := make(map[string]bool)
		for _, r := range rows {
			m := strings.TrimSpace(r.Value(s.modelField))
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			models = append(models, m)
		}
		md.UniqueModels = &models
	}

	if s.fields[config.MetaProcessingTimestamp] {
		md.ProcessingTimestamp = FormatTimestamp(s.now())
	}

	if s.fields[config.MetaTotalTokens] && s.tokens != nil {
		n := s.tokens.Count(msgs)
		md.TotalTokens = &n
	}
	return md
}
