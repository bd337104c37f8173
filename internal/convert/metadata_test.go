package convert

import (
	"testing"
	"time"

	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/transcript"
)

type fakeCounter struct{ n int }

func (f fakeCounter) Count(msgs []transcript.Message) int { return f.n * len(msgs) }

func TestSummarizer_RequestedFieldsOnly(t *testing.T) {
	tbl := mustTable(t, "timestamp,model_used\n2024-01-01T00:00:00Z,m1\n")
	s := NewSummarizer([]string{config.MetaTotalMessages}, "timestamp", "model_used", nil)
	md := s.Summarize(tbl.Rows, nil)
	if md.TotalMessages == nil || *md.TotalMessages != 1 {
		t.Errorf("expected total_messages=1, got %v", md.TotalMessages)
	}
	if md.ConversationStart != "" || md.UniqueModels != nil || md.ProcessingTimestamp != "" {
		t.Errorf("unexpected fields set: %+v", md)
	}
}

func TestSummarizer_SkipsUnparseableTimestamps(t *testing.T) {
	tbl := mustTable(t, "timestamp,model_used\nbad,\n2024-01-02T00:00:00Z,m2\n2024-01-01T00:00:00Z,m1\n,m2\n")
	s := NewSummarizer([]string{
		config.MetaConversationStart, config.MetaConversationEnd, config.MetaUniqueModels,
		config.MetaProcessingTimestamp, config.MetaTotalTokens,
	}, "timestamp", "model_used", fakeCounter{n: 3})
	s.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	md := s.Summarize(tbl.Rows, make([]transcript.Message, 2))
	if md.ConversationStart != "2024-01-01T00:00:00Z" || md.ConversationEnd != "2024-01-02T00:00:00Z" {
		t.Errorf("unexpected span %s - %s", md.ConversationStart, md.ConversationEnd)
	}
	if md.UniqueModels == nil || len(*md.UniqueModels) != 2 || (*md.UniqueModels)[0] != "m2" {
		t.Errorf("unexpected models %v", md.UniqueModels)
	}
	if md.ProcessingTimestamp != "2025-01-01T00:00:00Z" {
		t.Errorf("unexpected processing timestamp %s", md.ProcessingTimestamp)
	}
	if md.TotalTokens == nil || *md.TotalTokens != 6 {
		t.Errorf("unexpected token count %v", md.TotalTokens)
	}
}

func TestSummarizer_NoTimestamps(t *testing.T) {
	tbl := mustTable(t, "content\na\n")
	s := NewSummarizer([]string{config.MetaConversationStart, config.MetaUniqueModels}, "timestamp", "model_used", nil)
	md := s.Summarize(tbl.Rows, nil)
	if md.ConversationStart != "" {
		t.Errorf("expected no start without timestamps, got %s", md.ConversationStart)
	}
	if md.UniqueModels == nil || len(*md.UniqueModels) != 0 {
		t.Errorf("expected empty model list, got %v", md.UniqueModels)
	}
}

func TestNamer(t *testing.T) {
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	tests := []struct {
		template, format, ext string
		id                    string
		index                 int
		want                  string
	}{
		{"{conversation_id}_{timestamp}", "%Y%m%d_%H%M%S", ".json", "42", 0, "42_20240203_040506.json"},
		{"conv_{index}", "%Y", ".json", "x", 3, "conv_3.json"},
		{"{conversation_id}.json", "%Y", ".json", "abc", 0, "abc.json"},
		{"{conversation_id}", "%Y", ".json", "a/b\\c", 0, "a_b_c.json"},
		{"{timestamp}", "%Y-%m-%d", ".jsonl", "x", 0, "2024-02-03.jsonl"},
	}
	for _, tt := range tests {
		n := NewNamer(tt.template, tt.format, tt.ext)
		n.now = func() time.Time { return now }
		if got := n.Name(tt.id, tt.index); got != tt.want {
			t.Errorf("Name(%q) with %q = %q, want %q", tt.id, tt.template, got, tt.want)
		}
	}
}
