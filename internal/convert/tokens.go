// internal/convert/tokens.go
package convert

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/logscribe/internal/transcript"
)

// TokenCounter counts the tokens a transcript occupies.
type TokenCounter interface {
	Count(msgs []transcript.Message) int
}

// Tokenizer counts tokens with a tiktoken encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer selects the encoding for model, falling back to cl100k_base
// for unknown models.
func NewTokenizer(model string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) countText(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Count sums the tokens of every text-bearing field of msgs.
func (t *Tokenizer) Count(msgs []transcript.Message) int {
	total := 0
	for _, m := range msgs {
		total += t.countText(m.Content)
		for _, r := range m.Reasoning {
			total += t.countText(r)
		}
		total += t.countText(m.ToolName)
		total += t.countText(string(m.Arguments))
	}
	return total
}
