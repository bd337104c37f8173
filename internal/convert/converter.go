// internal/convert/converter.go
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/user/logscribe/internal/config"
	"github.com/user/logscribe/internal/table"
	"github.com/user/logscribe/internal/transcript"
)

// Document is one serialized transcript ready to persist.
type Document struct {
	Name           string
	ConversationID string
	Index          int
	Messages       int
	Data           []byte
}

// Converter runs the full table-to-transcript pipeline for one source table.
// It holds no per-call state and is safe for concurrent use.
type Converter struct {
	fields     config.Fields
	filter     *Filter
	projector  *Projector
	grouper    *Grouper
	builder    *transcript.Builder
	summarizer *Summarizer
	namer      *Namer

	messagesField   string
	metadataField   string
	includeMetadata bool
	pretty          bool
	extension       string

	logger *slog.Logger
}

// New builds a Converter from cfg. The tokenizer is loaded only when
// total_tokens metadata is requested; when it cannot be loaded the field is
// omitted and a warning is logged.
func New(cfg *config.Config, logger *slog.Logger) (*Converter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := cfg.Fields

	filter, err := NewFilter(FilterOptions{
		EventTypes:       cfg.Filter.EventTypes,
		Roles:            cfg.Filter.Roles,
		SkipEmptyContent: cfg.Filter.SkipEmptyContent,
		EventTypeField:   f.EventType,
		RoleField:        f.Role,
		ContentField:     f.Content,
	}, logger)
	if err != nil {
		return nil, err
	}

	var tokens TokenCounter
	if cfg.Output.IncludeMetadata && cfg.WantsMetadata(config.MetaTotalTokens) {
		tok, err := NewTokenizer(cfg.Output.TokenizerModel)
		if err != nil {
			logger.Warn("tokenizer unavailable, total_tokens omitted", "model", cfg.Output.TokenizerModel, "error", err)
		} else {
			tokens = tok
		}
	}

	return &Converter{
		fields:    f,
		filter:    filter,
		projector: NewProjector(cfg.Projection.Included, cfg.Projection.Excluded),
		grouper: NewGrouper(GroupOptions{
			ConversationField: f.ConversationID,
			TimestampField:    f.Timestamp,
			OrdinalField:      f.Ordinal,
		}, logger),
		builder: transcript.NewBuilder(transcript.Options{
			Mode:           transcript.Mode(cfg.Transcript.Mode),
			SystemPrompt:   cfg.Transcript.SystemPrompt,
			HTMLToMarkdown: cfg.Transcript.HTMLToMarkdown,
		}, logger),
		summarizer:      NewSummarizer(cfg.Output.MetadataFields, f.Timestamp, f.Model, tokens),
		namer:           NewNamer(cfg.Naming.Template, cfg.Naming.TimestampFormat, cfg.Naming.Extension),
		messagesField:   cfg.Output.MessagesField,
		metadataField:   cfg.Output.MetadataField,
		includeMetadata: cfg.Output.IncludeMetadata,
		pretty:          cfg.Output.PrettyPrint,
		extension:       cfg.Naming.Extension,
		logger:          logger,
	}, nil
}

// Convert parses data as a CSV table and returns one document per
// conversation, in conversation order.
func (c *Converter) Convert(ctx context.Context, data []byte) ([]Document, error) {
	t, err := table.ReadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse table: %w", err)
	}
	return c.ConvertTable(ctx, t)
}

// ConvertTable is Convert over an already parsed table.
func (c *Converter) ConvertTable(ctx context.Context, t *table.Table) ([]Document, error) {
	rows := c.filter.Apply(t)
	header := c.projector.Header(t.Header)
	rows = c.projector.Apply(rows)

	if c.builder.Mode() == transcript.ModeTurn && !contains(header, c.fields.TurnID) {
		c.logger.Warn("turn id column not found, treating each conversation as one turn", "column", c.fields.TurnID)
	}

	groups := c.grouper.Group(header, rows)
	c.logger.Info("grouped conversations", "rows", len(rows), "conversations", len(groups))

	names := NewNameSet(c.extension)
	docs := make([]Document, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := c.document(g)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", g.ID, err)
		}
		doc.Name = names.Claim(doc.Name)
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Converter) document(g Group) (Document, error) {
	records := make([]transcript.Record, len(g.Rows))
	for i, r := range g.Rows {
		records[i] = c.record(r)
	}
	msgs := c.builder.Build(records)

	var md *Metadata
	if c.includeMetadata {
		m := c.summarizer.Summarize(g.Rows, msgs)
		md = &m
	}

	data, err := c.encode(msgs, md)
	if err != nil {
		return Document{}, err
	}
	return Document{
		Name:           c.namer.Name(g.ID, g.Index),
		ConversationID: g.ID,
		Index:          g.Index,
		Messages:       len(msgs),
		Data:           data,
	}, nil
}

func (c *Converter) record(r table.Row) transcript.Record {
	f := c.fields
	return transcript.Record{
		TurnID:        r.Value(f.TurnID),
		EventType:     r.Value(f.EventType),
		Role:          r.Value(f.Role),
		Content:       r.Value(f.Content),
		ToolName:      r.Value(f.ToolName),
		ToolArguments: r.Value(f.ToolArguments),
		ToolResult:    r.Value(f.ToolResult),
	}
}

// encode writes {messages_field: [...], metadata_field: {...}} with the
// messages first. Non-ASCII and HTML characters are written verbatim.
func (c *Converter) encode(msgs []transcript.Message, md *Metadata) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, c.messagesField, msgs); err != nil {
		return nil, err
	}
	if md != nil {
		buf.WriteByte(',')
		if err := writeField(&buf, c.metadataField, md); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	if !c.pretty {
		return buf.Bytes(), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return nil, fmt.Errorf("indent document: %w", err)
	}
	return out.Bytes(), nil
}

func writeField(buf *bytes.Buffer, key string, v any) error {
	k, err := encodeNoEscape(key)
	if err != nil {
		return err
	}
	val, err := encodeNoEscape(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(val)
	return nil
}

func encodeNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
