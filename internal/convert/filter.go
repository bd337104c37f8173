// internal/convert/filter.go
package convert

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gobwas/glob"

	"github.com/user/logscribe/internal/table"
)

// matcher accepts a value when it equals one of the literals or matches one
// of the glob patterns. An empty matcher accepts everything.
type matcher struct {
	literals map[string]bool
	patterns []glob.Glob
}

func newMatcher(values []string) (*matcher, error) {
	m := &matcher{literals: make(map[string]bool)}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if !strings.ContainsAny(v, "*?[{") {
			m.literals[v] = true
			continue
		}
		g, err := glob.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", v, err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

func (m *matcher) empty() bool {
	return len(m.literals) == 0 && len(m.patterns) == 0
}

func (m *matcher) match(v string) bool {
	v = strings.TrimSpace(v)
	if m.literals[v] {
		return true
	}
	for _, g := range m.patterns {
		if g.Match(v) {
			return true
		}
	}
	return false
}

// FilterOptions configures a Filter. Empty allow-lists disable their predicate.
type FilterOptions struct {
	EventTypes       []string
	Roles            []string
	SkipEmptyContent bool

	EventTypeField string
	RoleField      string
	ContentField   string
}

// Filter keeps the rows satisfying every configured predicate.
type Filter struct {
	eventTypes *matcher
	roles      *matcher
	opts       FilterOptions
	logger     *slog.Logger
}

// NewFilter compiles the allow-lists. Values containing glob metacharacters
// are treated as patterns.
func NewFilter(opts FilterOptions, logger *slog.Logger) (*Filter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	eventTypes, err := newMatcher(opts.EventTypes)
	if err != nil {
		return nil, fmt.Errorf("event type filter: %w", err)
	}
	roles, err := newMatcher(opts.Roles)
	if err != nil {
		return nil, fmt.Errorf("role filter: %w", err)
	}
	return &Filter{eventTypes: eventTypes, roles: roles, opts: opts, logger: logger}, nil
}

// Apply returns the rows of t that pass. A predicate whose column is missing
// from the table is skipped with a warning. t is not modified.
func (f *Filter) Apply(t *table.Table) []table.Row {
	type predicate func(table.Row) bool
	var preds []predicate

	if !f.eventTypes.empty() {
		if t.HasColumn(f.opts.EventTypeField) {
			field := f.opts.EventTypeField
			preds = append(preds, func(r table.Row) bool { return f.eventTypes.match(r.Value(field)) })
		} else {
			f.logger.Warn("event type filter skipped: column not found", "column", f.opts.EventTypeField)
		}
	}
	if !f.roles.empty() {
		if t.HasColumn(f.opts.RoleField) {
			field := f.opts.RoleField
			preds = append(preds, func(r table.Row) bool { return f.roles.match(r.Value(field)) })
		} else {
			f.logger.Warn("role filter skipped: column not found", "column", f.opts.RoleField)
		}
	}
	if f.opts.SkipEmptyContent {
		if t.HasColumn(f.opts.ContentField) {
			field := f.opts.ContentField
			preds = append(preds, func(r table.Row) bool { return strings.TrimSpace(r.Value(field)) != "" })
		} else {
			f.logger.Warn("empty content filter skipped: column not found", "column", f.opts.ContentField)
		}
	}

	out := make([]table.Row, 0, len(t.Rows))
rows:
	for _, r := range t.Rows {
		for _, p := range preds {
			if !p(r) {
				continue rows
			}
		}
		out = append(out, r)
	}
	f.logger.Debug("filtered rows", "before", len(t.Rows), "after", len(out))
	return out
}
