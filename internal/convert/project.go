// internal/convert/project.go
package convert

import "github.com/user/logscribe/internal/table"

// Projector narrows rows to a configured field set.
type Projector struct {
	included map[string]bool
	excluded map[string]bool
}

// NewProjector builds a projector. An empty included list keeps every field
// that is not excluded.
func NewProjector(included, excluded []string) *Projector {
	p := &Projector{}
	if len(included) > 0 {
		p.included = toSet(included)
	}
	if len(excluded) > 0 {
		p.excluded = toSet(excluded)
	}
	return p
}

func toSet(values []string) map[string]bool {
	s := make(map[string]bool, len(values))
	for _, v := range values {
		s[v] = true
	}
	return s
}

func (p *Projector) keep(name string) bool {
	if p.included != nil && !p.included[name] {
		return false
	}
	return !p.excluded[name]
}

// Header returns the columns that survive projection, in table order.
func (p *Projector) Header(header []string) []string {
	var out []string
	for _, h := range header {
		if p.keep(h) {
			out = append(out, h)
		}
	}
	return out
}

// Apply returns projected copies of rows.
func (p *Projector) Apply(rows []table.Row) []table.Row {
	if p.included == nil && p.excluded == nil {
		return rows
	}
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Select(p.keep)
	}
	return out
}
