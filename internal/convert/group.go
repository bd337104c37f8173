// internal/convert/group.go
package convert

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/logscribe/internal/table"
)

// SingleGroupID names the implicit group used when rows carry no
// conversation id column.
const SingleGroupID = "single_conversation"

// Group is one conversation: its id and its rows in sequence order.
type Group struct {
	ID    string
	Index int
	Rows  []table.Row
}

// GroupOptions names the columns the grouper reads.
type GroupOptions struct {
	ConversationField string
	TimestampField    string
	OrdinalField      string
}

// Grouper partitions rows into conversations.
type Grouper struct {
	opts   GroupOptions
	logger *slog.Logger
}

// NewGrouper creates a Grouper. A nil logger uses slog.Default().
func NewGrouper(opts GroupOptions, logger *slog.Logger) *Grouper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grouper{opts: opts, logger: logger}
}

// Group partitions rows by conversation id, ordering groups by id and each
// group's rows by sequence key. header lists the columns rows may carry.
//
// Without the conversation column every row lands in one group. Rows with an
// empty id are left out.
func (g *Grouper) Group(header []string, rows []table.Row) []Group {
	cols := toSet(header)

	var groups []Group
	if g.opts.ConversationField == "" || !cols[g.opts.ConversationField] {
		g.logger.Warn("conversation id column not found, using a single group",
			"column", g.opts.ConversationField)
		groups = []Group{{ID: SingleGroupID, Rows: append([]table.Row(nil), rows...)}}
	} else {
		groups = g.partition(rows)
	}

	sortKey := g.sequenceKey(cols)
	for i := range groups {
		groups[i].Index = i
		sortKey(groups[i].Rows)
	}
	return groups
}

func (g *Grouper) partition(rows []table.Row) []Group {
	byID := make(map[string]*Group)
	var ids []string
	dropped := 0
	for _, r := range rows {
		id := strings.TrimSpace(r.Value(g.opts.ConversationField))
		if id == "" {
			dropped++
			continue
		}
		grp, ok := byID[id]
		if !ok {
			grp = &Group{ID: id}
			byID[id] = grp
			ids = append(ids, id)
		}
		grp.Rows = append(grp.Rows, r)
	}
	if dropped > 0 {
		g.logger.Warn("rows without a conversation id were skipped", "rows", dropped)
	}

	sortIDs(ids)
	groups := make([]Group, len(ids))
	for i, id := range ids {
		groups[i] = *byID[id]
	}
	return groups
}

// sortIDs orders ids numerically when all are integers, otherwise lexically.
func sortIDs(ids []string) {
	nums := make(map[string]int64, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			sort.Strings(ids)
			return
		}
		nums[id] = n
	}
	sort.Slice(ids, func(i, j int) bool { return nums[ids[i]] < nums[ids[j]] })
}

// sequenceKey picks the ordering applied inside each group: timestamp, then
// ordinal, then input order.
func (g *Grouper) sequenceKey(cols map[string]bool) func([]table.Row) {
	switch {
	case g.opts.TimestampField != "" && cols[g.opts.TimestampField]:
		field := g.opts.TimestampField
		return func(rows []table.Row) { sortByTimestamp(rows, field) }
	case g.opts.OrdinalField != "" && cols[g.opts.OrdinalField]:
		field := g.opts.OrdinalField
		return func(rows []table.Row) { sortByOrdinal(rows, field) }
	default:
		g.logger.Warn("no timestamp or ordinal column, keeping input order",
			"timestamp", g.opts.TimestampField, "ordinal", g.opts.OrdinalField)
		return func([]table.Row) {}
	}
}

// sortByTimestamp orders rows by parsed time. Rows whose timestamp does not
// parse keep their relative order after all parsed rows.
func sortByTimestamp(rows []table.Row, field string) {
	times := make([]time.Time, len(rows))
	parsed := make([]bool, len(rows))
	for i, r := range rows {
		times[i], parsed[i] = ParseTimestamp(r.Value(field))
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if parsed[ia] != parsed[ib] {
			return parsed[ia]
		}
		return parsed[ia] && times[ia].Before(times[ib])
	})
	reorder(rows, idx)
}

// sortByOrdinal orders rows numerically when every value is a number,
// otherwise lexically.
func sortByOrdinal(rows []table.Row, field string) {
	nums := make([]float64, len(rows))
	numeric := true
	for i, r := range rows {
		v := strings.TrimSpace(r.Value(field))
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[i] = n
	}
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	if numeric {
		sort.SliceStable(idx, func(a, b int) bool { return nums[idx[a]] < nums[idx[b]] })
	} else {
		sort.SliceStable(idx, func(a, b int) bool {
			return strings.TrimSpace(rows[idx[a]].Value(field)) < strings.TrimSpace(rows[idx[b]].Value(field))
		})
	}
	reorder(rows, idx)
}

func reorder(rows []table.Row, idx []int) {
	sorted := make([]table.Row, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}
