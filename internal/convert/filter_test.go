package convert

import (
	"strings"
	"testing"

	"github.com/user/logscribe/internal/table"
)

func mustTable(t *testing.T, csv string) *table.Table {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	return tbl
}

func values(rows []table.Row, field string) string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Value(field))
	}
	return strings.Join(out, ",")
}

const filterCSV = `id,event_type,role,content
1,user_message,user,hi
2,tool_call,assistant,
3,tool_execution,tool,result
4,reasoning_completed,system,  
5,ai_response,assistant,bye
`

func defaultFilterOptions() FilterOptions {
	return FilterOptions{EventTypeField: "event_type", RoleField: "role", ContentField: "content"}
}

func TestFilter_Roles(t *testing.T) {
	opts := defaultFilterOptions()
	opts.Roles = []string{"user", "assistant"}
	f, err := NewFilter(opts, nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	got := values(f.Apply(mustTable(t, filterCSV)), "id")
	if got != "1,2,5" {
		t.Errorf("expected tool and system rows excluded, got %s", got)
	}
}

func TestFilter_GlobEventTypes(t *testing.T) {
	opts := defaultFilterOptions()
	opts.EventTypes = []string{"tool_*", "user_message"}
	f, err := NewFilter(opts, nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	got := values(f.Apply(mustTable(t, filterCSV)), "id")
	if got != "1,2,3" {
		t.Errorf("expected user and tool rows, got %s", got)
	}
}

func TestFilter_SkipEmptyContent(t *testing.T) {
	opts := defaultFilterOptions()
	opts.SkipEmptyContent = true
	f, err := NewFilter(opts, nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	got := values(f.Apply(mustTable(t, filterCSV)), "id")
	if got != "1,3,5" {
		t.Errorf("expected empty and whitespace content dropped, got %s", got)
	}
}

func TestFilter_PredicatesIntersect(t *testing.T) {
	opts := defaultFilterOptions()
	opts.Roles = []string{"assistant"}
	opts.SkipEmptyContent = true
	f, err := NewFilter(opts, nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	got := values(f.Apply(mustTable(t, filterCSV)), "id")
	if got != "5" {
		t.Errorf("expected only row 5, got %s", got)
	}
}

func TestFilter_MissingColumnSkipsPredicate(t *testing.T) {
	opts := defaultFilterOptions()
	opts.EventTypes = []string{"user_message"}
	f, err := NewFilter(opts, nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	tbl := mustTable(t, "id,role,content\n1,user,a\n2,tool,b\n")
	if got := values(f.Apply(tbl), "id"); got != "1,2" {
		t.Errorf("expected all rows when column is absent, got %s", got)
	}
}

func TestFilter_EmptyListsKeepEverything(t *testing.T) {
	f, err := NewFilter(defaultFilterOptions(), nil)
	if err != nil {
		t.Fatalf("NewFilter failed: %v", err)
	}
	tbl := mustTable(t, filterCSV)
	if got := len(f.Apply(tbl)); got != len(tbl.Rows) {
		t.Errorf("expected %d rows, got %d", len(tbl.Rows), got)
	}
}

func TestFilter_BadPattern(t *testing.T) {
	opts := defaultFilterOptions()
	opts.Roles = []string{"[unclosed"}
	if _, err := NewFilter(opts, nil); err == nil {
		t.Error("expected error for invalid glob pattern")
	}
}

func TestProjector(t *testing.T) {
	tbl := mustTable(t, "a,b,c,d\n1,2,3,4\n")

	p := NewProjector([]string{"a", "c", "missing"}, []string{"c"})
	if got := strings.Join(p.Header(tbl.Header), ","); got != "a" {
		t.Errorf("expected header [a], got %s", got)
	}
	rows := p.Apply(tbl.Rows)
	if got := strings.Join(rows[0].Fields(), ","); got != "a" {
		t.Errorf("expected fields [a], got %s", got)
	}

	excludeOnly := NewProjector(nil, []string{"b"})
	rows = excludeOnly.Apply(tbl.Rows)
	if got := strings.Join(rows[0].Fields(), ","); got != "a,c,d" {
		t.Errorf("expected b excluded, got %s", got)
	}

	if got := len(tbl.Rows[0].Fields()); got != 4 {
		t.Errorf("projection must not modify input rows, got %d fields", got)
	}
}
