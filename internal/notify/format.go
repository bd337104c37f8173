// internal/notify/format.go
package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/user/logscribe/internal/types"
)

// FormatSummary renders a batch summary as plain text: the counters, then one
// line per failed item with its locator and error.
func FormatSummary(s *types.BatchSummary) string {
	var b strings.Builder
	elapsed := s.FinishedAt.Sub(s.StartedAt).Round(time.Second)
	fmt.Fprintf(&b, "Batch %s finished in %s\n", s.ID.Short(), elapsed)
	fmt.Fprintf(&b, "Total: %s  Succeeded: %s  Failed: %s\n",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Succeeded)), humanize.Comma(int64(s.Failed)))
	if s.Processed < s.Total {
		fmt.Fprintf(&b, "Not processed: %d\n", s.Total-s.Processed)
	}
	if s.Halted {
		b.WriteString("Batch halted before completion\n")
	}

	failures := s.Failures()
	if len(failures) > 0 {
		b.WriteString("\nFailures:\n")
		for _, r := range failures {
			fmt.Fprintf(&b, "- %s: %s\n", r.Item.Locator, r.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
