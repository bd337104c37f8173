package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/user/logscribe/internal/batch"
	"github.com/user/logscribe/internal/table"
)

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <csv>",
	Short: "Explain why a CSV log fails to parse",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		data, err := batch.NewHTTPFetcher(30*time.Second).Fetch(ctx, args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}
		d := table.Diagnose(data)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "Size:\t%s\n", humanize.Bytes(uint64(d.Size)))
		fmt.Fprintf(w, "Sampled lines:\t%d\n", d.SampledLines)
		fmt.Fprintf(w, "Header:\t%s\n", strings.Join(d.Header, " | "))
		fmt.Fprintln(w)
		fmt.Fprintln(w, "FIELDS\tLINES")
		for _, fc := range d.FieldCounts {
			fmt.Fprintf(w, "%d\t%d\n", fc.Fields, fc.Lines)
		}
		if !d.Consistent() {
			fmt.Fprintln(w, "Field counts differ between lines; quoted commas or embedded newlines are likely.")
		}
		fmt.Fprintln(w)
		fmt.Fprintln(w, "STRATEGY\tCOLUMNS\tROWS\tERROR")
		for _, a := range d.Attempts {
			msg := "-"
			if a.Err != nil {
				msg = a.Err.Error()
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", a.Name, a.Columns, a.Rows, msg)
		}
		return w.Flush()
	},
}
