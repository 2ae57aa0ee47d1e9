package audit

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"
)

// Render writes the report as two tables: totals and integrity checks.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintln(w, "DATA QUALITY REPORT")
	totals := table.NewWriter()
	totals.SetOutputMirror(w)
	totals.Style().Format.Header = text.FormatDefault
	totals.AppendHeader(table.Row{"Check", "Result"})
	for _, c := range r.Counts {
		totals.AppendRow(table.Row{"Total " + c.Table, humanize.Comma(c.Rows)})
	}
	if r.HasRevenue {
		totals.AppendRow(table.Row{"Total Revenue", "$" + humanize.CommafWithDigits(r.Revenue, 2)})
	} else {
		totals.AppendRow(table.Row{"Total Revenue", "N/A"})
	}
	if r.DateFrom != "" {
		totals.AppendRow(table.Row{"Date Range", fmt.Sprintf("%s to %s", r.DateFrom, r.DateTo)})
	}
	totals.Render()

	fmt.Fprintln(w, "REFERENTIAL INTEGRITY CHECKS")
	checks := table.NewWriter()
	checks.SetOutputMirror(w)
	checks.Style().Format.Header = text.FormatDefault
	checks.AppendHeader(table.Row{"Check", "Status"})
	for _, f := range r.Findings {
		st := "PASS"
		if !f.Passed() {
			st = fmt.Sprintf("FAIL (%s records)", humanize.Comma(f.Orphans))
		}
		checks.AppendRow(table.Row{f.Check, st})
	}
	checks.Render()
	if r.Err != nil {
		fmt.Fprintf(w, "audit incomplete: %v\n", r.Err)
	}
}
