package warehouse

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/table"
	"github.com/jedib0t/go-pretty/text"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/audit"
	"github.com/chararch/starbatch/status"
)

// RunSummary is what a finished run reports: rows loaded and failed batches
// per table, the prepared fact count and the audit report.
type RunSummary struct {
	RunId    string
	Status   status.BatchStatus
	Phase    starbatch.Phase
	Tables   []starbatch.LoadSummary
	FactRows int
	Audit    *audit.Report
	Err      error
	Duration time.Duration
}

// Summarize collects the summary of execution.
func Summarize(execution *starbatch.RunExecution) *RunSummary {
	s := &RunSummary{
		RunId:  execution.RunId,
		Status: execution.Status,
		Phase:  execution.Phase,
		Tables: execution.Summaries(),
		Err:    execution.FailError,
	}
	if !execution.EndTime.IsZero() && !execution.StartTime.IsZero() {
		s.Duration = execution.EndTime.Sub(execution.StartTime)
	}
	s.FactRows, _ = execution.RunContext.GetInt(KeyFactRows, 0)
	if r, ok := execution.RunContext.Get(KeyAudit).(*audit.Report); ok {
		s.Audit = r
	}
	return s
}

// RowsLoaded totals the rows loaded across tables.
func (s *RunSummary) RowsLoaded() int64 {
	var n int64
	for _, t := range s.Tables {
		n += t.RowsLoaded
	}
	return n
}

// FailedBatches totals the failed batches across tables.
func (s *RunSummary) FailedBatches() int {
	var n int
	for _, t := range s.Tables {
		n += t.FailedBatches
	}
	return n
}

// Failed reports a phase-level failure. Failed batches alone do not fail a run.
func (s *RunSummary) Failed() bool {
	return s.Status != status.COMPLETED
}

// Render writes the load table followed by the audit report.
func (s *RunSummary) Render(w io.Writer) {
	fmt.Fprintf(w, "run %s: %s, phase reached %s, elapsed %v\n", s.RunId, s.Status, s.Phase, s.Duration.Round(time.Millisecond))
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"Table", "Status", "Batches", "Rows Loaded", "Failed Batches", "Elapsed"})
	for _, ts := range s.Tables {
		t.AppendRow(table.Row{ts.Table, ts.Status(), ts.Batches, humanize.Comma(ts.RowsLoaded), ts.FailedBatches, ts.Duration.Round(time.Millisecond)})
	}
	t.AppendFooter(table.Row{"Total", "", "", humanize.Comma(s.RowsLoaded()), s.FailedBatches(), ""})
	t.Render()
	fmt.Fprintf(w, "prepared fact rows: %s\n", humanize.Comma(int64(s.FactRows)))
	for _, ts := range s.Tables {
		for _, err := range ts.Errors() {
			fmt.Fprintf(w, "  %s: %v\n", ts.Table, err)
		}
	}
	if s.Audit != nil {
		s.Audit.Render(w)
	}
	if s.Err != nil {
		fmt.Fprintf(w, "run failed: %v\n", s.Err)
	}
}
