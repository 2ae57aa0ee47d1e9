// Package audit verifies a loaded star schema with read-only queries: row
// counts, total revenue, the date range and fact rows whose dimension key is
// missing. Findings are reported, never corrected.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/internal/logs"
	"github.com/chararch/starbatch/store"
)

var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

func SetLogger(l logs.Logger) {
	logger = l
}

// Orphan checks that every Fact.Column value exists in Dimension.Column.
type Orphan struct {
	Name      string
	Fact      string
	Dimension string
	Column    string
}

// Spec lists what the auditor inspects.
type Spec struct {
	Tables     []string
	Fact       string
	Revenue    string
	DateTable  string
	DateColumn string
	Orphans    []Orphan
}

type Count struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// Finding is the outcome of one orphan check. Zero orphans passes.
type Finding struct {
	Check   string `json:"check"`
	Orphans int64  `json:"orphans"`
}

func (f Finding) Passed() bool {
	return f.Orphans == 0
}

// Report is the audit outcome. Err is set when the store could not be queried;
// the checks completed before the failure are kept.
type Report struct {
	Counts     []Count       `json:"counts"`
	Revenue    float64       `json:"revenue"`
	HasRevenue bool          `json:"has_revenue"`
	DateFrom   string        `json:"date_from,omitempty"`
	DateTo     string        `json:"date_to,omitempty"`
	Findings   []Finding     `json:"findings"`
	Err        error         `json:"-"`
	Duration   time.Duration `json:"duration"`
}

// Passed reports whether every check ran and found no orphans.
func (r *Report) Passed() bool {
	if r.Err != nil {
		return false
	}
	for _, f := range r.Findings {
		if !f.Passed() {
			return false
		}
	}
	return true
}

// Rows returns the counted rows of table, or -1 when it was not counted.
func (r *Report) Rows(table string) int64 {
	for _, c := range r.Counts {
		if c.Table == table {
			return c.Rows
		}
	}
	return -1
}

// Finding returns the finding named check.
func (r *Report) Finding(check string) (Finding, bool) {
	for _, f := range r.Findings {
		if f.Check == check {
			return f, true
		}
	}
	return Finding{}, false
}

type Auditor struct {
	store store.Store
	spec  Spec
}

func New(s store.Store, spec Spec) *Auditor {
	return &Auditor{store: s, spec: spec}
}

// Run issues every query of the spec. It never mutates the store.
func (a *Auditor) Run(ctx context.Context) *Report {
	start := time.Now()
	report := &Report{}
	defer func() {
		report.Duration = time.Since(start)
	}()
	d := a.store.Dialect()

	for _, t := range a.spec.Tables {
		var n int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s", d.Quote(t))
		if err := a.store.QueryRow(ctx, query).Scan(&n); err != nil {
			report.Err = errors.Wrapf(err, "count %v", t)
			logger.Error(ctx, "audit failed, check:count %v, err:%v", t, err)
			return report
		}
		report.Counts = append(report.Counts, Count{Table: t, Rows: n})
	}

	if a.spec.Fact != "" && a.spec.Revenue != "" {
		var revenue sql.NullFloat64
		query := fmt.Sprintf("SELECT SUM(%s) FROM %s", d.Quote(a.spec.Revenue), d.Quote(a.spec.Fact))
		if err := a.store.QueryRow(ctx, query).Scan(&revenue); err != nil {
			report.Err = errors.Wrap(err, "total revenue")
			logger.Error(ctx, "audit failed, check:total revenue, err:%v", err)
			return report
		}
		report.Revenue, report.HasRevenue = revenue.Float64, revenue.Valid
	}

	if a.spec.DateTable != "" && a.spec.DateColumn != "" {
		var from, to sql.NullString
		col := d.Quote(a.spec.DateColumn)
		query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s", col, col, d.Quote(a.spec.DateTable))
		if err := a.store.QueryRow(ctx, query).Scan(&from, &to); err != nil {
			report.Err = errors.Wrap(err, "date range")
			logger.Error(ctx, "audit failed, check:date range, err:%v", err)
			return report
		}
		report.DateFrom, report.DateTo = dateOnly(from), dateOnly(to)
	}

	for _, o := range a.spec.Orphans {
		var n int64
		if err := a.store.QueryRow(ctx, OrphanSQL(d, o)).Scan(&n); err != nil {
			report.Err = errors.Wrapf(err, "orphan check %v", o.Name)
			logger.Error(ctx, "audit failed, check:%v, err:%v", o.Name, err)
			return report
		}
		report.Findings = append(report.Findings, Finding{Check: o.Name, Orphans: n})
		if n > 0 {
			logger.Warn(ctx, "integrity finding, check:%v, orphans:%v", o.Name, n)
		}
	}
	logger.Info(ctx, "audit finished, tables:%v, findings:%v, passed:%v", len(report.Counts), len(report.Findings), report.Passed())
	return report
}

// OrphanSQL counts fact rows without a matching dimension row.
func OrphanSQL(d store.Dialect, o Orphan) string {
	col := d.Quote(o.Column)
	return fmt.Sprintf("SELECT COUNT(*) FROM %s f LEFT JOIN %s d ON f.%s = d.%s WHERE d.%s IS NULL",
		d.Quote(o.Fact), d.Quote(o.Dimension), col, col, col)
}

// dateOnly keeps the yyyy-mm-dd part; drivers return DATE as text or as a timestamp
func dateOnly(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	if len(s.String) >= 10 {
		return s.String[:10]
	}
	return s.String
}
