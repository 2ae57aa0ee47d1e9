package audit

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bmizerany/assert"

	"github.com/chararch/starbatch/store"
	"github.com/chararch/starbatch/store/mysql"
	_ "github.com/chararch/starbatch/store/sqlite"
)

var spec = Spec{
	Tables:     []string{"Customer_Dim", "Product_Dim", "Date_Dim", "Sales_Fact"},
	Fact:       "Sales_Fact",
	Revenue:    "Revenue",
	DateTable:  "Date_Dim",
	DateColumn: "Full_Date",
	Orphans: []Orphan{
		{Name: "Orphan Sales (Invalid Customer)", Fact: "Sales_Fact", Dimension: "Customer_Dim", Column: "Customer_ID"},
		{Name: "Orphan Sales (Invalid Product)", Fact: "Sales_Fact", Dimension: "Product_Dim", Column: "Product_ID"},
		{Name: "Orphan Sales (Invalid Date)", Fact: "Sales_Fact", Dimension: "Date_Dim", Column: "Date_ID"},
	},
}

func openStore(t *testing.T, stmts ...string) store.Store {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Kind: "sqlite", Database: filepath.Join(t.TempDir(), "dw.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	schema := []string{
		`CREATE TABLE "Customer_Dim" ("Customer_ID" TEXT PRIMARY KEY)`,
		`CREATE TABLE "Product_Dim" ("Product_ID" TEXT PRIMARY KEY)`,
		`CREATE TABLE "Date_Dim" ("Date_ID" INTEGER PRIMARY KEY, "Full_Date" TEXT)`,
		`CREATE TABLE "Sales_Fact" ("Customer_ID" TEXT, "Product_ID" TEXT, "Date_ID" INTEGER, "Revenue" REAL)`,
	}
	for _, stmt := range append(schema, stmts...) {
		if err := s.Exec(ctx, stmt); err != nil {
			t.Fatal(stmt, err)
		}
	}
	return s
}

func TestRun_OneOrphanCustomer(t *testing.T) {
	s := openStore(t,
		`INSERT INTO "Customer_Dim" VALUES ('1000001'), ('1000002')`,
		`INSERT INTO "Product_Dim" VALUES ('P00001')`,
		`INSERT INTO "Date_Dim" VALUES (1, '2019-03-01'), (2, '2019-03-02')`,
		`INSERT INTO "Sales_Fact" VALUES ('1000001', 'P00001', 1, 10.5), ('1000002', 'P00001', 2, 4.5), ('1000999', 'P00001', 1, 1.0)`,
	)
	report := New(s, spec).Run(context.Background())
	assert.Equal(t, nil, report.Err)

	f, ok := report.Finding("Orphan Sales (Invalid Customer)")
	assert.T(t, ok)
	assert.Equal(t, int64(1), f.Orphans)
	f, _ = report.Finding("Orphan Sales (Invalid Product)")
	assert.Equal(t, int64(0), f.Orphans)
	f, _ = report.Finding("Orphan Sales (Invalid Date)")
	assert.Equal(t, int64(0), f.Orphans)
	assert.T(t, !report.Passed())

	assert.Equal(t, int64(2), report.Rows("Customer_Dim"))
	assert.Equal(t, int64(3), report.Rows("Sales_Fact"))
	assert.Equal(t, int64(-1), report.Rows("Store_Dim"))
	assert.T(t, report.HasRevenue)
	assert.Equal(t, 16.0, report.Revenue)
	assert.Equal(t, "2019-03-01", report.DateFrom)
	assert.Equal(t, "2019-03-02", report.DateTo)

	var out strings.Builder
	report.Render(&out)
	assert.T(t, strings.Contains(out.String(), "FAIL (1 records)"), out.String())
	assert.T(t, strings.Contains(out.String(), "$16"), out.String())
}

func TestRun_EmptyWarehouse(t *testing.T) {
	report := New(openStore(t), spec).Run(context.Background())
	assert.Equal(t, nil, report.Err)
	assert.T(t, report.Passed())
	assert.T(t, !report.HasRevenue)
	assert.Equal(t, "", report.DateFrom)
	assert.Equal(t, 3, len(report.Findings))

	var out strings.Builder
	report.Render(&out)
	assert.T(t, strings.Contains(out.String(), "N/A"), out.String())
}

func TestRun_QueryError(t *testing.T) {
	bad := spec
	bad.Tables = []string{"Customer_Dim", "Store_Dim"}
	report := New(openStore(t), bad).Run(context.Background())
	assert.NotEqual(t, nil, report.Err)
	assert.T(t, strings.Contains(report.Err.Error(), "Store_Dim"))
	assert.Equal(t, 1, len(report.Counts))
	assert.Equal(t, 0, len(report.Findings))
	assert.T(t, !report.Passed())
}

func TestOrphanSQL(t *testing.T) {
	assert.Equal(t,
		"SELECT COUNT(*) FROM `Sales_Fact` f LEFT JOIN `Date_Dim` d ON f.`Date_ID` = d.`Date_ID` WHERE d.`Date_ID` IS NULL",
		OrphanSQL(mysql.Dialect{}, spec.Orphans[2]))
}
