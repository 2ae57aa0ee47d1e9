// Package warehouse defines the star schema and the six-phase pipeline that
// fills it: extract, dimension transforms, dimension loads, fact preparation,
// fact load and audit.
package warehouse

import (
	"fmt"
	"strings"

	"github.com/chararch/starbatch/store"
)

// Table names a target table of the star schema.
type Table int

const (
	StoreDim Table = iota
	SupplierDim
	CustomerDim
	ProductDim
	DateDim
	SalesFact
)

// DimensionLoadOrder is the order dimensions are loaded in.
var DimensionLoadOrder = []Table{StoreDim, SupplierDim, CustomerDim, ProductDim, DateDim}

// AllTables lists every table, dimensions first.
var AllTables = []Table{StoreDim, SupplierDim, CustomerDim, ProductDim, DateDim, SalesFact}

var descriptors = map[Table]*store.TableDescriptor{
	StoreDim: {
		Name: "Store_Dim",
		Columns: []store.Column{
			{Name: "Store_ID", Type: store.Int},
			{Name: "Store_Name", Type: store.String, Size: 100},
		},
		ConflictKeys: []string{"Store_ID"},
	},
	SupplierDim: {
		Name: "Supplier_Dim",
		Columns: []store.Column{
			{Name: "Supplier_ID", Type: store.Int},
			{Name: "Supplier_Name", Type: store.String, Size: 100},
		},
		ConflictKeys: []string{"Supplier_ID"},
	},
	CustomerDim: {
		Name: "Customer_Dim",
		Columns: []store.Column{
			{Name: "Customer_ID", Type: store.String, Size: 20},
			{Name: "Gender", Type: store.String, Size: 1},
			{Name: "Age_Range", Type: store.String, Size: 10},
			{Name: "Occupation", Type: store.Int},
			{Name: "City_Category", Type: store.String, Size: 1},
			{Name: "Stay_In_Current_City_Years", Type: store.String, Size: 5},
			{Name: "Marital_Status", Type: store.Int},
		},
		ConflictKeys: []string{"Customer_ID"},
	},
	ProductDim: {
		Name: "Product_Dim",
		Columns: []store.Column{
			{Name: "Product_ID", Type: store.String, Size: 20},
			{Name: "Product_Category", Type: store.String, Size: 50},
			{Name: "Price", Type: store.Decimal},
			{Name: "Store_ID", Type: store.Int},
			{Name: "Supplier_ID", Type: store.Int},
		},
		ConflictKeys: []string{"Product_ID"},
	},
	DateDim: {
		Name: "Date_Dim",
		Columns: []store.Column{
			{Name: "Date_ID", Type: store.Int},
			{Name: "Full_Date", Type: store.Date},
			{Name: "Day", Type: store.Int},
			{Name: "Month", Type: store.Int},
			{Name: "Month_Name", Type: store.String, Size: 10},
			{Name: "Quarter", Type: store.String, Size: 2},
			{Name: "Year", Type: store.Int},
			{Name: "Weekday_Weekend", Type: store.String, Size: 10},
			{Name: "Season", Type: store.String, Size: 10},
		},
		ConflictKeys: []string{"Date_ID"},
		KeepExisting: true,
	},
	SalesFact: {
		Name: "Sales_Fact",
		Columns: []store.Column{
			{Name: "OrderID", Type: store.Int},
			{Name: "Customer_ID", Type: store.String, Size: 20},
			{Name: "Product_ID", Type: store.String, Size: 20},
			{Name: "Store_ID", Type: store.Int},
			{Name: "Supplier_ID", Type: store.Int},
			{Name: "Date_ID", Type: store.Int},
			{Name: "Quantity", Type: store.Int},
			{Name: "Total_Amount", Type: store.Decimal},
			{Name: "Revenue", Type: store.Decimal},
		},
		InsertOnly: true,
	},
}

// defaultBatchSizes are the per-table batch sizes used when none is configured.
var defaultBatchSizes = map[Table]int{
	StoreDim:    50,
	SupplierDim: 50,
	CustomerDim: 500,
	ProductDim:  100,
	DateDim:     365,
	SalesFact:   1000,
}

// Descriptor returns the load descriptor of t.
func (t Table) Descriptor() *store.TableDescriptor {
	return descriptors[t]
}

func (t Table) String() string {
	if d, ok := descriptors[t]; ok {
		return d.Name
	}
	return fmt.Sprintf("Table(%d)", int(t))
}

// DefaultBatchSize returns the batch size t loads with unless configured.
func (t Table) DefaultBatchSize() int {
	return defaultBatchSizes[t]
}

// IsFact reports whether t is the fact table.
func (t Table) IsFact() bool {
	return t == SalesFact
}

// ParseTable accepts a table name such as "Customer_Dim", case-insensitively.
func ParseTable(name string) (Table, error) {
	for _, t := range AllTables {
		if strings.EqualFold(t.String(), strings.TrimSpace(name)) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown table %q", name)
}

// DDL returns the CREATE TABLE statements for every table in d, dimensions first.
func DDL(d store.Dialect) []string {
	stmts := make([]string, 0, len(AllTables))
	for _, t := range AllTables {
		stmts = append(stmts, d.CreateTableSQL(t.Descriptor()))
	}
	return stmts
}
