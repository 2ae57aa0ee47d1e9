package warehouse

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/dataset"
)

// Source columns of the three extracts.
var (
	CustomerColumns    = []string{"Customer_ID", "Gender", "Age", "Occupation", "City_Category", "Stay_In_Current_City_Years", "Marital_Status"}
	ProductColumns     = []string{"Product_ID", "Product_Category", "price$", "storeID", "supplierID", "storeName", "supplierName"}
	TransactionColumns = []string{"orderID", "Customer_ID", "Product_ID", "quantity", "date"}
)

func transformErr(ds string, err error) error {
	return starbatch.NewBatchError(starbatch.ErrCodeTransform, "transform %v", ds, err)
}

func firstUpper(v interface{}, def string) string {
	s, ok := dataset.AsString(v)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		return def
	}
	return strings.ToUpper(s[:1])
}

func intOr(v interface{}, def int64, col string) (int64, error) {
	if dataset.IsNull(v) {
		return def, nil
	}
	n, ok := dataset.AsInt64(v)
	if !ok {
		return 0, errors.Errorf("%v: not an integer: %v", col, v)
	}
	return n, nil
}

func stringOf(v interface{}) string {
	if dataset.IsNull(v) {
		return ""
	}
	s, _ := dataset.AsString(v)
	return strings.TrimSpace(s)
}

// TransformCustomers maps the customer extract onto Customer_Dim. Missing
// genders become 'U', missing city categories 'Z' and missing occupation or
// marital status 0. Rows without a Customer_ID are dropped.
func TransformCustomers(ctx context.Context, src *dataset.Dataset) (*dataset.Dataset, error) {
	if err := src.Require(CustomerColumns...); err != nil {
		return nil, err
	}
	cols := CustomerDim.Descriptor().ColumnNames()
	out, err := src.DropNull("Customer_ID").Map(cols, func(r dataset.Row) (dataset.Row, error) {
		occupation, err := intOr(r["Occupation"], 0, "Occupation")
		if err != nil {
			return nil, err
		}
		marital, err := intOr(r["Marital_Status"], 0, "Marital_Status")
		if err != nil {
			return nil, err
		}
		return dataset.Row{
			"Customer_ID":                stringOf(r["Customer_ID"]),
			"Gender":                     firstUpper(r["Gender"], "U"),
			"Age_Range":                  stringOf(r["Age"]),
			"Occupation":                 occupation,
			"City_Category":              firstUpper(r["City_Category"], "Z"),
			"Stay_In_Current_City_Years": stringOf(r["Stay_In_Current_City_Years"]),
			"Marital_Status":             marital,
		}, nil
	})
	if err != nil {
		return nil, transformErr(src.Name(), err)
	}
	logger.Info(ctx, "transformed customers, rows:%v, dropped:%v", out.Len(), src.Len()-out.Len())
	return out.WithName(CustomerDim.String()), nil
}

// ProductDimensions is the product extract split into its three dimensions.
type ProductDimensions struct {
	Product  *dataset.Dataset
	Store    *dataset.Dataset
	Supplier *dataset.Dataset
}

// TransformProducts derives Product_Dim, Store_Dim and Supplier_Dim from the
// product extract. Stores and suppliers are the distinct non-blank id/name
// pairs; products with any blank field are dropped.
func TransformProducts(ctx context.Context, src *dataset.Dataset) (*ProductDimensions, error) {
	if err := src.Require(ProductColumns...); err != nil {
		return nil, err
	}
	stores, err := pairs(src, "storeID", "storeName", StoreDim)
	if err != nil {
		return nil, err
	}
	suppliers, err := pairs(src, "supplierID", "supplierName", SupplierDim)
	if err != nil {
		return nil, err
	}
	products, err := src.DropNull("Product_ID", "Product_Category", "price$", "storeID", "supplierID").
		Map(ProductDim.Descriptor().ColumnNames(), func(r dataset.Row) (dataset.Row, error) {
			price, ok := dataset.AsFloat64(r["price$"])
			if !ok {
				return nil, errors.Errorf("price$: not a number: %v", r["price$"])
			}
			storeID, err := intOr(r["storeID"], 0, "storeID")
			if err != nil {
				return nil, err
			}
			supplierID, err := intOr(r["supplierID"], 0, "supplierID")
			if err != nil {
				return nil, err
			}
			return dataset.Row{
				"Product_ID":       stringOf(r["Product_ID"]),
				"Product_Category": stringOf(r["Product_Category"]),
				"Price":            price,
				"Store_ID":         storeID,
				"Supplier_ID":      supplierID,
			}, nil
		})
	if err != nil {
		return nil, transformErr(src.Name(), err)
	}
	logger.Info(ctx, "transformed products, products:%v, stores:%v, suppliers:%v", products.Len(), stores.Len(), suppliers.Len())
	return &ProductDimensions{
		Product:  products.WithName(ProductDim.String()),
		Store:    stores,
		Supplier: suppliers,
	}, nil
}

// pairs extracts the distinct (id, name) pairs of a dimension embedded in the product extract
func pairs(src *dataset.Dataset, idCol, nameCol string, t Table) (*dataset.Dataset, error) {
	cols := t.Descriptor().ColumnNames()
	out, err := src.DropNull(idCol, nameCol).Map(cols, func(r dataset.Row) (dataset.Row, error) {
		id, err := intOr(r[idCol], 0, idCol)
		if err != nil {
			return nil, err
		}
		return dataset.Row{cols[0]: id, cols[1]: stringOf(r[nameCol])}, nil
	})
	if err != nil {
		return nil, transformErr(src.Name(), err)
	}
	out, err = out.Distinct()
	if err != nil {
		return nil, transformErr(src.Name(), err)
	}
	return out.WithName(t.String()), nil
}

// CleanTransactions types the transaction extract: ids as strings, orderID
// and quantity as integers and date truncated to the day. Rows with a blank
// field are dropped; a value that does not parse fails the transform.
func CleanTransactions(ctx context.Context, src *dataset.Dataset) (*dataset.Dataset, error) {
	if err := src.Require(TransactionColumns...); err != nil {
		return nil, err
	}
	out, err := src.DropNull(TransactionColumns...).Map(TransactionColumns, func(r dataset.Row) (dataset.Row, error) {
		orderID, err := intOr(r["orderID"], 0, "orderID")
		if err != nil {
			return nil, err
		}
		quantity, err := intOr(r["quantity"], 0, "quantity")
		if err != nil {
			return nil, err
		}
		day, ok := dataset.AsTime(r["date"])
		if !ok {
			return nil, errors.Errorf("date: not a date: %v", r["date"])
		}
		return dataset.Row{
			"orderID":     orderID,
			"Customer_ID": stringOf(r["Customer_ID"]),
			"Product_ID":  stringOf(r["Product_ID"]),
			"quantity":    quantity,
			"date":        dataset.Day(day),
		}, nil
	})
	if err != nil {
		return nil, transformErr(src.Name(), err)
	}
	logger.Info(ctx, "cleaned transactions, rows:%v, dropped:%v", out.Len(), src.Len()-out.Len())
	return out.WithName("transaction"), nil
}
