package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/dataset"
)

func rawCustomers() *dataset.Dataset {
	return dataset.New("customer", CustomerColumns,
		dataset.Row{"Customer_ID": "1000001", "Gender": "f", "Age": "0-17", "Occupation": "10", "City_Category": "a", "Stay_In_Current_City_Years": "2", "Marital_Status": "0"},
		dataset.Row{"Customer_ID": "1000002", "Gender": "", "Age": "55+", "Occupation": "", "City_Category": "", "Stay_In_Current_City_Years": "4+", "Marital_Status": ""},
		dataset.Row{"Customer_ID": "", "Gender": "M", "Age": "26-35", "Occupation": "7", "City_Category": "C", "Stay_In_Current_City_Years": "1", "Marital_Status": "1"},
	)
}

func rawProducts() *dataset.Dataset {
	return dataset.New("product", ProductColumns,
		dataset.Row{"Product_ID": "P00001", "Product_Category": "Electronics", "price$": "10.50", "storeID": "1", "supplierID": "10", "storeName": "North", "supplierName": "Acme"},
		dataset.Row{"Product_ID": "P00002", "Product_Category": "Grocery", "price$": "2", "storeID": "1", "supplierID": "11", "storeName": "North", "supplierName": "Bolt"},
		dataset.Row{"Product_ID": "P00003", "Product_Category": "", "price$": "3", "storeID": "2", "supplierID": "10", "storeName": "South", "supplierName": "Acme"},
	)
}

func rawTransactions() *dataset.Dataset {
	return dataset.New("transaction", TransactionColumns,
		dataset.Row{"orderID": "1", "Customer_ID": "1000001", "Product_ID": "P00001", "quantity": "2", "date": "2019-03-01"},
		dataset.Row{"orderID": "2", "Customer_ID": "1000002", "Product_ID": "P00002", "quantity": "5", "date": "2019-03-02 14:30:00"},
		dataset.Row{"orderID": "3", "Customer_ID": "1000001", "Product_ID": "P00009", "quantity": "1", "date": "2019-03-02"},
		dataset.Row{"orderID": "4", "Customer_ID": "1000002", "Product_ID": "P00001", "quantity": "", "date": "2019-03-02"},
	)
}

func TestTransformCustomers(t *testing.T) {
	out, err := TransformCustomers(context.Background(), rawCustomers())
	assert.Equal(t, nil, err)
	assert.Equal(t, CustomerDim.Descriptor().ColumnNames(), out.Columns())
	assert.Equal(t, 2, out.Len())
	assert.Equal(t, dataset.Row{
		"Customer_ID": "1000001", "Gender": "F", "Age_Range": "0-17", "Occupation": int64(10),
		"City_Category": "A", "Stay_In_Current_City_Years": "2", "Marital_Status": int64(0),
	}, out.Row(0))
	second := out.Row(1)
	assert.Equal(t, "U", second["Gender"])
	assert.Equal(t, "Z", second["City_Category"])
	assert.Equal(t, int64(0), second["Occupation"])
	assert.Equal(t, int64(0), second["Marital_Status"])

	bad := dataset.New("customer", CustomerColumns, dataset.Row{"Customer_ID": "1", "Occupation": "engineer"})
	_, err = TransformCustomers(context.Background(), bad)
	assert.Equal(t, starbatch.ErrCodeTransform, starbatch.ErrCode(err))

	_, err = TransformCustomers(context.Background(), dataset.New("customer", []string{"Customer_ID"}))
	var se *dataset.SchemaError
	assert.T(t, errors.As(err, &se))
	assert.Equal(t, "Gender", se.Column)
}

func TestTransformProducts(t *testing.T) {
	dims, err := TransformProducts(context.Background(), rawProducts())
	assert.Equal(t, nil, err)

	assert.Equal(t, 2, dims.Product.Len())
	assert.Equal(t, 10.5, dims.Product.Row(0)["Price"])
	assert.Equal(t, int64(10), dims.Product.Row(0)["Supplier_ID"])

	assert.Equal(t, "Store_Dim", dims.Store.Name())
	assert.Equal(t, 2, dims.Store.Len())
	assert.Equal(t, dataset.Row{"Store_ID": int64(1), "Store_Name": "North"}, dims.Store.Row(0))
	assert.Equal(t, 2, dims.Supplier.Len())
	assert.Equal(t, dataset.Row{"Supplier_ID": int64(11), "Supplier_Name": "Bolt"}, dims.Supplier.Row(1))
}

func TestCleanTransactions(t *testing.T) {
	out, err := CleanTransactions(context.Background(), rawTransactions())
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, out.Len())
	assert.Equal(t, time.Date(2019, 3, 2, 0, 0, 0, 0, time.UTC), out.Row(1)["date"])
	assert.Equal(t, int64(5), out.Row(1)["quantity"])

	bad := dataset.New("transaction", TransactionColumns,
		dataset.Row{"orderID": "1", "Customer_ID": "1", "Product_ID": "P", "quantity": "2", "date": "yesterday"})
	_, err = CleanTransactions(context.Background(), bad)
	assert.Equal(t, starbatch.ErrCodeTransform, starbatch.ErrCode(err))
}

func TestGenerateDates(t *testing.T) {
	ds, err := GenerateDates(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, nil, err)
	assert.Equal(t, 4, ds.Len())
	var seasons, kinds []string
	ds.Each(func(i int, r dataset.Row) bool {
		seasons = append(seasons, r["Season"].(string))
		kinds = append(kinds, r["Weekday_Weekend"].(string))
		return true
	})
	assert.Equal(t, []string{"Winter", "Winter", "Spring", "Spring"}, seasons)
	// Wed, Thu, Fri, Sat
	assert.Equal(t, []string{"Weekday", "Weekday", "Weekday", "Weekend"}, kinds)
	first := ds.Row(0)
	assert.Equal(t, int64(1), first["Date_ID"])
	assert.Equal(t, "February", first["Month_Name"])
	assert.Equal(t, "Q1", first["Quarter"])
	assert.Equal(t, int64(2024), first["Year"])
	assert.Equal(t, int64(4), ds.Row(3)["Date_ID"])

	_, err = GenerateDates(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.NotEqual(t, nil, err)

	assert.Equal(t, "Fall", Season(time.October))
	assert.Equal(t, "Summer", Season(time.July))
}

func TestPrepareFacts(t *testing.T) {
	ctx := context.Background()
	dims, err := TransformProducts(ctx, rawProducts())
	assert.Equal(t, nil, err)
	trans, err := CleanTransactions(ctx, rawTransactions())
	assert.Equal(t, nil, err)
	dates, err := GenerateDates(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, nil, err)

	// order 2 falls outside the dates, order 3 has an unknown product
	facts, err := PrepareFacts(ctx, trans, dims.Product, dates)
	assert.Equal(t, nil, err)
	assert.Equal(t, SalesFact.Descriptor().ColumnNames(), facts.Columns())
	assert.Equal(t, 1, facts.Len())
	assert.Equal(t, dataset.Row{
		"OrderID": int64(1), "Customer_ID": "1000001", "Product_ID": "P00001", "Store_ID": int64(1),
		"Supplier_ID": int64(10), "Date_ID": int64(1), "Quantity": int64(2), "Total_Amount": 21.0, "Revenue": 21.0,
	}, facts.Row(0))

	_, err = PrepareFacts(ctx, trans, dataset.New("p", []string{"Product_ID"}), dates)
	var se *dataset.SchemaError
	assert.T(t, errors.As(err, &se))
}

func TestParseTable(t *testing.T) {
	tb, err := ParseTable("sales_fact")
	assert.Equal(t, nil, err)
	assert.Equal(t, SalesFact, tb)
	assert.T(t, tb.IsFact())
	assert.Equal(t, 1000, tb.DefaultBatchSize())
	_, err = ParseTable("Orders")
	assert.NotEqual(t, nil, err)
}
