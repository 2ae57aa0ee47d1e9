package warehouse

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/join"
)

// PrepareFacts resolves every cleaned transaction to its product's store,
// supplier and price and to the Date_ID of its day, both through hash joins.
// Transactions that miss either join are dropped. Total_Amount is quantity
// times price and Revenue equals Total_Amount.
func PrepareFacts(ctx context.Context, transactions, products, dates *dataset.Dataset) (*dataset.Dataset, error) {
	start := time.Now()
	productKeys, err := products.Select("Product_ID", "Store_ID", "Supplier_ID", "Price")
	if err != nil {
		return nil, err
	}
	withProduct, err := join.HashJoin(ctx, transactions, productKeys, []string{"Product_ID"}, []string{"Product_ID"}, join.Inner)
	if err != nil {
		return nil, err
	}
	dateKeys, err := dates.Select("Date_ID", "Full_Date")
	if err != nil {
		return nil, err
	}
	withDate, err := join.HashJoin(ctx, withProduct, dateKeys, []string{"date"}, []string{"Full_Date"}, join.Inner)
	if err != nil {
		return nil, err
	}

	cols := SalesFact.Descriptor().ColumnNames()
	facts, err := withDate.Map(cols, func(r dataset.Row) (dataset.Row, error) {
		quantity, ok := dataset.AsInt64(r["quantity"])
		if !ok {
			return nil, errors.Errorf("quantity: not an integer: %v", r["quantity"])
		}
		price, ok := dataset.AsFloat64(r["Price"])
		if !ok {
			return nil, errors.Errorf("Price: not a number: %v", r["Price"])
		}
		total := float64(quantity) * price
		return dataset.Row{
			"OrderID":      r["orderID"],
			"Customer_ID":  r["Customer_ID"],
			"Product_ID":   r["Product_ID"],
			"Store_ID":     r["Store_ID"],
			"Supplier_ID":  r["Supplier_ID"],
			"Date_ID":      r["Date_ID"],
			"Quantity":     quantity,
			"Total_Amount": total,
			"Revenue":      total,
		}, nil
	})
	if err != nil {
		return nil, transformErr(SalesFact.String(), err)
	}
	facts, err = facts.Distinct()
	if err != nil {
		return nil, err
	}
	facts = facts.DropNull().WithName(SalesFact.String())
	logger.Info(ctx, "prepared facts, transactions:%v, joined:%v, facts:%v, elapsed:%v",
		transactions.Len(), withDate.Len(), facts.Len(), time.Since(start))
	return facts, nil
}
