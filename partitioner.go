package starbatch

import (
	"fmt"

	"github.com/chararch/starbatch/dataset"
)

//Batch is a contiguous slice of a dataset bound for one table, loaded and committed as a unit
type Batch struct {
	Index int
	Table string
	Rows  *dataset.Dataset
}

//Name identifies the batch in logs, e.g. Store_Dim:0003
func (b Batch) Name() string {
	return fmt.Sprintf("%s:%04d", b.Table, b.Index)
}

func (b Batch) Len() int {
	return b.Rows.Len()
}

//Partition splits ds into batches of size rows in order: batch i holds rows [i*size, (i+1)*size).
//The last batch may be shorter; an empty dataset yields no batches.
func Partition(ds *dataset.Dataset, table string, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}
	count := ds.Len()
	if count == 0 {
		return nil
	}
	batches := make([]Batch, 0, (count+size-1)/size)
	for i, start := 0, 0; start < count; i, start = i+1, start+size {
		end := start + size
		if end > count {
			end = count
		}
		batches = append(batches, Batch{
			Index: i,
			Table: table,
			Rows:  ds.Slice(start, end),
		})
	}
	return batches
}
