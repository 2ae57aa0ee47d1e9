package warehouse

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/file"
)

// Extract holds the three source datasets of a run.
type Extract struct {
	Customer    *dataset.Dataset
	Product     *dataset.Dataset
	Transaction *dataset.Dataset
}

// Extractor supplies the source datasets of a run.
type Extractor interface {
	Extract(ctx context.Context, execution *starbatch.RunExecution) (*Extract, error)
}

// CSVExtractor reads the three extracts from one file storage concurrently.
// Paths may carry {param} placeholders resolved from the run params.
type CSVExtractor struct {
	Storage     file.FileStorage
	Customer    starbatch.FilePath
	Product     starbatch.FilePath
	Transaction starbatch.FilePath
	Type        string
	Checksum    string
}

// DefaultSources are the extract names the pipeline reads when none are configured.
var DefaultSources = map[string]string{
	"customer":    "customer_master_data.csv",
	"product":     "product_master_data.csv",
	"transaction": "transactional_data.csv",
}

func (e *CSVExtractor) Extract(ctx context.Context, execution *starbatch.RunExecution) (*Extract, error) {
	start := time.Now()
	out := &Extract{}
	g, gctx := errgroup.WithContext(ctx)
	read := func(name string, path starbatch.FilePath, dst **dataset.Dataset) {
		g.Go(func() error {
			fileName, err := path.Format(execution)
			if err != nil {
				return starbatch.NewBatchError(starbatch.ErrCodeGeneral, "resolve %v source", name, err)
			}
			ds, err := file.Read(gctx, file.FileDescriptor{
				FileStore: e.Storage,
				FileName:  fileName,
				Type:      e.Type,
				Checksum:  e.Checksum,
			})
			if err != nil {
				return starbatch.NewBatchError(starbatch.ErrCodeGeneral, "extract %v from %v", name, fileName, err)
			}
			*dst = ds.WithName(name)
			logger.Info(gctx, "extracted %v, file:%v, rows:%v", name, fileName, ds.Len())
			return nil
		})
	}
	read("customer", e.Customer, &out.Customer)
	read("product", e.Product, &out.Product)
	read("transaction", e.Transaction, &out.Transaction)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logger.Info(ctx, "extract finished, customers:%v, products:%v, transactions:%v, elapsed:%v",
		out.Customer.Len(), out.Product.Len(), out.Transaction.Len(), time.Since(start))
	return out, nil
}

// StaticExtractor returns datasets already in memory.
type StaticExtractor Extract

func (e *StaticExtractor) Extract(ctx context.Context, execution *starbatch.RunExecution) (*Extract, error) {
	out := Extract(*e)
	return &out, nil
}
