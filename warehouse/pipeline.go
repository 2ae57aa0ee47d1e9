package warehouse

import (
	"context"
	"os"
	"time"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/audit"
	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/internal/logs"
	"github.com/chararch/starbatch/store"
)

var logger logs.Logger = logs.NewLogger(os.Stdout, logs.Info)

// SetLogger replaces the logger of the warehouse steps.
func SetLogger(l logs.Logger) {
	logger = l
}

// PipelineName is the name the star-schema pipeline registers under.
const PipelineName = "star-schema"

// Run context keys.
const (
	KeyCustomerExtract    = "extract.customer"
	KeyProductExtract     = "extract.product"
	KeyTransactionExtract = "extract.transaction"
	KeyTransactions       = "transactions"
	KeyFacts              = "facts"
	KeyFactRows           = "fact_rows"
	KeyAudit              = "audit"
)

// Default date dimension range.
var (
	DefaultDateStart = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	DefaultDateEnd   = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
)

// Options configure the star-schema pipeline.
type Options struct {
	Store     store.Store
	Extractor Extractor
	// MaxWorkers bounds the concurrent batches of every table load.
	MaxWorkers int
	// BatchSizes override the per-table defaults.
	BatchSizes map[Table]int
	DateStart  time.Time
	DateEnd    time.Time
	// CreateTables issues CREATE TABLE IF NOT EXISTS for every table before loading.
	CreateTables   bool
	BatchListeners []starbatch.BatchListener
	// Listeners are RunListener or PhaseListener values.
	Listeners []interface{}
}

func (o Options) batchSize(t Table) int {
	if n, ok := o.BatchSizes[t]; ok && n > 0 {
		return n
	}
	return t.DefaultBatchSize()
}

// AuditSpec is the audit of the star schema: counts of all six tables, total
// revenue, the date range and three orphan checks on the fact table.
func AuditSpec() audit.Spec {
	tables := make([]string, 0, len(AllTables))
	for _, t := range []Table{CustomerDim, ProductDim, StoreDim, SupplierDim, DateDim, SalesFact} {
		tables = append(tables, t.String())
	}
	fact := SalesFact.String()
	return audit.Spec{
		Tables:     tables,
		Fact:       fact,
		Revenue:    "Revenue",
		DateTable:  DateDim.String(),
		DateColumn: "Full_Date",
		Orphans: []audit.Orphan{
			{Name: "Orphan Sales (Invalid Customer)", Fact: fact, Dimension: CustomerDim.String(), Column: "Customer_ID"},
			{Name: "Orphan Sales (Invalid Product)", Fact: fact, Dimension: ProductDim.String(), Column: "Product_ID"},
			{Name: "Orphan Sales (Invalid Date)", Fact: fact, Dimension: DateDim.String(), Column: "Date_ID"},
		},
	}
}

type steps struct {
	opts    Options
	loader  *starbatch.Loader
	auditor *audit.Auditor
}

// NewPipeline builds the six-step pipeline: extract, transform-dimensions,
// load-dimensions, prepare-facts, load-facts and audit.
func NewPipeline(opts Options) (starbatch.Pipeline, error) {
	if opts.Store == nil {
		return nil, starbatch.NewBatchError(starbatch.ErrCodeGeneral, "no store configured")
	}
	if opts.Extractor == nil {
		return nil, starbatch.NewBatchError(starbatch.ErrCodeGeneral, "no extractor configured")
	}
	if opts.DateStart.IsZero() {
		opts.DateStart = DefaultDateStart
	}
	if opts.DateEnd.IsZero() {
		opts.DateEnd = DefaultDateEnd
	}
	s := &steps{
		opts:    opts,
		loader:  starbatch.NewLoader(opts.Store, opts.MaxWorkers, starbatch.WithBatchListener(opts.BatchListeners...)),
		auditor: audit.New(opts.Store, AuditSpec()),
	}
	return starbatch.NewPipeline(PipelineName,
		starbatch.NewStep("extract", starbatch.ExtractReady).Handler(s.extract).Build(),
		starbatch.NewStep("transform-dimensions", starbatch.DimensionsTransformed).Handler(s.transformDimensions).Build(),
		starbatch.NewStep("load-dimensions", starbatch.DimensionsLoaded).Handler(s.loadDimensions).Build(),
		starbatch.NewStep("prepare-facts", starbatch.FactsPrepared).Handler(s.prepareFacts).Build(),
		starbatch.NewStep("load-facts", starbatch.FactsLoaded).Handler(s.loadFacts).Build(),
		starbatch.NewStep("audit", starbatch.Audited).Handler(s.audit).Build(),
	).Listener(opts.Listeners...).Build()
}

func (s *steps) extract(ctx context.Context, execution *starbatch.PhaseExecution) error {
	ex, err := s.opts.Extractor.Extract(ctx, execution.RunExecution)
	if err != nil {
		return err
	}
	run := execution.RunExecution.RunContext
	run.Put(KeyCustomerExtract, ex.Customer)
	run.Put(KeyProductExtract, ex.Product)
	run.Put(KeyTransactionExtract, ex.Transaction)
	execution.ReadCount = int64(ex.Customer.Len() + ex.Product.Len() + ex.Transaction.Len())
	return nil
}

func (s *steps) transformDimensions(ctx context.Context, execution *starbatch.PhaseExecution) error {
	run := execution.RunExecution.RunContext
	customers, err := run.GetDataset(KeyCustomerExtract)
	if err != nil {
		return err
	}
	products, err := run.GetDataset(KeyProductExtract)
	if err != nil {
		return err
	}
	transactions, err := run.GetDataset(KeyTransactionExtract)
	if err != nil {
		return err
	}

	customerDim, err := TransformCustomers(ctx, customers)
	if err != nil {
		return err
	}
	productDims, err := TransformProducts(ctx, products)
	if err != nil {
		return err
	}
	dateDim, err := GenerateDates(s.opts.DateStart, s.opts.DateEnd)
	if err != nil {
		return starbatch.NewBatchError(starbatch.ErrCodeTransform, "generate dates", err)
	}
	logger.Info(ctx, "generated dates, from:%v, to:%v, rows:%v", s.opts.DateStart.Format("2006-01-02"), s.opts.DateEnd.Format("2006-01-02"), dateDim.Len())
	cleaned, err := CleanTransactions(ctx, transactions)
	if err != nil {
		return err
	}

	run.Put(CustomerDim.String(), customerDim)
	run.Put(ProductDim.String(), productDims.Product)
	run.Put(StoreDim.String(), productDims.Store)
	run.Put(SupplierDim.String(), productDims.Supplier)
	run.Put(DateDim.String(), dateDim)
	run.Put(KeyTransactions, cleaned)
	run.Remove(KeyCustomerExtract)
	run.Remove(KeyProductExtract)
	run.Remove(KeyTransactionExtract)
	execution.ReadCount = int64(customers.Len() + products.Len() + transactions.Len())
	execution.WriteCount = int64(customerDim.Len() + productDims.Product.Len() + productDims.Store.Len() +
		productDims.Supplier.Len() + dateDim.Len() + cleaned.Len())
	return nil
}

// connected fails with a ConnectionError when the store does not answer
func (s *steps) connected(ctx context.Context) error {
	if err := s.opts.Store.Ping(ctx); err != nil {
		return starbatch.NewBatchError(starbatch.ErrCodeConnection, "store %v unreachable", s.opts.Store.Dialect().Name(), err)
	}
	return nil
}

func (s *steps) createTables(ctx context.Context) error {
	for _, stmt := range DDL(s.opts.Store.Dialect()) {
		if err := s.opts.Store.Exec(ctx, stmt); err != nil {
			return starbatch.NewBatchError(starbatch.ErrCodeConnection, "create tables", err)
		}
	}
	logger.Info(ctx, "tables ensured, count:%v", len(AllTables))
	return nil
}

func (s *steps) load(ctx context.Context, execution *starbatch.PhaseExecution, t Table, ds *dataset.Dataset) {
	summary := s.loader.ParallelLoad(ctx, t.Descriptor(), ds, s.opts.batchSize(t))
	execution.RecordLoad(summary)
	execution.ReadCount += int64(ds.Len())
	if summary.FailedBatches > 0 {
		logger.Warn(ctx, "table loaded with failures, runId:%v, table:%v, failedBatches:%v/%v", execution.RunExecution.RunId, t, summary.FailedBatches, summary.Batches)
	}
}

func (s *steps) loadDimensions(ctx context.Context, execution *starbatch.PhaseExecution) error {
	if err := s.connected(ctx); err != nil {
		return err
	}
	if s.opts.CreateTables {
		if err := s.createTables(ctx); err != nil {
			return err
		}
	}
	run := execution.RunExecution.RunContext
	for _, t := range DimensionLoadOrder {
		ds, err := run.GetDataset(t.String())
		if err != nil {
			return err
		}
		s.load(ctx, execution, t, ds)
	}
	run.Remove(CustomerDim.String())
	run.Remove(StoreDim.String())
	run.Remove(SupplierDim.String())
	return nil
}

func (s *steps) prepareFacts(ctx context.Context, execution *starbatch.PhaseExecution) error {
	run := execution.RunExecution.RunContext
	transactions, err := run.GetDataset(KeyTransactions)
	if err != nil {
		return err
	}
	products, err := run.GetDataset(ProductDim.String())
	if err != nil {
		return err
	}
	dates, err := run.GetDataset(DateDim.String())
	if err != nil {
		return err
	}
	facts, err := PrepareFacts(ctx, transactions, products, dates)
	if err != nil {
		return err
	}
	run.Put(KeyFacts, facts)
	run.Put(KeyFactRows, facts.Len())
	run.Remove(KeyTransactions)
	run.Remove(ProductDim.String())
	run.Remove(DateDim.String())
	execution.ReadCount = int64(transactions.Len())
	execution.WriteCount = int64(facts.Len())
	return nil
}

func (s *steps) loadFacts(ctx context.Context, execution *starbatch.PhaseExecution) error {
	if err := s.connected(ctx); err != nil {
		return err
	}
	run := execution.RunExecution.RunContext
	facts, err := run.GetDataset(KeyFacts)
	if err != nil {
		return err
	}
	s.load(ctx, execution, SalesFact, facts)
	run.Remove(KeyFacts)
	return nil
}

// audit never fails the phase: an unreachable store is recorded in the report
func (s *steps) audit(ctx context.Context, execution *starbatch.PhaseExecution) error {
	report := s.auditor.Run(ctx)
	execution.RunExecution.RunContext.Put(KeyAudit, report)
	if report.Err != nil {
		logger.Error(ctx, "audit incomplete, runId:%v, err:%v", execution.RunExecution.RunId, report.Err)
	}
	return nil
}
