package starbatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/status"
	"github.com/chararch/starbatch/store"
	_ "github.com/chararch/starbatch/store/sqlite"
)

var customerTable = &store.TableDescriptor{
	Name: "Customer_Dim",
	Columns: []store.Column{
		{Name: "Customer_ID", Type: store.String, Size: 20},
		{Name: "Gender", Type: store.String, Size: 1},
	},
	ConflictKeys: []string{"Customer_ID"},
}

func openSqlite(t *testing.T) store.Store {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Kind: "sqlite", Database: filepath.Join(t.TempDir(), "dw.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err = s.Exec(ctx, s.Dialect().CreateTableSQL(customerTable)); err != nil {
		t.Fatal(err)
	}
	return s
}

func customers(n int) *dataset.Dataset {
	ds := dataset.New("customer", []string{"Customer_ID", "Gender"})
	for i := 0; i < n; i++ {
		g := "M"
		if i%2 == 1 {
			g = "F"
		}
		ds.Append(dataset.Row{"Customer_ID": fmt.Sprintf("C%05d", i), "Gender": g})
	}
	return ds
}

func tableCount(t *testing.T, s store.Store, table string) int {
	var n int
	err := s.QueryRow(context.Background(), fmt.Sprintf("SELECT COUNT(*) FROM %s", s.Dialect().Quote(table))).Scan(&n)
	assert.Equal(t, nil, err)
	return n
}

// faultyStore fails Connect or Commit for selected connection ordinals.
type faultyStore struct {
	store.Store
	mu          sync.Mutex
	connects    int
	failConnect map[int]bool
	failCommit  bool
}

func (s *faultyStore) Connect(ctx context.Context) (store.Conn, error) {
	s.mu.Lock()
	n := s.connects
	s.connects++
	s.mu.Unlock()
	if s.failConnect[n] {
		return nil, fmt.Errorf("injected connect failure %d", n)
	}
	conn, err := s.Store.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &faultyConn{Conn: conn, failCommit: s.failCommit}, nil
}

type faultyConn struct {
	store.Conn
	failCommit bool
}

func (c *faultyConn) Commit() error {
	if c.failCommit {
		return fmt.Errorf("injected commit failure")
	}
	return c.Conn.Commit()
}

type recordingListener struct {
	mu      sync.Mutex
	results []LoadResult
}

func (l *recordingListener) AfterBatch(ctx context.Context, result LoadResult) {
	l.mu.Lock()
	l.results = append(l.results, result)
	l.mu.Unlock()
}

func TestPartition(t *testing.T) {
	ds := customers(7)
	batches := Partition(ds, "Customer_Dim", 3)
	assert.Equal(t, 3, len(batches))
	assert.Equal(t, 3, batches[0].Len())
	assert.Equal(t, 1, batches[2].Len())
	assert.Equal(t, "C00003", batches[1].Rows.Row(0)["Customer_ID"])
	assert.Equal(t, "C00006", batches[2].Rows.Row(0)["Customer_ID"])
	assert.Equal(t, "Customer_Dim:0002", batches[2].Name())

	assert.Equal(t, 0, len(Partition(customers(0), "Customer_Dim", 3)))
	assert.Equal(t, 2, len(Partition(customers(6), "Customer_Dim", 3)))
}

func TestParallelLoad_Conservation(t *testing.T) {
	ctx := context.Background()
	s := openSqlite(t)
	rec := &recordingListener{}
	loader := NewLoader(s, 4, WithBatchListener(rec))

	ds := customers(1037)
	summary := loader.ParallelLoad(ctx, customerTable, ds, 100)
	assert.Equal(t, 11, summary.Batches)
	assert.Equal(t, 0, summary.FailedBatches)
	assert.Equal(t, status.COMPLETED, summary.Status())
	assert.Equal(t, int64(ds.Len()), summary.RowsLoaded)
	assert.Equal(t, 11, len(summary.Results))
	for i, r := range summary.Results {
		assert.Equal(t, i, r.Batch)
		assert.Equal(t, status.COMPLETED, r.Status)
	}
	assert.Equal(t, 11, len(rec.results))
	assert.Equal(t, 1037, tableCount(t, s, "Customer_Dim"))

	// upserting the same rows again leaves the count unchanged
	summary = loader.ParallelLoad(ctx, customerTable, ds, 100)
	assert.Equal(t, 0, summary.FailedBatches)
	assert.Equal(t, 1037, tableCount(t, s, "Customer_Dim"))
}

func TestParallelLoad_PartialFailure(t *testing.T) {
	ctx := context.Background()
	s := &faultyStore{Store: openSqlite(t), failConnect: map[int]bool{2: true}}
	loader := NewLoader(s, 1)

	summary := loader.ParallelLoad(ctx, customerTable, customers(50), 10)
	assert.Equal(t, 5, summary.Batches)
	assert.Equal(t, 1, summary.FailedBatches)
	assert.Equal(t, status.FAILED, summary.Status())
	assert.Equal(t, int64(40), summary.RowsLoaded)
	assert.Equal(t, 5, len(summary.Results))
	failed := 0
	for _, r := range summary.Results {
		if r.Failed() {
			failed++
			assert.Equal(t, int64(0), r.RowsLoaded)
			assert.Equal(t, ErrCodeBatchLoad, ErrCode(r.Err))
		} else {
			assert.Equal(t, int64(10), r.RowsLoaded)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1, len(summary.Errors()))
	assert.Equal(t, 40, tableCount(t, s, "Customer_Dim"))
}

func TestLoadBatch_CommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	base := openSqlite(t)
	loader := NewLoader(&faultyStore{Store: base, failCommit: true}, 2)

	batch := Partition(customers(5), customerTable.Name, 5)[0]
	res := loader.LoadBatch(ctx, customerTable, batch)
	assert.Equal(t, status.FAILED, res.Status)
	assert.Equal(t, int64(0), res.RowsLoaded)
	assert.NotEqual(t, nil, res.Err)
	assert.Equal(t, 0, tableCount(t, base, "Customer_Dim"))
}

func TestLoadBatch_MissingColumn(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(openSqlite(t), 2)
	ds := dataset.New("customer", []string{"Customer_ID"}, dataset.Row{"Customer_ID": "C1"})
	res := loader.LoadBatch(ctx, customerTable, Partition(ds, customerTable.Name, 10)[0])
	assert.T(t, res.Failed())
	assert.Equal(t, ErrCodeBatchLoad, ErrCode(res.Err))
}

// blockingStore lets the test observe how many batches hold a connection at once.
type blockingStore struct {
	store.Store
	active, peak int32
}

func (s *blockingStore) Connect(ctx context.Context) (store.Conn, error) {
	n := atomic.AddInt32(&s.active, 1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	time.Sleep(2 * time.Millisecond)
	return &countedConn{Conn: nopConn{}, s: s}, nil
}

type countedConn struct {
	store.Conn
	s *blockingStore
}

func (c *countedConn) Close() error {
	atomic.AddInt32(&c.s.active, -1)
	return nil
}

type nopConn struct{}

func (nopConn) ExecBatch(ctx context.Context, stmt *store.Statement, rows [][]interface{}) (int64, error) {
	return int64(len(rows)), nil
}
func (nopConn) Commit() error { return nil }
func (nopConn) Close() error  { return nil }

func TestParallelLoad_BoundedWorkers(t *testing.T) {
	ctx := context.Background()
	s := &blockingStore{Store: openSqlite(t)}
	summary := NewLoader(s, 3).ParallelLoad(ctx, customerTable, customers(200), 10)
	assert.Equal(t, 0, summary.FailedBatches)
	assert.Equal(t, int64(200), summary.RowsLoaded)
	assert.T(t, atomic.LoadInt32(&s.peak) <= 3, "peak", s.peak)
	assert.Equal(t, int32(0), atomic.LoadInt32(&s.active))
}

// writtenStore keeps the rows each batch hands to ExecBatch.
type writtenStore struct {
	store.Store
	mu   sync.Mutex
	rows [][]interface{}
}

func (s *writtenStore) Connect(ctx context.Context) (store.Conn, error) {
	conn, err := s.Store.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &writtenConn{Conn: conn, s: s}, nil
}

type writtenConn struct {
	store.Conn
	s *writtenStore
}

func (c *writtenConn) ExecBatch(ctx context.Context, stmt *store.Statement, rows [][]interface{}) (int64, error) {
	c.s.mu.Lock()
	c.s.rows = append(c.s.rows, rows...)
	c.s.mu.Unlock()
	return c.Conn.ExecBatch(ctx, stmt, rows)
}

func TestLoadBatch_DuplicateKeyInBatch(t *testing.T) {
	ctx := context.Background()
	s := &writtenStore{Store: openSqlite(t)}
	ds := dataset.New("customer", []string{"Customer_ID", "Gender"},
		dataset.Row{"Customer_ID": "C1", "Gender": "M"},
		dataset.Row{"Customer_ID": "C2", "Gender": "M"},
		dataset.Row{"Customer_ID": "C1", "Gender": "F"},
	)
	res := NewLoader(s, 1).LoadBatch(ctx, customerTable, Partition(ds, customerTable.Name, 10)[0])
	assert.Equal(t, nil, res.Err)
	assert.Equal(t, status.COMPLETED, res.Status)
	assert.Equal(t, int64(3), res.RowsLoaded)
	assert.Equal(t, [][]interface{}{{"C1", "F"}, {"C2", "M"}}, s.rows)
	assert.Equal(t, 2, tableCount(t, s, "Customer_Dim"))

	var gender string
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", s.Dialect().Quote("Gender"), s.Dialect().Quote("Customer_Dim"), s.Dialect().Quote("Customer_ID"))
	assert.Equal(t, nil, s.QueryRow(ctx, q, "C1").Scan(&gender))
	assert.Equal(t, "F", gender)
}

func TestCollapseKeys(t *testing.T) {
	rows := [][]interface{}{{int64(1), "a"}, {int64(2), "b"}, {int64(1), "c"}, {"1", "d"}}
	keep := &store.TableDescriptor{
		Name:         "Date_Dim",
		Columns:      []store.Column{{Name: "Date_ID", Type: store.Int}, {Name: "Day"}},
		ConflictKeys: []string{"Date_ID"},
		KeepExisting: true,
	}
	assert.Equal(t, [][]interface{}{{int64(1), "a"}, {int64(2), "b"}, {"1", "d"}}, collapseKeys(keep, rows))

	update := *keep
	update.KeepExisting = false
	assert.Equal(t, [][]interface{}{{int64(1), "c"}, {int64(2), "b"}, {"1", "d"}}, collapseKeys(&update, rows))

	insert := *keep
	insert.InsertOnly = true
	assert.Equal(t, 4, len(collapseKeys(&insert, rows)))
}
