package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bmizerany/assert"

	"github.com/chararch/starbatch/store"
)

var storeDim = &store.TableDescriptor{
	Name: "Store_Dim",
	Columns: []store.Column{
		{Name: "Store_ID", Type: store.Int},
		{Name: "Store_Name", Type: store.String},
	},
	ConflictKeys: []string{"Store_ID"},
}

func openTemp(t *testing.T) store.Store {
	ctx := context.Background()
	s, err := store.Open(ctx, store.Config{Kind: "sqlite", Database: filepath.Join(t.TempDir(), "dw.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Exec(ctx, s.Dialect().CreateTableSQL(storeDim)); err != nil {
		t.Fatal(err)
	}
	return s
}

func write(t *testing.T, s store.Store, rows [][]interface{}, commit bool) int64 {
	ctx := context.Background()
	conn, err := s.Connect(ctx)
	assert.Equal(t, nil, err)
	defer conn.Close()
	n, err := conn.ExecBatch(ctx, store.NewStatement(s.Dialect(), storeDim), rows)
	assert.Equal(t, nil, err)
	if commit {
		assert.Equal(t, nil, conn.Commit())
	}
	return n
}

func count(t *testing.T, s store.Store) int {
	var n int
	err := s.QueryRow(context.Background(), `SELECT COUNT(*) FROM "Store_Dim"`).Scan(&n)
	assert.Equal(t, nil, err)
	return n
}

func TestUpsertIdempotent(t *testing.T) {
	s := openTemp(t)
	rows := [][]interface{}{{1, "north"}, {2, "south"}, {3, "east"}}
	assert.Equal(t, int64(3), write(t, s, rows, true))
	assert.Equal(t, 3, count(t, s))

	write(t, s, [][]interface{}{{1, "north"}, {2, "SOUTH"}, {3, "east"}}, true)
	assert.Equal(t, 3, count(t, s))

	var name string
	err := s.QueryRow(context.Background(), `SELECT "Store_Name" FROM "Store_Dim" WHERE "Store_ID" = ?`, 2).Scan(&name)
	assert.Equal(t, nil, err)
	assert.Equal(t, "SOUTH", name)
}

func TestCloseWithoutCommitRollsBack(t *testing.T) {
	s := openTemp(t)
	write(t, s, [][]interface{}{{9, "west"}}, false)
	assert.Equal(t, 0, count(t, s))
}

func TestBindDate(t *testing.T) {
	assert.Equal(t, "2024-02-29", Dialect{}.Bind(time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5, Dialect{}.Bind(5))
}
