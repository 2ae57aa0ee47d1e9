// Package sqlite registers the "sqlite" store backend on modernc.org/sqlite.
package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chararch/starbatch/store"
)

func init() {
	store.Register("sqlite", Open)
}

// Open opens the database file cfg.Database (or cfg.DSN). SQLite allows a
// single writer, so the pool is limited to one connection and concurrent
// batches queue on it.
func Open(ctx context.Context, cfg store.Config) (store.Store, error) {
	dsn := DSN(cfg)
	if dsn == "" {
		return nil, fmt.Errorf("sqlite: database path must not be empty")
	}
	return store.OpenDB(ctx, "sqlite", dsn, Dialect{}, 1)
}

// DSN returns cfg.DSN, or a file DSN for cfg.Database with a busy timeout.
func DSN(cfg store.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return ""
	}
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	for k, v := range cfg.Params {
		q.Add(k, v)
	}
	return "file:" + cfg.Database + "?" + q.Encode()
}

// Dialect renders SQLite SQL with ON CONFLICT upserts.
type Dialect struct{}

var _ store.Dialect = Dialect{}

func (Dialect) Name() string { return "sqlite" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (Dialect) MaxParams() int { return 32766 }

func (Dialect) MaxRows() int { return 0 }

func (d Dialect) WriteSQL(t *store.TableDescriptor, nrows int) string {
	return store.OnConflictSQL(d, t, nrows)
}

func (d Dialect) CreateTableSQL(t *store.TableDescriptor) string {
	return store.CreateTableSQL(d, t, func(c store.Column) string {
		switch c.Type {
		case store.Int:
			return "INTEGER"
		case store.Decimal:
			return "REAL"
		case store.Date:
			return "DATE"
		}
		return "TEXT"
	})
}

// Bind stores dates as ISO text so they compare and sort as strings.
func (Dialect) Bind(v interface{}) interface{} {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	return v
}
