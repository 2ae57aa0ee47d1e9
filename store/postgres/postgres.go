// Package postgres registers the "postgres" store backend on pgx's database/sql driver.
package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chararch/starbatch/store"
)

func init() {
	store.Register("postgres", Open)
}

func Open(ctx context.Context, cfg store.Config) (store.Store, error) {
	dsn := DSN(cfg)
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return nil, fmt.Errorf("postgres dsn: %w", err)
	}
	return store.OpenDB(ctx, "pgx", dsn, Dialect{}, cfg.MaxOpenConns)
}

// DSN returns cfg.DSN or a postgres:// URL built from cfg.
func DSN(cfg store.Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Dialect renders PostgreSQL SQL with $n markers and ON CONFLICT upserts.
type Dialect struct{}

var _ store.Dialect = Dialect{}

func (Dialect) Name() string { return "postgres" }

func (Dialect) Placeholder(i int) string { return "$" + strconv.Itoa(i) }

func (Dialect) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

func (Dialect) MaxParams() int { return 65535 }

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
			return "NUMERIC(12,2)"
		case store.Date:
			return "DATE"
		}
		if c.Size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", c.Size)
		}
		return "TEXT"
	})
}

func (Dialect) Bind(v interface{}) interface{} { return v }
