// Package mssql registers the "mssql" store backend on go-mssqldb. Upserts
// are written as MERGE statements.
package mssql

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/chararch/starbatch/store"
)

func init() {
	store.Register("mssql", Open)
}

func Open(ctx context.Context, cfg store.Config) (store.Store, error) {
	dsn := DSN(cfg)
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	return store.OpenDB(ctx, "sqlserver", dsn, Dialect{}, cfg.MaxOpenConns)
}

// DSN returns cfg.DSN or a sqlserver:// URL built from cfg.
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
		port = 1433
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     host + ":" + strconv.Itoa(port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Dialect renders T-SQL with @pN markers.
type Dialect struct{}

var _ store.Dialect = Dialect{}

func (Dialect) Name() string { return "mssql" }

func (Dialect) Placeholder(i int) string { return "@p" + strconv.Itoa(i) }

func (Dialect) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

// MaxParams stays one below the 2100 parameter limit of an RPC call.
func (Dialect) MaxParams() int { return 2099 }

// MaxRows is the row limit of a table value constructor.
func (Dialect) MaxRows() int { return 1000 }

func (d Dialect) WriteSQL(t *store.TableDescriptor, nrows int) string {
	if !t.Upsert() {
		return store.InsertSQL(d, t, nrows)
	}
	cols := t.ColumnNames()
	on := make([]string, len(t.ConflictKeys))
	for i, k := range t.ConflictKeys {
		q := d.Quote(k)
		on[i] = fmt.Sprintf("tgt.%s = src.%s", q, q)
	}
	srcCols := make([]string, len(cols))
	for i, c := range cols {
		srcCols[i] = "src." + d.Quote(c)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s WITH (HOLDLOCK) AS tgt USING (VALUES %s) AS src (%s) ON %s",
		d.Quote(t.Name), store.ValuesList(d, len(cols), nrows), store.QuoteAll(d, cols), strings.Join(on, " AND "))
	if update := t.UpdateColumns(); len(update) > 0 {
		sets := make([]string, len(update))
		for i, c := range update {
			q := d.Quote(c)
			sets[i] = fmt.Sprintf("tgt.%s = src.%s", q, q)
		}
		fmt.Fprintf(&sb, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		store.QuoteAll(d, cols), strings.Join(srcCols, ", "))
	return sb.String()
}

func (d Dialect) CreateTableSQL(t *store.TableDescriptor) string {
	create := store.CreateTableSQL(d, t, func(c store.Column) string {
		switch c.Type {
		case store.Int:
			return "INT"
		case store.Decimal:
			return "DECIMAL(12,2)"
		case store.Date:
			return "DATE"
		}
		size := c.Size
		if size <= 0 {
			size = 255
		}
		return fmt.Sprintf("NVARCHAR(%d)", size)
	})
	create = strings.Replace(create, "CREATE TABLE IF NOT EXISTS", "CREATE TABLE", 1)
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s", strings.ReplaceAll(t.Name, "'", "''"), create)
}

func (Dialect) Bind(v interface{}) interface{} { return v }
