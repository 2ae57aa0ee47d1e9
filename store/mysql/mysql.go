// Package mysql registers the "mysql" store backend.
package mysql

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/chararch/starbatch/store"
)

func init() {
	store.Register("mysql", Open)
}

// Open connects to MySQL described by cfg.
func Open(ctx context.Context, cfg store.Config) (store.Store, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	return store.OpenDB(ctx, "mysql", dsn, Dialect{}, cfg.MaxOpenConns)
}

// DSN builds the driver DSN. parseTime is on so DATE columns scan into time.Time.
func DSN(cfg store.Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql dsn: %w", err)
		}
		return cfg.DSN, nil
	}
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	c.Addr = fmt.Sprintf("%s:%d", host, port)
	c.DBName = cfg.Database
	c.ParseTime = true
	c.Loc = time.UTC
	c.Timeout = 10 * time.Second
	if len(cfg.Params) > 0 {
		c.Params = map[string]string{}
		for k, v := range cfg.Params {
			c.Params[k] = v
		}
	}
	return c.FormatDSN(), nil
}

// Dialect renders MySQL SQL: backquoted identifiers, '?' markers and
// ON DUPLICATE KEY UPDATE upserts.
type Dialect struct{}

var _ store.Dialect = Dialect{}

func (Dialect) Name() string { return "mysql" }

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (Dialect) MaxParams() int { return 65535 }

func (Dialect) MaxRows() int { return 0 }

func (d Dialect) WriteSQL(t *store.TableDescriptor, nrows int) string {
	insert := store.InsertSQL(d, t, nrows)
	if !t.Upsert() {
		return insert
	}
	update := t.UpdateColumns()
	sets := make([]string, 0, len(update))
	for _, c := range update {
		q := d.Quote(c)
		sets = append(sets, fmt.Sprintf("%s=VALUES(%s)", q, q))
	}
	if len(sets) == 0 {
		k := d.Quote(t.ConflictKeys[0])
		sets = append(sets, fmt.Sprintf("%s=%s", k, k))
	}
	return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

func (d Dialect) CreateTableSQL(t *store.TableDescriptor) string {
	return store.CreateTableSQL(d, t, func(c store.Column) string {
		switch c.Type {
		case store.Int:
			return "INT"
		case store.Decimal:
			return "DECIMAL(12,2)"
		case store.Date:
			return "DATE"
		}
		return fmt.Sprintf("VARCHAR(%d)", size(c))
	})
}

func (Dialect) Bind(v interface{}) interface{} { return v }

func size(c store.Column) int {
	if c.Size > 0 {
		return c.Size
	}
	return 255
}
