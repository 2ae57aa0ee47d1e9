package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PingTimeout bounds the connectivity check done when a backend is opened.
var PingTimeout = 5 * time.Second

// DB implements Store on top of database/sql.
type DB struct {
	db      *sql.DB
	dialect Dialect
}

var _ Store = (*DB)(nil)

// OpenDB opens driverName with dsn and pings it before returning.
func OpenDB(ctx context.Context, driverName, dsn string, d Dialect, maxOpen int) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name(), err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	pingCtx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name(), err)
	}
	return &DB{db: db, dialect: d}, nil
}

// NewDB wraps an already opened *sql.DB.
func NewDB(db *sql.DB, d Dialect) *DB {
	return &DB{db: db, dialect: d}
}

// SQL exposes the underlying pool.
func (s *DB) SQL() *sql.DB {
	return s.db
}

func (s *DB) Dialect() Dialect {
	return s.dialect
}

func (s *DB) Connect(ctx context.Context) (Conn, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &sqlConn{conn: conn, tx: tx}, nil
}

func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) QueryRow(ctx context.Context, query string, args ...interface{}) Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *DB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *DB) Close() error {
	return s.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
	tx   *sql.Tx
	done bool
}

func (c *sqlConn) ExecBatch(ctx context.Context, stmt *Statement, rows [][]interface{}) (int64, error) {
	if c.done {
		return 0, sql.ErrTxDone
	}
	var affected int64
	step := stmt.ChunkRows()
	for start := 0; start < len(rows); start += step {
		end := start + step
		if end > len(rows) {
			end = len(rows)
		}
		args, err := stmt.Args(rows[start:end])
		if err != nil {
			return affected, err
		}
		res, err := c.tx.ExecContext(ctx, stmt.SQL(end-start), args...)
		if err != nil {
			return affected, fmt.Errorf("%s rows %d-%d: %w", stmt.Table.Name, start, end-1, err)
		}
		n, err := res.RowsAffected()
		if err == nil {
			affected += n
		}
	}
	return affected, nil
}

func (c *sqlConn) Commit() error {
	if c.done {
		return sql.ErrTxDone
	}
	c.done = true
	return c.tx.Commit()
}

func (c *sqlConn) Close() error {
	if !c.done {
		c.done = true
		_ = c.tx.Rollback()
	}
	return c.conn.Close()
}
