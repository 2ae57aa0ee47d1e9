// Package store is the relational store collaborator used by the loader and
// the auditor. Backends live in subpackages and register themselves by kind;
// import store/all to link every backend.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Store hands out connections for batch writes and answers read-only queries.
type Store interface {
	// Connect acquires a connection owned by the caller until Close.
	Connect(ctx context.Context) (Conn, error)
	Dialect() Dialect
	Ping(ctx context.Context) error
	QueryRow(ctx context.Context, query string, args ...interface{}) Row
	Exec(ctx context.Context, query string, args ...interface{}) error
	Close() error
}

// Conn is a single connection with one open transaction.
type Conn interface {
	// ExecBatch writes rows through stmt and returns the driver's affected row count.
	ExecBatch(ctx context.Context, stmt *Statement, rows [][]interface{}) (int64, error)
	Commit() error
	// Close releases the connection, rolling back if Commit was not called.
	Close() error
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Config selects and addresses a backend.
type Config struct {
	Kind     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// Params are appended to the backend DSN as driver options.
	Params map[string]string
	// DSN, when set, is used verbatim instead of the fields above.
	DSN          string
	MaxOpenConns int
}

// Factory opens a Store from cfg.
type Factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. It panics on duplicates.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	kind = strings.ToLower(kind)
	if _, dup := factories[kind]; dup {
		panic("store: Register called twice for " + kind)
	}
	factories[kind] = f
}

// Kinds lists the registered backends.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	kinds := make([]string, 0, len(factories))
	for k := range factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open creates a Store with the factory registered for cfg.Kind.
func Open(ctx context.Context, cfg Config) (Store, error) {
	mu.RLock()
	f, ok := factories[strings.ToLower(cfg.Kind)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown kind %q (registered: %s)", cfg.Kind, strings.Join(Kinds(), ", "))
	}
	return f(ctx, cfg)
}
