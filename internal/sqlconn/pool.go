// Package sqlconn runs federated SQL over database/sql.
//
// A Pool opens one *sql.DB per configured connection and implements
// federation.Transport. Connections that fail to open or ping are kept in
// the registry as not connected, so the executor skips them.
package sqlconn

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/fedsql/internal/config"
	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
)

// DefaultPingTimeout bounds the connectivity check for each connection.
const DefaultPingTimeout = 5 * time.Second

// ErrNoDriver is recorded for connection types with no registered driver.
var ErrNoDriver = errors.New("no database/sql driver for connection type")

// driverNames maps connection types to registered database/sql drivers.
var driverNames = map[queryir.Dialect]string{
	queryir.Postgres: "postgres",
	queryir.MySQL:    "mysql",
	queryir.SQLite:   "sqlite3",
}

type entry struct {
	info federation.ConnectionInfo
	db   *sql.DB
	err  error
}

// Pool is a registry of open database handles.
//
// Thread-safety: all methods are safe for concurrent use; *sql.DB handles
// its own pooling.
type Pool struct {
	mu      sync.RWMutex
	entries []*entry
	byID    map[string]*entry
	logger  *slog.Logger

	pingTimeout time.Duration
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger overrides the logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithPingTimeout overrides DefaultPingTimeout.
func WithPingTimeout(d time.Duration) Option {
	return func(p *Pool) { p.pingTimeout = d }
}

// Open opens and pings every connection. It does not fail as a whole:
// per-connection problems are available through Err.
func Open(ctx context.Context, conns []config.Connection, opts ...Option) *Pool {
	p := &Pool{
		byID:        make(map[string]*entry, len(conns)),
		logger:      slog.Default(),
		pingTimeout: DefaultPingTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, c := range conns {
		e := &entry{info: federation.ConnectionInfo{ID: c.ID, Name: c.Name, Type: c.Type}}
		e.db, e.err = p.open(ctx, c)
		e.info.IsConnected = e.err == nil

		if e.err != nil {
			p.logger.Warn("connection unavailable", "connection_id", c.ID, "type", c.Type, "error", e.err)
		} else {
			p.logger.Debug("connection open", "connection_id", c.ID, "type", c.Type)
		}

		p.entries = append(p.entries, e)
		p.byID[c.ID] = e
	}
	return p
}

func (p *Pool) open(ctx context.Context, c config.Connection) (*sql.DB, error) {
	dialect, err := queryir.ParseDialect(c.Type)
	if err != nil {
		return nil, err
	}
	driver, ok := driverNames[dialect]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDriver, dialect)
	}

	db, err := sql.Open(driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", c.ID, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, p.pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", c.ID, err)
	}

	if dialect == queryir.SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure %s: %w", c.ID, err)
		}
	}
	return db, nil
}

// Connections returns a snapshot of the registry in configuration order.
func (p *Pool) Connections() []federation.ConnectionInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]federation.ConnectionInfo, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.info
	}
	return out
}

// Err returns why a connection is not connected, or nil.
func (p *Pool) Err(connectionID string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, ok := p.byID[connectionID]
	if !ok {
		return fmt.Errorf("unknown connection %q", connectionID)
	}
	return e.err
}

// ExecuteOnConnection implements federation.Transport.
//
// Every column value is scanned as-is except []byte, which becomes string
// so results stay printable and JSON-friendly.
func (p *Pool) ExecuteOnConnection(ctx context.Context, connectionID, query string) (*federation.TransportResult, error) {
	p.mu.RLock()
	e, ok := p.byID[connectionID]
	var db *sql.DB
	var openErr error
	if ok {
		db, openErr = e.db, e.err
	}
	p.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown connection %q", connectionID)
	}
	if db == nil {
		return &federation.TransportResult{Message: fmt.Sprintf("connection %s is not open: %v", connectionID, openErr)}, nil
	}

	start := time.Now()
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", connectionID, err)
	}
	defer rows.Close()

	data, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", connectionID, err)
	}
	data.ExecutionTime = time.Since(start)

	return &federation.TransportResult{Success: true, Data: data}, nil
}

func scanRows(rows *sql.Rows) (*federation.ResultData, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	data := &federation.ResultData{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		data.Rows = append(data.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	data.RowCount = len(data.Rows)
	return data, nil
}

// Close closes every open handle.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for _, e := range p.entries {
		if e.db == nil {
			continue
		}
		if err := e.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", e.info.ID, err))
		}
		e.db = nil
		e.info.IsConnected = false
	}
	return errors.Join(errs...)
}
