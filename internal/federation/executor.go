package federation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/querysql"
)

// DefaultTimeout is the per-connection timeout when none is given.
const DefaultTimeout = 30 * time.Second

// Options configures one execution.
type Options struct {
	// Dialect the IR is compiled for. Default: postgres.
	Dialect queryir.Dialect

	// AddProvenance appends the __connection column. Default: true.
	AddProvenance bool

	// Timeout per connection. Default: 30s.
	Timeout time.Duration

	// MaxConcurrency caps in-flight connections. 0 means one goroutine per
	// target with no cap.
	MaxConcurrency int

	// MaxRows caps merged rows. 0 means unlimited.
	MaxRows int
}

// DefaultOptions returns the options used when no QueryOption is given.
func DefaultOptions() Options {
	return Options{
		Dialect:       queryir.Postgres,
		AddProvenance: true,
		Timeout:       DefaultTimeout,
	}
}

// QueryOption adjusts Options for one execution.
type QueryOption func(*Options)

// WithDialect sets the compilation dialect.
func WithDialect(d queryir.Dialect) QueryOption {
	return func(o *Options) { o.Dialect = d }
}

// WithProvenance enables or disables the __connection column.
func WithProvenance(enabled bool) QueryOption {
	return func(o *Options) { o.AddProvenance = enabled }
}

// WithTimeout sets the per-connection timeout.
func WithTimeout(d time.Duration) QueryOption {
	return func(o *Options) { o.Timeout = d }
}

// WithMaxConcurrency bounds the number of connections queried at once.
func WithMaxConcurrency(n int) QueryOption {
	return func(o *Options) { o.MaxConcurrency = n }
}

// WithMaxRows caps the merged row count.
func WithMaxRows(n int) QueryOption {
	return func(o *Options) { o.MaxRows = n }
}

func resolveOptions(opts []QueryOption) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Dialect == "" {
		o.Dialect = queryir.Postgres
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Executor fans a query out to many connections.
//
// The connection list is a snapshot taken at construction; the executor
// never mutates it and does not follow live connection state.
//
// Thread-safety: ExecuteQuery and ExecuteSQL may be called concurrently.
type Executor struct {
	connections []ConnectionInfo
	byID        map[string]ConnectionInfo
	transport   Transport
	idGen       IDGenerator
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithIDGenerator overrides the execution ID generator (default UUIDv7).
func WithIDGenerator(g IDGenerator) ExecutorOption {
	return func(e *Executor) { e.idGen = g }
}

// WithLogger overrides the logger (default slog.Default()).
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor over a snapshot of connections.
// The slice is copied so later changes by the caller are not observed.
func New(connections []ConnectionInfo, transport Transport, opts ...ExecutorOption) *Executor {
	snapshot := make([]ConnectionInfo, len(connections))
	copy(snapshot, connections)

	byID := make(map[string]ConnectionInfo, len(snapshot))
	for _, c := range snapshot {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = c
		}
	}

	e := &Executor{
		connections: snapshot,
		byID:        byID,
		transport:   transport,
		idGen:       UUIDv7Generator{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Connections returns a copy of the connection snapshot.
func (e *Executor) Connections() []ConnectionInfo {
	out := make([]ConnectionInfo, len(e.connections))
	copy(out, e.connections)
	return out
}

// ExecuteQuery compiles q once and runs it on every connected target.
//
// Returns *ConnectionUnavailableError before any transport call when no ID
// resolves to a connected connection, *queryir.ValidationError when q is
// structurally invalid, and the compiler's error when SQL generation fails.
// Every other failure is reported per connection inside the MergedResult.
func (e *Executor) ExecuteQuery(ctx context.Context, q *queryir.QueryIR, connectionIDs []string, opts ...QueryOption) (*MergedResult, error) {
	o := resolveOptions(opts)

	targets, err := e.resolveTargets(connectionIDs)
	if err != nil {
		return nil, err
	}

	if err := queryir.Validate(q).Err(); err != nil {
		return nil, fmt.Errorf("validate query: %w", err)
	}

	sql, err := querysql.GenerateSQL(q, o.Dialect)
	if err != nil {
		return nil, fmt.Errorf("generate sql: %w", err)
	}

	fingerprint, err := queryir.Fingerprint(q)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, sql, fingerprint, targets, o), nil
}

// ExecuteSQL runs already-compiled SQL on every connected target.
// The Dialect option is ignored.
func (e *Executor) ExecuteSQL(ctx context.Context, sql string, connectionIDs []string, opts ...QueryOption) (*MergedResult, error) {
	o := resolveOptions(opts)

	targets, err := e.resolveTargets(connectionIDs)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, sql, "", targets, o), nil
}

// resolveTargets keeps the requested IDs that are known and connected, in
// request order, dropping duplicates.
func (e *Executor) resolveTargets(connectionIDs []string) ([]ConnectionInfo, error) {
	var targets []ConnectionInfo
	seen := make(map[string]bool, len(connectionIDs))
	for _, id := range connectionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		conn, ok := e.byID[id]
		if !ok || !conn.IsConnected {
			e.logger.Debug("skipping connection", "connection_id", id, "known", ok)
			continue
		}
		targets = append(targets, conn)
	}

	if len(targets) == 0 {
		requested := make([]string, len(connectionIDs))
		copy(requested, connectionIDs)
		return nil, &ConnectionUnavailableError{Requested: requested}
	}
	return targets, nil
}

// execute runs one task per target and merges the results.
func (e *Executor) execute(ctx context.Context, sql, fingerprint string, targets []ConnectionInfo, o Options) *MergedResult {
	executionID := e.idGen.Generate()
	start := time.Now()

	e.logger.Info("federated execution starting",
		"execution_id", executionID,
		"targets", len(targets),
		"dialect", o.Dialect,
		"timeout", o.Timeout,
		"fingerprint", fingerprint,
	)

	var sem chan struct{}
	if o.MaxConcurrency > 0 {
		sem = make(chan struct{}, o.MaxConcurrency)
	}

	// Index-addressed: each task owns exactly one slot, so request order is
	// preserved without sorting or locking.
	results := make([]MultiConnectionResult, len(targets))
	var wg sync.WaitGroup
	for i, conn := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.runTask(ctx, conn, sql, o.Timeout, sem)
		}()
	}
	wg.Wait()

	merged := Merge(results, o.AddProvenance, o.MaxRows)
	merged.ExecutionID = executionID
	merged.SQL = sql
	if o.AddProvenance {
		merged.Provenance = executionID
	}
	merged.TotalExecutionTime = time.Since(start)

	e.logger.Info("federated execution finished",
		"execution_id", executionID,
		"succeeded", len(results)-len(merged.Failed()),
		"failed", len(merged.Failed()),
		"rows", len(merged.Rows),
		"truncated", merged.Truncated,
		"duration", merged.TotalExecutionTime,
	)
	return merged
}

type outcome struct {
	res *TransportResult
	err error
}

// runTask executes on one connection and converts every failure mode into
// a result. It never panics and never returns an error.
func (e *Executor) runTask(ctx context.Context, conn ConnectionInfo, sql string, timeout time.Duration, sem chan struct{}) MultiConnectionResult {
	result := MultiConnectionResult{ConnectionID: conn.ID, ConnectionName: conn.Name}

	if sem != nil {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
		case <-ctx.Done():
			result.Error = &QueryExecutionError{ConnectionID: conn.ID, Message: "execution cancelled before start", Err: ctx.Err()}
			e.logFailure(conn, result.Error)
			return result
		}
	}

	start := time.Now()
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("transport panic: %v", r)}
			}
		}()
		res, err := e.transport.ExecuteOnConnection(taskCtx, conn.ID, sql)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-taskCtx.Done():
		result.Error = contextError(ctx, conn.ID, timeout)
		e.logFailure(conn, result.Error)
		return result
	}

	switch {
	case out.err != nil && taskCtx.Err() != nil:
		result.Error = contextError(ctx, conn.ID, timeout)
	case out.err != nil:
		result.Error = &QueryExecutionError{ConnectionID: conn.ID, Err: out.err}
	case out.res == nil:
		result.Error = &QueryExecutionError{ConnectionID: conn.ID, Message: "transport returned no result"}
	case !out.res.Success:
		result.Error = &QueryExecutionError{ConnectionID: conn.ID, Message: out.res.Message}
	}
	if result.Error != nil {
		e.logFailure(conn, result.Error)
		return result
	}

	data := &ResultData{Columns: []string{}, Rows: [][]any{}}
	if out.res.Data != nil {
		data.Columns = out.res.Data.Columns
		data.Rows = out.res.Data.Rows
		data.RowCount = out.res.Data.RowCount
	}
	data.ExecutionTime = time.Since(start)

	result.Success = true
	result.Data = data

	e.logger.Debug("connection succeeded",
		"connection_id", conn.ID,
		"rows", data.RowCount,
		"duration", data.ExecutionTime,
	)
	return result
}

// contextError distinguishes caller cancellation from the task timeout.
func contextError(parent context.Context, connectionID string, timeout time.Duration) error {
	if err := parent.Err(); err != nil {
		return &QueryExecutionError{ConnectionID: connectionID, Message: "execution cancelled", Err: err}
	}
	return &QueryTimeoutError{ConnectionID: connectionID, Timeout: timeout}
}

func (e *Executor) logFailure(conn ConnectionInfo, err error) {
	e.logger.Warn("connection failed",
		"connection_id", conn.ID,
		"connection_name", conn.Name,
		"error", err,
	)
}
