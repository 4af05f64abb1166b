package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/testutil"
)

// DefaultExecutionID is used when a scenario sets none.
const DefaultExecutionID = "test-execution"

// Result is the outcome of running a scenario.
type Result struct {
	// Merged is nil when Err is set.
	Merged *federation.MergedResult

	// Err is the error ExecuteQuery returned, if any.
	Err error

	// Calls are the transport calls in arrival order.
	Calls []testutil.Call
}

// Run executes a scenario against a stub transport.
// The returned error covers scenario problems (bad query document); an
// execution error is reported in Result.Err.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	q, err := s.DecodeQuery()
	if err != nil {
		return nil, err
	}

	stub := testutil.NewStubTransport()
	connections := make([]federation.ConnectionInfo, len(s.Connections))
	for i, c := range s.Connections {
		name := c.Name
		if name == "" {
			name = c.ID
		}
		connections[i] = federation.ConnectionInfo{ID: c.ID, Name: name, IsConnected: !c.Disconnected}
		stub.On(c.ID, scriptResponse(c))
	}

	id := s.ExecutionID
	if id == "" {
		id = DefaultExecutionID
	}
	executor := federation.New(connections, stub,
		federation.WithIDGenerator(testutil.NewFixedGenerator(id)),
		federation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	targets := s.Targets
	if targets == nil {
		targets = make([]string, len(s.Connections))
		for i, c := range s.Connections {
			targets[i] = c.ID
		}
	}

	opts, err := s.queryOptions()
	if err != nil {
		return nil, err
	}

	merged, execErr := executor.ExecuteQuery(ctx, q, targets, opts...)
	return &Result{Merged: merged, Err: execErr, Calls: stub.Calls()}, nil
}

func scriptResponse(c ConnectionScript) testutil.Response {
	r := testutil.Response{Delay: time.Duration(c.DelayMS) * time.Millisecond}

	switch {
	case c.Panic != "":
		r.Panic = c.Panic
	case c.Error != "":
		r.Err = errors.New(c.Error)
	case c.Fail != "":
		r.Result = &federation.TransportResult{Message: c.Fail}
	default:
		rows := c.Rows
		if rows == nil {
			rows = [][]any{}
		}
		columns := c.Columns
		if columns == nil {
			columns = []string{}
		}
		count := len(rows)
		if c.RowCount != nil {
			count = *c.RowCount
		}
		r.Result = &federation.TransportResult{
			Success: true,
			Data:    &federation.ResultData{Columns: columns, Rows: rows, RowCount: count},
		}
	}
	return r
}

func (s *Scenario) queryOptions() ([]federation.QueryOption, error) {
	var opts []federation.QueryOption

	if s.Dialect != "" {
		d, err := queryir.ParseDialect(s.Dialect)
		if err != nil {
			return nil, err
		}
		opts = append(opts, federation.WithDialect(d))
	}
	if s.Options.TimeoutMS > 0 {
		opts = append(opts, federation.WithTimeout(time.Duration(s.Options.TimeoutMS)*time.Millisecond))
	}
	if s.Options.Provenance != nil {
		opts = append(opts, federation.WithProvenance(*s.Options.Provenance))
	}
	if s.Options.MaxConcurrency > 0 {
		opts = append(opts, federation.WithMaxConcurrency(s.Options.MaxConcurrency))
	}
	if s.Options.MaxRows > 0 {
		opts = append(opts, federation.WithMaxRows(s.Options.MaxRows))
	}
	return opts, nil
}
