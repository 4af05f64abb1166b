package federation_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/querysql"
	"github.com/roach88/fedsql/internal/testutil"
)

func connections() []federation.ConnectionInfo {
	return []federation.ConnectionInfo{
		{ID: "a", Name: "Warehouse A", Type: "postgres", IsConnected: true},
		{ID: "b", Name: "Warehouse B", Type: "mysql", IsConnected: true},
		{ID: "c", Name: "Archive", Type: "sqlite", IsConnected: false},
	}
}

func newExecutor(t *testing.T, stub *testutil.StubTransport, ids ...string) *federation.Executor {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"exec-1"}
	}
	return federation.New(connections(), stub,
		federation.WithIDGenerator(testutil.NewFixedGenerator(ids...)),
		federation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func usersQuery() *queryir.QueryIR {
	return &queryir.QueryIR{
		From:  queryir.TableRef{Table: "users"},
		Where: queryir.Eq("active", true),
		Limit: queryir.IntPtr(10),
	}
}

func TestExecuteQuery_MergesWithProvenance(t *testing.T) {
	stub := testutil.NewStubTransport().
		Rows("a", []string{"id", "name"}, []any{1, "x"}).
		Rows("b", []string{"id", "email"}, []any{2, "e"})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, "exec-1", result.ExecutionID)
	assert.Equal(t, "exec-1", result.Provenance)
	assert.Equal(t, []string{"id", "name", "email", federation.ProvenanceColumn}, result.Columns)
	assert.Equal(t, [][]any{
		{1, "x", nil, "Warehouse A"},
		{2, nil, "e", "Warehouse B"},
	}, result.Rows)
	assert.Equal(t, 2, result.RowCount)
	assert.Empty(t, result.Failed())
}

func TestExecuteQuery_CompilesOnceForDialect(t *testing.T) {
	stub := testutil.NewStubTransport().
		Rows("a", []string{"id"}).
		Rows("b", []string{"id"})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"},
		federation.WithDialect(queryir.MySQL))
	require.NoError(t, err)

	want, err := querysql.GenerateSQL(usersQuery(), queryir.MySQL)
	require.NoError(t, err)
	assert.Equal(t, want, result.SQL)

	calls := stub.Calls()
	require.Len(t, calls, 2)
	for _, c := range calls {
		assert.Equal(t, want, c.SQL)
	}
}

func TestExecuteQuery_NoConnectedTargets(t *testing.T) {
	stub := testutil.NewStubTransport()
	exec := newExecutor(t, stub)

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty list", nil},
		{"unknown id", []string{"zzz"}},
		{"disconnected", []string{"c"}},
		{"unknown and disconnected", []string{"zzz", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := exec.ExecuteQuery(context.Background(), usersQuery(), tt.ids)
			assert.Nil(t, result)
			assert.True(t, federation.IsConnectionUnavailable(err), "got %v", err)
		})
	}

	assert.Equal(t, 0, stub.CallCount())
}

func TestExecuteQuery_TargetCheckPrecedesValidation(t *testing.T) {
	stub := testutil.NewStubTransport()
	exec := newExecutor(t, stub)

	_, err := exec.ExecuteQuery(context.Background(), &queryir.QueryIR{}, []string{"c"})
	assert.True(t, federation.IsConnectionUnavailable(err))
}

func TestExecuteQuery_InvalidQueryRejected(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"id"})
	exec := newExecutor(t, stub)

	_, err := exec.ExecuteQuery(context.Background(), &queryir.QueryIR{}, []string{"a"})
	require.Error(t, err)

	var verr *queryir.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, stub.CallCount())
}

func TestExecuteQuery_AggregateWithoutGroupByStillRuns(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"region", "count"}, []any{"eu", 3})
	exec := newExecutor(t, stub)

	q := &queryir.QueryIR{
		From: queryir.TableRef{Table: "orders"},
		Select: []queryir.SelectItem{
			{Column: "region"},
			{Column: "id", Aggregate: queryir.AggregateCount},
		},
		Limit: queryir.IntPtr(10),
	}

	result, err := exec.ExecuteQuery(context.Background(), q, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, stub.CallCount())
	assert.Equal(t, "SELECT \"region\", COUNT(\"id\")\nFROM \"orders\"\nLIMIT 10", result.SQL)
	assert.Empty(t, result.Failed())
}

func TestExecuteQuery_NonFiniteValueIsValidationError(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"id"})
	exec := newExecutor(t, stub)

	q := usersQuery()
	q.Where = queryir.Eq("score", math.NaN())

	_, err := exec.ExecuteQuery(context.Background(), q, []string{"a"})
	require.Error(t, err)

	var verr *queryir.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "where.value", verr.Issues[0].Field)
	assert.Equal(t, 0, stub.CallCount())
}

func TestExecuteQuery_UnknownDialectRejected(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"id"})
	exec := newExecutor(t, stub)

	_, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a"},
		federation.WithDialect(queryir.Dialect("oracle")))
	require.Error(t, err)
	assert.Equal(t, 0, stub.CallCount())
}

func TestExecuteQuery_SkipsUnavailableTargets(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"id"}, []any{1})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"zzz", "c", "a", "a"})
	require.NoError(t, err)

	require.Len(t, result.ConnectionResults, 1)
	assert.Equal(t, "a", result.ConnectionResults[0].ConnectionID)
	assert.Equal(t, 1, stub.CallCount())
}

func TestExecuteQuery_PreservesRequestOrder(t *testing.T) {
	// b answers first; results still follow the requested order
	stub := testutil.NewStubTransport().
		On("a", testutil.Response{Delay: 40 * time.Millisecond, Result: &federation.TransportResult{
			Success: true,
			Data:    &federation.ResultData{Columns: []string{"id"}, Rows: [][]any{{1}}, RowCount: 1},
		}}).
		Rows("b", []string{"id"}, []any{2})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"})
	require.NoError(t, err)

	require.Len(t, result.ConnectionResults, 2)
	assert.Equal(t, "a", result.ConnectionResults[0].ConnectionID)
	assert.Equal(t, "b", result.ConnectionResults[1].ConnectionID)
	assert.Equal(t, [][]any{{1, "Warehouse A"}, {2, "Warehouse B"}}, result.Rows)
}

func TestExecuteQuery_PartialFailureIsolation(t *testing.T) {
	stub := testutil.NewStubTransport().
		Rows("a", []string{"id"}, []any{1}).
		On("b", testutil.Response{Delay: time.Hour})
	exec := newExecutor(t, stub)

	start := time.Now()
	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"},
		federation.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	require.Len(t, result.ConnectionResults, 2)
	assert.True(t, result.ConnectionResults[0].Success)

	failed := result.ConnectionResults[1]
	assert.False(t, failed.Success)
	assert.Nil(t, failed.Data)
	assert.True(t, federation.IsTimeout(failed.Error), "got %v", failed.Error)

	assert.Equal(t, [][]any{{1, "Warehouse A"}}, result.Rows)
}

func TestExecuteQuery_TimeoutWithNonCooperativeTransport(t *testing.T) {
	stub := testutil.NewStubTransport().
		On("a", testutil.Response{Delay: 2 * time.Second, IgnoreContext: true})
	exec := newExecutor(t, stub)

	start := time.Now()
	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a"},
		federation.WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, federation.IsTimeout(result.ConnectionResults[0].Error))
}

func TestExecuteQuery_TransportFailures(t *testing.T) {
	boom := errors.New("connection reset")
	stub := testutil.NewStubTransport().
		On("a", testutil.Response{Err: boom}).
		On("b", testutil.Response{Result: &federation.TransportResult{Message: "syntax error"}})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"})
	require.NoError(t, err)

	a, b := result.ConnectionResults[0], result.ConnectionResults[1]
	assert.True(t, federation.IsExecutionError(a.Error))
	assert.ErrorIs(t, a.Error, boom)

	assert.True(t, federation.IsExecutionError(b.Error))
	assert.Contains(t, b.Error.Error(), "syntax error")

	assert.Empty(t, result.Columns)
	assert.Empty(t, result.Rows)
	assert.Len(t, result.Failed(), 2)
}

func TestExecuteQuery_NilResultIsFailure(t *testing.T) {
	stub := testutil.NewStubTransport().On("a", testutil.Response{})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a"})
	require.NoError(t, err)
	assert.True(t, federation.IsExecutionError(result.ConnectionResults[0].Error))
}

func TestExecuteQuery_PanicIsContained(t *testing.T) {
	stub := testutil.NewStubTransport().
		On("a", testutil.Response{Panic: "driver exploded"}).
		Rows("b", []string{"id"}, []any{2})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"})
	require.NoError(t, err)

	a := result.ConnectionResults[0]
	assert.False(t, a.Success)
	assert.True(t, federation.IsExecutionError(a.Error))
	assert.Contains(t, a.Error.Error(), "driver exploded")
	assert.True(t, result.ConnectionResults[1].Success)
}

func TestExecuteQuery_CallerCancellation(t *testing.T) {
	stub := testutil.NewStubTransport().On("a", testutil.Response{Delay: time.Hour})
	exec := newExecutor(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	result, err := exec.ExecuteQuery(ctx, usersQuery(), []string{"a"})
	require.NoError(t, err)

	failed := result.ConnectionResults[0].Error
	assert.True(t, federation.IsExecutionError(failed))
	assert.False(t, federation.IsTimeout(failed))
	assert.ErrorIs(t, failed, context.Canceled)
}

func TestExecuteQuery_WithoutProvenance(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"id"}, []any{1})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a"},
		federation.WithProvenance(false))
	require.NoError(t, err)

	assert.Equal(t, []string{"id"}, result.Columns)
	assert.Empty(t, result.Provenance)
	assert.Equal(t, "exec-1", result.ExecutionID)
}

func TestExecuteQuery_MaxConcurrency(t *testing.T) {
	conns := make([]federation.ConnectionInfo, 6)
	ids := make([]string, len(conns))
	stub := testutil.NewStubTransport()
	for i := range conns {
		id := string(rune('p' + i))
		conns[i] = federation.ConnectionInfo{ID: id, Name: id, IsConnected: true}
		ids[i] = id
		stub.On(id, testutil.Response{Delay: 30 * time.Millisecond, Result: &federation.TransportResult{
			Success: true,
			Data:    &federation.ResultData{Columns: []string{"id"}, Rows: [][]any{{i}}, RowCount: 1},
		}})
	}
	exec := federation.New(conns, stub,
		federation.WithIDGenerator(testutil.NewFixedGenerator("exec-1")),
		federation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), ids,
		federation.WithMaxConcurrency(2))
	require.NoError(t, err)

	assert.LessOrEqual(t, stub.MaxInFlight(), 2)
	assert.Len(t, result.Rows, 6)
	assert.Empty(t, result.Failed())
}

func TestExecuteQuery_MaxRows(t *testing.T) {
	stub := testutil.NewStubTransport().
		Rows("a", []string{"id"}, []any{1}, []any{2}).
		Rows("b", []string{"id"}, []any{3})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a", "b"},
		federation.WithMaxRows(2))
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Truncated)
	assert.Equal(t, 3, result.RowCount)
}

func TestExecuteSQL_RunsRawSQL(t *testing.T) {
	stub := testutil.NewStubTransport().Rows("a", []string{"n"}, []any{42})
	exec := newExecutor(t, stub)

	result, err := exec.ExecuteSQL(context.Background(), "SELECT 42 AS n", []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, "SELECT 42 AS n", result.SQL)
	assert.Equal(t, []testutil.Call{{ConnectionID: "a", SQL: "SELECT 42 AS n"}}, stub.Calls())
}

func TestNew_SnapshotsConnections(t *testing.T) {
	conns := connections()
	stub := testutil.NewStubTransport().Rows("a", []string{"id"})
	exec := federation.New(conns, stub,
		federation.WithIDGenerator(testutil.NewFixedGenerator("exec-1")),
		federation.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	// Mutating the caller's slice does not affect the executor
	conns[0].IsConnected = false

	_, err := exec.ExecuteQuery(context.Background(), usersQuery(), []string{"a"})
	require.NoError(t, err)
	assert.True(t, exec.Connections()[0].IsConnected)
}
