package sqlconn

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedsql/internal/config"
	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedDB creates a SQLite database with a customers table.
func seedDB(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".db")

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func TestOpen_RegistryState(t *testing.T) {
	good := seedDB(t, "good", "CREATE TABLE t (id INTEGER)")
	missing := filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")

	pool := Open(context.Background(), []config.Connection{
		{ID: "good", Name: "Good", Type: "sqlite", DSN: good},
		{ID: "broken", Name: "Broken", Type: "sqlite", DSN: missing},
		{ID: "sqlserver", Name: "SQL Server", Type: "mssql", DSN: "sqlserver://x"},
	}, WithLogger(quietLogger()))
	t.Cleanup(func() { pool.Close() })

	assert.Equal(t, []federation.ConnectionInfo{
		{ID: "good", Name: "Good", Type: "sqlite", IsConnected: true},
		{ID: "broken", Name: "Broken", Type: "sqlite", IsConnected: false},
		{ID: "sqlserver", Name: "SQL Server", Type: "mssql", IsConnected: false},
	}, pool.Connections())

	assert.NoError(t, pool.Err("good"))
	assert.Error(t, pool.Err("broken"))
	assert.ErrorIs(t, pool.Err("sqlserver"), ErrNoDriver)
	assert.Error(t, pool.Err("nope"))
}

func TestExecuteOnConnection_ScansRows(t *testing.T) {
	path := seedDB(t, "shop",
		"CREATE TABLE customers (id INTEGER, name TEXT, avatar BLOB, score REAL)",
		"INSERT INTO customers VALUES (1, 'ana', x'6869', 4.5)",
		"INSERT INTO customers VALUES (2, 'bo', NULL, NULL)",
	)
	pool := Open(context.Background(), []config.Connection{
		{ID: "shop", Type: "sqlite", DSN: path},
	}, WithLogger(quietLogger()))
	t.Cleanup(func() { pool.Close() })

	res, err := pool.ExecuteOnConnection(context.Background(), "shop",
		`SELECT "id", "name", "avatar", "score" FROM "customers" ORDER BY "id"`)
	require.NoError(t, err)
	require.True(t, res.Success)

	assert.Equal(t, []string{"id", "name", "avatar", "score"}, res.Data.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "ana", "hi", 4.5},
		{int64(2), "bo", nil, nil},
	}, res.Data.Rows)
	assert.Equal(t, 2, res.Data.RowCount)
}

func TestExecuteOnConnection_Failures(t *testing.T) {
	path := seedDB(t, "empty", "CREATE TABLE t (id INTEGER)")
	pool := Open(context.Background(), []config.Connection{
		{ID: "db", Type: "sqlite", DSN: path},
		{ID: "mssql", Type: "mssql"},
	}, WithLogger(quietLogger()))
	t.Cleanup(func() { pool.Close() })

	_, err := pool.ExecuteOnConnection(context.Background(), "db", "SELECT * FROM missing_table")
	assert.Error(t, err)

	_, err = pool.ExecuteOnConnection(context.Background(), "unknown", "SELECT 1")
	assert.Error(t, err)

	res, err := pool.ExecuteOnConnection(context.Background(), "mssql", "SELECT 1")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "not open")
}

func TestClose_MarksDisconnected(t *testing.T) {
	path := seedDB(t, "db", "CREATE TABLE t (id INTEGER)")
	pool := Open(context.Background(), []config.Connection{
		{ID: "db", Type: "sqlite", DSN: path},
	}, WithLogger(quietLogger()))

	require.NoError(t, pool.Close())
	assert.False(t, pool.Connections()[0].IsConnected)

	// Idempotent
	assert.NoError(t, pool.Close())
}

func TestPool_FederatedQueryAcrossSQLite(t *testing.T) {
	east := seedDB(t, "east",
		"CREATE TABLE customers (id INTEGER, name TEXT, region TEXT)",
		"INSERT INTO customers VALUES (1, 'ana', 'west'), (2, 'bo', 'east')",
	)
	west := seedDB(t, "west",
		"CREATE TABLE customers (id INTEGER, email TEXT, region TEXT)",
		"INSERT INTO customers VALUES (7, 'cy@example.com', 'west')",
	)

	pool := Open(context.Background(), []config.Connection{
		{ID: "east", Name: "East", Type: "sqlite", DSN: east},
		{ID: "west", Name: "West", Type: "sqlite", DSN: west},
	}, WithLogger(quietLogger()))
	t.Cleanup(func() { pool.Close() })

	exec := federation.New(pool.Connections(), pool,
		federation.WithIDGenerator(testutil.NewFixedGenerator("exec-1")),
		federation.WithLogger(quietLogger()),
	)

	q := &queryir.QueryIR{
		From:  queryir.TableRef{Table: "customers"},
		Where: queryir.Eq("region", "west"),
		Limit: queryir.IntPtr(10),
	}
	result, err := exec.ExecuteQuery(context.Background(), q, []string{"east", "west"},
		federation.WithDialect(queryir.SQLite))
	require.NoError(t, err)
	require.Empty(t, result.Failed())

	assert.Equal(t, []string{"id", "name", "region", "email", federation.ProvenanceColumn}, result.Columns)
	assert.Equal(t, [][]any{
		{int64(1), "ana", "west", nil, "East"},
		{int64(7), nil, "west", "cy@example.com", "West"},
	}, result.Rows)
	assert.Equal(t, 2, result.RowCount)
}
