package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedsql/internal/queryir"
	"github.com/roach88/fedsql/internal/querysql"
)

func executeCompile(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewCompileCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestCompile_SingleDialect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "q.json", customersQueryJSON)

	out, err := executeCompile(t, "text", path, "--dialect", "mysql")
	require.NoError(t, err)

	want, err := querysql.GenerateSQL(expectedCustomersQuery(), queryir.MySQL)
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)
}

func TestCompile_AllDialects(t *testing.T) {
	path := writeFile(t, t.TempDir(), "q.json", customersQueryJSON)

	out, err := executeCompile(t, "text", path, "--all")
	require.NoError(t, err)

	for _, d := range queryir.Dialects {
		assert.Contains(t, out, "-- "+string(d)+"\n")
	}
	assert.Contains(t, out, "-- LIMIT 10 (handled in SELECT)")
	assert.Contains(t, out, "LIMIT 10")
}

func TestCompile_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "q.json", customersQueryJSON)

	out, err := executeCompile(t, "json", path, "--dialect", "sqlite")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   []CompiledSQL `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, queryir.SQLite, resp.Data[0].Dialect)
	assert.Len(t, resp.Data[0].Fingerprint, 64)
}

func TestCompile_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "q.json", customersQueryJSON)
	badOp := writeFile(t, dir, "op.json", `{"from":{"table":"t"},"where":{"column":"a","operator":"SOUNDS_LIKE","value":"x"}}`)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unknown dialect", []string{good, "--dialect", "oracle"}, ErrCodeUnknownDialect},
		{"missing file", []string{dir + "/nope.json"}, ErrCodeNotFound},
		{"unsupported operator", []string{badOp}, ErrCodeUnsupportedOperator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCompile(t, "text", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "["+tt.wantCode+"]")
		})
	}
}
