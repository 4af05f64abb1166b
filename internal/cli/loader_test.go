package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fedsql/internal/queryir"
)

func expectedCustomersQuery() *queryir.QueryIR {
	return &queryir.QueryIR{
		From:    queryir.TableRef{Table: "customers"},
		Where:   &queryir.Predicate{Column: "region", Operator: queryir.OpEquals, Value: "west"},
		OrderBy: []queryir.OrderBy{{Column: "id"}},
		Limit:   queryir.IntPtr(10),
	}
}

// assertSameQuery compares by fingerprint so decoding details
// (pointer vs value nodes, nil vs empty slices) do not matter.
func assertSameQuery(t *testing.T, want, got *queryir.QueryIR) {
	t.Helper()
	wantFP, err := queryir.Fingerprint(want)
	require.NoError(t, err)
	gotFP, err := queryir.Fingerprint(got)
	require.NoError(t, err)
	assert.Equal(t, wantFP, gotFP)
}

func TestLoadQuery_Formats(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"q.json": customersQueryJSON,
		"q.yaml": `
from:
  table: customers
where:
  column: region
  operator: EQUALS
  value: west
orderBy:
  - column: id
limit: 10
`,
		"nested.yml": `
query:
  from: {table: customers}
  where: {column: region, operator: EQUALS, value: west}
  orderBy: [{column: id}]
  limit: 10
`,
		"q.cue": `
#region: "west"

query: {
	from: table: "customers"
	where: {column: "region", operator: "EQUALS", value: #region}
	orderBy: [{column: "id"}]
	limit: 10
}
`,
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, content)
			q, err := LoadQuery(path)
			require.NoError(t, err)
			assertSameQuery(t, expectedCustomersQuery(), q)
		})
	}
}

func TestLoadQuery_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		wantCode string
	}{
		{"missing file", "", "", ErrCodeNotFound},
		{"unsupported extension", "q.toml", "x = 1", ErrCodeUnsupportedFormat},
		{"bad json", "bad.json", "{", ErrCodeInvalidQuery},
		{"bad yaml", "bad.yaml", "from: [", ErrCodeParseFailed},
		{"bad cue", "bad.cue", "query: {", ErrCodeParseFailed},
		{"incomplete cue", "open.cue", "query: {from: table: string}", ErrCodeParseFailed},
		{"unknown expr", "expr.json", `{"from":{"table":"t"},"where":{"foo":1}}`, ErrCodeInvalidQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := dir + "/does-not-exist.json"
			if tt.file != "" {
				path = writeFile(t, dir, tt.file, tt.content)
			}

			_, err := LoadQuery(path)
			require.Error(t, err)

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.wantCode, loadErr.Code)
			assert.Equal(t, tt.wantCode, errorCode(err))
		})
	}
}

func TestLoadQuery_UnknownExprWrapsInvalidExpression(t *testing.T) {
	path := writeFile(t, t.TempDir(), "expr.json", `{"from":{"table":"t"},"where":{"foo":1}}`)

	_, err := LoadQuery(path)
	assert.True(t, queryir.IsInvalidExpression(err))
}
