package harness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
)

// ErrorCode returns the code of a library error, or "" when unknown.
func ErrorCode(err error) string {
	var (
		unavailable *federation.ConnectionUnavailableError
		timeout     *federation.QueryTimeoutError
		execErr     *federation.QueryExecutionError
		unsupported *queryir.UnsupportedOperatorError
		invalidExpr *queryir.InvalidExpressionError
		invalid     *queryir.ValidationError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &unavailable):
		return string(federation.ErrCodeConnectionUnavailable)
	case errors.As(err, &timeout):
		return string(federation.ErrCodeQueryTimeout)
	case errors.As(err, &execErr):
		return string(federation.ErrCodeQueryExecution)
	case errors.As(err, &unsupported):
		return string(queryir.ErrCodeUnsupportedOperator)
	case errors.As(err, &invalidExpr):
		return string(queryir.ErrCodeInvalidExpression)
	case errors.As(err, &invalid):
		return string(queryir.ErrCodeInvalidQuery)
	}
	return ""
}

// EvaluateExpectations checks a result against an expectation.
// Returns one message per mismatch; empty means the scenario passed.
func EvaluateExpectations(result *Result, expect *Expectation) []string {
	if expect == nil {
		return nil
	}

	var failures []string
	fail := func(format string, args ...any) {
		failures = append(failures, fmt.Sprintf(format, args...))
	}

	if expect.Error != "" {
		if got := ErrorCode(result.Err); got != expect.Error {
			fail("error: expected %s, got %q (%v)", expect.Error, got, result.Err)
		}
		return failures
	}
	if result.Err != nil {
		fail("unexpected error: %v", result.Err)
		return failures
	}

	m := result.Merged
	if expect.Columns != nil && !slices.Equal(expect.Columns, m.Columns) {
		fail("columns: expected %v, got %v", expect.Columns, m.Columns)
	}
	if expect.RowCount != nil && *expect.RowCount != m.RowCount {
		fail("row_count: expected %d, got %d", *expect.RowCount, m.RowCount)
	}
	if expect.Rows != nil && *expect.Rows != len(m.Rows) {
		fail("rows: expected %d, got %d", *expect.Rows, len(m.Rows))
	}
	if expect.Truncated != m.Truncated {
		fail("truncated: expected %t, got %t", expect.Truncated, m.Truncated)
	}

	var succeeded, failed []string
	for _, cr := range m.ConnectionResults {
		if cr.Success {
			succeeded = append(succeeded, cr.ConnectionID)
		} else {
			failed = append(failed, cr.ConnectionID)
		}
	}
	if expect.Succeeded != nil && !slices.Equal(expect.Succeeded, succeeded) {
		fail("succeeded: expected %v, got %v", expect.Succeeded, succeeded)
	}
	if expect.Failed != nil && !slices.Equal(expect.Failed, failed) {
		fail("failed: expected %v, got %v", expect.Failed, failed)
	}

	for id, code := range expect.FailureCodes {
		idx := slices.IndexFunc(m.ConnectionResults, func(cr federation.MultiConnectionResult) bool {
			return cr.ConnectionID == id
		})
		if idx < 0 {
			fail("failure_codes: connection %s was not targeted", id)
			continue
		}
		got := ErrorCode(m.ConnectionResults[idx].Error)
		if !strings.HasPrefix(got, code) {
			fail("failure_codes[%s]: expected %s, got %q", id, code, got)
		}
	}

	return failures
}
