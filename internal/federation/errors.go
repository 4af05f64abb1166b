package federation

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeConnectionUnavailable indicates no requested connection is connected.
	ErrCodeConnectionUnavailable ErrorCode = "CONNECTION_UNAVAILABLE"

	// ErrCodeQueryTimeout indicates the per-connection timer fired first.
	ErrCodeQueryTimeout ErrorCode = "QUERY_TIMEOUT"

	// ErrCodeQueryExecution indicates the transport failed or reported failure.
	ErrCodeQueryExecution ErrorCode = "QUERY_EXECUTION"
)

// ConnectionUnavailableError is returned by ExecuteQuery when none of the
// requested IDs resolves to a connected target. No transport call is made.
type ConnectionUnavailableError struct {
	Requested []string
}

func (e *ConnectionUnavailableError) Error() string {
	if len(e.Requested) == 0 {
		return fmt.Sprintf("%s: no connections requested", ErrCodeConnectionUnavailable)
	}
	return fmt.Sprintf("%s: none of the requested connections are connected (%s)",
		ErrCodeConnectionUnavailable, strings.Join(e.Requested, ", "))
}

// QueryTimeoutError records that a connection did not answer in time.
// It is captured in MultiConnectionResult.Error, never returned.
type QueryTimeoutError struct {
	ConnectionID string
	Timeout      time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("%s: query on connection %s timed out after %s", ErrCodeQueryTimeout, e.ConnectionID, e.Timeout)
}

// QueryExecutionError records a transport failure or a non-success response.
// It is captured in MultiConnectionResult.Error, never returned.
type QueryExecutionError struct {
	ConnectionID string
	Message      string
	Err          error
}

func (e *QueryExecutionError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "query failed"
	}
	return fmt.Sprintf("%s: connection %s: %s", ErrCodeQueryExecution, e.ConnectionID, msg)
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// IsConnectionUnavailable returns true if err is (or wraps) a ConnectionUnavailableError.
func IsConnectionUnavailable(err error) bool {
	var e *ConnectionUnavailableError
	return errors.As(err, &e)
}

// IsTimeout returns true if err is (or wraps) a QueryTimeoutError.
func IsTimeout(err error) bool {
	var e *QueryTimeoutError
	return errors.As(err, &e)
}

// IsExecutionError returns true if err is (or wraps) a QueryExecutionError.
func IsExecutionError(err error) bool {
	var e *QueryExecutionError
	return errors.As(err, &e)
}
