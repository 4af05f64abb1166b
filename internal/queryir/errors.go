package queryir

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes IR and generation errors.
type ErrorCode string

const (
	// ErrCodeUnsupportedOperator indicates a predicate operator with no SQL mapping.
	ErrCodeUnsupportedOperator ErrorCode = "UNSUPPORTED_OPERATOR"

	// ErrCodeInvalidExpression indicates an Expr node that matches no known variant.
	ErrCodeInvalidExpression ErrorCode = "INVALID_EXPRESSION"

	// ErrCodeInvalidQuery indicates a QueryIR that failed structural validation.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
)

// UnsupportedOperatorError reports a predicate operator that has no mapping
// for the requested dialect.
type UnsupportedOperatorError struct {
	Operator Operator
	Dialect  Dialect
}

func (e *UnsupportedOperatorError) Error() string {
	if e.Dialect != "" {
		return fmt.Sprintf("%s: operator %q is not supported for dialect %s", ErrCodeUnsupportedOperator, e.Operator, e.Dialect)
	}
	return fmt.Sprintf("%s: operator %q is not supported", ErrCodeUnsupportedOperator, e.Operator)
}

// InvalidExpressionError reports a malformed Expr node.
// Path locates the node, e.g. "where.conditions[1]".
type InvalidExpressionError struct {
	Path   string
	Reason string
}

func (e *InvalidExpressionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", ErrCodeInvalidExpression, e.Reason, e.Path)
	}
	return fmt.Sprintf("%s: %s", ErrCodeInvalidExpression, e.Reason)
}

// ValidationError wraps the errors found by Validate.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.String()
	}
	return fmt.Sprintf("%s: %s", ErrCodeInvalidQuery, strings.Join(msgs, "; "))
}

// IsUnsupportedOperator returns true if err is (or wraps) an UnsupportedOperatorError.
func IsUnsupportedOperator(err error) bool {
	var e *UnsupportedOperatorError
	return errors.As(err, &e)
}

// IsInvalidExpression returns true if err is (or wraps) an InvalidExpressionError.
func IsInvalidExpression(err error) bool {
	var e *InvalidExpressionError
	return errors.As(err, &e)
}
