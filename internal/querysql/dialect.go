package querysql

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/fedsql/internal/queryir"
)

// isoLayout matches the millisecond ISO-8601 form used by the query builder UI.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// QuoteIdentifier wraps ident in the dialect's identifier quotes.
//
// Embedded quote characters are not escaped.
func QuoteIdentifier(dialect queryir.Dialect, ident string) string {
	switch dialect {
	case queryir.MySQL:
		return "`" + ident + "`"
	case queryir.MSSQL:
		return "[" + ident + "]"
	default:
		return `"` + ident + `"`
	}
}

// MapOperator returns the SQL operator text for op.
//
// Pattern operators map to ILIKE on postgres and LIKE elsewhere; the %
// wildcards are added to the value by FormatValue, not here.
func MapOperator(dialect queryir.Dialect, op queryir.Operator) (string, error) {
	switch op {
	case queryir.OpEquals:
		return "=", nil
	case queryir.OpNotEquals:
		return "!=", nil
	case queryir.OpGreaterThan:
		return ">", nil
	case queryir.OpGreaterThanOrEquals:
		return ">=", nil
	case queryir.OpLessThan:
		return "<", nil
	case queryir.OpLessThanOrEquals:
		return "<=", nil
	case queryir.OpContains, queryir.OpStartsWith, queryir.OpEndsWith:
		if dialect == queryir.Postgres {
			return "ILIKE", nil
		}
		return "LIKE", nil
	case queryir.OpNotContains:
		if dialect == queryir.Postgres {
			return "NOT ILIKE", nil
		}
		return "NOT LIKE", nil
	case queryir.OpIn:
		return "IN", nil
	case queryir.OpNotIn:
		return "NOT IN", nil
	case queryir.OpIsNull:
		return "IS NULL", nil
	case queryir.OpIsNotNull:
		return "IS NOT NULL", nil
	case queryir.OpRegex:
		if dialect == queryir.Postgres {
			return "~", nil
		}
		return "REGEXP", nil
	case queryir.OpBetween:
		return "BETWEEN", nil
	default:
		return "", &queryir.UnsupportedOperatorError{Operator: op, Dialect: dialect}
	}
}

// FormatValue renders the right-hand side of a predicate.
//
//   - nil → NULL
//   - IN / NOT_IN → (a, b, c)
//   - BETWEEN with two values → a AND b
//   - CONTAINS / NOT_CONTAINS → '%v%', STARTS_WITH → 'v%', ENDS_WITH → '%v'
//   - anything else → FormatLiteral
func FormatValue(dialect queryir.Dialect, op queryir.Operator, value any) (string, error) {
	if value == nil {
		return "NULL", nil
	}

	list, isList := queryir.AsList(value)
	if err := checkOperand(value, list, isList); err != nil {
		return "", err
	}

	switch op {
	case queryir.OpIn, queryir.OpNotIn:
		if !isList {
			return "(" + FormatLiteral(dialect, value) + ")", nil
		}
		return formatList(dialect, list), nil

	case queryir.OpBetween:
		if !isList || len(list) != 2 {
			return "", &queryir.InvalidExpressionError{Reason: "BETWEEN requires exactly two values"}
		}
		return FormatLiteral(dialect, list[0]) + " AND " + FormatLiteral(dialect, list[1]), nil

	case queryir.OpContains, queryir.OpNotContains:
		return FormatLiteral(dialect, "%"+likeText(value)+"%"), nil
	case queryir.OpStartsWith:
		return FormatLiteral(dialect, likeText(value)+"%"), nil
	case queryir.OpEndsWith:
		return FormatLiteral(dialect, "%"+likeText(value)), nil
	}

	if isList {
		return formatList(dialect, list), nil
	}
	return FormatLiteral(dialect, value), nil
}

// checkOperand rejects values queryir.CheckScalar refuses, so no operand
// is rendered through fmt.
func checkOperand(value any, list []any, isList bool) error {
	if !isList {
		if err := queryir.CheckScalar(value); err != nil {
			return &queryir.InvalidExpressionError{Reason: err.Error()}
		}
		return nil
	}
	for i, item := range list {
		if err := queryir.CheckScalar(item); err != nil {
			return &queryir.InvalidExpressionError{Reason: fmt.Sprintf("list element %d: %s", i, err)}
		}
	}
	return nil
}

// FormatLiteral renders a single scalar as a SQL literal. value must pass
// queryir.CheckScalar; FormatValue enforces that.
//
// Strings are single-quoted with embedded quotes doubled. Booleans are 1/0
// on mssql and true/false elsewhere. time.Time renders as a quoted ISO-8601
// string on every dialect.
func FormatLiteral(dialect queryir.Dialect, value any) string {
	switch v := value.(type) {
	case nil:
		return "NULL"
	case string:
		return quoteString(v)
	case bool:
		if dialect == queryir.MSSQL {
			if v {
				return "1"
			}
			return "0"
		}
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case []byte:
		return quoteString(string(v))
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return quoteString(v.UTC().Format(isoLayout))
	case *time.Time:
		if v == nil {
			return "NULL"
		}
		return quoteString(v.UTC().Format(isoLayout))
	case fmt.Stringer:
		return quoteString(v.String())
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Bool:
		return FormatLiteral(dialect, rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	default:
		return quoteString(fmt.Sprint(value))
	}
}

func formatList(dialect queryir.Dialect, list []any) string {
	lits := make([]string, len(list))
	for i, item := range list {
		lits[i] = FormatLiteral(dialect, item)
	}
	return "(" + strings.Join(lits, ", ") + ")"
}

// likeText converts a pattern operand to plain text before wildcard wrapping.
func likeText(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
