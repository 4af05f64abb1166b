package queryir

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
)

// SoftLimit is the row limit above which Validate suggests pagination.
const SoftLimit = 1000

// MaxExprDepth bounds expression nesting, subqueries included.
const MaxExprDepth = 256

// Issue is one validation finding.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// ValidationResult contains the structural analysis of a query.
//
// Errors make the query unusable; the SQL compiler would either reject it or
// produce SQL no database accepts. Warnings describe legal queries that are
// likely mistakes.
type ValidationResult struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Err returns a *ValidationError when the result has errors, nil otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Issues: r.Errors}
}

// Validate checks a query for structural problems.
//
// It does not know about any live schema: table and column existence are
// never checked. Validate is a pure function with no side effects.
func Validate(q *QueryIR) ValidationResult {
	v := &validator{
		errors:   []Issue{},
		warnings: []Issue{},
		visiting: make(map[any]bool),
	}
	if q == nil {
		v.addError("", "nil query")
	} else {
		v.validateQuery(q, "")
		v.validatePagination(q)
	}

	return ValidationResult{
		Valid:    len(v.errors) == 0,
		Errors:   v.errors,
		Warnings: v.warnings,
	}
}

// validator accumulates issues during traversal.
type validator struct {
	errors   []Issue
	warnings []Issue

	// visiting holds pointer nodes on the current path, to catch cycles
	// built from shared pointers.
	visiting map[any]bool

	// depth is the expression nesting of the node being validated.
	depth int
}

func (v *validator) addError(field, format string, args ...any) {
	v.errors = append(v.errors, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) addWarning(field, format string, args ...any) {
	v.warnings = append(v.warnings, Issue{Field: field, Message: fmt.Sprintf(format, args...)})
}

// validateQuery validates a query node. prefix is "" for the top level and
// "<path>.subquery." for nested queries.
func (v *validator) validateQuery(q *QueryIR, prefix string) {
	if q.From.Table == "" {
		v.addError(prefix+"from.table", "table must be set")
	}

	hasAggregate := false
	bareColumns := 0
	for i, item := range q.Select {
		field := fmt.Sprintf("%sselect[%d]", prefix, i)
		if item.Column == "" {
			v.addError(field, "column name is missing")
		}
		if item.Aggregate != "" {
			if !item.Aggregate.Valid() {
				v.addError(field, "unknown aggregate %q", item.Aggregate)
			}
			hasAggregate = true
		} else {
			bareColumns++
		}
	}
	if hasAggregate && bareColumns > 0 && len(q.GroupBy) == 0 {
		v.addWarning(prefix+"groupBy", "non-aggregated columns should appear in GROUP BY when aggregates are selected")
	}

	for i, j := range q.Joins {
		field := fmt.Sprintf("%sjoins[%d]", prefix, i)
		if !j.Type.Valid() {
			v.addError(field+".type", "unknown join type %q", j.Type)
		}
		if j.Table.Table == "" {
			v.addError(field+".table", "table must be set")
		}
		if j.On == nil {
			v.addError(field+".on", "join requires an ON condition")
		} else {
			v.validateExpr(j.On, field+".on")
		}
	}

	if q.Where != nil {
		v.validateExpr(q.Where, prefix+"where")
	}

	for i, col := range q.GroupBy {
		if col == "" {
			v.addError(fmt.Sprintf("%sgroupBy[%d]", prefix, i), "column name is missing")
		}
	}

	for i, o := range q.OrderBy {
		field := fmt.Sprintf("%sorderBy[%d]", prefix, i)
		if o.Column == "" {
			v.addError(field, "column name is missing")
		}
		if !o.Direction.Valid() {
			v.addError(field+".direction", "unknown direction %q", o.Direction)
		}
	}

	if q.Limit != nil && *q.Limit < 0 {
		v.addError(prefix+"limit", "must not be negative")
	}
	if q.Offset != nil && *q.Offset < 0 {
		v.addError(prefix+"offset", "must not be negative")
	}
}

// validatePagination adds top-level pagination warnings.
func (v *validator) validatePagination(q *QueryIR) {
	if q.Limit == nil || *q.Limit > SoftLimit {
		v.addWarning("limit", "consider adding a LIMIT of at most %d to bound result size", SoftLimit)
	}
	if q.Offset != nil && q.Limit == nil {
		v.addWarning("offset", "offset without limit is ignored by the SQL compiler")
	}
}

// validateExpr recursively validates an expression node.
func (v *validator) validateExpr(e Expr, path string) {
	if v.depth >= MaxExprDepth {
		v.addError(path, "expression nesting exceeds %d levels", MaxExprDepth)
		return
	}
	v.depth++
	defer func() { v.depth-- }()

	switch expr := e.(type) {
	case Predicate:
		v.validatePredicate(expr, path)
	case *Predicate:
		if expr == nil {
			v.addError(path, "nil predicate")
			return
		}
		v.validatePredicate(*expr, path)
	case Group:
		v.validateGroup(expr, path)
	case *Group:
		if expr == nil {
			v.addError(path, "nil group")
			return
		}
		if v.enter(expr, path) {
			v.validateGroup(*expr, path)
			delete(v.visiting, expr)
		}
	case Exists:
		v.validateExists(expr, path)
	case *Exists:
		if expr == nil {
			v.addError(path, "nil exists")
			return
		}
		if v.enter(expr, path) {
			v.validateExists(*expr, path)
			delete(v.visiting, expr)
		}
	default:
		v.addError(path, "unknown expression type %T", e)
	}
}

// enter marks a pointer node as on the current path. It returns false and
// records an error if the node is already being visited.
func (v *validator) enter(node any, path string) bool {
	if v.visiting[node] {
		v.addError(path, "expression tree contains a cycle")
		return false
	}
	v.visiting[node] = true
	return true
}

func (v *validator) validatePredicate(p Predicate, path string) {
	if p.Column == "" {
		v.addError(path+".column", "column name is missing")
	}
	if !p.Operator.Known() {
		v.addError(path+".operator", "unknown operator %q", p.Operator)
		return
	}

	list, isList := AsList(p.Value)
	if p.Operator.TakesValue() {
		v.validateValue(p.Value, list, isList, path+".value")
	}

	switch p.Operator {
	case OpBetween:
		if !isList || len(list) != 2 {
			v.addError(path+".value", "BETWEEN requires exactly two values")
		}
	case OpIn, OpNotIn:
		if !isList {
			v.addError(path+".value", "%s requires a list of values", p.Operator)
		} else if len(list) == 0 {
			v.addError(path+".value", "%s requires at least one value", p.Operator)
		}
	case OpIsNull, OpIsNotNull:
		// value ignored
	default:
		if p.Value == nil {
			v.addWarning(path+".value", "comparison with NULL never matches; use IS_NULL or IS_NOT_NULL")
		}
	}
}

// validateValue rejects operands that cannot be rendered as SQL literals.
func (v *validator) validateValue(value any, list []any, isList bool, path string) {
	if !isList {
		if err := CheckScalar(value); err != nil {
			v.addError(path, "%s", err)
		}
		return
	}
	for i, item := range list {
		if err := CheckScalar(item); err != nil {
			v.addError(fmt.Sprintf("%s[%d]", path, i), "%s", err)
		}
	}
}

func (v *validator) validateGroup(g Group, path string) {
	switch LogicalOperator(strings.ToUpper(string(g.Operator))) {
	case And, Or:
	default:
		v.addError(path+".operator", "unknown logical operator %q", g.Operator)
	}
	if len(g.Conditions) == 0 {
		v.addError(path+".conditions", "group must contain at least one condition")
	}
	for i, c := range g.Conditions {
		childPath := fmt.Sprintf("%s.conditions[%d]", path, i)
		if c == nil {
			v.addError(childPath, "nil condition")
			continue
		}
		v.validateExpr(c, childPath)
	}
}

func (v *validator) validateExists(e Exists, path string) {
	if e.Subquery == nil {
		v.addError(path+".subquery", "subquery must be set")
		return
	}
	v.validateQuery(e.Subquery, path+".subquery.")
}

// AsList returns the elements of a slice or array value.
// []byte is treated as a scalar, not a list.
func AsList(value any) ([]any, bool) {
	switch list := value.(type) {
	case nil:
		return nil, false
	case []any:
		return list, true
	case []byte:
		return nil, false
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// CheckScalar reports whether value can be rendered as a single SQL literal.
// Maps, structs, nested lists and non-finite floats cannot.
func CheckScalar(value any) error {
	switch v := value.(type) {
	case nil, string, bool, json.Number, []byte, time.Time:
		return nil
	case *time.Time:
		return nil
	case fmt.Stringer:
		return nil
	case float32:
		return checkFinite(float64(v))
	case float64:
		return checkFinite(v)
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		return checkFinite(rv.Float())
	}
	return fmt.Errorf("value of type %T is not a scalar", value)
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v has no SQL literal", f)
	}
	return nil
}
