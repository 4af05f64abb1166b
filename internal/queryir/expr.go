package queryir

// Operator is a Predicate comparison operator.
type Operator string

const (
	OpEquals              Operator = "EQUALS"
	OpNotEquals           Operator = "NOT_EQUALS"
	OpGreaterThan         Operator = "GREATER_THAN"
	OpGreaterThanOrEquals Operator = "GREATER_THAN_OR_EQUALS"
	OpLessThan            Operator = "LESS_THAN"
	OpLessThanOrEquals    Operator = "LESS_THAN_OR_EQUALS"
	OpContains            Operator = "CONTAINS"
	OpNotContains         Operator = "NOT_CONTAINS"
	OpStartsWith          Operator = "STARTS_WITH"
	OpEndsWith            Operator = "ENDS_WITH"
	OpIn                  Operator = "IN"
	OpNotIn               Operator = "NOT_IN"
	OpIsNull              Operator = "IS_NULL"
	OpIsNotNull           Operator = "IS_NOT_NULL"
	OpRegex               Operator = "REGEX"
	OpBetween             Operator = "BETWEEN"
)

// Operators lists every operator the IR defines.
var Operators = []Operator{
	OpEquals, OpNotEquals,
	OpGreaterThan, OpGreaterThanOrEquals, OpLessThan, OpLessThanOrEquals,
	OpContains, OpNotContains, OpStartsWith, OpEndsWith,
	OpIn, OpNotIn,
	OpIsNull, OpIsNotNull,
	OpRegex, OpBetween,
}

// Known reports whether op is in the enumerated operator set.
func (op Operator) Known() bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// TakesValue reports whether the operator uses Predicate.Value.
func (op Operator) TakesValue() bool {
	return op != OpIsNull && op != OpIsNotNull
}

// LogicalOperator combines the children of a Group.
type LogicalOperator string

const (
	And LogicalOperator = "AND"
	Or  LogicalOperator = "OR"
)

// Expr is a boolean expression node used in WHERE and ON clauses.
//
// This is a sealed interface - only Predicate, Group and Exists implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Predicate is a leaf comparison: <column> <operator> <value>.
//
// Value is nil, a string, a number, a bool, a time.Time, or a slice of those
// (IN/NOT_IN lists and the two BETWEEN bounds). IS_NULL and IS_NOT_NULL
// ignore it.
//
// Example:
//
//	Predicate{Column: "status", Operator: OpEquals, Value: "active"}
//
// Translates to SQL (postgres):
//
//	"status" = 'active'
type Predicate struct {
	Column   string   `json:"column"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Not      bool     `json:"not,omitempty"`
}

func (Predicate) exprNode() {}

// Group combines child expressions with AND or OR.
//
// Children may be any Expr, including nested Groups. A Group with no
// conditions is rejected by Validate and by the SQL compiler.
type Group struct {
	Operator   LogicalOperator `json:"operator"`
	Conditions []Expr          `json:"conditions"`
	Not        bool            `json:"not,omitempty"`
}

func (Group) exprNode() {}

// Exists is an existence check over a nested query.
type Exists struct {
	Subquery *QueryIR `json:"subquery"`
	Not      bool     `json:"not,omitempty"`
}

func (Exists) exprNode() {}

// Eq is shorthand for an EQUALS predicate.
func Eq(column string, value any) *Predicate {
	return &Predicate{Column: column, Operator: OpEquals, Value: value}
}

// AllOf is shorthand for an AND group.
func AllOf(conditions ...Expr) *Group {
	return &Group{Operator: And, Conditions: conditions}
}

// AnyOf is shorthand for an OR group.
func AnyOf(conditions ...Expr) *Group {
	return &Group{Operator: Or, Conditions: conditions}
}
