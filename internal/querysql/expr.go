package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/fedsql/internal/queryir"
)

// compileExpr dispatches on the Expr variant. Value and pointer forms are
// both accepted.
func (c *SQLCompiler) compileExpr(e queryir.Expr, path string, depth int) (string, error) {
	if depth > MaxExprDepth {
		return "", &queryir.InvalidExpressionError{Path: path, Reason: fmt.Sprintf("expression nesting exceeds %d levels", MaxExprDepth)}
	}

	switch expr := e.(type) {
	case queryir.Predicate:
		return c.compilePredicate(expr, path)
	case *queryir.Predicate:
		if expr == nil {
			return "", &queryir.InvalidExpressionError{Path: path, Reason: "nil predicate"}
		}
		return c.compilePredicate(*expr, path)
	case queryir.Group:
		return c.compileGroup(expr, path, depth)
	case *queryir.Group:
		if expr == nil {
			return "", &queryir.InvalidExpressionError{Path: path, Reason: "nil group"}
		}
		return c.compileGroup(*expr, path, depth)
	case queryir.Exists:
		return c.compileExists(expr, path, depth)
	case *queryir.Exists:
		if expr == nil {
			return "", &queryir.InvalidExpressionError{Path: path, Reason: "nil exists"}
		}
		return c.compileExists(*expr, path, depth)
	case nil:
		return "", &queryir.InvalidExpressionError{Path: path, Reason: "missing expression"}
	default:
		return "", &queryir.InvalidExpressionError{Path: path, Reason: fmt.Sprintf("unknown expression type %T", e)}
	}
}

// compilePredicate renders <column> <operator> <value>, or
// <column> IS [NOT] NULL for the null checks.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate, path string) (string, error) {
	op, err := MapOperator(c.Dialect, p.Operator)
	if err != nil {
		return "", err
	}

	sql := QuoteIdentifier(c.Dialect, p.Column) + " " + op
	if p.Operator.TakesValue() {
		value, err := FormatValue(c.Dialect, p.Operator, p.Value)
		if err != nil {
			if ie, ok := err.(*queryir.InvalidExpressionError); ok && ie.Path == "" {
				ie.Path = path + ".value"
			}
			return "", err
		}
		sql += " " + value
	}

	if p.Not {
		return "NOT (" + sql + ")", nil
	}
	return sql, nil
}

// compileGroup joins every child with the group operator and parenthesizes
// the result.
func (c *SQLCompiler) compileGroup(g queryir.Group, path string, depth int) (string, error) {
	op := queryir.LogicalOperator(strings.ToUpper(string(g.Operator)))
	if op != queryir.And && op != queryir.Or {
		return "", &queryir.InvalidExpressionError{Path: path + ".operator", Reason: fmt.Sprintf("unknown logical operator %q", g.Operator)}
	}
	if len(g.Conditions) == 0 {
		return "", &queryir.InvalidExpressionError{Path: path + ".conditions", Reason: "group must contain at least one condition"}
	}

	parts := make([]string, len(g.Conditions))
	for i, child := range g.Conditions {
		sql, err := c.compileExpr(child, fmt.Sprintf("%s.conditions[%d]", path, i), depth+1)
		if err != nil {
			return "", err
		}
		parts[i] = sql
	}

	sql := "(" + strings.Join(parts, " "+string(op)+" ") + ")"
	if g.Not {
		return "NOT (" + sql + ")", nil
	}
	return sql, nil
}

// compileExists compiles the nested query with the same dialect.
func (c *SQLCompiler) compileExists(e queryir.Exists, path string, depth int) (string, error) {
	if e.Subquery == nil {
		return "", &queryir.InvalidExpressionError{Path: path + ".subquery", Reason: "exists without subquery"}
	}

	sub, err := c.compileQuery(e.Subquery, path+".subquery.", depth+1)
	if err != nil {
		return "", err
	}

	// A trailing mssql pagination comment would swallow the closing paren.
	if c.Dialect == queryir.MSSQL && e.Subquery.Limit != nil {
		sub += "\n"
	}
	sql := "EXISTS (" + sub + ")"
	if e.Not {
		return "NOT " + sql, nil
	}
	return sql, nil
}
