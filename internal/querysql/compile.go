package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/fedsql/internal/queryir"
)

// MaxExprDepth bounds expression nesting so a malformed, self-referencing
// tree fails instead of recursing forever.
const MaxExprDepth = queryir.MaxExprDepth

// SQLCompiler compiles QueryIR to SQL text for a single dialect.
//
// A compiler holds no per-call state and is safe for concurrent use.
type SQLCompiler struct {
	Dialect queryir.Dialect
}

// NewSQLCompiler creates a compiler for the given dialect.
func NewSQLCompiler(dialect queryir.Dialect) *SQLCompiler {
	return &SQLCompiler{Dialect: dialect}
}

// GenerateSQL compiles q for dialect.
//
// The result is a newline-joined statement with clauses in this order:
// SELECT, FROM, JOIN..., WHERE, GROUP BY, ORDER BY, LIMIT.
func GenerateSQL(q *queryir.QueryIR, dialect queryir.Dialect) (string, error) {
	return NewSQLCompiler(dialect).Compile(q)
}

// Compile converts a QueryIR to SQL text.
//
// Returns *queryir.UnsupportedOperatorError when a predicate operator has no
// mapping and *queryir.InvalidExpressionError when an expression node is
// malformed. No condition is ever dropped silently.
func (c *SQLCompiler) Compile(q *queryir.QueryIR) (string, error) {
	if !c.Dialect.Valid() {
		return "", fmt.Errorf("unsupported dialect %q", c.Dialect)
	}
	return c.compileQuery(q, "", 0)
}

// compileQuery compiles one (possibly nested) query. path prefixes error
// locations for nested queries.
func (c *SQLCompiler) compileQuery(q *queryir.QueryIR, path string, depth int) (string, error) {
	if q == nil {
		return "", fmt.Errorf("cannot compile nil query")
	}

	selectClause, err := c.compileSelect(q.Select)
	if err != nil {
		return "", err
	}
	lines := []string{
		selectClause,
		"FROM " + c.compileTable(q.From),
	}

	for i, j := range q.Joins {
		joinSQL, err := c.compileJoin(j, fmt.Sprintf("%sjoins[%d]", path, i), depth)
		if err != nil {
			return "", err
		}
		lines = append(lines, joinSQL)
	}

	if q.Where != nil {
		whereSQL, err := c.compileExpr(q.Where, path+"where", depth)
		if err != nil {
			return "", err
		}
		lines = append(lines, "WHERE "+whereSQL)
	}

	if len(q.GroupBy) > 0 {
		cols := make([]string, len(q.GroupBy))
		for i, col := range q.GroupBy {
			cols[i] = c.quoteColumn(col)
		}
		lines = append(lines, "GROUP BY "+strings.Join(cols, ", "))
	}

	if len(q.OrderBy) > 0 {
		terms := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := strings.ToUpper(string(o.Direction))
			if dir == "" {
				dir = "ASC"
			}
			terms[i] = c.quoteColumn(o.Column) + " " + dir
		}
		lines = append(lines, "ORDER BY "+strings.Join(terms, ", "))
	}

	if q.Limit != nil {
		lines = append(lines, c.compileLimit(*q.Limit, q.Offset))
	}

	return strings.Join(lines, "\n"), nil
}

// compileSelect builds the SELECT clause. An empty list selects all columns.
func (c *SQLCompiler) compileSelect(items []queryir.SelectItem) (string, error) {
	if len(items) == 0 {
		return "SELECT *", nil
	}

	parts := make([]string, len(items))
	for i, item := range items {
		col := c.quoteColumn(item.Column)
		switch item.Aggregate {
		case "":
		case queryir.AggregateCountDistinct:
			col = "COUNT(DISTINCT " + col + ")"
		case queryir.AggregateCount, queryir.AggregateSum, queryir.AggregateAvg,
			queryir.AggregateMin, queryir.AggregateMax:
			col = strings.ToUpper(string(item.Aggregate)) + "(" + col + ")"
		default:
			return "", fmt.Errorf("select[%d]: unsupported aggregate %q", i, item.Aggregate)
		}
		if item.Alias != "" {
			col += " AS " + QuoteIdentifier(c.Dialect, item.Alias)
		}
		parts[i] = col
	}
	return "SELECT " + strings.Join(parts, ", "), nil
}

// compileTable renders a schema-qualified, optionally aliased table.
func (c *SQLCompiler) compileTable(t queryir.TableRef) string {
	name := QuoteIdentifier(c.Dialect, t.Table)
	if t.Schema != "" {
		name = QuoteIdentifier(c.Dialect, t.Schema) + "." + name
	}
	if t.Alias != "" {
		name += " AS " + QuoteIdentifier(c.Dialect, t.Alias)
	}
	return name
}

func (c *SQLCompiler) compileJoin(j queryir.Join, path string, depth int) (string, error) {
	if !j.Type.Valid() {
		return "", &queryir.InvalidExpressionError{Path: path + ".type", Reason: fmt.Sprintf("unknown join type %q", j.Type)}
	}
	if j.On == nil {
		return "", &queryir.InvalidExpressionError{Path: path + ".on", Reason: "join requires an ON condition"}
	}
	onSQL, err := c.compileExpr(j.On, path+".on", depth)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s JOIN %s ON %s", strings.ToUpper(string(j.Type)), c.compileTable(j.Table), onSQL), nil
}

// compileLimit renders pagination. SQL Server gets a comment placeholder;
// the SELECT clause is not rewritten.
func (c *SQLCompiler) compileLimit(limit int, offset *int) string {
	switch c.Dialect {
	case queryir.MySQL:
		if offset != nil {
			return fmt.Sprintf("LIMIT %d, %d", *offset, limit)
		}
		return fmt.Sprintf("LIMIT %d", limit)
	case queryir.MSSQL:
		if offset != nil {
			return fmt.Sprintf("-- LIMIT %d OFFSET %d (handled in SELECT)", limit, *offset)
		}
		return fmt.Sprintf("-- LIMIT %d (handled in SELECT)", limit)
	default:
		if offset != nil {
			return fmt.Sprintf("LIMIT %d OFFSET %d", limit, *offset)
		}
		return fmt.Sprintf("LIMIT %d", limit)
	}
}

// quoteColumn quotes a column reference, leaving the * wildcard bare.
func (c *SQLCompiler) quoteColumn(col string) string {
	if col == "*" {
		return col
	}
	return QuoteIdentifier(c.Dialect, col)
}
