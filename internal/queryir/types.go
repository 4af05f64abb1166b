package queryir

import (
	"fmt"
	"strings"
)

// Dialect names a SQL syntax variant.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
	MSSQL    Dialect = "mssql"
)

// Dialects lists every supported dialect in a stable order.
var Dialects = []Dialect{Postgres, MySQL, SQLite, MSSQL}

// Valid reports whether d is one of the supported dialects.
func (d Dialect) Valid() bool {
	switch d {
	case Postgres, MySQL, SQLite, MSSQL:
		return true
	}
	return false
}

// ParseDialect converts a user-supplied name to a Dialect.
// Matching is case-insensitive; "postgresql" is accepted as an alias.
func ParseDialect(s string) (Dialect, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "postgresql" {
		name = string(Postgres)
	}
	d := Dialect(name)
	if !d.Valid() {
		return "", fmt.Errorf("unknown dialect %q: must be one of %v", s, Dialects)
	}
	return d, nil
}

// Aggregate is an aggregate function applied to a selected column.
type Aggregate string

const (
	AggregateCount         Aggregate = "count"
	AggregateSum           Aggregate = "sum"
	AggregateAvg           Aggregate = "avg"
	AggregateMin           Aggregate = "min"
	AggregateMax           Aggregate = "max"
	AggregateCountDistinct Aggregate = "count_distinct"
)

// Valid reports whether a is a known aggregate.
func (a Aggregate) Valid() bool {
	switch a {
	case AggregateCount, AggregateSum, AggregateAvg, AggregateMin, AggregateMax, AggregateCountDistinct:
		return true
	}
	return false
}

// JoinType is the kind of a Join.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// Valid reports whether t is a known join type.
func (t JoinType) Valid() bool {
	switch t {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return true
	}
	return false
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Valid reports whether d is asc or desc (case-insensitive). Empty means asc.
func (d Direction) Valid() bool {
	switch Direction(strings.ToLower(string(d))) {
	case "", Asc, Desc:
		return true
	}
	return false
}

// TableRef identifies a table, schema-qualified and optionally aliased.
// Connection tags the table with a source connection for federated queries.
type TableRef struct {
	Schema     string `json:"schema"`
	Table      string `json:"table"`
	Alias      string `json:"alias,omitempty"`
	Connection string `json:"connection,omitempty"`
}

// SelectItem is one projected column. List order becomes SQL column order.
type SelectItem struct {
	Column    string    `json:"column"`
	Alias     string    `json:"alias,omitempty"`
	Aggregate Aggregate `json:"aggregate,omitempty"`
}

// Join attaches another table with an ON condition.
type Join struct {
	Type  JoinType `json:"type"`
	Table TableRef `json:"table"`
	On    Expr     `json:"on"`
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column    string    `json:"column"`
	Direction Direction `json:"direction"`
}

// QueryIR is the abstract form of a single SELECT statement.
//
// An empty Select list means SELECT *. Limit and Offset are pointers so that
// an explicit zero is distinguishable from "not set".
type QueryIR struct {
	From    TableRef     `json:"from"`
	Joins   []Join       `json:"joins,omitempty"`
	Select  []SelectItem `json:"select"`
	Where   Expr         `json:"where,omitempty"`
	GroupBy []string     `json:"groupBy,omitempty"`
	OrderBy []OrderBy    `json:"orderBy,omitempty"`
	Limit   *int         `json:"limit,omitempty"`
	Offset  *int         `json:"offset,omitempty"`
}

// IntPtr returns a pointer to n. Handy for Limit and Offset literals.
func IntPtr(n int) *int {
	return &n
}
