package queryir

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuery() *QueryIR {
	return &QueryIR{
		From:   TableRef{Schema: "public", Table: "users"},
		Select: []SelectItem{{Column: "id"}, {Column: "email"}},
		Where:  Eq("status", "active"),
		Limit:  IntPtr(100),
	}
}

func fields(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Field
	}
	return out
}

func TestValidate_ValidQuery(t *testing.T) {
	result := Validate(validQuery())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, result.Err())
}

func TestValidate_EmptySelectIsValid(t *testing.T) {
	q := validQuery()
	q.Select = nil
	assert.True(t, Validate(q).Valid, "empty select means SELECT *")
}

func TestValidate_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(q *QueryIR)
		field  string
	}{
		{"missing table", func(q *QueryIR) { q.From.Table = "" }, "from.table"},
		{"empty select column", func(q *QueryIR) { q.Select[0].Column = "" }, "select[0]"},
		{"unknown aggregate", func(q *QueryIR) { q.Select = []SelectItem{{Column: "id", Aggregate: "median"}} }, "select[0]"},
		{"empty group", func(q *QueryIR) { q.Where = &Group{Operator: And} }, "where.conditions"},
		{"bad group operator", func(q *QueryIR) { q.Where = &Group{Operator: "XOR", Conditions: []Expr{Eq("a", 1)}} }, "where.operator"},
		{"unknown operator", func(q *QueryIR) { q.Where = &Predicate{Column: "a", Operator: "LIKE_ISH", Value: "x"} }, "where.operator"},
		{"between with one value", func(q *QueryIR) { q.Where = &Predicate{Column: "a", Operator: OpBetween, Value: []int{1}} }, "where.value"},
		{"in with scalar", func(q *QueryIR) { q.Where = &Predicate{Column: "a", Operator: OpIn, Value: 3} }, "where.value"},
		{"in with empty list", func(q *QueryIR) { q.Where = &Predicate{Column: "a", Operator: OpNotIn, Value: []string{}} }, "where.value"},
		{"exists without subquery", func(q *QueryIR) { q.Where = &Exists{} }, "where.subquery"},
		{"invalid subquery", func(q *QueryIR) { q.Where = &Exists{Subquery: &QueryIR{}} }, "where.subquery.from.table"},
		{"join without on", func(q *QueryIR) { q.Joins = []Join{{Type: JoinInner, Table: TableRef{Table: "orders"}}} }, "joins[0].on"},
		{"unknown join type", func(q *QueryIR) {
			q.Joins = []Join{{Type: "cross", Table: TableRef{Table: "orders"}, On: Eq("a", 1)}}
		}, "joins[0].type"},
		{"bad direction", func(q *QueryIR) { q.OrderBy = []OrderBy{{Column: "id", Direction: "up"}} }, "orderBy[0].direction"},
		{"negative limit", func(q *QueryIR) { q.Limit = IntPtr(-1) }, "limit"},
		{"negative offset", func(q *QueryIR) { q.Offset = IntPtr(-5) }, "offset"},
		{"map value", func(q *QueryIR) { q.Where = Eq("x", map[string]any{"a": 1}) }, "where.value"},
		{"struct value", func(q *QueryIR) { q.Where = Eq("x", struct{ A int }{1}) }, "where.value"},
		{"nan value", func(q *QueryIR) { q.Where = Eq("x", math.NaN()) }, "where.value"},
		{"infinite value", func(q *QueryIR) { q.Where = &Predicate{Column: "x", Operator: OpGreaterThan, Value: math.Inf(-1)} }, "where.value"},
		{"nested list in IN", func(q *QueryIR) {
			q.Where = &Predicate{Column: "x", Operator: OpIn, Value: []any{1, []any{2, 3}}}
		}, "where.value[1]"},
		{"nan in BETWEEN", func(q *QueryIR) {
			q.Where = &Predicate{Column: "x", Operator: OpBetween, Value: []float64{1, math.NaN()}}
		}, "where.value[1]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := validQuery()
			tc.mutate(q)

			result := Validate(q)
			assert.False(t, result.Valid)
			assert.Contains(t, fields(result.Errors), tc.field)

			var ve *ValidationError
			require.ErrorAs(t, result.Err(), &ve)
			assert.NotEmpty(t, ve.Issues)
		})
	}
}

func TestValidate_Warnings(t *testing.T) {
	q := validQuery()
	q.Limit = nil
	q.Offset = IntPtr(10)
	q.Where = Eq("deleted_at", nil)
	q.Select = []SelectItem{{Column: "region"}, {Column: "total", Aggregate: AggregateSum}}

	result := Validate(q)
	assert.True(t, result.Valid, "warnings alone do not invalidate")
	assert.ElementsMatch(t, []string{"limit", "offset", "where.value", "groupBy"}, fields(result.Warnings))
}

func TestValidate_ScalarValuesAccepted(t *testing.T) {
	type status string
	type level int

	for _, value := range []any{"a", 1, int64(2), uint8(3), 2.5, true, status("open"), level(4),
		json.Number("12"), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)} {
		q := validQuery()
		q.Where = Eq("x", value)

		result := Validate(q)
		assert.True(t, result.Valid, "%T: %v", value, result.Errors)
	}
}

func TestValidate_BoundsSelfReferencingSubquery(t *testing.T) {
	q := validQuery()
	q.Where = Exists{Subquery: q}

	result := Validate(q)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nesting exceeds")
}

func TestCheckScalar(t *testing.T) {
	assert.NoError(t, CheckScalar(nil))
	assert.NoError(t, CheckScalar([]byte("raw")))
	assert.NoError(t, CheckScalar(float32(1.5)))

	assert.Error(t, CheckScalar(map[string]any{}))
	assert.Error(t, CheckScalar([]int{1}))
	assert.Error(t, CheckScalar(math.Inf(1)))
	assert.Error(t, CheckScalar(float32(math.NaN())))
}

func TestValidate_LargeLimitWarns(t *testing.T) {
	q := validQuery()
	q.Limit = IntPtr(SoftLimit + 1)
	assert.Contains(t, fields(Validate(q).Warnings), "limit")
}

func TestValidate_DetectsPointerCycle(t *testing.T) {
	g := &Group{Operator: And}
	g.Conditions = []Expr{Eq("a", 1), g}

	q := validQuery()
	q.Where = g

	result := Validate(q)
	assert.False(t, result.Valid)
	assert.Contains(t, fields(result.Errors), "where.conditions[1]")
}

func TestValidate_NilQuery(t *testing.T) {
	assert.False(t, Validate(nil).Valid)
}

func TestAsList(t *testing.T) {
	list, ok := AsList([]int{1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, []any{1, 2, 3}, list)

	_, ok = AsList("abc")
	assert.False(t, ok)

	_, ok = AsList([]byte("abc"))
	assert.False(t, ok)

	_, ok = AsList(nil)
	assert.False(t, ok)
}

func TestParseDialect(t *testing.T) {
	d, err := ParseDialect("PostgreSQL")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = ParseDialect(" mssql ")
	require.NoError(t, err)
	assert.Equal(t, MSSQL, d)

	_, err = ParseDialect("oracle")
	assert.Error(t, err)
}
