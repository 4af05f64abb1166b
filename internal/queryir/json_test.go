package queryir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_FullQuery(t *testing.T) {
	data := []byte(`{
		"from": {"schema": "public", "table": "users", "alias": "u"},
		"joins": [{
			"type": "left",
			"table": {"schema": "public", "table": "orders", "alias": "o"},
			"on": {"column": "o.user_id", "operator": "EQUALS", "value": 1}
		}],
		"select": [{"column": "id"}, {"column": "total", "aggregate": "sum", "alias": "spent"}],
		"where": {
			"operator": "AND",
			"conditions": [
				{"column": "status", "operator": "IN", "value": ["active", "trial"]},
				{"subquery": {"from": {"schema": "public", "table": "bans"}, "select": []}, "not": true}
			]
		},
		"groupBy": ["id"],
		"orderBy": [{"column": "id", "direction": "desc"}],
		"limit": 10,
		"offset": 20
	}`)

	q, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, "users", q.From.Table)
	assert.Equal(t, "u", q.From.Alias)
	require.Len(t, q.Joins, 1)
	assert.Equal(t, JoinLeft, q.Joins[0].Type)

	on, ok := q.Joins[0].On.(*Predicate)
	require.True(t, ok, "join ON should decode as predicate, got %T", q.Joins[0].On)
	assert.Equal(t, json.Number("1"), on.Value)

	group, ok := q.Where.(*Group)
	require.True(t, ok, "where should decode as group, got %T", q.Where)
	assert.Equal(t, And, group.Operator)
	require.Len(t, group.Conditions, 2)

	in, ok := group.Conditions[0].(*Predicate)
	require.True(t, ok)
	assert.Equal(t, OpIn, in.Operator)
	assert.Equal(t, []any{"active", "trial"}, in.Value)

	exists, ok := group.Conditions[1].(*Exists)
	require.True(t, ok)
	assert.True(t, exists.Not)
	assert.Equal(t, "bans", exists.Subquery.From.Table)

	assert.Equal(t, []string{"id"}, q.GroupBy)
	assert.Equal(t, Desc, q.OrderBy[0].Direction)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	require.NotNil(t, q.Offset)
	assert.Equal(t, 20, *q.Offset)
}

func TestDecode_NoWhere(t *testing.T) {
	q, err := Decode([]byte(`{"from": {"schema": "s", "table": "t"}, "select": []}`))
	require.NoError(t, err)
	assert.Nil(t, q.Where)
	assert.Empty(t, q.Select)
	assert.Nil(t, q.Limit)
}

func TestDecode_InvalidExpressions(t *testing.T) {
	testCases := []struct {
		name string
		json string
		path string
	}{
		{
			name: "unknown variant",
			json: `{"from": {"table": "t"}, "select": [], "where": {"foo": "bar"}}`,
			path: "where",
		},
		{
			name: "not an object",
			json: `{"from": {"table": "t"}, "select": [], "where": 42}`,
			path: "where",
		},
		{
			name: "nested unknown variant",
			json: `{"from": {"table": "t"}, "select": [], "where": {"operator": "OR", "conditions": [{"column": "a", "operator": "EQUALS", "value": 1}, {}]}}`,
			path: "where.conditions[1]",
		},
		{
			name: "exists with null subquery",
			json: `{"from": {"table": "t"}, "select": [], "where": {"subquery": null}}`,
			path: "where",
		},
		{
			name: "bad join on",
			json: `{"from": {"table": "t"}, "select": [], "joins": [{"type": "inner", "table": {"table": "x"}, "on": []}]}`,
			path: "joins[0].on",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.json))
			require.Error(t, err)
			assert.True(t, IsInvalidExpression(err), "expected InvalidExpressionError, got %v", err)

			var ie *InvalidExpressionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tc.path, ie.Path)
		})
	}
}

func TestMarshal_RoundTripPreservesExprShape(t *testing.T) {
	original := &QueryIR{
		From:   TableRef{Schema: "public", Table: "users"},
		Select: []SelectItem{{Column: "id"}},
		Where: AnyOf(
			Eq("status", "active"),
			&Exists{Subquery: &QueryIR{From: TableRef{Schema: "public", Table: "admins"}}, Not: true},
		),
		Limit: IntPtr(5),
	}

	data, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	group, ok := decoded.Where.(*Group)
	require.True(t, ok)
	assert.Equal(t, Or, group.Operator)
	assert.IsType(t, &Predicate{}, group.Conditions[0])
	assert.IsType(t, &Exists{}, group.Conditions[1])
	assert.Equal(t, 5, *decoded.Limit)
}
