package queryir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decode parses a JSON-encoded QueryIR.
// Numeric predicate values are kept as json.Number so large integers
// survive unchanged into SQL literals.
func Decode(data []byte) (*QueryIR, error) {
	var q QueryIR
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

type rawJoin struct {
	Type  JoinType        `json:"type"`
	Table TableRef        `json:"table"`
	On    json.RawMessage `json:"on"`
}

// UnmarshalJSON implements json.Unmarshaler.
// Expr fields are decoded by field presence; see the package docs.
func (q *QueryIR) UnmarshalJSON(data []byte) error {
	var raw struct {
		From    TableRef        `json:"from"`
		Joins   []rawJoin       `json:"joins"`
		Select  []SelectItem    `json:"select"`
		Where   json.RawMessage `json:"where"`
		GroupBy []string        `json:"groupBy"`
		OrderBy []OrderBy       `json:"orderBy"`
		Limit   *int            `json:"limit"`
		Offset  *int            `json:"offset"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := QueryIR{
		From:    raw.From,
		Select:  raw.Select,
		GroupBy: raw.GroupBy,
		OrderBy: raw.OrderBy,
		Limit:   raw.Limit,
		Offset:  raw.Offset,
	}

	for i, j := range raw.Joins {
		on, err := decodeExpr(j.On, fmt.Sprintf("joins[%d].on", i))
		if err != nil {
			return err
		}
		out.Joins = append(out.Joins, Join{Type: j.Type, Table: j.Table, On: on})
	}

	where, err := decodeExpr(raw.Where, "where")
	if err != nil {
		return err
	}
	out.Where = where

	*q = out
	return nil
}

// decodeExpr decodes one Expr node. Empty or null input yields a nil Expr.
func decodeExpr(data json.RawMessage, path string) (Expr, error) {
	if isNull(data) {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &InvalidExpressionError{Path: path, Reason: "expression must be a JSON object"}
	}

	switch {
	case has(fields, "column"):
		var p struct {
			Column   string          `json:"column"`
			Operator Operator        `json:"operator"`
			Value    json.RawMessage `json:"value"`
			Not      bool            `json:"not"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		value, err := decodeValue(p.Value)
		if err != nil {
			return nil, fmt.Errorf("%s.value: %w", path, err)
		}
		return &Predicate{Column: p.Column, Operator: p.Operator, Value: value, Not: p.Not}, nil

	case has(fields, "conditions"):
		var g struct {
			Operator   LogicalOperator   `json:"operator"`
			Conditions []json.RawMessage `json:"conditions"`
			Not        bool              `json:"not"`
		}
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		group := &Group{Operator: g.Operator, Not: g.Not, Conditions: make([]Expr, 0, len(g.Conditions))}
		for i, c := range g.Conditions {
			child, err := decodeExpr(c, fmt.Sprintf("%s.conditions[%d]", path, i))
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, &InvalidExpressionError{Path: fmt.Sprintf("%s.conditions[%d]", path, i), Reason: "null condition"}
			}
			group.Conditions = append(group.Conditions, child)
		}
		return group, nil

	case has(fields, "subquery"):
		if isNull(fields["subquery"]) {
			return nil, &InvalidExpressionError{Path: path, Reason: "exists without subquery"}
		}
		var e struct {
			Subquery *QueryIR `json:"subquery"`
			Not      bool     `json:"not"`
		}
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("%s.subquery: %w", path, err)
		}
		return &Exists{Subquery: e.Subquery, Not: e.Not}, nil
	}

	return nil, &InvalidExpressionError{Path: path, Reason: "expression matches no known variant (predicate, group, exists)"}
}

// decodeValue decodes a predicate value, keeping numbers as json.Number.
func decodeValue(data json.RawMessage) (any, error) {
	if isNull(data) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func has(fields map[string]json.RawMessage, key string) bool {
	_, ok := fields[key]
	return ok
}

func isNull(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
