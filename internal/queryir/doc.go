// Package queryir provides the dialect-agnostic query intermediate
// representation (IR) used by fedsql.
//
// A QueryIR describes one SELECT statement: a source table, optional joins,
// a projection list, an optional boolean filter tree, grouping, ordering and
// pagination. It carries no knowledge of any SQL dialect; the querysql
// package compiles it to text for a chosen Dialect.
//
//	[caller] → [QueryIR] → querysql.GenerateSQL(ir, dialect) → SQL text
//	                                                        → federation.Executor
//
// SEALED EXPRESSIONS:
//
// Expr is a sealed interface using the marker method pattern. Only
// Predicate, Group and Exists implement it, which lets compilers use an
// exhaustive type switch:
//
//	switch e := expr.(type) {
//	case *Predicate:
//	    // leaf comparison
//	case *Group:
//	    // AND/OR over child expressions
//	case *Exists:
//	    // nested QueryIR
//	}
//
// Both value and pointer forms are accepted wherever an Expr is consumed.
//
// INTERCHANGE:
//
// QueryIR is plain JSON. Expr nodes are told apart by field presence, the
// same way the query-builder UI produces them:
//   - "column"     → Predicate
//   - "conditions" → Group
//   - "subquery"   → Exists
//
// Anything else fails to decode with an InvalidExpressionError.
//
// The Expr tree must be acyclic. It is built top-down and never holds
// back-references.
package queryir
