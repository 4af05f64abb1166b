// Package querysql compiles a queryir.QueryIR into SQL text for one of the
// supported dialects.
//
// Compilation is purely syntactic and deterministic: the same IR and dialect
// always produce byte-identical output, and nothing here touches a database.
// Values are embedded as literals rather than bound as parameters so the
// output can be compared as text and sent unchanged to every connection of a
// federated query. String literals double embedded single quotes; that is
// the only escaping applied.
//
// Dialect differences handled here:
//
//	             quoting   CONTAINS  REGEX    booleans  pagination
//	postgres     "x"       ILIKE     ~        true      LIMIT n OFFSET m
//	sqlite       "x"       LIKE      REGEXP   true      LIMIT n OFFSET m
//	mysql        `x`       LIKE      REGEXP   true      LIMIT m, n
//	mssql        [x]       LIKE      REGEXP   1         comment placeholder
//
// SQL Server pagination is not rewritten into TOP or OFFSET/FETCH; the
// compiler emits an inert comment in its place.
package querysql
