// Package federation runs one compiled query against many database
// connections in parallel and merges the per-connection results into a
// single table.
//
// ARCHITECTURE:
//
//	ExecuteQuery(ctx, ir, ids)
//	  1. resolve ids → connected targets      (ConnectionUnavailableError if none)
//	  2. validate + compile SQL once          (same text for every target)
//	  3. one goroutine per target             (transport call raced against a timer)
//	  4. wait for all                          (results land in an index-addressed slice)
//	  5. Merge                                 (column union + optional __connection)
//
// FAILURE ISOLATION:
//
// A per-connection failure never aborts its siblings and never surfaces as
// an error from ExecuteQuery. It is recorded as a MultiConnectionResult with
// Success=false and a *QueryTimeoutError or *QueryExecutionError. Only a
// request with no connected target, or an IR that fails validation or
// compilation, returns an error.
//
// TIMEOUTS:
//
// Each task gets a context whose deadline is the per-connection timeout.
// Transports that honour the context stop early. The executor also races
// the call locally, so a transport that ignores its context cannot hold a
// task past the timeout; its eventual result is discarded.
//
// The executor holds an immutable connection snapshot and no mutable
// shared state. Each task writes only its own result slot.
package federation
