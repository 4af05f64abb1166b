// Package history records federated executions in SQLite.
//
// Each execution is one row in executions plus one row per targeted
// connection in connection_results, written in a single transaction.
// Listings are ordered newest first, ties broken by id.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: connection results cascade with their execution
package history
