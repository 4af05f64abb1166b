// Package testutil provides deterministic doubles for executor tests.
//
// FixedGenerator hands out predetermined execution IDs so merged results
// and history rows can be compared exactly. StubTransport scripts
// per-connection responses, delays and panics, and records every call.
package testutil
