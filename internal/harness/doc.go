// Package harness runs federated-execution scenarios described in YAML.
//
// A scenario names a query, a set of scripted connections (rows, errors,
// delays, panics) and executor options. Run executes it against a
// testutil.StubTransport with a fixed execution ID, so the merged result is
// deterministic apart from timings. EvaluateExpectations checks the
// scenario's expect block; RunWithGolden snapshots the result to
// testdata/golden/{name}.golden.
//
// Example scenario:
//
//	name: provenance_merge
//	query:
//	  from: {table: customers}
//	  limit: 10
//	connections:
//	  - id: a
//	    columns: [id, name]
//	    rows: [[1, ana]]
//	  - id: b
//	    columns: [id, email]
//	    rows: [[2, bo@example.com]]
//	expect:
//	  columns: [id, name, email, __connection]
//	  row_count: 2
package harness
