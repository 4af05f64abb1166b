package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the timing-free view of a result stored in golden files.
type Snapshot struct {
	Scenario    string               `json:"scenario"`
	Error       string               `json:"error,omitempty"`
	ExecutionID string               `json:"executionId,omitempty"`
	SQL         string               `json:"sql,omitempty"`
	Columns     []string             `json:"columns"`
	Rows        [][]any              `json:"rows"`
	RowCount    int                  `json:"rowCount"`
	Truncated   bool                 `json:"truncated,omitempty"`
	Connections []ConnectionSnapshot `json:"connections"`
}

// ConnectionSnapshot is one connection's outcome without timings.
type ConnectionSnapshot struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// NewSnapshot builds the golden view of a result.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{
		Scenario:    name,
		Columns:     []string{},
		Rows:        [][]any{},
		Connections: []ConnectionSnapshot{},
	}
	if result.Err != nil {
		snap.Error = result.Err.Error()
		return snap
	}

	m := result.Merged
	snap.ExecutionID = m.ExecutionID
	snap.SQL = m.SQL
	snap.Columns = m.Columns
	snap.Rows = m.Rows
	snap.RowCount = m.RowCount
	snap.Truncated = m.Truncated
	for _, cr := range m.ConnectionResults {
		cs := ConnectionSnapshot{ID: cr.ConnectionID, Success: cr.Success}
		if cr.Error != nil {
			cs.Error = cr.Error.Error()
		}
		snap.Connections = append(snap.Connections, cs)
	}
	return snap
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(NewSnapshot(scenario.Name, result), "", "  ")
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return result, nil
}
