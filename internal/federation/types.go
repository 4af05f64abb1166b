package federation

import (
	"context"
	"encoding/json"
	"time"
)

// ProvenanceColumn is the synthetic column naming the source connection of
// each merged row.
const ProvenanceColumn = "__connection"

// ConnectionInfo describes one connection known to the registry.
type ConnectionInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsConnected bool   `json:"isConnected"`
}

// ResultData is a tabular result from one connection.
type ResultData struct {
	Columns       []string      `json:"columns"`
	Rows          [][]any       `json:"rows"`
	RowCount      int           `json:"rowCount"`
	ExecutionTime time.Duration `json:"executionTime"`
}

// TransportResult is what a Transport reports for one execution.
// Message explains a failure when Success is false.
type TransportResult struct {
	Success bool        `json:"success"`
	Data    *ResultData `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// Transport executes SQL on a single live connection.
//
// Implementations should honour ctx; the executor cancels it when the
// per-connection timeout fires or the caller cancels the whole execution.
type Transport interface {
	ExecuteOnConnection(ctx context.Context, connectionID, sql string) (*TransportResult, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, connectionID, sql string) (*TransportResult, error)

// ExecuteOnConnection calls f.
func (f TransportFunc) ExecuteOnConnection(ctx context.Context, connectionID, sql string) (*TransportResult, error) {
	return f(ctx, connectionID, sql)
}

// MultiConnectionResult is the outcome of one connection in one execution.
// It is created once and not modified afterwards.
type MultiConnectionResult struct {
	ConnectionID   string      `json:"connectionId"`
	ConnectionName string      `json:"connectionName"`
	Success        bool        `json:"success"`
	Data           *ResultData `json:"data,omitempty"`
	Error          error       `json:"-"`
}

// MarshalJSON renders Error as its message.
func (r MultiConnectionResult) MarshalJSON() ([]byte, error) {
	type plain MultiConnectionResult
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Error != nil {
		out.Error = r.Error.Error()
	}
	return json.Marshal(out)
}

// MergedResult is the unified table of one federated execution.
//
// ConnectionResults always lists every targeted connection, failed ones
// included, in request order. Provenance carries the execution ID when
// provenance was requested.
type MergedResult struct {
	ExecutionID        string                  `json:"executionId"`
	SQL                string                  `json:"sql"`
	Columns            []string                `json:"columns"`
	Rows               [][]any                 `json:"rows"`
	RowCount           int                     `json:"rowCount"`
	Truncated          bool                    `json:"truncated,omitempty"`
	TotalExecutionTime time.Duration           `json:"totalExecutionTime"`
	ConnectionResults  []MultiConnectionResult `json:"connectionResults"`
	Provenance         string                  `json:"provenance,omitempty"`
}

// Failed returns the results of connections that did not succeed.
func (m *MergedResult) Failed() []MultiConnectionResult {
	var failed []MultiConnectionResult
	for _, r := range m.ConnectionResults {
		if !r.Success {
			failed = append(failed, r)
		}
	}
	return failed
}
