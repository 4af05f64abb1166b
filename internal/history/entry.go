package history

import (
	"time"

	"github.com/roach88/fedsql/internal/federation"
	"github.com/roach88/fedsql/internal/queryir"
)

// Entry is one recorded execution.
type Entry struct {
	ExecutionID string        `json:"executionId"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	SQL         string        `json:"sql"`
	Dialect     string        `json:"dialect"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"duration"`
	RowCount    int           `json:"rowCount"`
	Truncated   bool          `json:"truncated,omitempty"`
	Connections []Outcome     `json:"connections"`
}

// Outcome is one connection's part in an execution.
type Outcome struct {
	ConnectionID   string        `json:"connectionId"`
	ConnectionName string        `json:"connectionName"`
	Success        bool          `json:"success"`
	RowCount       int           `json:"rowCount"`
	Duration       time.Duration `json:"duration"`
	Error          string        `json:"error,omitempty"`
}

// Failed counts the connections that did not succeed.
func (e Entry) Failed() int {
	n := 0
	for _, c := range e.Connections {
		if !c.Success {
			n++
		}
	}
	return n
}

// NewEntry builds an Entry from a finished execution.
func NewEntry(r *federation.MergedResult, fingerprint string, dialect queryir.Dialect, startedAt time.Time) Entry {
	entry := Entry{
		ExecutionID: r.ExecutionID,
		Fingerprint: fingerprint,
		SQL:         r.SQL,
		Dialect:     string(dialect),
		StartedAt:   startedAt,
		Duration:    r.TotalExecutionTime,
		RowCount:    r.RowCount,
		Truncated:   r.Truncated,
		Connections: make([]Outcome, len(r.ConnectionResults)),
	}

	for i, cr := range r.ConnectionResults {
		o := Outcome{
			ConnectionID:   cr.ConnectionID,
			ConnectionName: cr.ConnectionName,
			Success:        cr.Success,
		}
		if cr.Data != nil {
			o.RowCount = cr.Data.RowCount
			o.Duration = cr.Data.ExecutionTime
		}
		if cr.Error != nil {
			o.Error = cr.Error.Error()
		}
		entry.Connections[i] = o
	}
	return entry
}
