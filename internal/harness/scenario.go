package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/fedsql/internal/queryir"
)

// Scenario is one federated execution with scripted connections.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Query is the QueryIR document in its JSON shape.
	Query map[string]any `yaml:"query"`

	// Dialect the query is compiled for. Default: postgres.
	Dialect string `yaml:"dialect,omitempty"`

	// Connections are the registry entries and their scripted behaviour.
	Connections []ConnectionScript `yaml:"connections"`

	// Targets are the requested connection IDs. Default: every connection.
	Targets []string `yaml:"targets,omitempty"`

	// Options override executor defaults.
	Options ScenarioOptions `yaml:"options,omitempty"`

	// ExecutionID is the fixed execution ID. Default: "test-execution".
	ExecutionID string `yaml:"execution_id,omitempty"`

	// Expect is checked by EvaluateExpectations.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// ConnectionScript is one connection in a scenario.
type ConnectionScript struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name,omitempty"`

	// Disconnected marks the connection as not connected in the registry.
	Disconnected bool `yaml:"disconnected,omitempty"`

	Columns []string `yaml:"columns,omitempty"`
	Rows    [][]any  `yaml:"rows,omitempty"`

	// RowCount overrides the reported count. Default: len(Rows).
	RowCount *int `yaml:"row_count,omitempty"`

	// Error makes the transport return an error.
	Error string `yaml:"error,omitempty"`

	// Fail makes the transport answer Success=false with this message.
	Fail string `yaml:"fail,omitempty"`

	// DelayMS delays the answer; the delay honours cancellation.
	DelayMS int `yaml:"delay_ms,omitempty"`

	// Panic makes the transport panic with this value.
	Panic string `yaml:"panic,omitempty"`
}

// ScenarioOptions mirror federation.Options.
type ScenarioOptions struct {
	TimeoutMS      int   `yaml:"timeout_ms,omitempty"`
	Provenance     *bool `yaml:"provenance,omitempty"`
	MaxConcurrency int   `yaml:"max_concurrency,omitempty"`
	MaxRows        int   `yaml:"max_rows,omitempty"`
}

// Expectation describes the expected outcome.
type Expectation struct {
	// Error is the expected error code (e.g. CONNECTION_UNAVAILABLE).
	// When set, no other field is checked.
	Error string `yaml:"error,omitempty"`

	Columns   []string `yaml:"columns,omitempty"`
	RowCount  *int     `yaml:"row_count,omitempty"`
	Rows      *int     `yaml:"rows,omitempty"`
	Truncated bool     `yaml:"truncated,omitempty"`

	// Succeeded and Failed list connection IDs by outcome.
	Succeeded []string `yaml:"succeeded,omitempty"`
	Failed    []string `yaml:"failed,omitempty"`

	// FailureCodes maps a failed connection ID to its error code prefix.
	FailureCodes map[string]string `yaml:"failure_codes,omitempty"`
}

// LoadScenario reads and validates a scenario file.
// Unknown fields are rejected to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Query == nil {
		return fmt.Errorf("query is required")
	}
	if s.Dialect != "" {
		if _, err := queryir.ParseDialect(s.Dialect); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(s.Connections))
	for i, c := range s.Connections {
		if c.ID == "" {
			return fmt.Errorf("connections[%d]: id is required", i)
		}
		if seen[c.ID] {
			return fmt.Errorf("connections[%d]: duplicate id %q", i, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// DecodeQuery converts the scenario's query document to a QueryIR.
func (s *Scenario) DecodeQuery() (*queryir.QueryIR, error) {
	data, err := json.Marshal(s.Query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	return queryir.Decode(data)
}
