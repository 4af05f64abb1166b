package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/fedsql/internal/federation"
)

// Response scripts what StubTransport does for one connection.
type Response struct {
	// Result is returned after Delay. Nil together with a nil Err yields a
	// nil result, which the executor reports as a failure.
	Result *federation.TransportResult

	// Err is returned instead of Result when set.
	Err error

	// Delay before answering. The wait ends early on ctx cancellation
	// unless IgnoreContext is set.
	Delay time.Duration

	// IgnoreContext makes the stub sleep the full Delay, like a driver that
	// does not honour cancellation.
	IgnoreContext bool

	// Panic, when non-nil, is raised instead of answering.
	Panic any
}

// Call records one ExecuteOnConnection invocation.
type Call struct {
	ConnectionID string
	SQL          string
}

// StubTransport is a scripted federation.Transport.
//
// Thread-safety: all methods are safe for concurrent use.
type StubTransport struct {
	mu          sync.Mutex
	responses   map[string]Response
	calls       []Call
	inFlight    int
	maxInFlight int
}

// NewStubTransport creates a transport with no scripted responses.
// Unscripted connections answer with Success=false.
func NewStubTransport() *StubTransport {
	return &StubTransport{responses: make(map[string]Response)}
}

// On scripts the response for connectionID.
func (s *StubTransport) On(connectionID string, r Response) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[connectionID] = r
	return s
}

// Rows scripts a successful table for connectionID with RowCount = len(rows).
func (s *StubTransport) Rows(connectionID string, columns []string, rows ...[]any) *StubTransport {
	if rows == nil {
		rows = [][]any{}
	}
	return s.On(connectionID, Response{Result: &federation.TransportResult{
		Success: true,
		Data: &federation.ResultData{
			Columns:  columns,
			Rows:     rows,
			RowCount: len(rows),
		},
	}})
}

// ExecuteOnConnection implements federation.Transport.
func (s *StubTransport) ExecuteOnConnection(ctx context.Context, connectionID, sql string) (*federation.TransportResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, Call{ConnectionID: connectionID, SQL: sql})
	r, ok := s.responses[connectionID]
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if !ok {
		return &federation.TransportResult{Message: fmt.Sprintf("no stub response for %s", connectionID)}, nil
	}

	if r.Delay > 0 {
		if r.IgnoreContext {
			time.Sleep(r.Delay)
		} else {
			timer := time.NewTimer(r.Delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	if r.Panic != nil {
		panic(r.Panic)
	}
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Result, nil
}

// Calls returns a copy of the recorded calls in arrival order.
func (s *StubTransport) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (s *StubTransport) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// MaxInFlight returns the highest number of concurrent calls observed.
func (s *StubTransport) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}
