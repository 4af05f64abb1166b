package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// List returns up to limit entries, newest first. limit <= 0 returns all.
// Returns an empty slice (not nil) when nothing is recorded.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, fingerprint, sql_text, dialect, started_at, duration_ns, row_count, truncated
		FROM executions
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate executions: %w", err)
	}
	rows.Close()

	// Outcomes are read after the cursor closes; the pool holds one connection.
	for i := range entries {
		outcomes, err := s.readOutcomes(ctx, entries[i].ExecutionID)
		if err != nil {
			return nil, err
		}
		entries[i].Connections = outcomes
	}
	return entries, nil
}

// Get returns one entry, or ErrNotFound.
func (s *Store) Get(ctx context.Context, executionID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, fingerprint, sql_text, dialect, started_at, duration_ns, row_count, truncated
		FROM executions
		WHERE id = ?
	`, executionID)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	if err != nil {
		return Entry{}, err
	}

	e.Connections, err = s.readOutcomes(ctx, executionID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *Store) readOutcomes(ctx context.Context, executionID string) ([]Outcome, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT connection_id, connection_name, success, row_count, duration_ns, error
		FROM connection_results
		WHERE execution_id = ?
		ORDER BY position ASC
	`, executionID)
	if err != nil {
		return nil, fmt.Errorf("query connection results: %w", err)
	}
	defer rows.Close()

	outcomes := []Outcome{}
	for rows.Next() {
		var o Outcome
		var durationNS int64
		if err := rows.Scan(&o.ConnectionID, &o.ConnectionName, &o.Success, &o.RowCount, &durationNS, &o.Error); err != nil {
			return nil, fmt.Errorf("scan connection result: %w", err)
		}
		o.Duration = time.Duration(durationNS)
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connection results: %w", err)
	}
	return outcomes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var startedNS, durationNS int64
	err := row.Scan(&e.ExecutionID, &e.Fingerprint, &e.SQL, &e.Dialect, &startedNS, &durationNS, &e.RowCount, &e.Truncated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan execution: %w", err)
	}
	e.StartedAt = time.Unix(0, startedNS).UTC()
	e.Duration = time.Duration(durationNS)
	return e, nil
}
