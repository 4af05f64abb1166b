package history

import (
	"context"
	"fmt"
)

// Record stores an entry and its connection outcomes atomically.
// Recording the same execution ID twice is a no-op.
func (s *Store) Record(ctx context.Context, e Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO executions
		(id, fingerprint, sql_text, dialect, started_at, duration_ns, row_count, truncated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ExecutionID,
		e.Fingerprint,
		e.SQL,
		e.Dialect,
		e.StartedAt.UTC().UnixNano(),
		int64(e.Duration),
		e.RowCount,
		e.Truncated,
	)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	if inserted == 0 {
		return nil
	}

	for i, c := range e.Connections {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO connection_results
			(execution_id, position, connection_id, connection_name, success, row_count, duration_ns, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			e.ExecutionID,
			i,
			c.ConnectionID,
			c.ConnectionName,
			c.Success,
			c.RowCount,
			int64(c.Duration),
			c.Error,
		)
		if err != nil {
			return fmt.Errorf("record connection %s: %w", c.ConnectionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}
