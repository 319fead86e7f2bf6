package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// PostgresStore persists events in the batch_audit table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	query := `
		INSERT INTO batch_audit (id, batch_id, timestamp, outcome, attempted, failed, skipped, revert_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.BatchID,
		event.Timestamp,
		string(event.Outcome),
		pq.Array(nonNil(event.Attempted)),
		pq.Array(nonNil(event.Failed)),
		pq.Array(nonNil(event.Skipped)),
		event.RevertError,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, batch_id, timestamp, outcome,
			   to_json(attempted)::text, to_json(failed)::text, to_json(skipped)::text,
			   revert_error
		FROM batch_audit
		ORDER BY timestamp DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e                          Event
			outcome                    string
			attempted, failed, skipped string
		)
		err := rows.Scan(&e.ID, &e.BatchID, &e.Timestamp, &outcome, &attempted, &failed, &skipped, &e.RevertError)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Outcome = Outcome(outcome)
		for dst, raw := range map[*[]string]string{&e.Attempted: attempted, &e.Failed: failed, &e.Skipped: skipped} {
			if err := json.Unmarshal([]byte(raw), dst); err != nil {
				return nil, fmt.Errorf("decode audit names: %w", err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
