package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded workflow outcome.
type Entry struct {
	SessionID   string
	Operation   string // book | reschedule | cancel | availability
	Outcome     string // success | user_error | provider_error | partial_failure
	BookingUUID string
	Detail      string
}

// Record is a persisted audit row.
type Record struct {
	ID          uuid.UUID
	SessionID   string
	Operation   string
	Outcome     string
	BookingUUID string
	Detail      string
	CreatedAt   time.Time
}

// Store persists workflow outcomes to PostgreSQL. A nil store is a no-op so
// audit logging stays optional in development.
type Store struct {
	db *sql.DB
}

// NewStore creates an audit store.
func NewStore(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// Append writes one audit entry.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduling_audit (
			id, session_id, operation, outcome, booking_uuid, detail, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.New(), e.SessionID, e.Operation, e.Outcome, e.BookingUUID, e.Detail, time.Now())

	if err != nil {
		return fmt.Errorf("audit: failed to insert entry: %w", err)
	}
	return nil
}

// RecentBySession returns the most recent audit rows for a session, newest
// first.
func (s *Store) RecentBySession(ctx context.Context, sessionID string, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, operation, outcome, booking_uuid, detail, created_at
		FROM scheduling_audit
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query entries: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Operation, &r.Outcome, &r.BookingUUID, &r.Detail, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: failed to scan entry: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
