package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/millisami/flow-name-service/pkg/domain"
)

// PostgresStore persists the event journal in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed journal.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Schema creates the journal table. Called from wiring; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS name_events (
	id         BIGSERIAL PRIMARY KEY,
	event_type TEXT        NOT NULL,
	name_hash  TEXT        NOT NULL DEFAULT '',
	name       TEXT        NOT NULL DEFAULT '',
	token_id   BIGINT      NOT NULL DEFAULT 0,
	owner      TEXT        NOT NULL DEFAULT '',
	expires_at TIMESTAMPTZ,
	amount     BIGINT      NOT NULL DEFAULT 0,
	at         TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS name_events_name_hash_idx ON name_events (name_hash);
`

// EnsureSchema applies the journal schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure event journal schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO name_events (event_type, name_hash, name, token_id, owner, expires_at, amount, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var expiresAt sql.NullTime
	if !event.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: event.ExpiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, query,
		string(event.Type),
		event.NameHash,
		event.Name,
		int64(event.TokenID),
		string(event.Owner),
		expiresAt,
		int64(event.Amount),
		event.At,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_type, name_hash, name, token_id, owner, expires_at, amount, at
		FROM name_events
		ORDER BY id DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			event     Event
			eventType string
			owner     string
			tokenID   int64
			amount    int64
			expiresAt sql.NullTime
		)
		if err := rows.Scan(&eventType, &event.NameHash, &event.Name, &tokenID, &owner, &expiresAt, &amount, &event.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = Type(eventType)
		event.TokenID = uint64(tokenID)
		event.Owner = domain.Address(owner)
		event.Amount = domain.Amount(amount)
		if expiresAt.Valid {
			event.ExpiresAt = expiresAt.Time
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
