package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cipherbet/cipherbet/internal/domain"
)

// JournalEntry is a single settlement journal row.
type JournalEntry struct {
	ID        uuid.UUID
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// JournalStore implements domain.Journal as an append-only PostgreSQL
// table. Rows are never updated or deleted.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a JournalStore backed by the given pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Append records a settlement event. The detail map is stored as JSONB.
func (s *JournalStore) Append(ctx context.Context, event string, detail map[string]any) error {
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}
	const query = `INSERT INTO settlement_journal (id, event, detail) VALUES ($1, $2, $3)`
	if _, err := s.pool.Exec(ctx, query, uuid.New(), event, detailJSON); err != nil {
		return fmt.Errorf("postgres: append journal event %s: %w", event, err)
	}
	return nil
}

// List returns journal entries, newest first.
func (s *JournalStore) List(ctx context.Context, limit, offset int) ([]JournalEntry, error) {
	const query = `
		SELECT id, event, detail, created_at
		FROM settlement_journal
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var detailJSON []byte
		if err := rows.Scan(&e.ID, &e.Event, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}
		if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
			return nil, fmt.Errorf("postgres: decode journal detail: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.Journal = (*JournalStore)(nil)
