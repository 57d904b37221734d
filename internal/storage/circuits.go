package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"codeberg.org/snonux/translateassist/internal/scheduler"
)

// CircuitStore implements scheduler.StateStore.
type CircuitStore struct {
	db *DB
}

// NewCircuitStore creates a circuit store on db.
func NewCircuitStore(db *DB) *CircuitStore {
	return &CircuitStore{db: db}
}

// LoadCircuits implements scheduler.StateStore.
func (s *CircuitStore) LoadCircuits(ctx context.Context) (map[scheduler.Provider]time.Time, error) {
	query, args, err := s.db.SQ.Select("provider", "open_until").From("circuits").ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := s.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query circuits: %w", err)
	}
	defer rows.Close()

	out := make(map[scheduler.Provider]time.Time)
	for rows.Next() {
		var (
			provider string
			untilMs  int64
		)
		if err := rows.Scan(&provider, &untilMs); err != nil {
			return nil, fmt.Errorf("failed to scan circuit: %w", err)
		}
		out[scheduler.Provider(provider)] = time.UnixMilli(untilMs)
	}
	return out, rows.Err()
}

// SaveCircuit implements scheduler.StateStore. A zero time deletes the row.
func (s *CircuitStore) SaveCircuit(ctx context.Context, p scheduler.Provider, openUntil time.Time) error {
	if openUntil.IsZero() {
		if _, err := s.db.exec(ctx, s.db.SQ.Delete("circuits").Where(sq.Eq{"provider": string(p)})); err != nil {
			return fmt.Errorf("failed to clear circuit %s: %w", p, err)
		}
		return nil
	}

	q := s.db.SQ.
		Insert("circuits").
		Columns("provider", "open_until").
		Values(string(p), openUntil.UnixMilli()).
		Suffix("ON CONFLICT(provider) DO UPDATE SET open_until = excluded.open_until")
	if _, err := s.db.exec(ctx, q); err != nil {
		return fmt.Errorf("failed to save circuit %s: %w", p, err)
	}
	return nil
}
