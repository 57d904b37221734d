package storage

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// HistoryLimit is the number of inputs kept by Prune.
const HistoryLimit = 100

// History records submitted terms.
type History struct {
	db  *DB
	now func() time.Time
}

// NewHistory creates an input history on db.
func NewHistory(db *DB) *History {
	return &History{db: db, now: time.Now}
}

// Record appends text and prunes to HistoryLimit entries.
func (h *History) Record(ctx context.Context, text string) error {
	q := h.db.SQ.
		Insert("input_history").
		Columns("text", "created_at").
		Values(text, h.now().UnixMilli())
	if _, err := h.db.exec(ctx, q); err != nil {
		return fmt.Errorf("failed to record input: %w", err)
	}
	return h.Prune(ctx, HistoryLimit)
}

// Prune keeps the newest keep entries.
func (h *History) Prune(ctx context.Context, keep int) error {
	q := h.db.SQ.
		Delete("input_history").
		Where(sq.Expr("id NOT IN (SELECT id FROM input_history ORDER BY id DESC LIMIT ?)", keep))
	if _, err := h.db.exec(ctx, q); err != nil {
		return fmt.Errorf("failed to prune input history: %w", err)
	}
	return nil
}

// Recent returns up to n entries, newest first.
func (h *History) Recent(ctx context.Context, n int) ([]string, error) {
	query, args, err := h.db.SQ.
		Select("text").
		From("input_history").
		OrderBy("id DESC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := h.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query input history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan input history: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
