package storage

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/text/cases"

	"codeberg.org/snonux/translateassist/internal/translation"
)

// Glossary implements translation.Glossary on the glossary table.
type Glossary struct {
	db *DB
}

// NewGlossary creates a glossary on db.
func NewGlossary(db *DB) *Glossary {
	return &Glossary{db: db}
}

func normalizeTerm(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// Find implements translation.Glossary. Entries of the requested domain
// come first, followed by domain-less entries.
func (g *Glossary) Find(ctx context.Context, term, domain string) ([]translation.GlossaryHit, error) {
	q := g.db.SQ.
		Select("term", "domain", "canonical", "note").
		From("glossary").
		Where(sq.Eq{"term_norm": normalizeTerm(term)})
	if domain != "" {
		q = q.Where(sq.Or{sq.Eq{"domain": domain}, sq.Eq{"domain": ""}}).
			OrderByClause("CASE WHEN domain = ? THEN 0 ELSE 1 END", domain)
	}
	q = q.OrderBy("id ASC")

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := g.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query glossary: %w", err)
	}
	defer rows.Close()

	var hits []translation.GlossaryHit
	for rows.Next() {
		var h translation.GlossaryHit
		if err := rows.Scan(&h.Term, &h.Domain, &h.Canonical, &h.Note); err != nil {
			return nil, fmt.Errorf("failed to scan glossary: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Upsert adds or replaces the entry for (term, domain).
func (g *Glossary) Upsert(ctx context.Context, h translation.GlossaryHit) error {
	if strings.TrimSpace(h.Term) == "" || strings.TrimSpace(h.Canonical) == "" {
		return fmt.Errorf("glossary entries need a term and a canonical translation")
	}
	q := g.db.SQ.
		Insert("glossary").
		Columns("term", "term_norm", "domain", "canonical", "note").
		Values(strings.TrimSpace(h.Term), normalizeTerm(h.Term), h.Domain, strings.TrimSpace(h.Canonical), h.Note).
		Suffix("ON CONFLICT(term_norm, domain) DO UPDATE SET term = excluded.term, canonical = excluded.canonical, note = excluded.note")
	if _, err := g.db.exec(ctx, q); err != nil {
		return fmt.Errorf("failed to upsert glossary entry: %w", err)
	}
	return nil
}

// List returns every entry ordered by term.
func (g *Glossary) List(ctx context.Context) ([]translation.GlossaryHit, error) {
	query, args, err := g.db.SQ.
		Select("term", "domain", "canonical", "note").
		From("glossary").
		OrderBy("term_norm ASC", "domain ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := g.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query glossary: %w", err)
	}
	defer rows.Close()

	var hits []translation.GlossaryHit
	for rows.Next() {
		var h translation.GlossaryHit
		if err := rows.Scan(&h.Term, &h.Domain, &h.Canonical, &h.Note); err != nil {
			return nil, fmt.Errorf("failed to scan glossary: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
