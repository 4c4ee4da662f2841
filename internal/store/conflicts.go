package store

import (
	"context"
	"fmt"

	"github.com/roach88/refmesh/internal/ir"
)

// Conflict is a logged merge failure awaiting manual resolution.
type Conflict struct {
	ID       string
	Seq      int64
	Key      ir.RefKey
	Code     string
	Artifact string
}

// WriteConflict appends c to the conflict log. Seq is assigned by the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - rewriting an ID is a no-op.
func (s *Store) WriteConflict(ctx context.Context, c Conflict) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conflicts (id, url, origin, code, artifact)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, c.ID, c.Key.URL, c.Key.Origin, c.Code, c.Artifact)
	if err != nil {
		return fmt.Errorf("write conflict: %w", err)
	}
	return nil
}

// ListConflicts returns logged conflicts ordered by seq. A nil key lists
// all of them; otherwise only those for that ref.
func (s *Store) ListConflicts(ctx context.Context, key *ir.RefKey) ([]Conflict, error) {
	query := `SELECT id, seq, url, origin, code, artifact FROM conflicts`
	var args []any
	if key != nil {
		query += ` WHERE url = ? AND origin = ?`
		args = append(args, key.URL, key.Origin)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []Conflict{}
	for rows.Next() {
		var c Conflict
		if err := rows.Scan(&c.ID, &c.Seq, &c.Key.URL, &c.Key.Origin, &c.Code, &c.Artifact); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return conflicts, nil
}

// ResolveConflict removes a conflict from the log.
// Returns ErrNotFound if id is not logged.
func (s *Store) ResolveConflict(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conflicts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resolve conflict %s: %w", id, ErrNotFound)
	}
	return nil
}
