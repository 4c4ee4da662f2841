package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// StoredLink is an origin link row. Plugins are kept as raw JSON and
// compiled by the reader.
type StoredLink struct {
	Seq     int64
	URL     string
	Origin  string
	Plugins map[string]json.RawMessage
}

// PutOriginLink inserts or replaces the link for (url, origin) and returns
// its seq. Replacing keeps the original seq.
func (s *Store) PutOriginLink(ctx context.Context, url, origin string, plugins map[string]json.RawMessage) (int64, error) {
	if plugins == nil {
		plugins = map[string]json.RawMessage{}
	}
	// json.Marshal sorts map keys and compacts raw values
	data, err := json.Marshal(plugins)
	if err != nil {
		return 0, fmt.Errorf("put origin link: %w", err)
	}

	var seq int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO origin_links (url, origin, plugins)
		VALUES (?, ?, ?)
		ON CONFLICT(url, origin) DO UPDATE SET plugins = excluded.plugins
		RETURNING seq
	`, url, origin, string(data)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("put origin link: %w", err)
	}
	return seq, nil
}

// DeleteOriginLink removes the link for (url, origin).
// Returns ErrNotFound if there was none.
func (s *Store) DeleteOriginLink(ctx context.Context, url, origin string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM origin_links WHERE url = ? AND origin = ?
	`, url, origin)
	if err != nil {
		return fmt.Errorf("delete origin link: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete origin link: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete origin link %s %s: %w", url, origin, ErrNotFound)
	}
	return nil
}

// FetchOriginLinks returns up to limit links with seq greater than after,
// ordered by seq. Pass the last Seq of a page as after to get the next one;
// a page shorter than limit is the last.
func (s *Store) FetchOriginLinks(ctx context.Context, after int64, limit int) ([]StoredLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, url, origin, plugins
		FROM origin_links
		WHERE seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`, after, limit)
	if err != nil {
		return nil, fmt.Errorf("query origin links: %w", err)
	}
	defer rows.Close()

	links := []StoredLink{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate origin links: %w", err)
	}
	return links, nil
}

func scanLink(rows *sql.Rows) (StoredLink, error) {
	var (
		link    StoredLink
		plugins string
	)
	if err := rows.Scan(&link.Seq, &link.URL, &link.Origin, &plugins); err != nil {
		return StoredLink{}, fmt.Errorf("scan origin link: %w", err)
	}
	if err := json.Unmarshal([]byte(plugins), &link.Plugins); err != nil {
		return StoredLink{}, fmt.Errorf("decode plugins for %s: %w", link.URL, err)
	}
	return link, nil
}
