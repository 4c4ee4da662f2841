package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/queryir"
	"github.com/roach88/refmesh/internal/querysql"
)

// RefRecord is a stored ref with its version bookkeeping.
type RefRecord struct {
	Ref ir.Ref

	// Version is the token of Ref's current content.
	Version string

	// SyncedVersion is the last version exchanged with a remote, or "" if
	// the ref has never been synced. It is the merge base for the next pull.
	SyncedVersion string
}

// LocalEdits reports whether the ref changed locally since it was synced.
// A ref that was never synced counts as edited: there is no known base.
func (r RefRecord) LocalEdits() bool {
	return r.Version != r.SyncedVersion
}

type putConfig struct {
	remote *ir.Ref
}

// PutOption configures PutRef.
type PutOption func(*putConfig)

// SyncedWith records remote as the last version exchanged with a remote
// and makes it the merge base for the next pull. remote is added to the
// version history; it is usually the ref being written, or the remote copy
// a merge was computed from.
func SyncedWith(remote ir.Ref) PutOption {
	return func(c *putConfig) { c.remote = &remote }
}

// GetRef returns the current record for key, or ErrNotFound.
func (s *Store) GetRef(ctx context.Context, key ir.RefKey) (RefRecord, error) {
	var doc string
	rec := RefRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT doc, version, synced_version
		FROM refs
		WHERE url = ? AND origin = ?
	`, key.URL, key.Origin).Scan(&doc, &rec.Version, &rec.SyncedVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return RefRecord{}, fmt.Errorf("get ref %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return RefRecord{}, fmt.Errorf("get ref %s: %w", key, err)
	}
	if rec.Ref, err = unmarshalRef(doc); err != nil {
		return RefRecord{}, fmt.Errorf("get ref %s: %w", key, err)
	}
	return rec, nil
}

// GetVersion returns the ref content held at version, or ErrNotFound.
func (s *Store) GetVersion(ctx context.Context, key ir.RefKey, version string) (ir.Ref, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM ref_versions
		WHERE url = ? AND origin = ? AND version = ?
	`, key.URL, key.Origin, version).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Ref{}, fmt.Errorf("get version %s of %s: %w", version, key, ErrNotFound)
	}
	if err != nil {
		return ir.Ref{}, fmt.Errorf("get version %s of %s: %w", version, key, err)
	}
	return unmarshalRef(doc)
}

// PutRef writes ref if the stored version equals expected, and returns the
// new version token. expected is "" when the caller believes the ref does
// not exist yet. On mismatch nothing is written and the error wraps
// ErrVersionMismatch.
//
// Every written version is also recorded in the version history.
func (s *Store) PutRef(ctx context.Context, ref ir.Ref, expected string, opts ...PutOption) (string, error) {
	var cfg putConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	key := ref.Key()
	version, err := ir.VersionToken(ref)
	if err != nil {
		return "", fmt.Errorf("put ref %s: %w", key, err)
	}
	doc, err := json.Marshal(ref)
	if err != nil {
		return "", fmt.Errorf("put ref %s: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("put ref %s: begin: %w", key, err)
	}
	defer tx.Rollback()

	var current, synced string
	err = tx.QueryRowContext(ctx, `
		SELECT version, synced_version FROM refs WHERE url = ? AND origin = ?
	`, key.URL, key.Origin).Scan(&current, &synced)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = ""
	case err != nil:
		return "", fmt.Errorf("put ref %s: %w", key, err)
	}
	if current != expected {
		return "", fmt.Errorf("put ref %s: have %q, expected %q: %w", key, current, expected, ErrVersionMismatch)
	}
	if cfg.remote != nil {
		if synced, err = s.recordVersion(ctx, tx, *cfg.remote); err != nil {
			return "", fmt.Errorf("put ref %s: synced: %w", key, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO refs (url, origin, doc, version, synced_version)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(url, origin) DO UPDATE SET
			doc = excluded.doc,
			version = excluded.version,
			synced_version = excluded.synced_version
	`, key.URL, key.Origin, string(doc), version, synced)
	if err != nil {
		return "", fmt.Errorf("put ref %s: %w", key, err)
	}

	if _, err := s.recordVersion(ctx, tx, ref); err != nil {
		return "", fmt.Errorf("put ref %s: history: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("put ref %s: commit: %w", key, err)
	}
	return version, nil
}

// recordVersion adds ref to the version history and returns its token.
func (s *Store) recordVersion(ctx context.Context, tx *sql.Tx, ref ir.Ref) (string, error) {
	version, err := ir.VersionToken(ref)
	if err != nil {
		return "", err
	}
	doc, err := json.Marshal(ref)
	if err != nil {
		return "", err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ref_versions (url, origin, version, doc)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, ref.URL, ref.Origin, version, string(doc))
	if err != nil {
		return "", err
	}
	return version, nil
}

// ListRefs returns every ref stored under origin, ordered by url.
func (s *Store) ListRefs(ctx context.Context, origin string) ([]RefRecord, error) {
	return s.QueryRefs(ctx, origin, queryir.All{})
}

// QueryRefs returns the refs stored under origin that match q, ordered
// by url.
func (s *Store) QueryRefs(ctx context.Context, origin string, q queryir.Query) ([]RefRecord, error) {
	stmt, params, err := querysql.NewSQLCompiler().CompileSelect(origin, q)
	if err != nil {
		return nil, fmt.Errorf("compile query %s: %w", q, err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, params...)
	if err != nil {
		return nil, fmt.Errorf("query refs: %w", err)
	}
	defer rows.Close()

	records := []RefRecord{}
	for rows.Next() {
		var (
			doc string
			rec RefRecord
		)
		if err := rows.Scan(&doc, &rec.Version, &rec.SyncedVersion); err != nil {
			return nil, fmt.Errorf("scan ref: %w", err)
		}
		if rec.Ref, err = unmarshalRef(doc); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refs: %w", err)
	}
	return records, nil
}

func unmarshalRef(doc string) (ir.Ref, error) {
	var ref ir.Ref
	if err := json.Unmarshal([]byte(doc), &ref); err != nil {
		return ir.Ref{}, fmt.Errorf("decode ref: %w", err)
	}
	return ref, nil
}
