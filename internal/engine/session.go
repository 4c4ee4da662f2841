package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/refmesh/internal/compiler"
	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/store"
)

const (
	// DefaultPageSize is the number of origin links fetched per page.
	DefaultPageSize = 500

	// DefaultLinkCeiling caps how many origin links a reload loads.
	DefaultLinkCeiling = 10000

	// DefaultMaxCASRetries bounds compare-and-swap attempts per ref.
	DefaultMaxCASRetries = 3

	// DefaultConcurrency bounds how many identities IngestBatch works on
	// at once.
	DefaultConcurrency = 8
)

// LinkSource is the paged origin-link fetch. Implemented by *store.Store.
type LinkSource interface {
	FetchOriginLinks(ctx context.Context, after int64, limit int) ([]store.StoredLink, error)
}

// RefStore holds the refs being replicated. Implemented by *store.Store.
type RefStore interface {
	GetRef(ctx context.Context, key ir.RefKey) (store.RefRecord, error)
	GetVersion(ctx context.Context, key ir.RefKey, version string) (ir.Ref, error)
	PutRef(ctx context.Context, ref ir.Ref, expected string, opts ...store.PutOption) (string, error)
	WriteConflict(ctx context.Context, c store.Conflict) error
	ListConflicts(ctx context.Context, key *ir.RefKey) ([]store.Conflict, error)
}

// Session is the replication state of one local instance: the origin-link
// snapshot with its resolved tables, and the workflows that use them.
//
// Thread-safety model:
//   - Reload publishes a new snapshot atomically; readers never see a
//     partially loaded link set.
//   - Pull, Save and Acknowledge serialize per ref identity; different
//     identities proceed concurrently.
type Session struct {
	links  LinkSource
	refs   RefStore
	origin string
	api    string

	identityPrefix string
	pageSize       int
	linkCeiling    int
	maxCASRetries  int
	concurrency    int
	ids            IDGenerator

	state atomic.Pointer[state]
	locks *keyLocks
}

type state struct {
	snapshot resolve.Snapshot
	tables   *resolve.Tables
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithPageSize sets how many origin links Reload fetches per page.
func WithPageSize(n int) SessionOption {
	return func(s *Session) {
		s.pageSize = n
	}
}

// WithLinkCeiling caps how many origin links Reload loads. Paging stops at
// the ceiling and the tables are built from what was loaded.
// Default: DefaultLinkCeiling, also used when n <= 0.
func WithLinkCeiling(n int) SessionOption {
	return func(s *Session) {
		s.linkCeiling = n
	}
}

// WithIDGenerator sets the conflict ID generator.
// Default: UUIDv7Generator. Tests use NewFixedGenerator.
func WithIDGenerator(g IDGenerator) SessionOption {
	return func(s *Session) {
		s.ids = g
	}
}

// WithIdentityPrefix sets the tag prefix that marks user identities.
// Default: "+user".
func WithIdentityPrefix(prefix string) SessionOption {
	return func(s *Session) {
		s.identityPrefix = prefix
	}
}

// WithConcurrency bounds the number of identities IngestBatch processes
// at once.
func WithConcurrency(n int) SessionOption {
	return func(s *Session) {
		s.concurrency = n
	}
}

// WithMaxCASRetries bounds compare-and-swap attempts per ref.
func WithMaxCASRetries(n int) SessionOption {
	return func(s *Session) {
		s.maxCASRetries = n
	}
}

// NewSession creates a session for the local instance named origin and
// reachable at api. Call Reload before using the resolver tables.
func NewSession(links LinkSource, refs RefStore, origin, api string, opts ...SessionOption) *Session {
	s := &Session{
		links:          links,
		refs:           refs,
		origin:         origin,
		api:            api,
		identityPrefix: mailbox.DefaultIdentityPrefix,
		pageSize:       DefaultPageSize,
		linkCeiling:    DefaultLinkCeiling,
		maxCASRetries:  DefaultMaxCASRetries,
		concurrency:    DefaultConcurrency,
		ids:            UUIDv7Generator{},
		locks:          newKeyLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.linkCeiling <= 0 {
		s.linkCeiling = DefaultLinkCeiling
	}
	if s.maxCASRetries <= 0 {
		s.maxCASRetries = 1
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	return s
}

// Origin returns the local origin alias.
func (s *Session) Origin() string {
	return s.origin
}

// ReloadStats summarizes a Reload.
type ReloadStats struct {
	Links     int  `json:"links"`
	Pages     int  `json:"pages"`
	Skipped   int  `json:"skipped"`
	Truncated bool `json:"truncated"`
}

// Reload fetches every origin link page by page, compiles them, and then
// replaces the snapshot and tables in one step. Links whose plugins fail to
// compile are skipped with a warning. On error the previous snapshot stays
// in place.
func (s *Session) Reload(ctx context.Context) (ReloadStats, error) {
	var (
		stats  ReloadStats
		links  []ir.OriginLink
		cursor int64
		loaded int
	)

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("reload: %w", err)
		}
		page, err := s.links.FetchOriginLinks(ctx, cursor, s.pageSize)
		if err != nil {
			return stats, fmt.Errorf("reload: page %d: %w", stats.Pages+1, err)
		}
		stats.Pages++

		for _, row := range page {
			if loaded == s.linkCeiling {
				stats.Truncated = true
				break
			}
			loaded++
			cursor = row.Seq

			link, err := compiler.CompileOriginLink(row.URL, row.Origin, row.Plugins)
			if err != nil {
				stats.Skipped++
				slog.Warn("skipping origin link",
					"url", row.URL,
					"origin", row.Origin,
					"error", err,
				)
				continue
			}
			links = append(links, *link)
		}

		if stats.Truncated || len(page) < s.pageSize {
			break
		}
		if loaded == s.linkCeiling {
			// A full page ended exactly at the ceiling: look one link ahead.
			more, err := s.links.FetchOriginLinks(ctx, cursor, 1)
			if err != nil {
				return stats, fmt.Errorf("reload: page %d: %w", stats.Pages+1, err)
			}
			stats.Truncated = len(more) > 0
			break
		}
	}
	if stats.Truncated {
		slog.Warn("origin link ceiling reached, paging stopped",
			"ceiling", s.linkCeiling,
			"pages", stats.Pages,
		)
	}

	snapshot := resolve.Snapshot{Origin: s.origin, API: s.api, Links: links}
	s.state.Store(&state{snapshot: snapshot, tables: resolve.Resolve(snapshot)})
	stats.Links = len(links)

	slog.Info("origin links reloaded",
		"origin", s.origin,
		"links", stats.Links,
		"pages", stats.Pages,
		"skipped", stats.Skipped,
	)
	return stats, nil
}

// Tables returns the resolver tables from the last Reload, or nil.
func (s *Session) Tables() *resolve.Tables {
	if st := s.state.Load(); st != nil {
		return st.tables
	}
	return nil
}

// Snapshot returns the origin-link snapshot from the last Reload.
func (s *Session) Snapshot() resolve.Snapshot {
	if st := s.state.Load(); st != nil {
		return st.snapshot
	}
	return resolve.Snapshot{Origin: s.origin, API: s.api}
}

// Link returns the loaded link whose derived alias is alias.
func (s *Session) Link(alias string) (ir.OriginLink, bool) {
	for _, link := range s.Snapshot().Links {
		if resolve.Alias(link) == alias {
			return link, true
		}
	}
	return ir.OriginLink{}, false
}

func (s *Session) current() (*state, error) {
	st := s.state.Load()
	if st == nil {
		return nil, newNoTables()
	}
	return st, nil
}

// serialize runs fn holding the lock for key, retrying while fn loses a
// compare-and-swap to a concurrent writer.
func (s *Session) serialize(key ir.RefKey, op string, fn func() (Outcome, error)) (Outcome, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	for attempt := 1; attempt <= s.maxCASRetries; attempt++ {
		out, err := fn()
		if errors.Is(err, store.ErrVersionMismatch) {
			slog.Debug("ref changed concurrently, retrying",
				"op", op,
				"ref", key.String(),
				"attempt", attempt,
			)
			continue
		}
		return out, err
	}
	return Outcome{Key: key}, newCASExhausted(key, s.maxCASRetries)
}
