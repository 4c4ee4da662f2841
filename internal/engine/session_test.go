package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/store"
	"github.com/roach88/refmesh/internal/testutil"
)

const homeAPI = "https://home.example"

func originPlugin(local string) map[string]string {
	return map[string]string{ir.PluginOrigin: fmt.Sprintf(`{"local":%q}`, local)}
}

// setupSession creates a session for the local origin "" backed by a fresh
// store, and reloads it from links.
func setupSession(t *testing.T, links *testutil.PagedLinks, opts ...SessionOption) (*Session, *store.Store) {
	t.Helper()
	st := testutil.NewStore(t)
	opts = append([]SessionOption{WithIDGenerator(testutil.NewSequentialIDs("c"))}, opts...)
	s := NewSession(links, st, "", homeAPI, opts...)
	_, err := s.Reload(context.Background())
	require.NoError(t, err)
	return s, st
}

func manyLinks(n int) *testutil.PagedLinks {
	links := testutil.NewPagedLinks()
	for i := 1; i <= n; i++ {
		links.Add(fmt.Sprintf("https://r%d.example", i), "", originPlugin(fmt.Sprintf("@r%d", i)))
	}
	return links
}

func TestReload_PagesUntilShortPage(t *testing.T) {
	tests := []struct {
		name      string
		links     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 2, 1},
		{"partial last page", 5, 2, 3},
		{"exact multiple", 4, 2, 3},
		{"single page", 3, 10, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := manyLinks(tt.links)
			s := NewSession(links, testutil.NewStore(t), "", homeAPI, WithPageSize(tt.pageSize))

			stats, err := s.Reload(context.Background())
			require.NoError(t, err)
			assert.Equal(t, ReloadStats{Links: tt.links, Pages: tt.wantPages}, stats)
			assert.Equal(t, tt.wantPages, links.Fetches())
			assert.Len(t, s.Tables().List, tt.links+1)
		})
	}
}

func TestReload_CeilingStopsPaging(t *testing.T) {
	links := manyLinks(5)
	s := NewSession(links, testutil.NewStore(t), "", homeAPI, WithPageSize(2), WithLinkCeiling(3))

	stats, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.Truncated)
	assert.Equal(t, 3, stats.Links)
	assert.Equal(t, 2, stats.Pages)

	// Tables are still built from what was loaded.
	assert.Equal(t, []string{"", "@r1", "@r2", "@r3"}, s.Tables().List)
}

func TestReload_CeilingOnCompleteSet(t *testing.T) {
	s := NewSession(manyLinks(3), testutil.NewStore(t), "", homeAPI, WithPageSize(2), WithLinkCeiling(3))

	stats, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.Truncated)
	assert.Equal(t, 3, stats.Links)
}

func TestReload_CeilingOnFullPage(t *testing.T) {
	tests := []struct {
		name      string
		links     int
		truncated bool
	}{
		{"nothing behind the ceiling", 4, false},
		{"more behind the ceiling", 6, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := manyLinks(tt.links)
			s := NewSession(links, testutil.NewStore(t), "", homeAPI, WithPageSize(2), WithLinkCeiling(4))

			stats, err := s.Reload(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.truncated, stats.Truncated)
			assert.Equal(t, 4, stats.Links)
			assert.Equal(t, 2, stats.Pages)
			assert.Equal(t, 3, links.Fetches(), "two pages and one look-ahead")
		})
	}
}

func TestReload_NonPositiveCeilingLoadsAll(t *testing.T) {
	s := NewSession(manyLinks(3), testutil.NewStore(t), "", homeAPI, WithLinkCeiling(0))

	stats, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, stats.Truncated)
	assert.Equal(t, 3, stats.Links)
}

func TestReload_SkipsLinksThatFailToCompile(t *testing.T) {
	links := testutil.NewPagedLinks().
		Add("https://good.example", "", originPlugin("@good")).
		Add("https://bad-origin.example", "NOT VALID", originPlugin("@x")).
		Add("https://no-plugin.example", "", nil).
		Add("https://bad-shape.example", "", map[string]string{
			ir.PluginOrigin: `{"local":"@x","colour":"red"}`,
		})
	s := NewSession(links, testutil.NewStore(t), "", homeAPI)

	stats, err := s.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Links)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, []string{"", "@good"}, s.Tables().List)
}

func TestReload_ErrorKeepsPreviousSnapshot(t *testing.T) {
	links := manyLinks(3)
	s := NewSession(links, testutil.NewStore(t), "", homeAPI, WithPageSize(2))
	_, err := s.Reload(context.Background())
	require.NoError(t, err)
	before := s.Tables()

	links.Add("https://r4.example", "", originPlugin("@r4"))
	boom := errors.New("connection reset")
	links.FailOn(links.Fetches()+2, boom)

	_, err = s.Reload(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Same(t, before, s.Tables(), "partial reload must not be published")
	assert.Len(t, s.Snapshot().Links, 3)
}

func TestReload_Cancelled(t *testing.T) {
	s := NewSession(manyLinks(1), testutil.NewStore(t), "", homeAPI)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Reload(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, s.Tables())
}

func TestReload_ReplacesTablesWholesale(t *testing.T) {
	links := manyLinks(1)
	s, _ := setupSession(t, links)
	first := s.Tables()

	links.Add("https://r2.example", "", originPlugin("@r2"))
	_, err := s.Reload(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, s.Tables())
	assert.Equal(t, []string{"", "@r1"}, first.List, "old tables are immutable")
	assert.Equal(t, []string{"", "@r1", "@r2"}, s.Tables().List)
}

func TestSession_BeforeReload(t *testing.T) {
	s := NewSession(testutil.NewPagedLinks(), testutil.NewStore(t), "@home", homeAPI)

	assert.Nil(t, s.Tables())
	assert.Equal(t, "@home", s.Snapshot().Origin)

	_, err := s.Pull(context.Background(), ir.OriginLink{URL: "https://r.example"}, ir.Ref{URL: "https://x"})
	assert.True(t, IsNoTables(err))
	_, err = s.Push(ir.OriginLink{}, nil)
	assert.True(t, IsNoTables(err))
}

func TestSession_Link(t *testing.T) {
	s, _ := setupSession(t, manyLinks(2))

	link, ok := s.Link("@r2")
	require.True(t, ok)
	assert.Equal(t, "https://r2.example", link.URL)

	_, ok = s.Link("@missing")
	assert.False(t, ok)
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession(nil, nil, "", "", WithPageSize(0), WithMaxCASRetries(-1), WithConcurrency(0), WithLinkCeiling(-5))

	assert.Equal(t, DefaultPageSize, s.pageSize)
	assert.Equal(t, 1, s.maxCASRetries)
	assert.Equal(t, 1, s.concurrency)
	assert.Equal(t, DefaultLinkCeiling, s.linkCeiling)
	assert.Equal(t, "+user", s.identityPrefix)
}
