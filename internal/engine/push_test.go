package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/testutil"
)

func pushLinks() *testutil.PagedLinks {
	return testutil.NewPagedLinks().
		Add("https://peer.example", "", map[string]string{
			ir.PluginOrigin: `{"local":"@peer","remote":"@home"}`,
			ir.PluginPush:   `{"batchSize":50}`,
		})
}

func TestPush_AddressesForRemote(t *testing.T) {
	s, _ := setupSession(t, pushLinks())
	to := mustLink(t, s, "@peer")

	in := ir.Ref{URL: "https://notes.example/1", Tags: []string{"+user/bob", "public"}}
	out, err := s.Push(to, []ir.Ref{in})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "@home", out[0].Origin)
	assert.Equal(t, []string{"+user/bob", "public", "plugin/outbox/peer/user/bob"}, out[0].Tags)
	assert.Equal(t, []string{"+user/bob", "public"}, in.Tags, "input is not modified")
	assert.Empty(t, in.Origin)
}

func TestPush_UsesReverseLookup(t *testing.T) {
	// The peer replicates us back and calls itself "@main" when it does.
	links := pushLinks().Add(homeAPI, "@peer", originPlugin("@main"))
	s, _ := setupSession(t, links)
	require.Equal(t, "@main", s.Tables().ReverseLookup["@peer"])
	to := mustLink(t, s, "@peer")

	out, err := s.Push(to, []ir.Ref{{URL: "https://notes.example/1", Tags: []string{"_user/bob"}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"_user/bob", "plugin/outbox/main/user/bob"}, out[0].Tags)
}

func TestPush_Idempotent(t *testing.T) {
	s, _ := setupSession(t, pushLinks())
	to := mustLink(t, s, "@peer")

	once, err := s.Push(to, []ir.Ref{{URL: "https://n", Tags: []string{"+user/bob"}}})
	require.NoError(t, err)
	twice, err := s.Push(to, once)
	require.NoError(t, err)
	assert.Equal(t, once[0].Tags, twice[0].Tags)
}

func TestAcknowledge(t *testing.T) {
	s, st := setupSession(t, pushLinks())
	ctx := context.Background()

	saved, err := s.Save(ctx, localKey, ir.RefPatch{Comment: strPtr("draft\n")}, "")
	require.NoError(t, err)

	out, err := s.Acknowledge(ctx, localKey)
	require.NoError(t, err)
	assert.Equal(t, ActionAcknowledged, out.Action)
	assert.Equal(t, saved.Version, out.Version)

	rec, err := st.GetRef(ctx, localKey)
	require.NoError(t, err)
	assert.False(t, rec.LocalEdits())

	again, err := s.Acknowledge(ctx, localKey)
	require.NoError(t, err)
	assert.Equal(t, ActionUnchanged, again.Action)
}
