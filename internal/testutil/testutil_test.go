package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagedLinks_KeysetPaging(t *testing.T) {
	src := NewPagedLinks().
		Add("https://a.example", "", nil).
		Add("https://b.example", "", nil).
		Add("https://c.example", "@a", map[string]string{"+plugin/origin": `{"local":"@c"}`})
	ctx := context.Background()

	page, err := src.FetchOriginLinks(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[1].Seq)

	page, err = src.FetchOriginLinks(ctx, page[1].Seq, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "@a", page[0].Origin)
	assert.JSONEq(t, `{"local":"@c"}`, string(page[0].Plugins["+plugin/origin"]))

	page, err = src.FetchOriginLinks(ctx, 3, 2)
	require.NoError(t, err)
	assert.NotNil(t, page)
	assert.Empty(t, page)

	assert.Equal(t, 3, src.Fetches())
}

func TestPagedLinks_FailOn(t *testing.T) {
	boom := errors.New("boom")
	src := NewPagedLinks().Add("https://a.example", "", nil)
	src.FailOn(2, boom)

	_, err := src.FetchOriginLinks(context.Background(), 0, 1)
	require.NoError(t, err)
	_, err = src.FetchOriginLinks(context.Background(), 1, 1)
	assert.ErrorIs(t, err, boom)
}

func TestSequentialIDs(t *testing.T) {
	gen := NewSequentialIDs("")
	assert.Equal(t, "conflict-1", gen.Generate())
	assert.Equal(t, "conflict-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "conflict-1", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("c")

	var wg sync.WaitGroup
	ids := make(chan string, 100)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				ids <- gen.Generate()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 100)
}

func TestNewStore(t *testing.T) {
	s := NewStore(t)
	links, err := s.FetchOriginLinks(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Empty(t, links)
}
