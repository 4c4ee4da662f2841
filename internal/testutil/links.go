package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/roach88/refmesh/internal/store"
)

// PagedLinks is an in-memory origin-link source with the same keyset
// paging as the SQLite store. It counts fetches and can fail a given page.
//
// Thread-safety: all methods are safe for concurrent use.
type PagedLinks struct {
	mu      sync.Mutex
	links   []store.StoredLink
	fetches int

	failPage int
	failErr  error
}

// NewPagedLinks creates an empty source.
func NewPagedLinks() *PagedLinks {
	return &PagedLinks{}
}

// Add appends a link. plugins maps plugin tags to JSON object text; a nil
// map stores no plugins.
func (p *PagedLinks) Add(url, origin string, plugins map[string]string) *PagedLinks {
	p.mu.Lock()
	defer p.mu.Unlock()

	raw := make(map[string]json.RawMessage, len(plugins))
	for k, v := range plugins {
		raw[k] = json.RawMessage(v)
	}
	p.links = append(p.links, store.StoredLink{
		Seq:     int64(len(p.links) + 1),
		URL:     url,
		Origin:  origin,
		Plugins: raw,
	})
	return p
}

// FailOn makes the n-th fetch (1-based) return err.
func (p *PagedLinks) FailOn(n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPage, p.failErr = n, err
}

// Fetches returns how many pages have been requested.
func (p *PagedLinks) Fetches() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fetches
}

// FetchOriginLinks returns up to limit links with seq greater than after.
func (p *PagedLinks) FetchOriginLinks(ctx context.Context, after int64, limit int) ([]store.StoredLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fetches++
	if p.fetches == p.failPage {
		return nil, p.failErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := []store.StoredLink{}
	for _, l := range p.links {
		if l.Seq <= after {
			continue
		}
		if len(page) == limit {
			break
		}
		page = append(page, l)
	}
	return page, nil
}
