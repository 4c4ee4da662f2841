package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/resolve"
)

func link(origin, url, local, remote string) ir.OriginLink {
	return ir.OriginLink{URL: url, Origin: origin, Config: ir.OriginConfig{Local: local, Remote: remote}}
}

func codes(errs []ValidationError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func TestValidateLinks_Clean(t *testing.T) {
	errs := ValidateLinks(resolve.Snapshot{
		API: "https://main.example",
		Links: []ir.OriginLink{
			link("", "https://a.example", "@a", ""),
			link("@a", "https://b.example", "@b", ""),
		},
	})
	assert.Empty(t, errs)
}

func TestValidateLinks_DuplicateAlias(t *testing.T) {
	errs := ValidateLinks(resolve.Snapshot{
		Links: []ir.OriginLink{
			link("", "https://a.example", "@a", ""),
			link("", "https://a2.example", "@a", ""),
		},
	})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateAlias, errs[0].Code)
	assert.Equal(t, "links[1]", errs[0].Field)
	assert.Contains(t, errs[0].Error(), "links[0]")
}

func TestValidateLinks_InvalidAndMissing(t *testing.T) {
	errs := ValidateLinks(resolve.Snapshot{
		Links: []ir.OriginLink{
			link("", "https://a.example", "a", "@ok"),
			link("", "https://b.example", "", "BAD"),
		},
	})
	assert.Equal(t, []string{ErrInvalidAlias, ErrInvalidAlias, ErrMissingLocal}, codes(errs))
}

func TestValidateLinks_ShadowsSelf(t *testing.T) {
	errs := ValidateLinks(resolve.Snapshot{
		Origin: "@home.a",
		Links:  []ir.OriginLink{link("@home", "https://a.example", "@a", "")},
	})
	assert.Equal(t, []string{ErrShadowsSelf}, codes(errs))
}

func TestValidateLinks_ReverseCollision(t *testing.T) {
	errs := ValidateLinks(resolve.Snapshot{
		API: "https://main.example",
		Links: []ir.OriginLink{
			link("@other", "https://main.example", "@first", ""),
			link("@other", "https://main.example/", "@second", ""),
		},
	})
	require.Equal(t, []string{ErrReverseCollision}, codes(errs))
	assert.Equal(t, "@other", errs[0].Field)
	assert.Equal(t, `[E204] @other: reverse name "@second" shadows "@first"`, errs[0].Error())
}

func TestValidateLinks_InvalidQuery(t *testing.T) {
	pull := link("", "https://a.example", "@a", "")
	pull.Pull = &ir.PullConfig{Query: "science:("}
	push := link("", "https://b.example", "@b", "")
	push.Push = &ir.PushConfig{Query: "Drafts"}
	ok := link("", "https://c.example", "@c", "")
	ok.Push = &ir.PushConfig{Query: "science|+user/alice"}

	errs := ValidateLinks(resolve.Snapshot{Links: []ir.OriginLink{pull, push, ok}})
	require.Len(t, errs, 2)
	assert.Equal(t, []string{ErrInvalidQuery, ErrInvalidQuery}, codes(errs))
	assert.Equal(t, "links[0].pull.query", errs[0].Field)
	assert.Equal(t, "links[1].push.query", errs[1].Field)
	assert.Contains(t, errs[1].Message, `invalid tag "Drafts"`)
}
