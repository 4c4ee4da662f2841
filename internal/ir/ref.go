package ir

import (
	"slices"
	"time"
)

// Ref is a URL-addressable item carrying tags. A ref is identified by the
// pair (URL, Origin); the same URL may exist independently on many origins.
type Ref struct {
	URL           string    `json:"url" yaml:"url"`
	Origin        string    `json:"origin,omitempty" yaml:"origin,omitempty"`
	Title         string    `json:"title,omitempty" yaml:"title,omitempty"`
	Comment       string    `json:"comment,omitempty" yaml:"comment,omitempty"`
	Tags          []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Sources       []string  `json:"sources,omitempty" yaml:"sources,omitempty"`
	AlternateURLs []string  `json:"alternateUrls,omitempty" yaml:"alternateUrls,omitempty"`
	Published     time.Time `json:"published,omitzero" yaml:"published,omitempty"`
	Plugins       Object    `json:"plugins,omitempty" yaml:"plugins,omitempty"`

	// Volatile bookkeeping. Never part of canonical content.
	Created  time.Time `json:"created,omitzero" yaml:"created,omitempty"`
	Modified time.Time `json:"modified,omitzero" yaml:"modified,omitempty"`
}

// RefKey is the identity of a ref.
type RefKey struct {
	URL    string `json:"url" yaml:"url"`
	Origin string `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// String renders the key as "url" or "url origin".
func (k RefKey) String() string {
	if k.Origin == "" {
		return k.URL
	}
	return k.URL + " " + k.Origin
}

// Key returns the identity of r.
func (r Ref) Key() RefKey {
	return RefKey{URL: r.URL, Origin: r.Origin}
}

// Clone returns a deep copy of r.
func (r Ref) Clone() Ref {
	out := r
	out.Tags = slices.Clone(r.Tags)
	out.Sources = slices.Clone(r.Sources)
	out.AlternateURLs = slices.Clone(r.AlternateURLs)
	out.Plugins = r.Plugins.Clone()
	return out
}

// HasTag reports whether r carries t exactly.
func (r Ref) HasTag(t string) bool {
	return slices.Contains(r.Tags, t)
}

// AddTags returns r with tags appended, skipping ones already present.
func (r Ref) AddTags(tags ...string) Ref {
	out := r.Clone()
	for _, t := range tags {
		if !slices.Contains(out.Tags, t) {
			out.Tags = append(out.Tags, t)
		}
	}
	return out
}

// RefPatch is a pending local edit. Nil fields are untouched.
type RefPatch struct {
	Title   *string  `json:"title,omitempty" yaml:"title,omitempty"`
	Comment *string  `json:"comment,omitempty" yaml:"comment,omitempty"`
	Tags    []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// CommentText returns the patched comment, treating absent as empty.
func (p RefPatch) CommentText() string {
	if p.Comment == nil {
		return ""
	}
	return *p.Comment
}

// Apply returns r with the patch applied.
func (p RefPatch) Apply(r Ref) Ref {
	out := r.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Comment != nil {
		out.Comment = *p.Comment
	}
	if p.Tags != nil {
		out.Tags = slices.Clone(p.Tags)
	}
	return out
}
