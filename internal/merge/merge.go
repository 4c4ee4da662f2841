// Package merge reconciles concurrent edits of a ref's comment against a
// common ancestor, and renders the artifacts shown when it cannot.
package merge

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/refmesh/internal/ir"
)

// ThreeWayMergeComment merges a pending local comment edit (ours) with the
// comment on the version fetched from the remote (theirs), using base as the
// last version both sides agreed on.
//
// A nil base is always a conflict. Otherwise:
//   - theirs unchanged from base: ours wins
//   - ours unchanged from base: theirs wins
//   - both changed to the same text: that text
//   - anything else: a line merge, which either applies cleanly or
//     conflicts as a whole
//
// An absent comment on any side is the empty string.
func ThreeWayMergeComment(base *ir.Ref, theirs ir.Ref, ours ir.RefPatch) (string, error) {
	oursText := ours.CommentText()
	if base == nil {
		return "", newUnknownBase(theirs.Comment, oursText)
	}
	return MergeText(base.Comment, theirs.Comment, oursText)
}

// MergeText applies the three-way rules to plain text.
func MergeText(base, theirs, ours string) (string, error) {
	switch {
	case theirs == base:
		return ours, nil
	case ours == base:
		return theirs, nil
	case ours == theirs:
		return ours, nil
	}

	merged, regions := MergeLines(splitLines(base), splitLines(ours), splitLines(theirs))
	if len(regions) > 0 {
		return "", newOverlap(base, theirs, ours, regions)
	}
	return strings.Join(merged, ""), nil
}

// Region is one conflicting span. BaseStart and BaseEnd index base lines;
// the slices hold each side's replacement for that span. Field names the
// ref field when the region comes from a whole-ref merge.
type Region struct {
	Field     string   `json:"field,omitempty"`
	BaseStart int      `json:"base_start"`
	BaseEnd   int      `json:"base_end"`
	Base      []string `json:"base"`
	Ours      []string `json:"ours"`
	Theirs    []string `json:"theirs"`
}

type side int

const (
	sideOurs side = iota
	sideTheirs
)

// hunk is a change one side made to base[start:end).
type hunk struct {
	side       side
	start, end int
	lines      []string
}

type cluster struct {
	start, end int
	hunks      []hunk
}

// MergeLines performs a line-oriented three-way merge. Each side is diffed
// against base; changes that touch disjoint base ranges are combined.
// Changes from both sides on overlapping ranges merge only when they are
// identical. Insertions at the same point, or at the edge of the other
// side's changed range, count as overlapping.
//
// When regions is non-empty the merge failed and merged is nil.
func MergeLines(base, ours, theirs []string) (merged []string, regions []Region) {
	hunks := append(diffHunks(base, ours, sideOurs), diffHunks(base, theirs, sideTheirs)...)
	slices.SortStableFunc(hunks, func(a, b hunk) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.end, b.end)
	})

	pos := 0
	for _, c := range clusterHunks(hunks) {
		merged = append(merged, base[pos:c.start]...)
		pos = c.end

		oursLines, oursTouched := c.render(base, sideOurs)
		theirsLines, theirsTouched := c.render(base, sideTheirs)
		switch {
		case !theirsTouched:
			merged = append(merged, oursLines...)
		case !oursTouched:
			merged = append(merged, theirsLines...)
		case slices.Equal(oursLines, theirsLines):
			merged = append(merged, oursLines...)
		default:
			regions = append(regions, Region{
				BaseStart: c.start,
				BaseEnd:   c.end,
				Base:      slices.Clone(base[c.start:c.end]),
				Ours:      oursLines,
				Theirs:    theirsLines,
			})
		}
	}
	if len(regions) > 0 {
		return nil, regions
	}
	return append(merged, base[pos:]...), nil
}

// diffHunks trims the lines base and edited share at either end before
// matching, so an edit among repeated lines stays at the position it was
// made.
func diffHunks(base, edited []string, s side) []hunk {
	pre := commonPrefix(base, edited)
	suf := commonSuffix(base[pre:], edited[pre:])
	b, e := base[pre:len(base)-suf], edited[pre:len(edited)-suf]
	if len(b) == 0 && len(e) == 0 {
		return nil
	}

	m := difflib.NewMatcherWithJunk(b, e, false, nil)
	var out []hunk
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		out = append(out, hunk{
			side:  s,
			start: pre + op.I1,
			end:   pre + op.I2,
			lines: e[op.J1:op.J2],
		})
	}
	return out
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}

// clusterHunks groups sorted hunks into maximal runs of overlapping changes.
func clusterHunks(hunks []hunk) []cluster {
	var out []cluster
	for _, h := range hunks {
		if n := len(out); n > 0 && out[n-1].overlaps(h) {
			c := &out[n-1]
			c.end = max(c.end, h.end)
			c.hunks = append(c.hunks, h)
			continue
		}
		out = append(out, cluster{start: h.start, end: h.end, hunks: []hunk{h}})
	}
	return out
}

// overlaps assumes h.start >= c.start.
func (c cluster) overlaps(h hunk) bool {
	if h.start == h.end || c.start == c.end {
		return h.start <= c.end
	}
	return h.start < c.end
}

// render returns one side's text for the cluster's base range, and whether
// that side changed anything in it.
func (c cluster) render(base []string, s side) ([]string, bool) {
	var out []string
	pos, touched := c.start, false
	for _, h := range c.hunks {
		if h.side != s {
			continue
		}
		touched = true
		out = append(out, base[pos:h.start]...)
		out = append(out, h.lines...)
		pos = h.end
	}
	out = append(out, base[pos:c.end]...)
	return out, touched
}

// splitLines splits s into lines that keep their trailing newline.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
