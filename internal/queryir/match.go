package queryir

import (
	"strings"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/tag"
)

// Match reports whether ref satisfies q. A nil query matches everything.
func Match(q Query, ref ir.Ref) bool {
	switch n := q.(type) {
	case nil, All:
		return true
	case Tag:
		for _, t := range ref.Tags {
			if t == n.Tag || strings.HasPrefix(t, n.Tag+"/") {
				return true
			}
		}
		return false
	case Origin:
		return tag.IsSubOrigin(n.Origin, ref.Origin)
	case Not:
		return !Match(n.Query, ref)
	case And:
		for _, sub := range n.Queries {
			if !Match(sub, ref) {
				return false
			}
		}
		return true
	case Or:
		for _, sub := range n.Queries {
			if Match(sub, ref) {
				return true
			}
		}
		return false
	}
	return false
}

// Filter returns the refs that satisfy q, in order.
func Filter(q Query, refs []ir.Ref) []ir.Ref {
	var out []ir.Ref
	for _, ref := range refs {
		if Match(q, ref) {
			out = append(out, ref)
		}
	}
	return out
}
