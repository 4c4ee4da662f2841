package queryir

import "strings"

// Query is a node of a tag query.
//
// This is a sealed interface - only types in this package implement it.
//
// Query types:
//   - All: every ref
//   - Tag: refs carrying a tag or one of its descendants
//   - Origin: refs stored under an origin or one nested beneath it
//   - Not, And, Or: boolean combinators
type Query interface {
	queryNode() // Marker method - seals interface to this package
	String() string
}

// All matches every ref.
type All struct{}

func (All) queryNode() {}

func (All) String() string { return "*" }

// Tag matches a ref carrying Tag, or a tag below it in the hierarchy.
//
// Matching is by string: "science" matches "science" and
// "science/physics" but not "+science" or "sciences". The visibility
// prefix is part of the term.
//
// Tag never carries an origin suffix; "science@remote" parses to
// And{Tag{"science"}, Origin{"@remote"}}.
type Tag struct {
	Tag string
}

func (Tag) queryNode() {}

func (t Tag) String() string { return t.Tag }

// Origin matches a ref whose origin is Origin or nested beneath it:
// "@remote" matches refs from "@remote" and "@remote.peer".
type Origin struct {
	Origin string
}

func (Origin) queryNode() {}

func (o Origin) String() string { return o.Origin }

// Not matches the refs Query does not.
type Not struct {
	Query Query
}

func (Not) queryNode() {}

func (n Not) String() string { return "!" + group(n.Query, true) }

// And matches refs matched by every query. An empty And matches all refs.
type And struct {
	Queries []Query
}

func (And) queryNode() {}

func (a And) String() string {
	if len(a.Queries) == 0 {
		return "*"
	}
	parts := make([]string, len(a.Queries))
	for i, q := range a.Queries {
		parts[i] = group(q, false)
	}
	return strings.Join(parts, ":")
}

// Or matches refs matched by any query. An empty Or matches nothing.
type Or struct {
	Queries []Query
}

func (Or) queryNode() {}

func (o Or) String() string {
	if len(o.Queries) == 0 {
		return "!*"
	}
	parts := make([]string, len(o.Queries))
	for i, q := range o.Queries {
		parts[i] = group(q, false)
	}
	return strings.Join(parts, "|")
}

// group parenthesizes combinators that bind looser than their context.
// Under "!" every combinator needs parentheses; elsewhere only "|" does.
func group(q Query, strict bool) string {
	switch n := q.(type) {
	case Or:
		if len(n.Queries) > 1 {
			return "(" + n.String() + ")"
		}
	case And:
		if strict && len(n.Queries) > 1 {
			return "(" + n.String() + ")"
		}
	}
	return q.String()
}
