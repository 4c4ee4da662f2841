// Package tag implements the tag grammar shared by every refmesh component.
//
// A tag is a lower-case path such as "user/alice" or "plugin/inbox/user/bob".
// Two conventions are encoded in the string itself:
//
//   - Visibility prefix: none is public, "+" is protected, "_" is private.
//   - Origin suffix: "@alias" names the origin the tag belongs to. No suffix
//     means the local origin.
//
// All functions are total. Malformed input never panics or errors; it simply
// fails whichever predicate is being evaluated.
package tag

import (
	"regexp"
	"strings"
)

// Visibility is the access level encoded by a tag's prefix.
// The order is significant: Private < Protected < Public.
type Visibility int

const (
	Private Visibility = iota
	Protected
	Public
)

// String returns a human-readable name for the visibility level.
func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case Protected:
		return "protected"
	case Public:
		return "public"
	default:
		return "unknown"
	}
}

// Prefix returns the tag prefix that encodes v.
func (v Visibility) Prefix() string {
	switch v {
	case Private:
		return "_"
	case Protected:
		return "+"
	default:
		return ""
	}
}

var (
	tagPattern    = regexp.MustCompile(`^[_+]?[a-z0-9]+(?:[./][a-z0-9]+)*(?:@[a-z0-9]+(?:\.[a-z0-9]+)*)?$`)
	originPattern = regexp.MustCompile(`^(?:@[a-z0-9]+(?:\.[a-z0-9]+)*)?$`)
)

// Valid reports whether t is a well-formed tag.
func Valid(t string) bool {
	return tagPattern.MatchString(t)
}

// ValidOrigin reports whether o is a well-formed origin alias.
// The empty string is the default origin and is valid.
func ValidOrigin(o string) bool {
	return originPattern.MatchString(o)
}

// StripPrefix splits the visibility prefix from t.
// The returned bare tag keeps any origin suffix.
func StripPrefix(t string) (Visibility, string) {
	switch {
	case strings.HasPrefix(t, "_"):
		return Private, t[1:]
	case strings.HasPrefix(t, "+"):
		return Protected, t[1:]
	default:
		return Public, t
	}
}

// SplitOrigin splits the origin suffix from t.
// The returned origin includes the leading "@", or is empty when t has none.
func SplitOrigin(t string) (string, string) {
	i := strings.IndexByte(t, '@')
	if i < 0 {
		return t, ""
	}
	return t[:i], t[i:]
}

// Local returns t without its origin suffix. The visibility prefix is kept.
func Local(t string) string {
	local, _ := SplitOrigin(t)
	return local
}

// Origin returns the origin suffix of t, including "@", or "".
func Origin(t string) string {
	_, origin := SplitOrigin(t)
	return origin
}

// SetPublic removes the visibility prefix from t.
func SetPublic(t string) string {
	_, bare := StripPrefix(t)
	return bare
}

// WithVisibility rewrites t to carry visibility v.
func WithVisibility(t string, v Visibility) string {
	return v.Prefix() + SetPublic(t)
}

// Path returns the bare local path of t: no prefix and no origin.
func Path(t string) string {
	return Local(SetPublic(t))
}

// HasPrefix reports whether the path of t equals prefix or is a
// "/"-delimited descendant of it. Visibility prefixes and origin suffixes
// on either argument are ignored.
func HasPrefix(t, prefix string) bool {
	if !Valid(t) {
		return false
	}
	p := Path(prefix)
	if p == "" {
		return false
	}
	path := Path(t)
	return path == p || strings.HasPrefix(path, p+"/")
}

// Descends reports whether the path of t is a strict descendant of prefix.
func Descends(t, prefix string) bool {
	return HasPrefix(t, prefix) && Path(t) != Path(prefix)
}

// IsPlugin reports whether t names a capability in the plugin namespace
// and is namespace or one of its descendants. An empty namespace matches
// any plugin tag.
func IsPlugin(t, namespace string) bool {
	if !HasPrefix(t, "plugin") {
		return false
	}
	if namespace == "" {
		return true
	}
	return HasPrefix(namespace, "plugin") && HasPrefix(t, namespace)
}

const (
	inboxPrefix  = "plugin/inbox/"
	outboxPrefix = "plugin/outbox/"
)

// IsMailbox reports whether t is a delivered mailbox tag:
// "plugin/inbox/<path>" or "plugin/outbox/<alias>/<path>".
// Protected and private copies are drafts, not deliveries, and never match.
// The origin suffix does not affect the result.
func IsMailbox(t string) bool {
	if !Valid(t) {
		return false
	}
	if v, _ := StripPrefix(t); v != Public {
		return false
	}
	path := Local(t)
	if rest, ok := strings.CutPrefix(path, inboxPrefix); ok {
		return rest != ""
	}
	if rest, ok := strings.CutPrefix(path, outboxPrefix); ok {
		alias, sub, found := strings.Cut(rest, "/")
		return found && alias != "" && sub != ""
	}
	return false
}

// SubOrigin returns the alias under which origin is known when it is
// reached through local. Aliases nest with "." so "@a" under "@b" becomes
// "@b.a".
func SubOrigin(local, origin string) string {
	if local == "" {
		return origin
	}
	if origin == "" || origin == "@" {
		return local
	}
	return local + "." + strings.TrimPrefix(origin, "@")
}

// IsSubOrigin reports whether origin equals local or is nested beneath it.
func IsSubOrigin(local, origin string) bool {
	if local == "" {
		return true
	}
	return origin == local || strings.HasPrefix(origin, local+".")
}
