// Package mailbox computes delivery-queue tags for refs.
//
// Two tag shapes are recognised and produced, bit for bit:
//
//	plugin/inbox/<path>
//	plugin/outbox/<origin-without-@>/<path>
//
// An inbox tag delivers to a local identity; an outbox tag queues delivery to
// an identity on another origin.
package mailbox

import (
	"strings"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/tag"
)

const (
	InboxPrefix  = "plugin/inbox/"
	OutboxPrefix = "plugin/outbox/"
)

// DefaultIdentityPrefix is the identity namespace used when none is given.
const DefaultIdentityPrefix = "+user"

// IsMailbox reports whether t is a delivered (public) mailbox tag.
func IsMailbox(t string) bool {
	return tag.IsMailbox(t)
}

// Notifications returns the public mailbox tags on ref. Protected and
// private copies mark drafts and are never returned.
func Notifications(ref ir.Ref) []string {
	var out []string
	for _, t := range ref.Tags {
		if IsMailbox(t) {
			out = append(out, t)
		}
	}
	return out
}

// Inbox returns the inbox tag for a local path.
func Inbox(path string) string {
	return InboxPrefix + path
}

// Outbox returns the outbox tag delivering path to origin. An empty origin
// is the default origin, which is delivered through the inbox instead.
func Outbox(origin, path string) string {
	name := strings.TrimPrefix(origin, "@")
	if name == "" {
		return Inbox(path)
	}
	return OutboxPrefix + name + "/" + path
}

// GetMailbox converts an identity tag such as "+user/bob@test" into its
// single mailbox tag. Identities on local, or with no origin suffix, get an
// inbox tag; all others get an outbox tag for their origin.
func GetMailbox(identity, local string) string {
	path, origin := tag.SplitOrigin(tag.SetPublic(identity))
	if origin == "" || origin == local {
		return Inbox(path)
	}
	return Outbox(origin, path)
}

// Mailboxes computes the delivery tags for ref.
//
// Every identity under prefix that appears on ref without a public copy
// yields a mailbox; an identity tagged public at any level is already
// visible to everyone and needs no queue. Mailbox tags already on ref are
// kept, so running Mailboxes over its own output changes nothing.
//
// For refs authored on another origin, inbox targets are re-addressed to an
// outbox for that origin. When reverse has an entry for ref.Origin, the
// origin component is renamed through it first.
//
// Results are deduplicated in order of first occurrence.
func Mailboxes(ref ir.Ref, prefix string, reverse map[string]string) []string {
	if prefix == "" {
		prefix = DefaultIdentityPrefix
	}

	highest := make(map[string]tag.Visibility)
	for _, t := range ref.Tags {
		if !isIdentity(t, prefix) {
			continue
		}
		vis, bare := tag.StripPrefix(t)
		if cur, ok := highest[bare]; !ok || vis > cur {
			highest[bare] = vis
		}
	}

	var out []string
	seen := make(map[string]bool)
	emit := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}

	for _, t := range ref.Tags {
		switch {
		case IsMailbox(t):
			emit(readdress(ref, t, reverse))
		case isIdentity(t, prefix):
			_, bare := tag.StripPrefix(t)
			if highest[bare] == tag.Public {
				continue
			}
			emit(readdress(ref, GetMailbox(bare, ""), reverse))
		}
	}
	return out
}

func isIdentity(t, prefix string) bool {
	return tag.Descends(t, prefix) && !tag.IsPlugin(t, "")
}

// readdress rewrites a local inbox target on a foreign ref into an outbox
// for the ref's origin. Outbox targets are already absolute and pass through.
func readdress(ref ir.Ref, mailbox string, reverse map[string]string) string {
	if ref.Origin == "" {
		return mailbox
	}
	path, ok := strings.CutPrefix(tag.Local(mailbox), InboxPrefix)
	if !ok {
		return mailbox
	}
	origin := ref.Origin
	if renamed, ok := reverse[ref.Origin]; ok {
		origin = renamed
	}
	return Outbox(origin, path)
}
