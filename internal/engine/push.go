package engine

import (
	"context"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/store"
)

// ActionAcknowledged is reported by Acknowledge when a pushed ref becomes
// the new synced version.
const ActionAcknowledged Action = "acknowledged"

// Push addresses local refs for delivery over the push link to. Mailbox
// tags are computed as the remote will see the ref, renaming the origin
// through the reverse lookup table, and the ref is re-rooted at the origin
// the remote expects. The inputs are not modified.
func (s *Session) Push(to ir.OriginLink, refs []ir.Ref) ([]ir.Ref, error) {
	st, err := s.current()
	if err != nil {
		return nil, err
	}

	alias := resolve.Alias(to)
	out := make([]ir.Ref, 0, len(refs))
	for _, ref := range refs {
		view := ref.Clone()
		view.Origin = alias
		boxes := mailbox.Mailboxes(view, s.identityPrefix, st.tables.ReverseLookup)

		next := ref.AddTags(boxes...)
		next.Origin = to.Config.Remote
		out = append(out, next)
	}
	return out, nil
}

// Acknowledge records that the remote accepted the current local version
// of key, making it the merge base for the next pull.
func (s *Session) Acknowledge(ctx context.Context, key ir.RefKey) (Outcome, error) {
	return s.serialize(key, "acknowledge", func() (Outcome, error) {
		cur, err := s.refs.GetRef(ctx, key)
		if err != nil {
			return Outcome{Key: key}, err
		}
		out := Outcome{Key: key, Action: ActionUnchanged, Version: cur.Version}
		if !cur.LocalEdits() {
			return out, nil
		}
		if _, err := s.refs.PutRef(ctx, cur.Ref, cur.Version, store.SyncedWith(cur.Ref)); err != nil {
			return Outcome{Key: key}, err
		}
		out.Action = ActionAcknowledged
		return out, nil
	})
}
