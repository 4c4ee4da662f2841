package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/merge"
	"github.com/roach88/refmesh/internal/store"
)

// Save applies a local edit to the ref at key. expected is the version the
// edit was made against, or "" for a new ref.
//
// When the stored version has moved on, the edit is three-way merged with
// it using expected as the base. A failed merge returns a
// *merge.ConflictError carrying the artifact, and nothing is written.
func (s *Session) Save(ctx context.Context, key ir.RefKey, patch ir.RefPatch, expected string) (Outcome, error) {
	return s.serialize(key, "save", func() (Outcome, error) {
		return s.saveOnce(ctx, key, patch, expected)
	})
}

func (s *Session) saveOnce(ctx context.Context, key ir.RefKey, patch ir.RefPatch, expected string) (Outcome, error) {
	out := Outcome{Key: key, Action: ActionSaved}

	cur, err := s.refs.GetRef(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		if expected != "" {
			return Outcome{Key: key}, fmt.Errorf("save %s: %w", key, err)
		}
		ref := s.address(patch.Apply(ir.Ref{URL: key.URL, Origin: key.Origin}))
		out.Mailboxes = mailbox.Notifications(ref)
		out.Version, err = s.refs.PutRef(ctx, ref, "")
		return out, err
	}
	if err != nil {
		return Outcome{Key: key}, err
	}

	if cur.Version == expected {
		next := s.address(patch.Apply(cur.Ref))
		out.Mailboxes = mailbox.Notifications(next)
		out.Version, err = s.refs.PutRef(ctx, next, cur.Version)
		return out, err
	}

	base, err := s.base(ctx, key, expected)
	if err != nil {
		return Outcome{Key: key}, err
	}
	ours := patch.Apply(cur.Ref)
	if base != nil {
		ours = patch.Apply(*base)
	}

	merged, err := merge.ThreeWayMergeRef(base, cur.Ref, ours)
	if err != nil {
		if ce, ok := merge.AsConflict(err); ok {
			slog.Warn("save conflict", "ref", key.String(), "code", ce.Code)
			return Outcome{Key: key, Action: ActionConflict, Version: cur.Version}, fmt.Errorf("save %s: %w", key, err)
		}
		return Outcome{Key: key}, err
	}

	merged = s.address(merged)
	out.Action = ActionMerged
	out.Mailboxes = mailbox.Notifications(merged)
	out.Version, err = s.refs.PutRef(ctx, merged, cur.Version)
	if err == nil {
		slog.Info("merged concurrent save", "ref", key.String(), "version", out.Version)
	}
	return out, err
}

// address adds the mailbox tags ref's identities need.
func (s *Session) address(ref ir.Ref) ir.Ref {
	return ref.AddTags(mailbox.Mailboxes(s.mailboxView(ref), s.identityPrefix, nil)...)
}
