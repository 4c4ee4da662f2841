package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/merge"
	"github.com/roach88/refmesh/internal/queryir"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/store"
	"github.com/roach88/refmesh/internal/tag"
)

// Action is what a pull or save did to the local copy of a ref.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionMerged    Action = "merged"
	ActionConflict  Action = "conflict"
	ActionSaved     Action = "saved"
)

// Outcome reports the result of replicating or saving one ref.
type Outcome struct {
	Key        ir.RefKey `json:"key"`
	Action     Action    `json:"action"`
	Version    string    `json:"version,omitempty"`
	ConflictID string    `json:"conflict_id,omitempty"`
	Mailboxes  []string  `json:"mailboxes,omitempty"`
}

// Localize re-addresses a ref fetched over from into local terms: its
// origin becomes a local alias, and the mailbox tags its identities need
// are added. It returns the localized ref and the mailbox tags.
func (s *Session) Localize(from ir.OriginLink, remote ir.Ref) (ir.Ref, []string, error) {
	st, err := s.current()
	if err != nil {
		return ir.Ref{}, nil, err
	}

	ref := remote.Clone()
	ref.Origin = localOrigin(st.tables, from, remote.Origin)

	boxes := mailbox.Mailboxes(s.mailboxView(ref), s.identityPrefix, nil)
	return ref.AddTags(boxes...), boxes, nil
}

// localOrigin maps the origin a ref carries on the remote side of from to
// the alias it is stored under here. Origins nested behind the remote
// collapse to a direct link when the nested-origin map knows one.
func localOrigin(t *resolve.Tables, from ir.OriginLink, origin string) string {
	rel := relativeOrigin(from.Config.Remote, origin)
	if rel != "" && from.Origin == t.Origin {
		if direct, ok := t.Translate(from.Config.Local, rel); ok {
			return tag.SubOrigin(t.Origin, direct)
		}
	}
	return tag.SubOrigin(resolve.Alias(from), rel)
}

// relativeOrigin expresses origin relative to the remote origin a link
// replicates: the remote itself is "", its sub-origins keep their suffix.
func relativeOrigin(remote, origin string) string {
	if origin == remote {
		return ""
	}
	if remote == "" {
		return origin
	}
	if rest, ok := strings.CutPrefix(origin, remote+"."); ok {
		return "@" + rest
	}
	return origin
}

// mailboxView returns ref as mailbox addressing sees it: refs of the local
// origin are local, everything else is foreign.
func (s *Session) mailboxView(ref ir.Ref) ir.Ref {
	if ref.Origin == s.origin {
		ref.Origin = ""
	}
	return ref
}

// Pull stores a ref fetched from the remote behind from.
//
//   - new ref: created
//   - same content: unchanged
//   - no local edits since the last sync: overwritten
//   - local edits: three-way merged against the last synced version; a
//     failed merge is logged as a conflict and the local copy is kept
//
// A conflict is an Outcome, not an error.
func (s *Session) Pull(ctx context.Context, from ir.OriginLink, remote ir.Ref) (Outcome, error) {
	incoming, boxes, err := s.Localize(from, remote)
	if err != nil {
		return Outcome{}, err
	}
	return s.pull(ctx, incoming, boxes)
}

// IngestBatch pulls refs fetched from the remote behind from. Distinct
// identities are processed concurrently; refs sharing an identity are
// applied in input order. Outcomes are returned in input order; refs the
// link's pull query does not select are reported as ActionSkipped.
func (s *Session) IngestBatch(ctx context.Context, from ir.OriginLink, refs []ir.Ref) ([]Outcome, error) {
	query, err := PullQuery(from)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, len(refs))
	incoming := make([]ir.Ref, len(refs))
	boxes := make([][]string, len(refs))
	var order []ir.RefKey
	groups := make(map[ir.RefKey][]int)
	skipped := 0
	for i, remote := range refs {
		ref, b, err := s.Localize(from, remote)
		if err != nil {
			return nil, err
		}
		incoming[i], boxes[i] = ref, b

		key := ref.Key()
		if !queryir.Match(query, remote) {
			outcomes[i] = Outcome{Key: key, Action: ActionSkipped}
			skipped++
			continue
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, key := range order {
		g.Go(func() error {
			for _, i := range groups[key] {
				out, err := s.pull(gctx, incoming[i], boxes[i])
				if err != nil {
					return fmt.Errorf("pull %s: %w", key, err)
				}
				outcomes[i] = out
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	slog.Info("batch ingested",
		"from", resolve.Alias(from),
		"refs", len(refs),
		"skipped", skipped,
		"identities", len(order),
	)
	return outcomes, nil
}

func (s *Session) pull(ctx context.Context, incoming ir.Ref, boxes []string) (Outcome, error) {
	key := incoming.Key()
	slog.Debug("pulling ref", "ref", key.String(), "mailboxes", boxes)

	out, err := s.serialize(key, "pull", func() (Outcome, error) {
		return s.pullOnce(ctx, incoming)
	})
	out.Mailboxes = boxes
	return out, err
}

func (s *Session) pullOnce(ctx context.Context, incoming ir.Ref) (Outcome, error) {
	key := incoming.Key()
	out := Outcome{Key: key}

	version, err := ir.VersionToken(incoming)
	if err != nil {
		return out, err
	}

	cur, err := s.refs.GetRef(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		out.Action = ActionCreated
		out.Version, err = s.refs.PutRef(ctx, incoming, "", store.SyncedWith(incoming))
		return out, err
	}
	if err != nil {
		return out, err
	}

	switch {
	case cur.Version == version:
		out.Action, out.Version = ActionUnchanged, version
		if cur.SyncedVersion != version {
			_, err = s.refs.PutRef(ctx, incoming, cur.Version, store.SyncedWith(incoming))
		}
		return out, err

	case cur.SyncedVersion == version:
		// Remote has not moved since the last sync; local edits stand.
		out.Action, out.Version = ActionUnchanged, cur.Version
		return out, nil

	case !cur.LocalEdits():
		out.Action = ActionUpdated
		out.Version, err = s.refs.PutRef(ctx, incoming, cur.Version, store.SyncedWith(incoming))
		return out, err
	}

	base, err := s.base(ctx, key, cur.SyncedVersion)
	if err != nil {
		return out, err
	}

	merged, err := merge.ThreeWayMergeRef(base, incoming, cur.Ref)
	if ce, ok := merge.AsConflict(err); ok {
		id, err := s.logConflict(ctx, key, ce)
		if err != nil {
			return out, err
		}
		out.Action, out.Version, out.ConflictID = ActionConflict, cur.Version, id
		return out, nil
	}
	if err != nil {
		return out, err
	}

	out.Action = ActionMerged
	out.Version, err = s.refs.PutRef(ctx, merged, cur.Version, store.SyncedWith(incoming))
	if err == nil {
		slog.Info("merged remote edit", "ref", key.String(), "version", out.Version)
	}
	return out, err
}

// logConflict records ce for key and returns the record's ID. Pulling the
// same divergence again reuses the open record instead of adding another.
func (s *Session) logConflict(ctx context.Context, key ir.RefKey, ce *merge.ConflictError) (string, error) {
	open, err := s.refs.ListConflicts(ctx, &key)
	if err != nil {
		return "", err
	}
	for _, c := range open {
		if c.Code == string(ce.Code) && c.Artifact == ce.Artifact {
			slog.Debug("conflict already logged", "ref", key.String(), "conflict", c.ID)
			return c.ID, nil
		}
	}

	id := s.ids.Generate()
	if err := s.refs.WriteConflict(ctx, store.Conflict{
		ID:       id,
		Key:      key,
		Code:     string(ce.Code),
		Artifact: ce.Artifact,
	}); err != nil {
		return "", err
	}
	slog.Warn("pull conflict",
		"ref", key.String(),
		"code", ce.Code,
		"conflict", id,
		"regions", len(ce.Regions),
	)
	return id, nil
}

// base returns the stored version a merge runs against, or nil when it is
// unknown.
func (s *Session) base(ctx context.Context, key ir.RefKey, version string) (*ir.Ref, error) {
	if version == "" {
		return nil, nil
	}
	ref, err := s.refs.GetVersion(ctx, key, version)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
