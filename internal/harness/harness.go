// Package harness runs YAML federation scenarios against a real session
// and store, and compares the outcome with golden files.
package harness

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/merge"
	"github.com/roach88/refmesh/internal/store"
	"github.com/roach88/refmesh/internal/testutil"
)

// Harness holds the state of one scenario run.
type Harness struct {
	store   *store.Store
	session *engine.Session
	logger  *slog.Logger

	// versions maps content hashes to stable labels.
	versions map[string]string

	// stepVersions holds the raw version each named step produced.
	stepVersions map[string]string

	// touched lists ref keys in first-touch order.
	touched []ir.RefKey
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. Conflict IDs come from
// a sequential generator so runs are reproducible.
//
// Execution flow:
//  1. store every link record as-is
//  2. reload the session (invalid links are skipped)
//  3. run the steps, checking each step's expectations
//  4. collect the final refs and the conflict log
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	for i, rec := range scenario.Links {
		raw, err := rec.RawPlugins()
		if err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
		if _, err := st.PutOriginLink(ctx, rec.URL, rec.Origin, raw); err != nil {
			return nil, fmt.Errorf("links[%d]: %w", i, err)
		}
	}

	opts := []engine.SessionOption{
		engine.WithIDGenerator(testutil.NewSequentialIDs("conflict")),
	}
	if scenario.IdentityPrefix != "" {
		opts = append(opts, engine.WithIdentityPrefix(scenario.IdentityPrefix))
	}
	if scenario.PageSize > 0 {
		opts = append(opts, engine.WithPageSize(scenario.PageSize))
	}

	h := &Harness{
		store:        st,
		session:      engine.NewSession(st, st, scenario.Local.Origin, scenario.Local.API, opts...),
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		versions:     make(map[string]string),
		stepVersions: make(map[string]string),
	}

	result := NewResult()
	result.Reload, err = h.session.Reload(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to reload links: %w", err)
	}
	result.Tables = viewTables(h.session)
	if scenario.Expect != nil {
		for _, msg := range checkTables(h.session.Tables(), *scenario.Expect) {
			result.AddError(msg)
		}
	}

	for i, step := range scenario.Steps {
		sr, err := h.runStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		h.logger.Debug("step done", "index", i, "kind", sr.Kind, "action", sr.Action)
		result.Steps = append(result.Steps, sr)
		if step.Expect != nil {
			for _, msg := range checkStep(i, sr, *step.Expect) {
				result.AddError(msg)
			}
		}
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// runStep performs one step. Errors the step is expected to produce, such
// as save conflicts, are recorded in the result; only harness failures are
// returned.
func (h *Harness) runStep(ctx context.Context, step Step) (StepResult, error) {
	sr := StepResult{Name: step.Name, Kind: step.Kind()}

	var (
		out engine.Outcome
		err error
	)
	switch sr.Kind {
	case KindPull:
		link, ok := h.session.Link(step.Pull.From)
		if !ok {
			return sr, fmt.Errorf("pull: no link with alias %q", step.Pull.From)
		}
		out, err = h.session.Pull(ctx, link, step.Pull.Ref)

	case KindSave:
		expected := ""
		if step.Save.Against != "" {
			expected = h.stepVersions[step.Save.Against]
		}
		out, err = h.session.Save(ctx, step.Save.Key, step.Save.Patch, expected)

	case KindAcknowledge:
		out, err = h.session.Acknowledge(ctx, *step.Acknowledge)

	case KindPush:
		link, ok := h.session.Link(step.Push.To)
		if !ok {
			return sr, fmt.Errorf("push: no link with alias %q", step.Push.To)
		}
		pushed, err := h.session.Push(link, step.Push.Refs)
		if err != nil {
			return sr, err
		}
		for _, ref := range pushed {
			sr.Pushed = append(sr.Pushed, viewRef(ref))
		}
		return sr, nil
	}

	if out.Key.URL != "" {
		key := out.Key
		sr.Key = &key
		h.touch(key)
	}
	sr.Action = string(out.Action)
	sr.Version = h.label(out.Version)
	sr.ConflictID = out.ConflictID
	sr.Mailboxes = out.Mailboxes
	if step.Name != "" {
		h.stepVersions[step.Name] = out.Version
	}

	if out.ConflictID != "" {
		code, err := h.conflictCode(ctx, out.Key, out.ConflictID)
		if err != nil {
			return sr, err
		}
		sr.Conflict = code
	}

	if ce, ok := merge.AsConflict(err); ok {
		sr.Conflict = string(ce.Code)
	} else if errors.Is(err, store.ErrNotFound) {
		sr.Error = err.Error()
	} else if err != nil {
		return sr, err
	}
	return sr, nil
}

func (h *Harness) conflictCode(ctx context.Context, key ir.RefKey, id string) (string, error) {
	conflicts, err := h.store.ListConflicts(ctx, &key)
	if err != nil {
		return "", err
	}
	for _, c := range conflicts {
		if c.ID == id {
			return c.Code, nil
		}
	}
	return "", fmt.Errorf("conflict %s not logged", id)
}

// collect adds the final refs and the conflict log to result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	keys := slices.Clone(h.touched)
	slices.SortFunc(keys, func(a, b ir.RefKey) int {
		return cmp.Or(cmp.Compare(a.URL, b.URL), cmp.Compare(a.Origin, b.Origin))
	})
	for _, key := range keys {
		rec, err := h.store.GetRef(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("collect %s: %w", key, err)
		}
		view := viewRef(rec.Ref)
		view.Version = h.label(rec.Version)
		view.Synced = h.label(rec.SyncedVersion)
		result.Refs = append(result.Refs, view)
	}

	conflicts, err := h.store.ListConflicts(ctx, nil)
	if err != nil {
		return fmt.Errorf("collect conflicts: %w", err)
	}
	for _, c := range conflicts {
		result.Conflicts = append(result.Conflicts, ConflictView{
			ID:     c.ID,
			URL:    c.Key.URL,
			Origin: c.Key.Origin,
			Code:   c.Code,
		})
	}
	return nil
}

func (h *Harness) touch(key ir.RefKey) {
	if !slices.Contains(h.touched, key) {
		h.touched = append(h.touched, key)
	}
}

// label returns the stable label for a version token.
func (h *Harness) label(version string) string {
	if version == "" {
		return ""
	}
	if l, ok := h.versions[version]; ok {
		return l
	}
	l := fmt.Sprintf("v%d", len(h.versions)+1)
	h.versions[version] = l
	return l
}

func viewTables(s *engine.Session) TablesView {
	t := s.Tables()
	return TablesView{
		List:      t.List,
		Lookup:    t.Lookup,
		Reverse:   t.ReverseLookup,
		Tunnels:   t.TunnelLookup,
		OriginMap: t.OriginMap,
	}
}
