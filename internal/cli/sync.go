package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/merge"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	SessionOptions
	From string // alias of the link the refs came over
}

// PullResult summarizes a pull.
type PullResult struct {
	Outcomes  []engine.Outcome `json:"outcomes"`
	Conflicts int              `json:"conflicts"`
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{SessionOptions: SessionOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}}

	cmd := &cobra.Command{
		Use:   "pull <refs-file>",
		Short: "Ingest refs fetched from a remote origin",
		Long: `Store refs fetched over the link with alias --from. Each ref is
re-addressed into local terms, given the mailbox tags its identities
need, and merged with any local edits. Refs are read from a YAML or JSON
file holding one ref or a list; "-" reads stdin.

Conflicting edits are logged (see "refmesh conflicts") and the local copy
is kept. Refs outside the link's pull query are skipped.

Exit codes:
  0 - All refs stored
  1 - One or more conflicts
  2 - Command error

Example:
  refmesh pull --db ./refmesh.db --api https://home.example --from @remote refs.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.From, "from", "", "alias of the link the refs came over (required)")
	_ = cmd.MarkFlagRequired("from")

	return cmd
}

func runPull(opts *PullOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	refs, err := LoadRefs(path, cmd.InOrStdin())
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	st, session, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	link, ok := session.Link(opts.From)
	if !ok {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no link with alias %s", displayOrigin(opts.From)), nil)
	}

	outcomes, err := session.IngestBatch(ctx, link, refs)
	if err != nil {
		return WrapExitError(ExitCommandError, "pull failed", err)
	}

	result := PullResult{Outcomes: outcomes}
	for _, out := range outcomes {
		if out.Action == engine.ActionConflict {
			result.Conflicts++
		}
	}

	if err := f.Render(result, func(w io.Writer) {
		for _, out := range outcomes {
			writeOutcome(w, out)
		}
	}); err != nil {
		return err
	}
	if result.Conflicts > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d conflict(s)", result.Conflicts))
	}
	return nil
}

func writeOutcome(w io.Writer, out engine.Outcome) {
	line := fmt.Sprintf("%-12s %s", out.Action, out.Key)
	if out.ConflictID != "" {
		line += " (conflict " + out.ConflictID + ")"
	}
	fmt.Fprintln(w, line)
	for _, b := range out.Mailboxes {
		fmt.Fprintf(w, "             -> %s\n", b)
	}
}

// PushOptions holds flags for the push command.
type PushOptions struct {
	SessionOptions
	To  string // alias of the push link
	Ack bool   // mark pushed refs as synced
}

// PushResult lists the refs a push would send.
type PushResult struct {
	Refs         []ir.Ref `json:"refs"`
	Acknowledged int      `json:"acknowledged"`
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{SessionOptions: SessionOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Address locally edited refs for a remote origin",
		Long: `Print every ref of the local origin with edits not yet synced,
addressed for the push link with alias --to: mailbox tags are computed
as the remote will see them and the origin is rewritten to the one the
remote expects. When the link's push config has a query, only refs it
selects are pushed.

With --ack the printed versions are recorded as synced, making them the
merge base for the next pull.

Example:
  refmesh push --db ./refmesh.db --api https://home.example --to @peer --ack`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.To, "to", "", "alias of the push link (required)")
	cmd.Flags().BoolVar(&opts.Ack, "ack", false, "record pushed versions as synced")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func runPush(opts *PushOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	st, session, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	link, ok := session.Link(opts.To)
	if !ok {
		return f.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no link with alias %s", displayOrigin(opts.To)), nil)
	}
	if !link.IsPush() {
		slog.Warn("link has no push config", "alias", opts.To, "url", link.URL)
	}

	query, err := engine.PushQuery(link)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeLinkInvalid, err.Error(), nil)
	}
	records, err := st.QueryRefs(ctx, session.Origin(), query)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	var pending []ir.Ref
	for _, rec := range records {
		if rec.LocalEdits() {
			pending = append(pending, rec.Ref)
		}
	}

	pushed, err := session.Push(link, pending)
	if err != nil {
		return WrapExitError(ExitCommandError, "push failed", err)
	}

	result := PushResult{Refs: pushed}
	if opts.Ack {
		for _, ref := range pending {
			out, err := session.Acknowledge(ctx, ref.Key())
			if err != nil {
				return WrapExitError(ExitCommandError, "acknowledge failed", err)
			}
			if out.Action == engine.ActionAcknowledged {
				result.Acknowledged++
			}
		}
	}
	slog.Info("push addressed", "to", opts.To, "refs", len(pushed), "acknowledged", result.Acknowledged)

	return f.Render(result, func(w io.Writer) {
		if len(pushed) == 0 {
			fmt.Fprintln(w, "Nothing to push.")
			return
		}
		for _, ref := range pushed {
			fmt.Fprintf(w, "%s  %s\n", ref.URL, strings.Join(ref.Tags, " "))
		}
		if opts.Ack {
			fmt.Fprintf(w, "Acknowledged %d ref(s)\n", result.Acknowledged)
		}
	})
}

// SaveOptions holds flags for the save command.
type SaveOptions struct {
	SessionOptions
	RefOrigin string
	Title     string
	Comment   string
	Tags      []string
	Against   string
}

// NewSaveCommand creates the save command.
func NewSaveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SaveOptions{SessionOptions: SessionOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}}

	cmd := &cobra.Command{
		Use:   "save <url>",
		Short: "Apply a local edit to a ref",
		Long: `Edit the ref at <url> (in --ref-origin). Only the given fields change;
--tag replaces the whole tag list. --against names the version the edit
was made from; when the stored ref has moved on, the edit is merged with
it, and a conflicting edit is printed and rejected.

Examples:
  refmesh save --db ./refmesh.db https://ex.com/a --title "New title"
  refmesh save --db ./refmesh.db https://ex.com/a --tag +user/alice --tag science --against <version>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSave(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.RefOrigin, "ref-origin", "", "origin the ref is stored under")
	cmd.Flags().StringVar(&opts.Title, "title", "", "new title")
	cmd.Flags().StringVar(&opts.Comment, "comment", "", "new comment")
	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "tag (repeatable); replaces all tags")
	cmd.Flags().StringVar(&opts.Against, "against", "", "version the edit was made from")

	return cmd
}

func runSave(opts *SaveOptions, url string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var patch ir.RefPatch
	if cmd.Flags().Changed("title") {
		patch.Title = &opts.Title
	}
	if cmd.Flags().Changed("comment") {
		patch.Comment = &opts.Comment
	}
	if cmd.Flags().Changed("tag") {
		patch.Tags = opts.Tags
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	st, session, err := opts.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeStore(st)

	out, err := session.Save(ctx, ir.RefKey{URL: url, Origin: opts.RefOrigin}, patch, opts.Against)
	if ce, ok := merge.AsConflict(err); ok {
		return reportConflict(f, ce)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "save failed", err)
	}

	return f.Render(out, func(w io.Writer) {
		writeOutcome(w, out)
		fmt.Fprintf(w, "version %s\n", out.Version)
	})
}
