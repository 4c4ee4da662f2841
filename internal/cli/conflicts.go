package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/store"
)

// NewConflictsCommand creates the conflicts command group.
func NewConflictsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Inspect and clear logged merge conflicts",
	}
	cmd.AddCommand(newConflictsListCommand(rootOpts))
	cmd.AddCommand(newConflictsShowCommand(rootOpts))
	cmd.AddCommand(newConflictsResolveCommand(rootOpts))
	return cmd
}

// ConflictOutput is a logged conflict as listed.
type ConflictOutput struct {
	ID       string    `json:"id"`
	Seq      int64     `json:"seq"`
	Key      ir.RefKey `json:"key"`
	Code     string    `json:"code"`
	Artifact string    `json:"artifact,omitempty"`
}

func conflictOutput(c store.Conflict, withArtifact bool) ConflictOutput {
	out := ConflictOutput{ID: c.ID, Seq: c.Seq, Key: c.Key, Code: c.Code}
	if withArtifact {
		out.Artifact = c.Artifact
	}
	return out
}

// ConflictsListOptions holds flags for conflicts list.
type ConflictsListOptions struct {
	StoreOptions
	URL       string
	RefOrigin string
}

func newConflictsListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConflictsListOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List logged conflicts, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflictsList(opts, cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.URL, "url", "", "only conflicts for this ref url")
	cmd.Flags().StringVar(&opts.RefOrigin, "ref-origin", "", "origin of the ref named by --url")
	return cmd
}

func runConflictsList(opts *ConflictsListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	var key *ir.RefKey
	if opts.URL != "" {
		key = &ir.RefKey{URL: opts.URL, Origin: opts.RefOrigin}
	}
	conflicts, err := st.ListConflicts(commandContext(cmd), key)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}

	out := make([]ConflictOutput, len(conflicts))
	for i, c := range conflicts {
		out[i] = conflictOutput(c, false)
	}
	return f.Render(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintln(w, "No conflicts.")
			return
		}
		for _, c := range out {
			fmt.Fprintf(w, "%s  %-12s %s\n", c.ID, c.Code, c.Key)
		}
	})
}

func newConflictsShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "show <id>",
		Short:         "Print a conflict's artifact",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflictsShow(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runConflictsShow(opts *StoreOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	conflicts, err := st.ListConflicts(commandContext(cmd), nil)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	for _, c := range conflicts {
		if c.ID != id {
			continue
		}
		out := conflictOutput(c, true)
		return f.Render(out, func(w io.Writer) {
			fmt.Fprintf(w, "%s  %s  %s\n\n", out.ID, out.Code, out.Key)
			fmt.Fprint(w, out.Artifact)
		})
	}
	return f.fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no conflict %s", id), nil)
}

func newConflictsResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Remove a conflict from the log",
		Long: `Remove a conflict from the log once it has been dealt with, usually by
saving a hand-merged version of the ref.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConflictsResolve(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runConflictsResolve(opts *StoreOptions, id string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	err = st.ResolveConflict(commandContext(cmd), id)
	if errors.Is(err, store.ErrNotFound) {
		return f.fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no conflict %s", id), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	return f.Success(fmt.Sprintf("Resolved %s", id))
}
