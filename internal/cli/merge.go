package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/merge"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	*RootOptions
	Base string // path to the common ancestor; empty means unknown
}

// ConflictDetails is the JSON error detail for a failed merge.
type ConflictDetails struct {
	Code     string         `json:"code"`
	Regions  []merge.Region `json:"regions,omitempty"`
	Artifact string         `json:"artifact"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "merge <theirs> <ours>",
		Short: "Three-way merge two edits of a ref",
		Long: `Merge a locally edited ref (ours) with a remote copy (theirs) against
their common ancestor (--base). Ref files are YAML or JSON.

On success the merged ref is printed. On conflict the conflict artifact
is printed and the command exits 1. Without --base there is no ancestor
and the merge always conflicts.

Examples:
  refmesh merge --base base.yaml theirs.yaml ours.yaml
  refmesh merge --base base.json theirs.json ours.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Base, "base", "", "common ancestor ref file")

	return cmd
}

func runMerge(opts *MergeOptions, theirsPath, oursPath string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var base *ir.Ref
	if opts.Base != "" {
		ref, err := LoadRef(opts.Base)
		if err != nil {
			code, msg := asLoadError(err)
			return f.fail(ExitCommandError, code, msg, nil)
		}
		base = &ref
	}
	theirs, err := LoadRef(theirsPath)
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}
	ours, err := LoadRef(oursPath)
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}

	merged, err := merge.ThreeWayMergeRef(base, theirs, ours)
	if ce, ok := merge.AsConflict(err); ok {
		return reportConflict(f, ce)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	text, err := merge.FormatForDiff(merged)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	return f.Render(merged, func(w io.Writer) {
		fmt.Fprint(w, text)
	})
}

// reportConflict prints a conflict artifact and returns exit status 1.
func reportConflict(f *OutputFormatter, ce *merge.ConflictError) error {
	if f.Format != "json" {
		fmt.Fprint(f.Writer, ce.Artifact)
		if n := len(ce.Regions); n > 0 {
			fmt.Fprintf(f.GetErrWriter(), "%d conflicting region(s)\n", n)
		}
		return NewExitError(ExitFailure, ce.Error())
	}
	return f.fail(ExitFailure, ErrCodeConflict, ce.Error(), ConflictDetails{
		Code:     string(ce.Code),
		Regions:  ce.Regions,
		Artifact: ce.Artifact,
	})
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <a> <b>",
		Short: "Show a line diff between two refs",
		Long: `Render both refs in their diff form and print the lines that differ.
Lines only in <a> are prefixed with "- ", lines only in <b> with "+ ".`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

// DiffOutput is the JSON form of the diff result.
type DiffOutput struct {
	Equal bool   `json:"equal"`
	Diff  string `json:"diff"`
}

func runDiff(opts *RootOptions, aPath, bPath string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	var texts [2]string
	for i, path := range []string{aPath, bPath} {
		ref, err := LoadRef(path)
		if err != nil {
			code, msg := asLoadError(err)
			return f.fail(ExitCommandError, code, msg, nil)
		}
		if texts[i], err = merge.FormatForDiff(ref); err != nil {
			return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
		}
	}

	out := DiffOutput{Equal: texts[0] == texts[1]}
	if !out.Equal {
		out.Diff = merge.Describe(texts[0], texts[1])
	}
	return f.Render(out, func(w io.Writer) {
		if out.Equal {
			fmt.Fprintln(w, "refs are identical")
			return
		}
		fmt.Fprint(w, out.Diff)
	})
}
