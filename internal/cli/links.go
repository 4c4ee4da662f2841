package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/compiler"
	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/store"
)

// NewLinksCommand creates the links command group.
func NewLinksCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Manage stored origin links",
	}
	cmd.AddCommand(newLinksImportCommand(rootOpts))
	cmd.AddCommand(newLinksListCommand(rootOpts))
	cmd.AddCommand(newLinksDeleteCommand(rootOpts))
	return cmd
}

// ImportResult summarizes a links import.
type ImportResult struct {
	Stored   int      `json:"stored"`
	Rejected []string `json:"rejected,omitempty"`
}

func newLinksImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <links.yaml>",
		Short: "Store the links of a links file",
		Long: `Store every link of a links file, replacing links with the same url
and origin. Links are stored as written; ones the compiler rejects are
reported and skipped when sessions load.

Example:
  refmesh links import --db ./refmesh.db ./links.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinksImport(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runLinksImport(opts *StoreOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	file, err := LoadLinksFile(path)
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)

	var result ImportResult
	for i, rec := range file.Links {
		raw, err := rec.RawPlugins()
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeParseFailed, fmt.Sprintf("links[%d]: %v", i, err), nil)
		}
		if _, err := compiler.CompileOriginLink(rec.URL, rec.Origin, raw); err != nil {
			result.Rejected = append(result.Rejected, fmt.Sprintf("links[%d]: %v", i, err))
		}
		if _, err := st.PutOriginLink(ctx, rec.URL, rec.Origin, raw); err != nil {
			return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
		}
		result.Stored++
	}
	slog.Info("links imported", "path", path, "stored", result.Stored, "rejected", len(result.Rejected))

	return f.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "Stored %d link(s)\n", result.Stored)
		for _, r := range result.Rejected {
			fmt.Fprintf(w, "  ✗ %s\n", r)
		}
	})
}

// LinkOutput is a stored link as listed.
type LinkOutput struct {
	Seq     int64                      `json:"seq"`
	URL     string                     `json:"url"`
	Origin  string                     `json:"origin"`
	Alias   string                     `json:"alias,omitempty"`
	Plugins map[string]json.RawMessage `json:"plugins"`
	Error   string                     `json:"error,omitempty"`
}

func newLinksListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored origin links",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinksList(opts, cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runLinksList(opts *StoreOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)

	out := []LinkOutput{}
	var after int64
	for {
		page, err := st.FetchOriginLinks(ctx, after, engine.DefaultPageSize)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
		}
		for _, row := range page {
			lo := LinkOutput{Seq: row.Seq, URL: row.URL, Origin: row.Origin, Plugins: row.Plugins}
			if link, err := compiler.CompileOriginLink(row.URL, row.Origin, row.Plugins); err != nil {
				lo.Error = err.Error()
			} else {
				lo.Alias = resolve.Alias(*link)
			}
			out = append(out, lo)
			after = row.Seq
		}
		if len(page) < engine.DefaultPageSize {
			break
		}
	}

	return f.Render(out, func(w io.Writer) {
		if len(out) == 0 {
			fmt.Fprintln(w, "No origin links.")
			return
		}
		for _, l := range out {
			if l.Error != "" {
				fmt.Fprintf(w, "%4d  %s (origin %s)  ✗ %s\n", l.Seq, l.URL, displayOrigin(l.Origin), l.Error)
				continue
			}
			fmt.Fprintf(w, "%4d  %s -> %s\n", l.Seq, displayOrigin(l.Alias), l.URL)
		}
	})
}

// LinksDeleteOptions holds flags for links delete.
type LinksDeleteOptions struct {
	StoreOptions
	Origin string
}

func newLinksDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LinksDeleteOptions{StoreOptions: StoreOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:           "delete <url>",
		Short:         "Delete a stored origin link",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLinksDelete(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Origin, "origin", "", "origin the link record lives in")
	return cmd
}

func runLinksDelete(opts *LinksDeleteOptions, url string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	ctx := commandContext(cmd)
	err = st.DeleteOriginLink(ctx, url, opts.Origin)
	if errors.Is(err, store.ErrNotFound) {
		return f.fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no link to %s in origin %s", url, displayOrigin(opts.Origin)), nil)
	}
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStoreFailed, err.Error(), nil)
	}
	return f.Success(fmt.Sprintf("Deleted link to %s", url))
}
