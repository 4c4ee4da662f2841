package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/resolve"
)

// TablesOutput is the JSON form of the resolver tables.
type TablesOutput struct {
	Origin    string                       `json:"origin"`
	List      []string                     `json:"list"`
	Lookup    map[string]string            `json:"lookup"`
	Reverse   map[string]string            `json:"reverse"`
	Tunnels   map[string]ir.TunnelConfig   `json:"tunnels"`
	OriginMap map[string]map[string]string `json:"origin_map"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <links.yaml>",
		Short: "Compute origin address tables from a links file",
		Long: `Compile every link in a links file and print the tables derived from
them: visible origins, alias lookup, reverse lookup, tunnels, and the
nested-origin map.

Examples:
  refmesh resolve ./links.yaml
  refmesh resolve ./links.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runResolve(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	snap, err := LoadSnapshot(path)
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(exitCodeFor(code), code, msg, nil)
	}
	f.VerboseLog("Compiled %d link(s) from %s", len(snap.Links), path)

	t := resolve.Resolve(snap)
	out := TablesOutput{
		Origin:    t.Origin,
		List:      t.List,
		Lookup:    t.Lookup,
		Reverse:   t.ReverseLookup,
		Tunnels:   t.TunnelLookup,
		OriginMap: t.OriginMap,
	}
	return f.Render(out, func(w io.Writer) { writeTables(w, out) })
}

func writeTables(w io.Writer, t TablesOutput) {
	fmt.Fprintf(w, "origin: %s\n", displayOrigin(t.Origin))

	visible := make([]string, len(t.List))
	for i, alias := range t.List {
		visible[i] = displayOrigin(alias)
	}
	fmt.Fprintf(w, "visible: %s\n", strings.Join(visible, ", "))

	writeMap(w, "lookup", t.Lookup)
	writeMap(w, "reverse", t.Reverse)

	if len(t.Tunnels) > 0 {
		fmt.Fprintln(w, "tunnels:")
		for _, alias := range sortedKeys(t.Tunnels) {
			tun := t.Tunnels[alias]
			fmt.Fprintf(w, "  %s -> %s@%s\n", displayOrigin(alias), tun.RemoteUser, tun.SSHHost)
		}
	}
	if len(t.OriginMap) > 0 {
		fmt.Fprintln(w, "nested:")
		for _, relay := range sortedKeys(t.OriginMap) {
			for _, nested := range sortedKeys(t.OriginMap[relay]) {
				fmt.Fprintf(w, "  %s via %s -> %s\n", nested, relay, t.OriginMap[relay][nested])
			}
		}
	}
}

func writeMap(w io.Writer, name string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", name)
	for _, k := range sortedKeys(m) {
		fmt.Fprintf(w, "  %s -> %s\n", displayOrigin(k), m[k])
	}
}

// displayOrigin renders the default origin, which is the empty alias.
func displayOrigin(alias string) string {
	if alias == "" {
		return "(default)"
	}
	return alias
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}

// exitCodeFor maps a load error code to the exit status: bad input files
// are command errors, rejected content is a failure.
func exitCodeFor(code string) int {
	switch code {
	case ErrCodeLinkInvalid, ErrCodeInvalid, ErrCodeConflict:
		return ExitFailure
	default:
		return ExitCommandError
	}
}
