package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/ir"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/resolve"
)

// MailboxesOptions holds flags for the mailboxes command.
type MailboxesOptions struct {
	*RootOptions
	Origin string // origin the ref is stored under
	Prefix string // identity tag prefix
	Links  string // optional links file supplying the reverse lookup
}

// MailboxesOutput is the JSON form of the mailboxes result.
type MailboxesOutput struct {
	Origin    string   `json:"origin,omitempty"`
	Tags      []string `json:"tags"`
	Mailboxes []string `json:"mailboxes"`
}

// NewMailboxesCommand creates the mailboxes command.
func NewMailboxesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MailboxesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mailboxes <tag>...",
		Short: "Compute the mailbox tags a ref's identities need",
		Long: `Compute the delivery tags for a ref carrying the given tags.

Every identity tag under the prefix without a public copy gets an inbox
tag; on a ref from another origin the inbox is re-addressed to an outbox
for that origin. With --links, the origin is renamed through the reverse
lookup table first, as push does.

Examples:
  refmesh mailboxes +user/alice +user/bob@peer
  refmesh mailboxes --origin @peer --links ./links.yaml +user/alice`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMailboxes(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Origin, "origin", "", "origin alias the ref is stored under")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", mailbox.DefaultIdentityPrefix, "identity tag prefix")
	cmd.Flags().StringVar(&opts.Links, "links", "", "links file providing the reverse lookup")

	return cmd
}

func runMailboxes(opts *MailboxesOptions, tags []string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	var reverse map[string]string
	if opts.Links != "" {
		snap, err := LoadSnapshot(opts.Links)
		if err != nil {
			code, msg := asLoadError(err)
			return f.fail(exitCodeFor(code), code, msg, nil)
		}
		reverse = resolve.Resolve(snap).ReverseLookup
		f.VerboseLog("Reverse lookup has %d entr(ies)", len(reverse))
	}

	ref := ir.Ref{Origin: opts.Origin, Tags: tags}
	boxes := mailbox.Mailboxes(ref, opts.Prefix, reverse)
	if boxes == nil {
		boxes = []string{}
	}

	out := MailboxesOutput{Origin: opts.Origin, Tags: tags, Mailboxes: boxes}
	return f.Render(out, func(w io.Writer) {
		for _, b := range boxes {
			fmt.Fprintln(w, b)
		}
	})
}
