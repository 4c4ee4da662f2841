package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/compiler"
	"github.com/roach88/refmesh/internal/resolve"
	"github.com/roach88/refmesh/internal/tag"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Links  int                        `json:"links"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <links.yaml>",
		Short: "Check a links file for rejected or ambiguous links",
		Long: `Compile every link in a links file and check the set as a whole.

Unlike resolve, validation does not stop at the first bad link: every
rejected plugin config is reported, followed by problems that only show
up when the links resolve together (duplicate aliases, reverse-lookup
collisions, aliases that shadow the local origin).

Exit codes:
  0 - All links valid
  1 - One or more problems found
  2 - Command error (file not found, malformed YAML)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	file, err := LoadLinksFile(path)
	if err != nil {
		code, msg := asLoadError(err)
		return f.fail(ExitCommandError, code, msg, nil)
	}
	f.VerboseLog("Found %d link(s) in %s", len(file.Links), path)

	result := validateLinksFile(file)
	if !result.Valid {
		if err := f.Render(result, func(w io.Writer) {
			for _, e := range result.Errors {
				fmt.Fprintf(w, "✗ %s\n", e.Error())
			}
			fmt.Fprintf(w, "\n%d problem(s) in %d link(s)\n", len(result.Errors), result.Links)
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation problem(s)", len(result.Errors)))
	}

	return f.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d link(s) valid\n", result.Links)
	})
}

// validateLinksFile compiles each link independently, then validates the
// links that compiled as one snapshot.
func validateLinksFile(file *compiler.LinksFile) ValidationResult {
	result := ValidationResult{Links: len(file.Links)}
	snap := resolve.Snapshot{Origin: file.Local.Origin, API: file.Local.API}

	for i, rec := range file.Links {
		link, err := rec.Compile()
		if err != nil {
			result.Errors = append(result.Errors, compileValidationError(i, err))
			continue
		}
		snap.Links = append(snap.Links, *link)
	}
	if !tag.ValidOrigin(file.Local.Origin) {
		result.Errors = append(result.Errors, compiler.ValidationError{
			Field:   "local.origin",
			Message: fmt.Sprintf("invalid alias %q", file.Local.Origin),
			Code:    compiler.ErrInvalidAlias,
		})
	}

	result.Errors = append(result.Errors, compiler.ValidateLinks(snap)...)
	result.Valid = len(result.Errors) == 0
	return result
}

func compileValidationError(index int, err error) compiler.ValidationError {
	field := fmt.Sprintf("links[%d]", index)
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return compiler.ValidationError{
			Field:   field + "." + ce.Field,
			Message: ce.Message,
			Code:    compiler.ErrCompileFailed,
		}
	}
	return compiler.ValidationError{Field: field, Message: err.Error(), Code: compiler.ErrCompileFailed}
}
