package merge

import (
	"errors"
	"fmt"
)

// ConflictError reports that two edits could not be reconciled automatically.
//
// Conflicts arise when:
//   - the common ancestor is unknown, so divergence cannot be judged
//   - both sides changed overlapping lines differently
//
// Artifact carries the rendered BASE/THEIRS/OURS text for manual resolution.
type ConflictError struct {
	// Code identifies the conflict category.
	Code ConflictCode

	// Message is a human-readable description.
	Message string

	// Regions lists the overlapping hunks. Empty for unknown-base conflicts.
	Regions []Region

	// Artifact is the FormatConflict rendering of the inputs.
	Artifact string
}

// ConflictCode categorizes merge conflicts.
type ConflictCode string

const (
	// CodeUnknownBase indicates no common ancestor was available.
	CodeUnknownBase ConflictCode = "UNKNOWN_BASE"

	// CodeOverlap indicates both sides edited the same lines.
	CodeOverlap ConflictCode = "OVERLAP"
)

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if len(e.Regions) > 0 {
		return fmt.Sprintf("%s: %s (%d regions)", e.Code, e.Message, len(e.Regions))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsConflict returns true if err is or wraps a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// AsConflict extracts the *ConflictError from err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func newUnknownBase(theirs, ours string) *ConflictError {
	return &ConflictError{
		Code:     CodeUnknownBase,
		Message:  "no common ancestor to merge against",
		Artifact: FormatConflict("", theirs, ours),
	}
}

func newOverlap(base, theirs, ours string, regions []Region) *ConflictError {
	return &ConflictError{
		Code:     CodeOverlap,
		Message:  "local and remote edits overlap",
		Regions:  regions,
		Artifact: FormatConflict(base, theirs, ours),
	}
}
