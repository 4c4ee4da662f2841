package merge

import (
	"slices"

	"github.com/roach88/refmesh/internal/ir"
)

// ThreeWayMergeRef merges a locally edited ref (ours) with the copy fetched
// from a remote (theirs) against their last common version.
//
//   - comment: ThreeWayMergeComment
//   - title: whichever side changed it; both changing it differently conflicts
//   - tags: set merge, so additions and removals from both sides survive
//   - everything else: taken from theirs
//
// Any conflicting field fails the whole merge. The artifact then shows the
// three refs in FormatForDiff form.
func ThreeWayMergeRef(base *ir.Ref, theirs, ours ir.Ref) (ir.Ref, error) {
	if base == nil {
		return ir.Ref{}, refConflict(CodeUnknownBase, "no common ancestor to merge against", nil, nil, theirs, ours)
	}

	var regions []Region

	comment, err := ThreeWayMergeComment(base, theirs, ir.RefPatch{Comment: &ours.Comment})
	if ce, ok := AsConflict(err); ok {
		for _, r := range ce.Regions {
			r.Field = "comment"
			regions = append(regions, r)
		}
	} else if err != nil {
		return ir.Ref{}, err
	}

	title, ok := mergeScalar(base.Title, theirs.Title, ours.Title)
	if !ok {
		regions = append(regions, Region{
			Field:  "title",
			Base:   []string{base.Title},
			Ours:   []string{ours.Title},
			Theirs: []string{theirs.Title},
		})
	}

	if len(regions) > 0 {
		return ir.Ref{}, refConflict(CodeOverlap, "local and remote edits overlap", regions, base, theirs, ours)
	}

	out := theirs.Clone()
	out.Comment = comment
	out.Title = title
	out.Tags = mergeSet(base.Tags, theirs.Tags, ours.Tags)
	if !ours.Created.IsZero() {
		out.Created = ours.Created
	}
	return out, nil
}

func refConflict(code ConflictCode, msg string, regions []Region, base *ir.Ref, theirs, ours ir.Ref) error {
	artifact, err := FormatRefConflict(base, theirs, ours)
	if err != nil {
		return err
	}
	return &ConflictError{Code: code, Message: msg, Regions: regions, Artifact: artifact}
}

func mergeScalar(base, theirs, ours string) (string, bool) {
	switch {
	case theirs == base:
		return ours, true
	case ours == base, ours == theirs:
		return theirs, true
	}
	return "", false
}

// mergeSet keeps theirs in order, drops what ours removed since base, and
// appends what ours added.
func mergeSet(base, theirs, ours []string) []string {
	var out []string
	for _, t := range theirs {
		removed := slices.Contains(base, t) && !slices.Contains(ours, t)
		if !removed && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	for _, t := range ours {
		if !slices.Contains(base, t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}
