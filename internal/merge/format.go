package merge

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/roach88/refmesh/internal/ir"
)

// Conflict artifact markers. Tooling that reads conflict logs matches these
// literally.
const (
	MarkerBase   = "<<<<<<< BASE"
	MarkerTheirs = "||||||| THEIRS (server)"
	MarkerOurs   = "======= OURS (local)"
	MarkerEnd    = ">>>>>>>"
)

// FormatConflict renders base, theirs and ours between conflict markers.
// Each section ends with a newline even when its text does not.
func FormatConflict(base, theirs, ours string) string {
	var b strings.Builder
	section := func(marker, text string) {
		b.WriteString(marker)
		b.WriteByte('\n')
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteByte('\n')
		}
	}
	section(MarkerBase, base)
	section(MarkerTheirs, theirs)
	section(MarkerOurs, ours)
	b.WriteString(MarkerEnd)
	b.WriteByte('\n')
	return b.String()
}

// FormatForDiff renders ref as indented canonical JSON in a fixed field
// order with timestamps of creation and modification left out, so that two
// renderings differ only where the content does.
func FormatForDiff(ref ir.Ref) (string, error) {
	raw, err := ir.CanonicalRef(ref)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", err
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// FormatRefConflict renders whole refs as a conflict artifact. A nil base
// renders as an empty section.
func FormatRefConflict(base *ir.Ref, theirs, ours ir.Ref) (string, error) {
	var baseText string
	if base != nil {
		var err error
		if baseText, err = FormatForDiff(*base); err != nil {
			return "", err
		}
	}
	theirsText, err := FormatForDiff(theirs)
	if err != nil {
		return "", err
	}
	oursText, err := FormatForDiff(ours)
	if err != nil {
		return "", err
	}
	return FormatConflict(baseText, theirsText, oursText), nil
}

// Describe returns a line diff from a to b. Lines only in a are prefixed
// with "- ", lines only in b with "+ ", and shared lines with two spaces.
func Describe(a, b string) string {
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var out strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range splitLines(d.Text) {
			out.WriteString(prefix)
			out.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				out.WriteByte('\n')
			}
		}
	}
	return out.String()
}
