package merge

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/ir"
)

func comment(s string) ir.RefPatch {
	return ir.RefPatch{Comment: &s}
}

func TestThreeWayMergeComment_UnknownBase(t *testing.T) {
	_, err := ThreeWayMergeComment(nil, ir.Ref{Comment: "remote text"}, comment("local text"))
	require.Error(t, err)

	ce, ok := AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownBase, ce.Code)
	assert.Empty(t, ce.Regions)
	assert.Equal(t, FormatConflict("", "remote text", "local text"), ce.Artifact)
}

func TestThreeWayMergeComment_UnknownBaseEvenWhenEqual(t *testing.T) {
	_, err := ThreeWayMergeComment(nil, ir.Ref{Comment: "same"}, comment("same"))
	assert.True(t, IsConflict(err))
}

func TestThreeWayMergeComment_TheirsUnchanged(t *testing.T) {
	base := &ir.Ref{Comment: "original"}
	got, err := ThreeWayMergeComment(base, ir.Ref{Comment: "original"}, comment("edited"))
	require.NoError(t, err)
	assert.Equal(t, "edited", got)
}

func TestThreeWayMergeComment_OursUnchangedReturnsTheirs(t *testing.T) {
	base := &ir.Ref{Comment: "original\nsecond\n"}
	theirs := ir.Ref{Comment: "rewritten entirely"}

	got, err := ThreeWayMergeComment(base, theirs, comment(base.Comment))
	require.NoError(t, err)
	assert.Equal(t, theirs.Comment, got)
}

func TestThreeWayMergeComment_BothAgree(t *testing.T) {
	base := &ir.Ref{Comment: "a\nb\n"}
	got, err := ThreeWayMergeComment(base, ir.Ref{Comment: "a\nX\n"}, comment("a\nX\n"))
	require.NoError(t, err)
	assert.Equal(t, "a\nX\n", got)
}

func TestThreeWayMergeComment_AbsentCommentIsEmpty(t *testing.T) {
	base := &ir.Ref{}

	got, err := ThreeWayMergeComment(base, ir.Ref{}, ir.RefPatch{})
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = ThreeWayMergeComment(base, ir.Ref{Comment: "x"}, comment("y"))
	assert.True(t, IsConflict(err), "both sides edited from empty")
}

func TestMergeText(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		theirs string
		ours   string
		want   string
	}{
		{
			name:   "disjoint lines",
			base:   "a\nb\nc\nd\n",
			theirs: "a\nb\nc\nD\n",
			ours:   "A\nb\nc\nd\n",
			want:   "A\nb\nc\nD\n",
		},
		{
			name:   "adjacent lines",
			base:   "a\nb\n",
			theirs: "a\nB\n",
			ours:   "A\nb\n",
			want:   "A\nB\n",
		},
		{
			name:   "identical insertion plus one-sided append",
			base:   "a\nb\n",
			theirs: "a\nnew\nb\nend\n",
			ours:   "a\nnew\nb\n",
			want:   "a\nnew\nb\nend\n",
		},
		{
			name:   "missing final newline",
			base:   "a\nb",
			theirs: "a\nb\nc",
			ours:   "x\nb",
			want:   "x\nb\nc",
		},
		{
			name:   "deletion and distant edit",
			base:   "a\nb\nc\nd\ne\n",
			theirs: "a\nc\nd\ne\n",
			ours:   "a\nb\nc\nd\nE\n",
			want:   "a\nc\nd\nE\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeText(tt.base, tt.theirs, tt.ours)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeText_OverlapIsConflict(t *testing.T) {
	base, theirs, ours := "a\nb\nc\n", "a\nY\nc\n", "a\nX\nc\n"

	got, err := MergeText(base, theirs, ours)
	assert.Empty(t, got)

	ce, ok := AsConflict(err)
	require.True(t, ok)
	assert.Equal(t, CodeOverlap, ce.Code)
	assert.Equal(t, []Region{{
		BaseStart: 1,
		BaseEnd:   2,
		Base:      []string{"b\n"},
		Ours:      []string{"X\n"},
		Theirs:    []string{"Y\n"},
	}}, ce.Regions)
	assert.Equal(t, FormatConflict(base, theirs, ours), ce.Artifact)
}

func TestMergeText_ConflictIsWhole(t *testing.T) {
	// One clean region and one conflicting region: no partial result.
	base := "a\nb\nc\nd\n"
	got, err := MergeText(base, "A\nb\nc\nY\n", "a\nb\nc\nX\n")
	assert.True(t, IsConflict(err))
	assert.Empty(t, got)
}

func TestMergeText_InsertionsAtSamePointConflict(t *testing.T) {
	_, err := MergeText("", "remote", "local")
	assert.True(t, IsConflict(err))

	_, err = MergeText("a\n", "a\nremote\n", "a\nlocal\n")
	assert.True(t, IsConflict(err))
}

func TestMergeText_Monotonic(t *testing.T) {
	bases := map[string][]string{
		"distinct": {"l0\n", "l1\n", "l2\n", "l3\n", "l4\n", "l5\n"},
		"repeated": {"}\n", "}\n", "}\n", "}\n", "}\n", "}\n"},
		"mixed":    {"a\n", "\n", "a\n", "\n", "a\n", "\n"},
	}
	for name, lines := range bases {
		base := strings.Join(lines, "")
		edit := func(i int, text string) string {
			out := ""
			for j, l := range lines {
				if j == i {
					out += text + "\n"
					continue
				}
				out += l
			}
			return out
		}

		for i := range lines {
			for j := range lines {
				t.Run(fmt.Sprintf("%s/%d_%d", name, i, j), func(t *testing.T) {
					_, err := MergeText(base, edit(i, "theirs"), edit(j, "ours"))
					if i == j {
						assert.True(t, IsConflict(err))
					} else {
						assert.NoError(t, err)
					}
				})
			}
		}
	}
}

func TestMergeText_RepeatedLines(t *testing.T) {
	tests := []struct {
		name               string
		base, theirs, ours string
		want               string
	}{
		{
			name:   "replace first and last of a run",
			base:   "a\na\na\n",
			theirs: "a\na\nc\n",
			ours:   "b\na\na\n",
			want:   "b\na\nc\n",
		},
		{
			name:   "edges of a longer run",
			base:   "x\nx\nx\nx\n",
			theirs: "x\nx\nx\nz\n",
			ours:   "y\nx\nx\nx\n",
			want:   "y\nx\nx\nz\n",
		},
		{
			name:   "annotate closing braces",
			base:   "}\n}\n}\n",
			theirs: "}\n}\n} // outer\n",
			ours:   "} // inner\n}\n}\n",
			want:   "} // inner\n}\n} // outer\n",
		},
		{
			name:   "insert lines between braces",
			base:   "}\n}\n}\n",
			theirs: "}\n}\n// outer\n}\n",
			ours:   "// inner\n}\n}\n}\n",
			want:   "// inner\n}\n}\n// outer\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeText(tt.base, tt.theirs, tt.ours)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeLines_Clean(t *testing.T) {
	merged, regions := MergeLines(
		[]string{"a\n", "b\n", "c\n"},
		[]string{"a\n", "b\n", "c\n", "ours\n"},
		[]string{"theirs\n", "a\n", "b\n", "c\n"},
	)
	assert.Empty(t, regions)
	assert.Equal(t, []string{"theirs\n", "a\n", "b\n", "c\n", "ours\n"}, merged)
}

func TestConflictErrorMessage(t *testing.T) {
	err := newOverlap("a", "b", "c", []Region{{}, {}})
	assert.Equal(t, "OVERLAP: local and remote edits overlap (2 regions)", err.Error())
	assert.Equal(t, "UNKNOWN_BASE: no common ancestor to merge against", newUnknownBase("", "").Error())
	assert.False(t, IsConflict(fmt.Errorf("plain")))
	assert.True(t, IsConflict(fmt.Errorf("wrapped: %w", err)))
}
