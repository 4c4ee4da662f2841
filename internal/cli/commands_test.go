package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/ir"
)

func TestResolve_Text(t *testing.T) {
	path := writeFile(t, "links.yaml", homeLinks)

	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Equal(t, `origin: (default)
visible: (default), @remote, @peer
lookup:
  (default) -> https://home.example
  @peer -> https://peer.example
  @peer.home -> https://home.example
  @remote -> https://remote.example
reverse:
  @peer -> @home
tunnels:
  @peer -> sync@peer.example
`, out)
}

func TestResolve_JSON(t *testing.T) {
	path := writeFile(t, "links.yaml", homeLinks)

	out, err := execute(t, NewResolveCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   TablesOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"", "@remote", "@peer"}, resp.Data.List)
	assert.Equal(t, map[string]string{"@peer": "@home"}, resp.Data.Reverse)
	assert.Equal(t, ir.TunnelConfig{SSHHost: "peer.example", RemoteUser: "sync"}, resp.Data.Tunnels["@peer"])
	assert.Empty(t, resp.Data.OriginMap)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		missing  bool
		wantCode int
		wantOut  string
	}{
		{
			name:     "missing file",
			missing:  true,
			wantCode: ExitCommandError,
			wantOut:  "Error [E005]",
		},
		{
			name:     "malformed yaml",
			content:  "links: [",
			wantCode: ExitCommandError,
			wantOut:  "Error [E003]",
		},
		{
			name: "rejected plugin",
			content: `
links:
  - url: https://remote.example
    plugins:
      +plugin/origin: {local: "@remote", colour: blue}
`,
			wantCode: ExitFailure,
			wantOut:  "Error [E004]: links[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/nonexistent/links.yaml"
			if !tt.missing {
				path = writeFile(t, "links.yaml", tt.content)
			}
			out, err := execute(t, NewResolveCommand(&RootOptions{Format: "text"}), path)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, out, tt.wantOut)
		})
	}
}

func TestMailboxes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "local ref",
			args: []string{"+user/alice", "user/dave", "+user/dave", "science"},
			want: "plugin/inbox/user/alice\n",
		},
		{
			name: "identity on another origin",
			args: []string{"+user/bob@peer"},
			want: "plugin/outbox/peer/user/bob\n",
		},
		{
			name: "foreign ref",
			args: []string{"--origin", "@remote", "+user/alice"},
			want: "plugin/outbox/remote/user/alice\n",
		},
		{
			name: "custom prefix",
			args: []string{"--prefix", "+team", "+team/infra", "+user/alice"},
			want: "plugin/inbox/team/infra\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, NewMailboxesCommand(&RootOptions{Format: "text"}), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestMailboxes_ReverseLookup(t *testing.T) {
	links := writeFile(t, "links.yaml", homeLinks)

	out, err := execute(t, NewMailboxesCommand(&RootOptions{Format: "json"}),
		"--origin", "@peer", "--links", links, "+user/alice")
	require.NoError(t, err)

	var resp struct {
		Data MailboxesOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []string{"plugin/outbox/home/user/alice"}, resp.Data.Mailboxes)
}

func TestMailboxes_NoneNeeded(t *testing.T) {
	out, err := execute(t, NewMailboxesCommand(&RootOptions{Format: "json"}), "user/alice")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "ok", "data": {"tags": ["user/alice"], "mailboxes": []}}`, out)
}

func TestMerge_Clean(t *testing.T) {
	base := writeFile(t, "base.yaml", "url: https://ex.com/a\ntitle: A\ncomment: hello\ntags: [science]\n")
	theirs := writeFile(t, "theirs.yaml", "url: https://ex.com/a\ntitle: A\ncomment: hello, world\ntags: [science, physics]\n")
	ours := writeFile(t, "ours.json", `{"url": "https://ex.com/a", "title": "A (local)", "comment": "hello", "tags": ["science"]}`)

	out, err := execute(t, NewMergeCommand(&RootOptions{Format: "json"}), "--base", base, theirs, ours)
	require.NoError(t, err)

	var resp struct {
		Data ir.Ref `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "A (local)", resp.Data.Title)
	assert.Equal(t, "hello, world", resp.Data.Comment)
	assert.Equal(t, []string{"science", "physics"}, resp.Data.Tags)
}

func TestMerge_Conflict(t *testing.T) {
	base := writeFile(t, "base.yaml", "url: https://ex.com/a\ntitle: A\n")
	theirs := writeFile(t, "theirs.yaml", "url: https://ex.com/a\ntitle: B\n")
	ours := writeFile(t, "ours.yaml", "url: https://ex.com/a\ntitle: C\n")

	out, err := execute(t, NewMergeCommand(&RootOptions{Format: "json"}), "--base", base, theirs, ours)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string          `json:"code"`
			Details ConflictDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.Equal(t, "OVERLAP", resp.Error.Details.Code)
	require.Len(t, resp.Error.Details.Regions, 1)
	assert.Equal(t, "title", resp.Error.Details.Regions[0].Field)
	assert.NotEmpty(t, resp.Error.Details.Artifact)
}

func TestMerge_NoBaseIsUnknownBase(t *testing.T) {
	theirs := writeFile(t, "theirs.yaml", "url: https://ex.com/a\ntitle: B\n")
	ours := writeFile(t, "ours.yaml", "url: https://ex.com/a\ntitle: B\n")

	_, err := execute(t, NewMergeCommand(&RootOptions{Format: "text"}), theirs, ours)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "UNKNOWN_BASE")
}

func TestDiff(t *testing.T) {
	a := writeFile(t, "a.yaml", "url: https://ex.com/a\ntitle: A\n")
	b := writeFile(t, "b.yaml", "url: https://ex.com/a\ntitle: B\n")

	out, err := execute(t, NewDiffCommand(&RootOptions{Format: "json"}), a, b)
	require.NoError(t, err)

	var resp struct {
		Data DiffOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Equal)
	assert.Contains(t, resp.Data.Diff, "- ")
	assert.Contains(t, resp.Data.Diff, "+ ")

	out, err = execute(t, NewDiffCommand(&RootOptions{Format: "text"}), a, a)
	require.NoError(t, err)
	assert.Equal(t, "refs are identical\n", out)
}

func TestLoadRefs(t *testing.T) {
	list := writeFile(t, "refs.yaml", "- url: https://ex.com/a\n- url: https://ex.com/b\n  tags: [science]\n")
	refs, err := LoadRefs(list, nil)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, []string{"science"}, refs[1].Tags)

	_, err = LoadRef(list)
	assert.ErrorContains(t, err, "want one ref, got 2")

	noURL := writeFile(t, "bad.yaml", "- title: x\n")
	_, err = LoadRefs(noURL, nil)
	assert.ErrorContains(t, err, "refs[0]: url is required")

	empty := writeFile(t, "empty.yaml", "")
	_, err = LoadRefs(empty, nil)
	assert.ErrorContains(t, err, "no refs")
}
