package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refmesh/internal/compiler"
)

const problemLinks = `
local: {origin: "", api: "https://home.example"}
links:
  - url: https://a.example
    plugins:
      +plugin/origin: {local: "Bad"}
  - url: https://b.example
    plugins:
      +plugin/origin: {local: "@dup"}
  - url: https://c.example
    plugins:
      +plugin/origin: {local: "@dup"}
`

func TestValidateValidLinks(t *testing.T) {
	path := writeFile(t, "links.yaml", homeLinks)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Equal(t, "✓ 3 link(s) valid\n", out)
}

func TestValidateValidLinksJSON(t *testing.T) {
	path := writeFile(t, "links.yaml", homeLinks)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status": "ok", "data": {"valid": true, "links": 3}}`, out)
}

func TestValidateNonExistentFile(t *testing.T) {
	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "/nonexistent/links.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "file not found")
}

func TestValidateEmptyFile(t *testing.T) {
	path := writeFile(t, "links.yaml", "")

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Equal(t, "✓ 0 link(s) valid\n", out)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	path := writeFile(t, "links.yaml", problemLinks)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Links)

	var codes []string
	for _, e := range resp.Data.Errors {
		codes = append(codes, e.Code)
	}
	assert.Equal(t, []string{compiler.ErrCompileFailed, compiler.ErrDuplicateAlias}, codes)
	assert.Contains(t, resp.Data.Errors[0].Field, "links[0]")
}

func TestValidateInvalidText(t *testing.T) {
	path := writeFile(t, "links.yaml", problemLinks)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, out, "✗ [E200] links[0]")
	assert.Contains(t, out, "✗ [E203]")
	assert.Contains(t, out, "\n2 problem(s) in 3 link(s)\n")
}

func TestValidateVerboseOutput(t *testing.T) {
	path := writeFile(t, "links.yaml", homeLinks)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "Found 3 link(s)")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateLinksFile(t *testing.T) {
	tests := []struct {
		name      string
		file      compiler.LinksFile
		wantField string
		wantCode  string
	}{
		{
			name:      "invalid local origin",
			file:      compiler.LinksFile{Local: compiler.LocalConfig{Origin: "home"}},
			wantField: "local.origin",
			wantCode:  compiler.ErrInvalidAlias,
		},
		{
			name: "missing origin plugin",
			file: compiler.LinksFile{Links: []compiler.LinkRecord{
				{URL: "https://a.example"},
			}},
			wantField: "links[0].+plugin/origin",
			wantCode:  compiler.ErrCompileFailed,
		},
		{
			name: "missing url",
			file: compiler.LinksFile{Links: []compiler.LinkRecord{
				{},
			}},
			wantField: "links[0].url",
			wantCode:  compiler.ErrCompileFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := validateLinksFile(&tt.file)
			assert.False(t, result.Valid)
			require.Len(t, result.Errors, 1)
			assert.Equal(t, tt.wantField, result.Errors[0].Field)
			assert.Equal(t, tt.wantCode, result.Errors[0].Code)
		})
	}
}
