package harness

import (
	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/ir"
)

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation matched.
	Pass bool `json:"pass"`

	// Errors lists failed expectations. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Reload engine.ReloadStats `json:"reload"`
	Tables TablesView         `json:"tables"`
	Steps  []StepResult       `json:"steps"`

	// Refs are the final stored copies of every ref the steps touched,
	// ordered by url then origin.
	Refs []RefView `json:"refs"`

	Conflicts []ConflictView `json:"conflicts"`
}

// TablesView is the resolver tables as rendered in golden files.
type TablesView struct {
	List      []string                     `json:"list"`
	Lookup    map[string]string            `json:"lookup"`
	Reverse   map[string]string            `json:"reverse"`
	Tunnels   map[string]ir.TunnelConfig   `json:"tunnels"`
	OriginMap map[string]map[string]string `json:"origin_map"`
}

// StepResult records what one step did. Version labels ("v1", "v2", ...)
// stand in for content hashes so golden files stay readable.
type StepResult struct {
	Name       string     `json:"name,omitempty"`
	Kind       string     `json:"kind"`
	Key        *ir.RefKey `json:"key,omitempty"`
	Action     string     `json:"action,omitempty"`
	Version    string     `json:"version,omitempty"`
	ConflictID string     `json:"conflict_id,omitempty"`
	Conflict   string     `json:"conflict,omitempty"`
	Mailboxes  []string   `json:"mailboxes,omitempty"`
	Pushed     []RefView  `json:"pushed,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RefView is the part of a ref golden files show.
type RefView struct {
	URL     string   `json:"url"`
	Origin  string   `json:"origin,omitempty"`
	Title   string   `json:"title,omitempty"`
	Comment string   `json:"comment,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	Version string   `json:"version,omitempty"`
	Synced  string   `json:"synced,omitempty"`
}

// ConflictView is a logged conflict without its artifact.
type ConflictView struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Origin string `json:"origin,omitempty"`
	Code   string `json:"code"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Steps:     []StepResult{},
		Refs:      []RefView{},
		Conflicts: []ConflictView{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func viewRef(ref ir.Ref) RefView {
	return RefView{
		URL:     ref.URL,
		Origin:  ref.Origin,
		Title:   ref.Title,
		Comment: ref.Comment,
		Tags:    ref.Tags,
	}
}
