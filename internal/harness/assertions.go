package harness

import (
	"fmt"
	"slices"

	"github.com/roach88/refmesh/internal/resolve"
)

// checkStep compares a step result with its expectations and returns one
// message per mismatch.
func checkStep(index int, sr StepResult, want StepExpect) []string {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("steps[%d] (%s): ", index, sr.Kind)+fmt.Sprintf(format, args...))
	}

	if want.Action != "" && sr.Action != want.Action {
		fail("action = %q, want %q", sr.Action, want.Action)
	}
	if want.Origin != nil {
		got := ""
		if sr.Key != nil {
			got = sr.Key.Origin
		}
		if got != *want.Origin {
			fail("origin = %q, want %q", got, *want.Origin)
		}
	}
	if want.Mailboxes != nil && !slices.Equal(sr.Mailboxes, want.Mailboxes) {
		fail("mailboxes = %v, want %v", sr.Mailboxes, want.Mailboxes)
	}
	if want.Conflict != "" && sr.Conflict != want.Conflict {
		fail("conflict = %q, want %q", sr.Conflict, want.Conflict)
	}
	if want.Error != (sr.Error != "") {
		fail("error = %q, want error: %t", sr.Error, want.Error)
	}
	if want.Tags != nil {
		if len(want.Tags) != len(sr.Pushed) {
			fail("pushed %d refs, want %d", len(sr.Pushed), len(want.Tags))
		} else {
			for i, tags := range want.Tags {
				if !slices.Equal(sr.Pushed[i].Tags, tags) {
					fail("pushed[%d] tags = %v, want %v", i, sr.Pushed[i].Tags, tags)
				}
			}
		}
	}
	return errs
}

// checkTables compares resolver tables with expectations.
func checkTables(t *resolve.Tables, want TablesExpect) []string {
	var errs []string
	if want.Visible != nil && !slices.Equal(t.List, want.Visible) {
		errs = append(errs, fmt.Sprintf("visible = %v, want %v", t.List, want.Visible))
	}
	for alias, url := range want.Lookup {
		if got, ok := t.Endpoint(alias); !ok || got != url {
			errs = append(errs, fmt.Sprintf("lookup[%s] = %q, want %q", alias, got, url))
		}
	}
	for alias, name := range want.Reverse {
		if got, ok := t.Reverse(alias); !ok || got != name {
			errs = append(errs, fmt.Sprintf("reverse[%s] = %q, want %q", alias, got, name))
		}
	}
	for _, alias := range want.NoReverse {
		if got, ok := t.Reverse(alias); ok {
			errs = append(errs, fmt.Sprintf("reverse[%s] = %q, want no entry", alias, got))
		}
	}
	slices.Sort(errs)
	return errs
}
