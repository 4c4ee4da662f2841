package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/ir"
)

// Snapshot is what a golden file records for a scenario run.
type Snapshot struct {
	Scenario  string             `json:"scenario"`
	Reload    engine.ReloadStats `json:"reload"`
	Tables    TablesView         `json:"tables"`
	Steps     []StepResult       `json:"steps"`
	Refs      []RefView          `json:"refs"`
	Conflicts []ConflictView     `json:"conflicts"`
}

// MarshalSnapshot renders a result as canonical JSON (sorted keys, NFC
// strings) indented by two spaces, with a trailing newline.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	data, err := json.Marshal(Snapshot{
		Scenario:  name,
		Reload:    result.Reload,
		Tables:    result.Tables,
		Steps:     result.Steps,
		Refs:      result.Refs,
		Conflicts: result.Conflicts,
	})
	if err != nil {
		return nil, err
	}
	v, err := ir.ParseValue(data)
	if err != nil {
		return nil, err
	}
	canonical, err := ir.MarshalCanonical(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// RunWithGolden runs a scenario, fails the test on any failed expectation,
// and compares the snapshot with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, msg)
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result with the golden file for name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
