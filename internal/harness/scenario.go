package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/refmesh/internal/compiler"
	"github.com/roach88/refmesh/internal/ir"
)

// Scenario is a federation scenario: a local instance, its origin links,
// and a sequence of replication steps with expected outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Local names the instance the scenario runs as.
	Local compiler.LocalConfig `yaml:"local"`

	// Links are stored as-is before the first reload. Links that fail to
	// compile are skipped by the reload, as in production.
	Links []compiler.LinkRecord `yaml:"links"`

	// IdentityPrefix overrides the identity tag prefix (default "+user").
	IdentityPrefix string `yaml:"identity_prefix,omitempty"`

	// PageSize overrides the reload page size.
	PageSize int `yaml:"page_size,omitempty"`

	// Steps run in order against one session.
	Steps []Step `yaml:"steps"`

	// Expect checks the resolver tables after the reload.
	Expect *TablesExpect `yaml:"expect,omitempty"`
}

// Step is one replication operation. Exactly one of Pull, Save, Push and
// Acknowledge is set.
type Step struct {
	// Name labels the step so later saves can refer to its version.
	Name string `yaml:"name,omitempty"`

	Pull        *PullStep  `yaml:"pull,omitempty"`
	Save        *SaveStep  `yaml:"save,omitempty"`
	Push        *PushStep  `yaml:"push,omitempty"`
	Acknowledge *ir.RefKey `yaml:"acknowledge,omitempty"`

	// Expect checks the step's outcome. Nil means no checks.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// PullStep pulls one ref over the link with alias From.
type PullStep struct {
	From string `yaml:"from"`
	Ref  ir.Ref `yaml:"ref"`
}

// SaveStep applies a local edit. Against names an earlier step whose
// version the edit was made from; empty means a new ref.
type SaveStep struct {
	Key     ir.RefKey   `yaml:"key"`
	Patch   ir.RefPatch `yaml:"patch"`
	Against string      `yaml:"against,omitempty"`
}

// PushStep addresses refs for the push link with alias To.
type PushStep struct {
	To   string   `yaml:"to"`
	Refs []ir.Ref `yaml:"refs"`
}

// StepExpect is a subset match on a step's result. Empty fields are not
// checked.
type StepExpect struct {
	Action    string   `yaml:"action,omitempty"`
	Origin    *string  `yaml:"origin,omitempty"`
	Mailboxes []string `yaml:"mailboxes,omitempty"`
	Conflict  string   `yaml:"conflict,omitempty"`
	Error     bool     `yaml:"error,omitempty"`

	// Tags checks the tags of each pushed ref, in order.
	Tags [][]string `yaml:"tags,omitempty"`
}

// TablesExpect is a subset match on the resolver tables.
type TablesExpect struct {
	Visible []string          `yaml:"visible,omitempty"`
	Lookup  map[string]string `yaml:"lookup,omitempty"`
	Reverse map[string]string `yaml:"reverse,omitempty"`

	// NoReverse lists aliases that must not have a reverse entry.
	NoReverse []string `yaml:"no_reverse,omitempty"`
}

// Step kinds.
const (
	KindPull        = "pull"
	KindSave        = "save"
	KindPush        = "push"
	KindAcknowledge = "acknowledge"
)

// Kind returns which operation the step performs, or "" if none or
// several are set.
func (s Step) Kind() string {
	var kinds []string
	if s.Pull != nil {
		kinds = append(kinds, KindPull)
	}
	if s.Save != nil {
		kinds = append(kinds, KindSave)
	}
	if s.Push != nil {
		kinds = append(kinds, KindPush)
	}
	if s.Acknowledge != nil {
		kinds = append(kinds, KindAcknowledge)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.PageSize < 0 {
		return fmt.Errorf("page_size must be non-negative")
	}

	names := make(map[string]int)
	for i, step := range s.Steps {
		kind := step.Kind()
		if kind == "" {
			return fmt.Errorf("steps[%d]: exactly one of pull, save, push, acknowledge is required", i)
		}
		switch kind {
		case KindPull:
			if step.Pull.Ref.URL == "" {
				return fmt.Errorf("steps[%d].pull: ref.url is required", i)
			}
		case KindSave:
			if step.Save.Key.URL == "" {
				return fmt.Errorf("steps[%d].save: key.url is required", i)
			}
			if a := step.Save.Against; a != "" {
				if _, ok := names[a]; !ok {
					return fmt.Errorf("steps[%d].save: against %q is not an earlier step", i, a)
				}
			}
		case KindPush:
			if len(step.Push.Refs) == 0 {
				return fmt.Errorf("steps[%d].push: refs is required", i)
			}
		case KindAcknowledge:
			if step.Acknowledge.URL == "" {
				return fmt.Errorf("steps[%d].acknowledge: url is required", i)
			}
		}

		if step.Name != "" {
			if j, ok := names[step.Name]; ok {
				return fmt.Errorf("steps[%d]: name %q already used by steps[%d]", i, step.Name, j)
			}
			names[step.Name] = i
		}
	}
	return nil
}
