package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/permstore/internal/lifecycle"
)

// Scenario defines a scripted run against one or more stores.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup steps run first. They must succeed; expectations are not allowed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the main sequence of operations.
	Flow []Step `yaml:"flow"`

	// Assertions are evaluated after the flow.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Operation names.
const (
	OpSet           = "set"
	OpGet           = "get"
	OpHas           = "has"
	OpDelete        = "delete"
	OpClear         = "clear"
	OpKeys          = "keys"
	OpValues        = "values"
	OpEntries       = "entries"
	OpCount         = "count"
	OpAddCollection = "add_collection"
)

var keyedOps = map[string]bool{OpSet: true, OpGet: true, OpHas: true, OpDelete: true}

var knownOps = map[string]bool{
	OpSet: true, OpGet: true, OpHas: true, OpDelete: true, OpClear: true,
	OpKeys: true, OpValues: true, OpEntries: true, OpCount: true, OpAddCollection: true,
}

// Step is one store operation.
type Step struct {
	// Store names the store (database and collection).
	Store string `yaml:"store"`

	// Op is one of the Op constants.
	Op string `yaml:"op"`

	// Key is required by set, get, has and delete.
	Key string `yaml:"key,omitempty"`

	// Value is the value written by set.
	Value *string `yaml:"value,omitempty"`

	// Collection is the collection opened by add_collection.
	Collection string `yaml:"collection,omitempty"`

	// Expect checks the outcome. Nil means the step only has to not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect lists expected outcome fields; unset fields are not checked.
type Expect struct {
	Found   *bool             `yaml:"found,omitempty"`
	Value   *string           `yaml:"value,omitempty"`
	Present *bool             `yaml:"present,omitempty"`
	Keys    []string          `yaml:"keys,omitempty"`
	Values  []string          `yaml:"values,omitempty"`
	Entries map[string]string `yaml:"entries,omitempty"` // compared as a set
	Count   *int              `yaml:"count,omitempty"`

	// Error is the expected lifecycle error code of a failing set or
	// add_collection, e.g. VERSION_CHANGED.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Store is used by final_entries, database_version and optionally trace_count.
	Store string `yaml:"store,omitempty"`

	// Entries is the exact expected content (final_entries).
	Entries map[string]string `yaml:"entries,omitempty"`

	// Op is the counted operation (trace_count).
	Op string `yaml:"op,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Ops is the expected relative order (trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Version is the expected database version (database_version).
	Version int `yaml:"version,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalEntries    = "final_entries"
	AssertTraceCount      = "trace_count"
	AssertTraceOrder      = "trace_order"
	AssertDatabaseVersion = "database_version"
)

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

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Store == "" {
		return fmt.Errorf("%s: store is required", where)
	}
	if err := lifecycle.ValidateName(step.Store); err != nil {
		return fmt.Errorf("%s: %w", where, err)
	}
	if !knownOps[step.Op] {
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}
	if keyedOps[step.Op] && step.Key == "" {
		return fmt.Errorf("%s: key is required for %s", where, step.Op)
	}
	if step.Op == OpSet && step.Value == nil {
		return fmt.Errorf("%s: value is required for set", where)
	}
	if step.Op == OpAddCollection && step.Collection == "" {
		return fmt.Errorf("%s: collection is required for add_collection", where)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalEntries:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for final_entries", index)
		}
		if a.Entries == nil {
			return fmt.Errorf("assertions[%d]: entries is required for final_entries (use {} for empty)", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertDatabaseVersion:
		if a.Store == "" {
			return fmt.Errorf("assertions[%d]: store is required for database_version", index)
		}
		if a.Version <= 0 {
			return fmt.Errorf("assertions[%d]: version must be positive for database_version", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
