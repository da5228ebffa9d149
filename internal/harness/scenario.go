package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/starcore/internal/schema"
)

// Scenario defines a replication scenario: a set of peers sharing one
// container type, a flow of local mutations and injected envelopes, and
// assertions on the resulting trace and peer state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schemas lists CUE files declaring extra container types.
	// Paths are relative to the scenario file location.
	Schemas []string `yaml:"schemas,omitempty"`

	// Container is the replicated container type. Defaults to
	// ReplicatedContainer.
	Container string `yaml:"container,omitempty"`

	// Peers names the participants. The first one is the authority every
	// other peer talks to.
	Peers []string `yaml:"peers"`

	// Flow contains the steps, run in order. The network is drained after
	// every step.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one local operation on a peer, or one envelope injected into
// a peer.
type FlowStep struct {
	// Peer runs the operation or receives the envelope.
	Peer string `yaml:"peer"`

	// Op is one of fetch, set, add, move, remove, replace, reset, send.
	Op string `yaml:"op"`

	Property string `yaml:"property,omitempty"`
	Index    int    `yaml:"index,omitempty"`
	To       int    `yaml:"to,omitempty"`
	Value    any    `yaml:"value,omitempty"`
	Items    []any  `yaml:"items,omitempty"`

	// Envelope is delivered to Peer as if sent by From (used by send).
	Envelope *EnvelopeStep `yaml:"envelope,omitempty"`
	From     string        `yaml:"from,omitempty"`

	// ExpectError is the code of the first failure the step must produce,
	// either locally or while its envelopes are delivered.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// EnvelopeStep is a raw wire envelope written in YAML.
type EnvelopeStep struct {
	Kind    string `yaml:"kind"`
	Payload []any  `yaml:"payload"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "converged": every listed peer (default all) has the same digest
	//   - "value": a value property on Peer equals Equals
	//   - "items": a collection property on Peer equals Equals
	//   - "trace_contains": an envelope matching Kind/From/To/Payload was delivered
	//   - "trace_count": exactly Count envelopes match Kind/From/To
	Type string `yaml:"type"`

	Peers    []string `yaml:"peers,omitempty"`
	Peer     string   `yaml:"peer,omitempty"`
	Property string   `yaml:"property,omitempty"`
	Equals   any      `yaml:"equals,omitempty"`

	Kind    string `yaml:"kind,omitempty"`
	From    string `yaml:"from,omitempty"`
	To      string `yaml:"to,omitempty"`
	Payload []any  `yaml:"payload,omitempty"`
	Count   int    `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpFetch   = "fetch"
	OpSet     = "set"
	OpAdd     = "add"
	OpMove    = "move"
	OpRemove  = "remove"
	OpReplace = "replace"
	OpReset   = "reset"
	OpSend    = "send"
)

// Assertion type constants.
const (
	AssertConverged     = "converged"
	AssertValue         = "value"
	AssertItems         = "items"
	AssertTraceContains = "trace_contains"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file, resolving schema
// paths relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving schema paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Schemas {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Schemas[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
// It fills in the default container type.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Container == "" {
		s.Container = schema.ReplicatedContainer
	}

	if len(s.Peers) < 2 {
		return fmt.Errorf("at least two peers are required")
	}
	peers := make(map[string]bool, len(s.Peers))
	for _, p := range s.Peers {
		if p == "" {
			return fmt.Errorf("peer names must be non-empty")
		}
		if peers[p] {
			return fmt.Errorf("duplicate peer %q", p)
		}
		peers[p] = true
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Schemas {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("schema file not found: %s", p)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, &step, peers); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, peers); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step *FlowStep, peers map[string]bool) error {
	if !peers[step.Peer] {
		return fmt.Errorf("flow[%d]: unknown peer %q", index, step.Peer)
	}

	switch step.Op {
	case OpFetch:
	case OpSet, OpAdd, OpMove, OpRemove, OpReplace, OpReset:
		if step.Property == "" {
			return fmt.Errorf("flow[%d]: property is required for %s", index, step.Op)
		}
		if step.Op == OpAdd && len(step.Items) == 0 {
			return fmt.Errorf("flow[%d]: items are required for add", index)
		}
	case OpSend:
		if step.Envelope == nil || step.Envelope.Kind == "" {
			return fmt.Errorf("flow[%d]: envelope with kind is required for send", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, peers map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertConverged:
		for _, p := range a.Peers {
			if !peers[p] {
				return fmt.Errorf("assertions[%d]: unknown peer %q", index, p)
			}
		}
	case AssertValue, AssertItems:
		if !peers[a.Peer] {
			return fmt.Errorf("assertions[%d]: unknown peer %q", index, a.Peer)
		}
		if a.Property == "" {
			return fmt.Errorf("assertions[%d]: property is required for %s", index, a.Type)
		}
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
