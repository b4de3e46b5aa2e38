// Package config loads simulation programs from YAML. A program names the
// simulated year range, the trial count, and one or more scenarios, each a
// list of engine commands. Validation is atomic: every violation in the
// file is collected and reported together, and nothing of a bad program is
// returned.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stratosim/internal/state"
	"github.com/roach88/stratosim/internal/units"
)

// Command operations. Each maps onto one engine operation.
const (
	OpEnable        = "enable"
	OpSet           = "set"
	OpChange        = "change"
	OpCap           = "cap"
	OpFloor         = "floor"
	OpInitialCharge = "initialCharge"
	OpIntensity     = "intensity"
	OpRecharge      = "recharge"
	OpRecover       = "recover"
	OpRetire        = "retire"
	OpReplace       = "replace"
)

// Program is a full simulation description: the year range every trial
// runs over, the number of trials per scenario, and the scenarios.
type Program struct {
	Name      string     `yaml:"name"`
	StartYear int        `yaml:"startYear"`
	EndYear   int        `yaml:"endYear"`
	Trials    int        `yaml:"trials"`
	Scenarios []Scenario `yaml:"scenarios"`
}

// Scenario is one named policy trajectory: the commands applied every
// simulated year, in order.
type Scenario struct {
	Name     string    `yaml:"name"`
	Stanza   string    `yaml:"stanza"`
	Commands []Command `yaml:"commands"`
}

// Command describes one engine operation. Op selects the operation;
// the remaining fields feed it. Quantity-valued fields hold literals in
// the "<number> <unit>" grammar ("100 mt", "5 %", "1 kg / unit").
type Command struct {
	Op          string `yaml:"op"`
	Application string `yaml:"application"`
	Substance   string `yaml:"substance"`

	Stream string `yaml:"stream,omitempty"`
	Value  string `yaml:"value,omitempty"`

	// Displace names the stream or substance absorbing the volume a
	// change, cap, or floor moves.
	Displace string `yaml:"displace,omitempty"`

	// Destination names the substance a replace command moves volume to.
	Destination string `yaml:"destination,omitempty"`

	// Stage selects the recovery stage for recover commands, "recharge"
	// (default) or "eol".
	Stage string `yaml:"stage,omitempty"`

	// Intensity is the per-unit servicing volume for recharge commands.
	Intensity string `yaml:"intensity,omitempty"`

	// Yield is the usable fraction of recovered volume for recover
	// commands. Induction optionally sets how recovered supply meets
	// demand; leaving it empty keeps the stage's default.
	Yield     string `yaml:"yield,omitempty"`
	Induction string `yaml:"induction,omitempty"`

	// WithReplacement retires equipment while keeping sales intent, so
	// the retired units are bought back.
	WithReplacement bool `yaml:"withReplacement,omitempty"`

	// Years restricts the command to part of the simulated range. Absent
	// means every year.
	Years *YearRange `yaml:"years,omitempty"`
}

// YearRange selects the years a command applies to. In YAML it is either
// a single year (`years: 5`) or a bounded range (`years: {min: 2, max: 7}`)
// with either bound optional.
type YearRange struct {
	Min *int
	Max *int
}

// UnmarshalYAML accepts the scalar and mapping forms.
func (r *YearRange) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var year int
		if err := node.Decode(&year); err != nil {
			return fmt.Errorf("years: %w", err)
		}
		r.Min = &year
		r.Max = &year
		return nil
	}

	var bounds struct {
		Min *int `yaml:"min"`
		Max *int `yaml:"max"`
	}
	if err := node.Decode(&bounds); err != nil {
		return fmt.Errorf("years: %w", err)
	}
	r.Min = bounds.Min
	r.Max = bounds.Max
	return nil
}

// Matcher converts the range to the engine's year matcher. A nil range
// matches every year.
func (r *YearRange) Matcher() *state.YearMatcher {
	if r == nil {
		return nil
	}
	if r.Min != nil && r.Max != nil && *r.Min == *r.Max {
		return state.NewSingleYearMatcher(*r.Min)
	}
	return state.NewYearMatcher(r.Min, r.Max)
}

// Load reads and validates a program file.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnreadable, Message: err.Error()}
	}
	return Parse(data)
}

// Parse decodes and validates a program. Unknown fields are rejected so
// typos surface instead of silently dropping commands.
func Parse(data []byte) (*Program, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var p Program
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Code: ErrCodeBadYAML, Message: "empty program"}
		}
		return nil, &Error{Code: ErrCodeBadYAML, Message: err.Error()}
	}

	p.applyDefaults()
	if violations := p.validate(); len(violations) > 0 {
		return nil, &Error{
			Code:       ErrCodeInvalidProgram,
			Message:    fmt.Sprintf("%d violation(s)", len(violations)),
			Violations: violations,
		}
	}
	return &p, nil
}

func (p *Program) applyDefaults() {
	if p.Trials == 0 {
		p.Trials = 1
	}
	for i := range p.Scenarios {
		if p.Scenarios[i].Stanza == "" {
			p.Scenarios[i].Stanza = "default"
		}
	}
}

// validate collects every rule violation in the program.
func (p *Program) validate() []string {
	var v []string

	if p.StartYear < 1 {
		v = append(v, fmt.Sprintf("startYear must be at least 1, got %d", p.StartYear))
	}
	if p.EndYear < p.StartYear {
		v = append(v, fmt.Sprintf("endYear %d is before startYear %d", p.EndYear, p.StartYear))
	}
	if p.Trials < 1 {
		v = append(v, fmt.Sprintf("trials must be at least 1, got %d", p.Trials))
	}
	if len(p.Scenarios) == 0 {
		v = append(v, "program has no scenarios")
	}

	seen := make(map[string]bool)
	for i, sc := range p.Scenarios {
		if sc.Name == "" {
			v = append(v, fmt.Sprintf("scenario %d has no name", i+1))
			continue
		}
		if seen[sc.Name] {
			v = append(v, fmt.Sprintf("duplicate scenario name %q", sc.Name))
		}
		seen[sc.Name] = true

		for j, cmd := range sc.Commands {
			at := fmt.Sprintf("scenario %q command %d", sc.Name, j+1)
			v = append(v, cmd.validate(at)...)
		}
	}
	return v
}

func (c Command) validate(at string) []string {
	var v []string

	spec, ok := opSpecs[c.Op]
	if !ok {
		return []string{fmt.Sprintf("%s: unknown op %q", at, c.Op)}
	}

	if c.Application == "" {
		v = append(v, fmt.Sprintf("%s: application is required", at))
	}
	if c.Substance == "" {
		v = append(v, fmt.Sprintf("%s: substance is required", at))
	}
	if spec.needsStream && c.Stream == "" {
		v = append(v, fmt.Sprintf("%s: op %q requires a stream", at, c.Op))
	}
	if spec.needsDestination && c.Destination == "" {
		v = append(v, fmt.Sprintf("%s: op %q requires a destination substance", at, c.Op))
	}

	v = append(v, c.validateQuantity(at, "value", c.Value, spec.needsValue)...)
	v = append(v, c.validateQuantity(at, "intensity", c.Intensity, spec.needsIntensity)...)
	v = append(v, c.validateQuantity(at, "yield", c.Yield, spec.needsYield)...)
	v = append(v, c.validateQuantity(at, "induction", c.Induction, false)...)

	switch c.Stage {
	case "", "recharge", "eol":
	default:
		v = append(v, fmt.Sprintf("%s: stage must be %q or %q, got %q", at, "recharge", "eol", c.Stage))
	}

	if c.Years != nil && c.Years.Min != nil && c.Years.Max != nil && *c.Years.Min > *c.Years.Max {
		v = append(v, fmt.Sprintf("%s: years min %d exceeds max %d", at, *c.Years.Min, *c.Years.Max))
	}

	return v
}

func (c Command) validateQuantity(at, field, literal string, required bool) []string {
	if literal == "" {
		if required {
			return []string{fmt.Sprintf("%s: op %q requires %s", at, c.Op, field)}
		}
		return nil
	}
	if _, err := units.Parse(literal); err != nil {
		return []string{fmt.Sprintf("%s: %s %q: %v", at, field, literal, err)}
	}
	return nil
}

type opSpec struct {
	needsStream      bool
	needsValue       bool
	needsIntensity   bool
	needsYield       bool
	needsDestination bool
}

var opSpecs = map[string]opSpec{
	OpEnable:        {needsStream: true},
	OpSet:           {needsStream: true, needsValue: true},
	OpChange:        {needsStream: true, needsValue: true},
	OpCap:           {needsStream: true, needsValue: true},
	OpFloor:         {needsStream: true, needsValue: true},
	OpInitialCharge: {needsStream: true, needsValue: true},
	OpIntensity:     {needsValue: true},
	OpRecharge:      {needsValue: true, needsIntensity: true},
	OpRecover:       {needsValue: true, needsYield: true},
	OpRetire:        {needsValue: true},
	OpReplace:       {needsStream: true, needsValue: true, needsDestination: true},
}

// RecoveryStage maps the command's stage field onto the engine's stages.
func (c Command) RecoveryStage() state.RecoveryStage {
	if c.Stage == "eol" {
		return state.StageEol
	}
	return state.StageRecharge
}
