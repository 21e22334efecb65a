// Package config implements the configuration surface of spec §6.6.
// Grounded on inp.SolverData's field-by-field SetDefault/PostProcess
// validation style (inp/sim.go): defaults are assigned by one method,
// then cross-field normalization (e.g. clamping enum-like string fields)
// happens in a second pass, rather than at field-declaration time.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/johnnewto/circuitjs1-sub006/internal/element"
	"github.com/johnnewto/circuitjs1-sub006/internal/topology"
)

// IntegrationMethod mirrors element.IntegrationMethod as a config-surface
// string enum (spec §6.6 "integration_method").
type IntegrationMethod string

const (
	BackwardEuler IntegrationMethod = "backward_euler"
	Trapezoidal   IntegrationMethod = "trapezoidal"
)

// GroundPolicy mirrors topology.GroundPolicy as a config-surface string
// enum (spec §6.6 "ground_policy").
type GroundPolicy string

const (
	ImplicitGndVia1G GroundPolicy = "implicit_gnd_via_1G"
	ExplicitOnly     GroundPolicy = "explicit_only"
)

// Config is the plain struct populated from New's defaults or a YAML file
// via LoadYAML (spec §6.6). Every field has a recognized-option counterpart in the
// spec's table.
type Config struct {
	IntegrationMethod   IntegrationMethod `yaml:"integration_method" json:"integration_method"`
	SubiterationCap     int               `yaml:"subiteration_cap" json:"subiteration_cap"`
	NonlinearTol        float64           `yaml:"nonlinear_tol" json:"nonlinear_tol"`
	GroundPolicy        GroundPolicy      `yaml:"ground_policy" json:"ground_policy"`
	WasmSolverThreshold int               `yaml:"wasm_solver_threshold" json:"wasm_solver_threshold"`
	FrameBudgetMs       int               `yaml:"frame_budget_ms" json:"frame_budget_ms"`
	SimSpeed            int               `yaml:"sim_speed" json:"sim_speed"`
}

// SetDefault fills every field with spec's documented default.
func (c *Config) SetDefault() {
	c.IntegrationMethod = BackwardEuler
	c.SubiterationCap = 5000
	c.NonlinearTol = element.DefaultTolerance
	c.GroundPolicy = ImplicitGndVia1G
	c.WasmSolverThreshold = 200
	c.FrameBudgetMs = 50
	c.SimSpeed = 1
}

// PostProcess normalizes and validates fields after defaults are set and
// any override source (flags/file) has been applied, returning the first
// error found.
func (c *Config) PostProcess() error {
	switch c.IntegrationMethod {
	case BackwardEuler, Trapezoidal:
	case "":
		c.IntegrationMethod = BackwardEuler
	default:
		return fmt.Errorf("config: unknown integration_method %q", c.IntegrationMethod)
	}
	switch c.GroundPolicy {
	case ImplicitGndVia1G, ExplicitOnly:
	case "":
		c.GroundPolicy = ImplicitGndVia1G
	default:
		return fmt.Errorf("config: unknown ground_policy %q", c.GroundPolicy)
	}
	if c.SubiterationCap <= 0 {
		c.SubiterationCap = 5000
	}
	if c.NonlinearTol <= 0 {
		c.NonlinearTol = element.DefaultTolerance
	}
	if c.FrameBudgetMs <= 0 {
		c.FrameBudgetMs = 50
	}
	if c.SimSpeed <= 0 {
		c.SimSpeed = 1
	}
	return nil
}

// ElementIntegrationMethod maps the config-surface enum onto the
// element package's companion-model selector.
func (c *Config) ElementIntegrationMethod() element.IntegrationMethod {
	if c.IntegrationMethod == Trapezoidal {
		return element.Trapezoidal
	}
	return element.BackwardEuler
}

// TopologyGroundPolicy maps the config-surface enum onto the topology
// package's analyzer policy.
func (c *Config) TopologyGroundPolicy() topology.GroundPolicy {
	if c.GroundPolicy == ExplicitOnly {
		return topology.ExplicitGroundOnly
	}
	return topology.ImplicitGroundVia1G
}

// New returns a Config with defaults applied.
func New() *Config {
	c := &Config{}
	c.SetDefault()
	return c
}

// LoadYAML reads a YAML config file over top of the defaults, runs
// PostProcess, and returns the result.
func LoadYAML(path string) (*Config, error) {
	c := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := c.PostProcess(); err != nil {
		return nil, err
	}
	return c, nil
}
