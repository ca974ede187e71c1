package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

const (
	DefaultTimeStep      = 0.1
	DefaultSteps         = 10
	DefaultMaxIterations = 4
	DefaultNx            = 8
	DefaultNy            = 4
	DefaultSolverName    = "solve_scalar"
)

var ErrMissingKey = errors.New("config: required key missing")

// Config is one input deck: a single realm plus its time integrator.
type Config struct {
	Name               string              `yaml:"name"`
	Mesh               mesh.GridOptions    `yaml:"mesh"`
	MatrixFree         bool                `yaml:"matrix_free"`
	LinearSolvers      []linsys.Spec       `yaml:"linear_solvers"`
	EquationSystems    EquationSystems     `yaml:"equation_systems"`
	MaterialProperties MaterialProperties  `yaml:"material_properties"`
	InitialConditions  []InitialCondition  `yaml:"initial_conditions,omitempty"`
	BoundaryConditions []BoundaryCondition `yaml:"boundary_conditions,omitempty"`
	PostProcessing     []PostProcessing    `yaml:"post_processing,omitempty"`
	TimeIntegrator     TimeIntegrator      `yaml:"time_integrator"`
}

// EquationSystems is the equation_systems block.
type EquationSystems struct {
	Name                      string            `yaml:"name"`
	MaxIterations             int               `yaml:"max_iterations"`
	DecoupledOversetSolve     *bool             `yaml:"decoupled_overset_solve,omitempty"`
	NumOversetCorrectors      *int              `yaml:"num_overset_correctors,omitempty"`
	SolverSystemSpecification map[string]string `yaml:"solver_system_specification"`
	Systems                   []SystemBlock     `yaml:"systems"`
}

// SystemBlock is one entry of the systems list, written in the deck as a
// single-key map from the PDE type to its options.
type SystemBlock struct {
	Type    string
	Options map[string]any
}

func (b *SystemBlock) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: system block must be a single-key map", value.Line)
	}
	b.Type = value.Content[0].Value
	b.Options = map[string]any{}
	body := value.Content[1]
	if body.Kind == yaml.ScalarNode && body.Tag == "!!null" {
		return nil
	}
	return body.Decode(&b.Options)
}

func (b SystemBlock) MarshalYAML() (any, error) {
	opts := b.Options
	if opts == nil {
		opts = map[string]any{}
	}
	return map[string]any{b.Type: opts}, nil
}

// Validate checks the keys Load requires.
func (e *EquationSystems) Validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("%w: name", ErrMissingKey)
	case e.MaxIterations < 1:
		return fmt.Errorf("%w: max_iterations", ErrMissingKey)
	case e.SolverSystemSpecification == nil:
		return fmt.Errorf("%w: solver_system_specification", ErrMissingKey)
	case e.Systems == nil:
		return fmt.Errorf("%w: systems", ErrMissingKey)
	}
	for i, s := range e.Systems {
		if s.Type == "" {
			return fmt.Errorf("%w: type of systems[%d]", ErrMissingKey, i)
		}
	}
	return nil
}

// Value is a scalar or vector user value.
type Value []float64

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var x float64
		if err := node.Decode(&x); err != nil {
			return err
		}
		*v = Value{x}
		return nil
	}
	var xs []float64
	if err := node.Decode(&xs); err != nil {
		return err
	}
	*v = xs
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	if len(v) == 1 {
		return v[0], nil
	}
	return []float64(v), nil
}

type MaterialProperties struct {
	Targets   []string           `yaml:"target_name"`
	Constants map[string]float64 `yaml:"constants"`
}

type InitialCondition struct {
	Name    string            `yaml:"name"`
	Targets []string          `yaml:"target_name"`
	Values  map[string]Value  `yaml:"value,omitempty"`
	Fcn     map[string]string `yaml:"user_function_name,omitempty"`
	Params  map[string]Value  `yaml:"user_function_parameters,omitempty"`
}

// IsFunction reports whether the condition names user functions.
func (ic InitialCondition) IsFunction() bool { return len(ic.Fcn) > 0 }

// BoundaryCondition kinds.
const (
	WallBC         = "wall"
	InflowBC       = "inflow"
	OpenBC         = "open"
	SymmetryBC     = "symmetry"
	ABLTopBC       = "abltop"
	PeriodicBC     = "periodic"
	NonConformalBC = "non_conformal"
	OversetBC      = "overset"
)

type BoundaryCondition struct {
	Kind   string           `yaml:"kind"`
	Name   string           `yaml:"name"`
	Target string           `yaml:"target_name,omitempty"`
	Values map[string]Value `yaml:"user_data,omitempty"`

	// periodic: Targets holds master then slave
	Targets         []string `yaml:"target_names,omitempty"`
	SearchTolerance float64  `yaml:"search_tolerance,omitempty"`
	SearchMethod    string   `yaml:"search_method,omitempty"`

	// non_conformal
	Current  []string `yaml:"current_target_name,omitempty"`
	Opposing []string `yaml:"opposing_target_name,omitempty"`
}

type PostProcessing struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Physics string   `yaml:"physics"`
	Targets []string `yaml:"target_name"`
	Output  string   `yaml:"output_file_name,omitempty"`
}

type TimeIntegrator struct {
	TimeStep float64 `yaml:"time_step"`
	Steps    int     `yaml:"termination_step_count"`
}

func DefaultConfig() *Config {
	return &Config{
		Name: "realm_1",
		Mesh: mesh.GridOptions{Nx: DefaultNx, Ny: DefaultNy},
		LinearSolvers: []linsys.Spec{
			linsys.DefaultSpec(DefaultSolverName),
		},
		MaterialProperties: MaterialProperties{
			Targets: []string{"block_1"},
			Constants: map[string]float64{
				"density":              1.0,
				"viscosity":            1.0e-2,
				"specific_heat":        1.0,
				"thermal_conductivity": 1.0e-2,
			},
		},
		TimeIntegrator: TimeIntegrator{
			TimeStep: DefaultTimeStep,
			Steps:    DefaultSteps,
		},
	}
}

// Parse decodes a deck on top of the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.TimeIntegrator.TimeStep <= 0 {
		return fmt.Errorf("time_step must be positive, got %g", c.TimeIntegrator.TimeStep)
	}
	if c.TimeIntegrator.Steps < 1 {
		return fmt.Errorf("termination_step_count must be positive, got %d", c.TimeIntegrator.Steps)
	}
	seen := map[string]bool{}
	for _, s := range c.LinearSolvers {
		if s.Name == "" {
			return fmt.Errorf("%w: linear_solvers name", ErrMissingKey)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate linear solver %q", s.Name)
		}
		seen[s.Name] = true
	}
	for _, bc := range c.BoundaryConditions {
		switch bc.Kind {
		case WallBC, InflowBC, OpenBC, SymmetryBC, ABLTopBC:
			if bc.Target == "" {
				return fmt.Errorf("%w: target_name of %s boundary condition %q", ErrMissingKey, bc.Kind, bc.Name)
			}
		case PeriodicBC:
			if len(bc.Targets) != 2 {
				return fmt.Errorf("periodic boundary condition %q needs a master and a slave target", bc.Name)
			}
		case NonConformalBC:
			if len(bc.Current) == 0 || len(bc.Opposing) == 0 {
				return fmt.Errorf("%w: current/opposing targets of %q", ErrMissingKey, bc.Name)
			}
		case OversetBC:
		default:
			return fmt.Errorf("unknown boundary condition kind %q", bc.Kind)
		}
	}
	return c.EquationSystems.Validate()
}
