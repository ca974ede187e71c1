package config

import (
	"sort"

	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
)

// Presets are the built-in decks, keyed by name. Each call builds a fresh
// copy so callers may mutate the result.
var Presets = map[string]func() *Config{
	"channel":   channelPreset,
	"overset":   oversetPreset,
	"turbulent": turbulentPreset,
}

func channelPreset() *Config {
	cfg := DefaultConfig()
	cfg.Name = "channel"
	cfg.EquationSystems = EquationSystems{
		Name:          "theEqSys",
		MaxIterations: DefaultMaxIterations,
		SolverSystemSpecification: map[string]string{
			"velocity": DefaultSolverName,
			"pressure": DefaultSolverName,
			"enthalpy": DefaultSolverName,
		},
		Systems: []SystemBlock{
			{Type: "LowMachEOM", Options: map[string]any{
				"name":                  "myLowMach",
				"max_iterations":        1,
				"convergence_tolerance": 1.0e-5,
			}},
			{Type: "Enthalpy", Options: map[string]any{
				"name":                  "myEnth",
				"max_iterations":        1,
				"convergence_tolerance": 1.0e-5,
			}},
		},
	}
	cfg.InitialConditions = []InitialCondition{{
		Name:    "ic_1",
		Targets: []string{"block_1"},
		Values: map[string]Value{
			"velocity":    {0, 0},
			"pressure":    {0},
			"temperature": {300},
		},
	}}
	cfg.BoundaryConditions = []BoundaryCondition{
		{Kind: InflowBC, Name: "bc_inflow", Target: "left", Values: map[string]Value{
			"velocity": {1, 0}, "temperature": {300},
		}},
		{Kind: OpenBC, Name: "bc_open", Target: "right", Values: map[string]Value{
			"pressure": {0}, "temperature": {300},
		}},
		{Kind: WallBC, Name: "bc_bottom", Target: "bottom", Values: map[string]Value{
			"velocity": {0, 0}, "temperature": {350},
		}},
		{Kind: SymmetryBC, Name: "bc_top", Target: "top"},
	}
	cfg.PostProcessing = []PostProcessing{{
		Name: "wall_heat", Type: "surface", Physics: "surface_force_and_moment", Targets: []string{"bottom"},
	}}
	return cfg
}

func oversetPreset() *Config {
	cfg := channelPreset()
	cfg.Name = "overset"
	cfg.Mesh.Overset = true
	decoupled := true
	correctors := 2
	cfg.EquationSystems.DecoupledOversetSolve = &decoupled
	cfg.EquationSystems.NumOversetCorrectors = &correctors
	cfg.BoundaryConditions = append(cfg.BoundaryConditions, BoundaryCondition{Kind: OversetBC, Name: "bc_overset"})
	return cfg
}

func turbulentPreset() *Config {
	cfg := channelPreset()
	cfg.Name = "turbulent"
	cfg.LinearSolvers = append(cfg.LinearSolvers, linsys.Spec{
		Name: "solve_jacobi", Method: linsys.MethodJacobi, Tolerance: 1e-10, MaxIterations: 500,
	})
	spec := cfg.EquationSystems.SolverSystemSpecification
	spec["turbulent_ke"] = "solve_jacobi"
	spec["specific_dissipation_rate"] = "solve_jacobi"
	spec["ndtw"] = DefaultSolverName
	cfg.EquationSystems.Systems = []SystemBlock{
		{Type: "WallDistance", Options: map[string]any{"name": "myNDTW"}},
		cfg.EquationSystems.Systems[0],
		{Type: "ShearStressTransport", Options: map[string]any{
			"name":                  "mySST",
			"max_iterations":        1,
			"convergence_tolerance": 1.0e-5,
		}},
		cfg.EquationSystems.Systems[1],
	}
	cfg.InitialConditions[0].Values["turbulent_ke"] = Value{1e-3}
	cfg.InitialConditions[0].Values["specific_dissipation_rate"] = Value{1.0}
	for i := range cfg.BoundaryConditions {
		bc := &cfg.BoundaryConditions[i]
		if bc.Kind == InflowBC || bc.Kind == WallBC {
			bc.Values["turbulent_ke"] = Value{1e-3}
			bc.Values["specific_dissipation_rate"] = Value{1.0}
		}
	}
	return cfg
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
