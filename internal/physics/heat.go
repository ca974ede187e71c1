package physics

import (
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
)

// HeatConduction solves for temperature with point-Jacobi sweeps. It is
// only available on matrix-free realms.
type HeatConduction struct {
	transport
}

func newHeatConduction(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	if !s.MatrixFree {
		return nil, &eqsys.ConfigError{Op: "create", Target: "HeatConduction", Err: eqsys.ErrUnsupported}
	}
	var o eqsys.Options
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	h := &HeatConduction{transport: newTransport(parent, s, "HeatConduction", "temperature", "temperature", o)}
	h.gammaField = "thermal_conductivity"
	return h, nil
}

// Initialize takes tolerances from the mapped solver block but always
// solves with Jacobi.
func (h *HeatConduction) Initialize() error {
	if err := h.checkField(); err != nil {
		return err
	}
	block, ok := h.Settings().SolverBlock(h.DofName())
	if !ok {
		return &eqsys.ConfigError{Op: "solver block", Target: h.DofName(), Err: eqsys.ErrMissingSolverBlock}
	}
	spec, ok := h.Settings().Solver(block)
	if !ok {
		return &eqsys.ConfigError{Op: "linear solver", Target: block, Err: fmt.Errorf("no linear_solvers entry named %q", block)}
	}
	spec.Name = h.Name()
	spec.Method = linsys.MethodJacobi
	ls, err := linsys.New(spec, h.rows())
	if err != nil {
		return err
	}
	h.SetLinearSystem(ls)
	h.delta = make([]float64, h.rows())
	return nil
}

func (h *HeatConduction) ReinitializeLinearSystem() error {
	return h.Initialize()
}
