package eqsys

import (
	"sort"

	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
)

// Settings are the realm-wide values every equation system is built with.
// A Settings value is fixed once Load has read the equation_systems block;
// systems override the overset pair from their own options.
type Settings struct {
	DecoupledOverset bool
	NumOversetIters  int
	HasOverset       bool
	MatrixFree       bool

	solverBlocks map[string]string
	solvers      map[string]linsys.Spec
}

// NewSettings copies the solver mapping (dof name -> solver block name) and
// the named solver specs.
func NewSettings(blocks map[string]string, solvers []linsys.Spec) Settings {
	s := Settings{
		NumOversetIters: 1,
		solverBlocks:    make(map[string]string, len(blocks)),
		solvers:         make(map[string]linsys.Spec, len(solvers)),
	}
	for k, v := range blocks {
		s.solverBlocks[k] = v
	}
	for _, spec := range solvers {
		s.solvers[spec.Name] = spec
	}
	return s
}

// SolverBlock returns the solver block mapped to dof.
func (s Settings) SolverBlock(dof string) (string, bool) {
	name, ok := s.solverBlocks[dof]
	return name, ok
}

// Solver returns the named solver spec.
func (s Settings) Solver(name string) (linsys.Spec, bool) {
	spec, ok := s.solvers[name]
	return spec, ok
}

// SolverDofs lists the mapped dof names in sorted order.
func (s Settings) SolverDofs() []string {
	out := make([]string, 0, len(s.solverBlocks))
	for k := range s.solverBlocks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
