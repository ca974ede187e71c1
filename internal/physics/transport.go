package physics

import (
	"fmt"
	"math"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// transport is a diffusion equation for one nodal field, solved in
// increment form. Steady equations drop the physical time term; they keep
// a pseudo-time diagonal only when nothing pins the solution.
type transport struct {
	eqsys.Base

	fieldName  string
	gammaField string
	gamma      float64
	source     float64
	steady     bool
	aux        []string

	// bcValue extracts this field's Dirichlet value from a boundary
	// condition; nil reads user_data[fieldName].
	bcValue func(bc config.BoundaryCondition) ([]float64, bool)
	// target converts a stored Dirichlet value at node into field units.
	target func(node int, v float64) float64

	field     *field.Field
	diff      *field.Field
	parts     []*mesh.Part
	dirichlet map[int][]float64
	fringe    []int
	overset   bool
	icFcns    []icFcn
	delta     []float64
}

type icFcn struct {
	part   *mesh.Part
	name   string
	params []float64
}

func newTransport(parent *eqsys.EquationSystems, s eqsys.Settings, eqnType, dof, fieldName string, o eqsys.Options) transport {
	return transport{
		Base:      eqsys.NewBase(parent, s, eqnType, dof, o),
		fieldName: fieldName,
		gamma:     1,
		dirichlet: make(map[int][]float64),
	}
}

func (t *transport) Field() *field.Field { return t.field }

func (t *transport) fields() *field.Manager { return t.Parent().Realm().Fields() }

func (t *transport) rows() int { return t.field.Size() * t.field.Components() }

func (t *transport) RegisterNodalFields(parts []*mesh.Part) error {
	f, err := t.fields().Register(t.fieldName, parts)
	if err != nil {
		return err
	}
	t.field = f
	t.parts = append(t.parts, parts...)
	if t.gammaField != "" {
		if t.diff, err = t.fields().Register(t.gammaField, parts); err != nil {
			return err
		}
	}
	for _, name := range t.aux {
		if _, err := t.fields().Register(name, parts); err != nil {
			return err
		}
	}
	return nil
}

func (t *transport) checkField() error {
	if t.field == nil {
		return fmt.Errorf("%s: %w: %q has no nodal targets", t.Name(), field.ErrNotRegistered, t.fieldName)
	}
	if !t.steady && t.field.NumStates() < 2 {
		return fmt.Errorf("%s: %w: %q has no time history", t.Name(), field.ErrBadState, t.fieldName)
	}
	return nil
}

func (t *transport) Initialize() error {
	if err := t.checkField(); err != nil {
		return err
	}
	if err := t.CreateLinearSystem(t.rows()); err != nil {
		return err
	}
	t.delta = make([]float64, t.rows())
	return nil
}

func (t *transport) ReinitializeLinearSystem() error {
	return t.CreateLinearSystem(t.rows())
}

func (t *transport) RegisterWallBC(part *mesh.Part, _ mesh.Topology, bc config.BoundaryCondition) error {
	return t.dirichletOn(part, bc)
}

func (t *transport) RegisterInflowBC(part *mesh.Part, _ mesh.Topology, bc config.BoundaryCondition) error {
	return t.dirichletOn(part, bc)
}

func (t *transport) RegisterOpenBC(part *mesh.Part, _ mesh.Topology, bc config.BoundaryCondition) error {
	return t.dirichletOn(part, bc)
}

func (t *transport) RegisterABLTopBC(part *mesh.Part, _ mesh.Topology, bc config.BoundaryCondition) error {
	return t.dirichletOn(part, bc)
}

func (t *transport) dirichletOn(part *mesh.Part, bc config.BoundaryCondition) error {
	var (
		vals []float64
		ok   bool
	)
	if t.bcValue != nil {
		vals, ok = t.bcValue(bc)
	} else {
		var v config.Value
		v, ok = bc.Values[t.fieldName]
		vals = v
	}
	if !ok {
		return nil
	}
	if t.field == nil {
		return fmt.Errorf("%s: %w: %q", t.Name(), field.ErrNotRegistered, t.fieldName)
	}
	comps := t.field.Components()
	if len(vals) == 1 && comps > 1 {
		vals = broadcast(vals[0], comps)
	}
	if len(vals) != comps {
		return &eqsys.ConfigError{
			Op:     "boundary condition",
			Target: bc.Name,
			Err:    fmt.Errorf("%s needs %d components, got %d", t.fieldName, comps, len(vals)),
		}
	}
	for _, n := range part.Nodes() {
		t.dirichlet[n] = vals
	}
	return nil
}

// RegisterOversetBC pins the fringe receptors during solves and registers
// the field for fringe interpolation.
func (t *transport) RegisterOversetBC() error {
	for _, c := range t.Parent().Realm().MetaData().Fringe() {
		t.fringe = append(t.fringe, c.Receptor)
	}
	t.overset = true
	var comps int
	if t.field != nil {
		comps = t.field.Components()
	}
	return t.Parent().RegisterOversetFieldUpdate(t.field, 1, comps)
}

func (t *transport) RegisterInitialConditionFcn(part *mesh.Part, fcn map[string]string, params map[string][]float64) error {
	name, ok := fcn[t.fieldName]
	if !ok {
		return nil
	}
	if _, known := userFunctions[name]; !known {
		return &eqsys.ConfigError{Op: "initial condition", Target: name, Err: eqsys.ErrUnsupported}
	}
	t.icFcns = append(t.icFcns, icFcn{part: part, name: name, params: params[t.fieldName]})
	return nil
}

// InitialWork evaluates the user-function initial conditions into every
// state of the field.
func (t *transport) InitialWork() error {
	if len(t.icFcns) == 0 {
		return nil
	}
	comps := t.field.Components()
	for _, ic := range t.icFcns {
		fn := userFunctions[ic.name]
		nodes := ic.part.Nodes()
		for k := 0; k < t.field.NumStates(); k++ {
			vals := t.field.Values(field.State(k))
			for i, n := range nodes {
				for c := 0; c < comps; c++ {
					v, err := fn(ic.params, i, len(nodes), c)
					if err != nil {
						return fmt.Errorf("%s: %s: %w", t.Name(), ic.name, err)
					}
					vals[n*comps+c] = v
				}
			}
		}
	}
	return nil
}

// SolveAndUpdate runs max_iterations passes; each pass assembles, solves
// and applies the increment once per overset sweep. Decoupled systems
// refresh their own fringe after each sweep.
func (t *transport) SolveAndUpdate() error {
	phi := t.field.Values(field.StateNP1)
	for i := 0; i < t.MaxIterations(); i++ {
		for k := 0; k < t.OversetSweeps(); k++ {
			if err := t.AssembleAndSolve(t.assemble, t.delta); err != nil {
				return err
			}
			t.SolutionUpdate(1, t.delta, 1, phi)
			if t.overset && t.IsDecoupled() {
				if err := t.Parent().Overset().ExecuteField(t.field); err != nil {
					return fmt.Errorf("%s: %w", t.Name(), err)
				}
			}
		}
	}
	return nil
}

func (t *transport) assemble(ls linsys.LinearSystem) error {
	meta := t.Parent().Realm().MetaData()
	comps := t.field.Components()
	phi := t.field.Values(field.StateNP1)
	nodes := t.field.Size()

	invDt := 1 / t.Parent().Realm().TimeStep()
	var phiN []float64
	if t.steady {
		if len(t.dirichlet) > 0 || len(t.fringe) > 0 {
			invDt = 0
		}
	} else {
		phiN = t.field.Values(field.StateN)
	}

	for n := 0; n < nodes; n++ {
		for c := 0; c < comps; c++ {
			row := n*comps + c
			ls.SumInto(row, row, invDt)
			if phiN != nil {
				ls.SumRHS(row, -invDt*(phi[row]-phiN[row]))
			}
			ls.SumRHS(row, t.source)
		}
	}

	for _, e := range meta.Edges() {
		a, b := e[0], e[1]
		g := 0.5 * (t.gammaAt(a) + t.gammaAt(b))
		for c := 0; c < comps; c++ {
			ra, rb := a*comps+c, b*comps+c
			ls.SumInto(ra, ra, g)
			ls.SumInto(rb, rb, g)
			ls.SumInto(ra, rb, -g)
			ls.SumInto(rb, ra, -g)
			flux := g * (phi[ra] - phi[rb])
			ls.SumRHS(ra, -flux)
			ls.SumRHS(rb, flux)
		}
	}

	for n, vals := range t.dirichlet {
		for c := 0; c < comps; c++ {
			row := n*comps + c
			ls.SetDirichlet(row, t.targetAt(n, vals[c])-phi[row])
		}
	}
	for _, n := range t.fringe {
		for c := 0; c < comps; c++ {
			ls.SetDirichlet(n*comps+c, 0)
		}
	}
	return nil
}

func (t *transport) gammaAt(node int) float64 {
	if t.diff == nil {
		return t.gamma
	}
	return t.diff.Values(field.StateNP1)[node]
}

func (t *transport) targetAt(node int, v float64) float64 {
	if t.target == nil {
		return v
	}
	return t.target(node, v)
}

func broadcast(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// clip bounds every value to [lo, hi] and returns how many were changed.
func clip(vals []float64, lo, hi float64) int {
	n := 0
	for i, v := range vals {
		c := math.Min(math.Max(v, lo), hi)
		if c != v {
			vals[i] = c
			n++
		}
	}
	return n
}

// clipAlgorithm bounds the current state of f.
func clipAlgorithm(f func() *field.Field, lo, hi float64) eqsys.Algorithm {
	return eqsys.AlgorithmFunc(func() error {
		if fld := f(); fld != nil {
			clip(fld.Values(field.StateNP1), lo, hi)
		}
		return nil
	})
}

// clipStates bounds every stored time level of f.
func clipStates(f *field.Field, lo, hi float64) int {
	n := 0
	for k := 0; k < f.NumStates(); k++ {
		n += clip(f.Values(field.State(k)), lo, hi)
	}
	return n
}
