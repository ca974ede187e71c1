package eqsys

import (
	"time"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
	"github.com/saitoasukakawaii/nalu-wind/internal/overset"
)

type fakeRealm struct {
	meta    *mesh.MetaData
	fields  *field.Manager
	overset bool
}

func newFakeRealm(hasOverset bool) *fakeRealm {
	meta, err := mesh.Grid(mesh.GridOptions{Nx: 4, Ny: 2, Overset: hasOverset})
	if err != nil {
		panic(err)
	}
	return &fakeRealm{meta: meta, fields: field.NewManager(meta, 2), overset: hasOverset}
}

func (r *fakeRealm) Name() string                 { return "test_realm" }
func (r *fakeRealm) MetaData() *mesh.MetaData     { return r.meta }
func (r *fakeRealm) Fields() *field.Manager       { return r.fields }
func (r *fakeRealm) HasOverset() bool             { return r.overset }
func (r *fakeRealm) MatrixFree() bool             { return false }
func (r *fakeRealm) LinearSolvers() []linsys.Spec { return []linsys.Spec{linsys.DefaultSpec("solve")} }
func (r *fakeRealm) TimeStep() float64            { return 0.1 }

// stubLinsys reports fixed norms.
type stubLinsys struct {
	norm, scaled, increment float64
}

func (s *stubLinsys) Name() string                       { return "stub" }
func (s *stubLinsys) Size() int                          { return 1 }
func (s *stubLinsys) Zero()                              {}
func (s *stubLinsys) SumInto(row, col int, v float64)    {}
func (s *stubLinsys) SumRHS(row int, v float64)          {}
func (s *stubLinsys) SetDirichlet(row int, v float64)    {}
func (s *stubLinsys) Solve(delta []float64) (int, error) { return 1, nil }
func (s *stubLinsys) Norm() float64                      { return s.norm }
func (s *stubLinsys) ScaledNorm() float64                { return s.scaled }
func (s *stubLinsys) Increment() float64                 { return s.increment }
func (s *stubLinsys) ResetNorms()                        {}

// probe records every hook it receives into a shared call log.
type probe struct {
	Base
	calls *[]string

	converged bool
	solve     func() error
	pre       func()
	walls     []string
}

func newProbe(parent *EquationSystems, name string, calls *[]string) *probe {
	p := &probe{
		Base:      NewBase(parent, parent.Settings(), "Probe", "probe", Options{Name: name}),
		calls:     calls,
		converged: true,
	}
	p.SetLinearSystem(&stubLinsys{})
	return p
}

func (p *probe) record(what string) { *p.calls = append(*p.calls, p.Name()+"."+what) }

func (p *probe) PreIterWork() error {
	p.record("pre")
	if p.pre != nil {
		p.pre()
	}
	return p.Base.PreIterWork()
}

func (p *probe) SolveAndUpdate() error {
	p.record("solve")
	if p.solve != nil {
		return p.solve()
	}
	return nil
}

func (p *probe) PostIterWork() error {
	p.record("post")
	return p.Base.PostIterWork()
}

func (p *probe) PostIterWorkDep() error {
	p.record("dep")
	return nil
}

func (p *probe) SystemIsConverged() bool {
	p.record("converged")
	return p.converged
}

func (p *probe) RegisterWallBC(part *mesh.Part, _ mesh.Topology, _ config.BoundaryCondition) error {
	p.walls = append(p.walls, part.Name())
	return nil
}

func (p *probe) PredictState() error {
	p.record("predict")
	return nil
}

func (p *probe) PostConvergedWork() error {
	p.record("postConverged")
	return nil
}

func (p *probe) ProvideOutput() error {
	p.record("output")
	return nil
}

func (p *probe) PostExternalDataTransferWork() error {
	p.record("externalTransfer")
	return nil
}

// plain implements no optional capability.
type plain struct {
	Base
}

// group is a wrapper owning children.
type group struct {
	Base
	children []System
}

func (g *group) Children() []System { return g.children }

func (g *group) SolveAndUpdate() error {
	for _, c := range g.children {
		if err := c.PreIterWork(); err != nil {
			return err
		}
		if err := c.SolveAndUpdate(); err != nil {
			return err
		}
		if err := c.PostIterWork(); err != nil {
			return err
		}
	}
	return nil
}

// recordingExchanger logs each overset exchange into the shared call log.
type recordingExchanger struct {
	calls *[]string
}

func (x *recordingExchanger) Exchange(u overset.FieldUpdate) error {
	*x.calls = append(*x.calls, "overset."+u.Field.Name())
	return nil
}

// recordingObserver captures the phase sequence.
type recordingObserver struct {
	phases []Phase
	solved []string
}

func (o *recordingObserver) OnPhase(p Phase) { o.phases = append(o.phases, p) }

func (o *recordingObserver) OnSystemSolved(sys System, _ time.Duration) {
	o.solved = append(o.solved, sys.Name())
}
