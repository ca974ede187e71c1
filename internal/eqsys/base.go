package eqsys

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
)

// Timers accumulate wall time per system. They are never reset.
type Timers struct {
	Init         time.Duration
	Assemble     time.Duration
	LoadComplete time.Duration
	Solve        time.Duration
	Precond      time.Duration
	Misc         time.Duration
}

// Stats are the linear and nonlinear iteration counts of one system.
type Stats struct {
	NonlinearIterations int
	LinearSolves        int
	MinLinearIterations int
	MaxLinearIterations int
	AvgLinearIterations float64
}

// TimeReport is what DumpEqTime emits for one system.
type TimeReport struct {
	Name    string
	EqnType string
	Timers  Timers
	Stats   Stats
}

// Base carries the state shared by every equation system. A Base with no
// linear system is a wrapper: it never solves and always reports converged.
type Base struct {
	parent   *EquationSystems
	settings Settings

	name    string
	eqnType string
	dofName string

	maxIterations   int
	tolerance       float64
	decoupled       bool
	numOversetIters int

	linsys linsys.LinearSystem

	propertyAlgs  []Algorithm
	bcDataAlgs    []Algorithm
	bcDataMapAlgs []Algorithm
	preIterAlgs   []Algorithm
	postIterAlgs  []Algorithm

	timers Timers
	stats  Stats
}

// NewBase resolves the common block options against the realm settings.
// The overset pair is only read when the realm has overset topology.
func NewBase(parent *EquationSystems, s Settings, eqnType, dofName string, o Options) Base {
	b := Base{
		parent:          parent,
		settings:        s,
		name:            o.Name,
		eqnType:         eqnType,
		dofName:         dofName,
		maxIterations:   o.MaxIterations,
		tolerance:       o.ConvergenceTolerance,
		decoupled:       s.DecoupledOverset,
		numOversetIters: s.NumOversetIters,
	}
	if b.name == "" {
		b.name = eqnType
	}
	if b.maxIterations < 1 {
		b.maxIterations = DefaultMaxIterations
	}
	if b.tolerance <= 0 {
		b.tolerance = DefaultConvergenceTolerance
	}
	if s.HasOverset {
		if o.DecoupledOversetSolve != nil {
			b.decoupled = *o.DecoupledOversetSolve
		}
		if o.NumOversetCorrectors != nil {
			b.numOversetIters = *o.NumOversetCorrectors
		}
	}
	if b.numOversetIters < 1 {
		b.numOversetIters = 1
	}
	return b
}

func (b *Base) Name() string                      { return b.name }
func (b *Base) EqnTypeName() string               { return b.eqnType }
func (b *Base) DofName() string                   { return b.dofName }
func (b *Base) Parent() *EquationSystems          { return b.parent }
func (b *Base) Settings() Settings                { return b.settings }
func (b *Base) MaxIterations() int                { return b.maxIterations }
func (b *Base) Tolerance() float64                { return b.tolerance }
func (b *Base) IsDecoupled() bool                 { return b.decoupled }
func (b *Base) NumOversetIters() int              { return b.numOversetIters }
func (b *Base) IsWrapper() bool                   { return b.linsys == nil }
func (b *Base) LinearSystem() linsys.LinearSystem { return b.linsys }
func (b *Base) Stats() Stats                      { return b.stats }
func (b *Base) Timers() Timers                    { return b.timers }

// SetLinearSystem attaches ls; nil turns the system into a wrapper.
func (b *Base) SetLinearSystem(ls linsys.LinearSystem) { b.linsys = ls }

// CreateLinearSystem builds the solver mapped to the system's dof with rows
// unknowns.
func (b *Base) CreateLinearSystem(rows int) error {
	block, ok := b.settings.SolverBlock(b.dofName)
	if !ok {
		return configErr("solver block", b.dofName, ErrMissingSolverBlock)
	}
	spec, ok := b.settings.Solver(block)
	if !ok {
		return configErr("linear solver", block, fmt.Errorf("no linear_solvers entry named %q", block))
	}
	spec.Name = b.name
	ls, err := linsys.New(spec, rows)
	if err != nil {
		return configErr("linear solver", block, err)
	}
	b.linsys = ls
	return nil
}

// Initialize is a no-op; systems override it to size and seed their state.
func (b *Base) Initialize() error { return nil }

// SolveAndUpdate is a no-op; wrappers never solve.
func (b *Base) SolveAndUpdate() error { return nil }

func (b *Base) PreIterWork() error {
	return b.runTimed(b.preIterAlgs)
}

func (b *Base) PostIterWork() error {
	return b.runTimed(b.postIterAlgs)
}

// PreTimestepWork starts a new scaled-norm reference for the time step.
func (b *Base) PreTimestepWork() error {
	if b.linsys != nil {
		b.linsys.ResetNorms()
	}
	return nil
}

func (b *Base) runTimed(algs []Algorithm) error {
	start := time.Now()
	defer func() { b.timers.Misc += time.Since(start) }()
	for _, alg := range algs {
		if err := alg.Execute(); err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
	}
	return nil
}

// EvaluateProperties runs the property algorithms in registration order.
func (b *Base) EvaluateProperties() error {
	for _, alg := range b.propertyAlgs {
		if err := alg.Execute(); err != nil {
			return fmt.Errorf("%s: evaluate properties: %w", b.name, err)
		}
	}
	return nil
}

func (b *Base) AddPropertyAlgorithm(a Algorithm)        { b.propertyAlgs = append(b.propertyAlgs, a) }
func (b *Base) AddBoundaryDataAlgorithm(a Algorithm)    { b.bcDataAlgs = append(b.bcDataAlgs, a) }
func (b *Base) AddBoundaryDataMapAlgorithm(a Algorithm) { b.bcDataMapAlgs = append(b.bcDataMapAlgs, a) }
func (b *Base) AddPreIterAlgorithm(a Algorithm)         { b.preIterAlgs = append(b.preIterAlgs, a) }
func (b *Base) AddPostIterAlgorithm(a Algorithm)        { b.postIterAlgs = append(b.postIterAlgs, a) }

func (b *Base) BoundaryDataAlgorithms() []Algorithm    { return b.bcDataAlgs }
func (b *Base) BoundaryDataMapAlgorithms() []Algorithm { return b.bcDataMapAlgs }

// SystemIsConverged reports ScaledNorm <= tolerance; wrappers are always
// converged.
func (b *Base) SystemIsConverged() bool {
	if b.linsys == nil {
		return true
	}
	return b.linsys.ScaledNorm() <= b.tolerance
}

func (b *Base) ScaledNorm() float64 {
	if b.linsys == nil {
		return 0
	}
	return b.linsys.ScaledNorm()
}

func (b *Base) Norm() float64 {
	if b.linsys == nil {
		return 0
	}
	return b.linsys.Norm()
}

func (b *Base) NormIncrement() float64 {
	if b.linsys == nil {
		return 0
	}
	return b.linsys.Increment()
}

// OversetSweeps is the number of solves per SolveAndUpdate: the correction
// count when the system is decoupled on an overset realm, else one.
func (b *Base) OversetSweeps() int {
	if b.decoupled && b.settings.HasOverset {
		return b.numOversetIters
	}
	return 1
}

// AssembleAndSolve zeroes the linear system, lets assemble fill it and
// solves into delta. An iterative solve that stops at its iteration limit
// is logged, not returned.
func (b *Base) AssembleAndSolve(assemble func(ls linsys.LinearSystem) error, delta []float64) error {
	if b.linsys == nil {
		return fmt.Errorf("%s: wrapper system has no linear system", b.name)
	}
	start := time.Now()
	b.linsys.Zero()
	if err := assemble(b.linsys); err != nil {
		return fmt.Errorf("%s: assemble: %w", b.name, err)
	}
	b.timers.Assemble += time.Since(start)

	start = time.Now()
	iters, err := b.linsys.Solve(delta)
	b.timers.Solve += time.Since(start)
	if errors.Is(err, linsys.ErrNotConverged) {
		// The partial increment is kept; the norms report the shortfall.
		if b.parent != nil {
			b.parent.Logger().Info("linear solve did not converge", "warning", true,
				"system", b.name, "iterations", iters)
		}
		err = nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	b.updateIterationStatistics(iters)
	return nil
}

// SolutionUpdate sets field = deltaFrac*delta + fieldFrac*field. The
// fractions need not sum to one.
func (b *Base) SolutionUpdate(deltaFrac float64, delta []float64, fieldFrac float64, field []float64) {
	floats.Scale(fieldFrac, field)
	floats.AddScaled(field, deltaFrac, delta)
}

func (b *Base) updateIterationStatistics(iters int) {
	s := &b.stats
	s.NonlinearIterations++
	if s.LinearSolves == 0 || iters < s.MinLinearIterations {
		s.MinLinearIterations = iters
	}
	if iters > s.MaxLinearIterations {
		s.MaxLinearIterations = iters
	}
	s.AvgLinearIterations = (s.AvgLinearIterations*float64(s.LinearSolves) + float64(iters)) / float64(s.LinearSolves+1)
	s.LinearSolves++
}

func (b *Base) AddInitTime(d time.Duration) { b.timers.Init += d }

// DumpEqTime logs the accumulated timers through the parent and returns them.
func (b *Base) DumpEqTime() TimeReport {
	r := TimeReport{Name: b.name, EqnType: b.eqnType, Timers: b.timers, Stats: b.stats}
	if b.parent != nil {
		log := b.parent.Logger()
		log.Info("timing", "system", b.name,
			"init", r.Timers.Init, "assemble", r.Timers.Assemble,
			"loadComplete", r.Timers.LoadComplete, "solve", r.Timers.Solve,
			"precond", r.Timers.Precond, "misc", r.Timers.Misc)
		if b.linsys != nil {
			log.Info("linear iterations", "system", b.name,
				"avg", r.Stats.AvgLinearIterations, "min", r.Stats.MinLinearIterations,
				"max", r.Stats.MaxLinearIterations)
		}
	}
	return r
}
