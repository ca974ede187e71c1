package eqsys

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
	"github.com/saitoasukakawaii/nalu-wind/internal/overset"
)

// Realm is what the composite needs from its owning realm.
type Realm interface {
	Name() string
	MetaData() *mesh.MetaData
	Fields() *field.Manager
	HasOverset() bool
	MatrixFree() bool
	LinearSolvers() []linsys.Spec
	// TimeStep is the current step size.
	TimeStep() float64
}

// Phase is a state of the per-iteration schedule.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePreIter
	PhasePerSystemSolve
	PhasePostIter
	PhaseConverged
	PhaseNotConverged
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreIter:
		return "pre_iter"
	case PhasePerSystemSolve:
		return "per_system_solve"
	case PhasePostIter:
		return "post_iter"
	case PhaseConverged:
		return "converged"
	case PhaseNotConverged:
		return "not_converged"
	default:
		return "unknown"
	}
}

// Observer is notified as the schedule advances.
type Observer interface {
	OnPhase(p Phase)
	OnSystemSolved(sys System, elapsed time.Duration)
}

// Option configures an EquationSystems.
type Option func(*EquationSystems)

func WithLogger(log logr.Logger) Option {
	return func(e *EquationSystems) { e.log = log }
}

func WithObserver(o Observer) Option {
	return func(e *EquationSystems) { e.observers = append(e.observers, o) }
}

// WithExchanger replaces the fringe interpolation used by the overset driver.
func WithExchanger(x overset.Exchanger) Option {
	return func(e *EquationSystems) { e.exchanger = x }
}

// EquationSystems owns the ordered equation systems of one realm and drives
// their per-iteration schedule.
type EquationSystems struct {
	realm Realm
	log   logr.Logger

	name          string
	maxIterations int
	settings      Settings

	systems []System
	members []System

	preIterAlgs  []Algorithm
	postIterAlgs []Algorithm
	frozen       bool

	exchanger overset.Exchanger
	overset   *overset.Driver
	observers []Observer
}

func New(realm Realm, opts ...Option) *EquationSystems {
	e := &EquationSystems{
		realm:    realm,
		log:      logging.NewNop(),
		settings: NewSettings(nil, realm.LinearSolvers()),
	}
	for _, o := range opts {
		o(e)
	}
	if e.exchanger == nil {
		e.exchanger = overset.NewFringeExchanger(realm.MetaData())
	}
	e.overset = overset.NewDriver(realm.Fields(), e.exchanger)
	e.log = e.log.WithName("EquationSystems")
	return e
}

func (e *EquationSystems) Name() string             { return e.name }
func (e *EquationSystems) MaxIterations() int       { return e.maxIterations }
func (e *EquationSystems) Settings() Settings       { return e.settings }
func (e *EquationSystems) Realm() Realm             { return e.realm }
func (e *EquationSystems) Logger() logr.Logger      { return e.log }
func (e *EquationSystems) Overset() *overset.Driver { return e.overset }

// Systems returns the top-level systems in physics-block order.
func (e *EquationSystems) Systems() []System { return e.systems }

// Members returns every system with wrapper children following their wrapper.
func (e *EquationSystems) Members() []System { return e.members }

// Load builds one system per physics block through reg.
func (e *EquationSystems) Load(cfg config.EquationSystems, reg *Registry) error {
	if err := cfg.Validate(); err != nil {
		return configErr("load", "equation_systems", err)
	}
	e.name = cfg.Name
	e.maxIterations = cfg.MaxIterations

	s := NewSettings(cfg.SolverSystemSpecification, e.realm.LinearSolvers())
	s.HasOverset = e.realm.HasOverset()
	s.MatrixFree = e.realm.MatrixFree()
	if s.HasOverset {
		if cfg.DecoupledOversetSolve != nil {
			s.DecoupledOverset = *cfg.DecoupledOversetSolve
		}
		if cfg.NumOversetCorrectors != nil {
			s.NumOversetIters = *cfg.NumOversetCorrectors
		}
	}
	e.settings = s

	e.systems = e.systems[:0]
	e.members = e.members[:0]
	for i, block := range cfg.Systems {
		factory, err := reg.Get(block.Type)
		if err != nil {
			return configErr("load", fmt.Sprintf("systems[%d]", i), err)
		}
		e.log.V(logging.DEBUG).Info("creating equation system", "type", block.Type)
		sys, err := factory(e, s, block.Options)
		if err != nil {
			var ce *ConfigError
			if errors.As(err, &ce) {
				return err
			}
			return configErr("load", block.Type, err)
		}
		e.systems = append(e.systems, sys)
		e.members = appendMembers(e.members, sys)
	}
	return nil
}

func appendMembers(dst []System, sys System) []System {
	dst = append(dst, sys)
	if g, ok := sys.(Grouping); ok {
		for _, c := range g.Children() {
			dst = appendMembers(dst, c)
		}
	}
	return dst
}

// SolverBlockName returns the solver block mapped to dof.
func (e *EquationSystems) SolverBlockName(dof string) (string, error) {
	name, ok := e.settings.SolverBlock(dof)
	if !ok {
		e.log.Info("missed equation solver block specification", "dof", dof)
		return "", configErr("solver block", dof, ErrMissingSolverBlock)
	}
	return name, nil
}

// AddPreIterTask appends a side task run before the systems each iteration.
func (e *EquationSystems) AddPreIterTask(a Algorithm) error {
	if e.frozen {
		return ErrFrozen
	}
	e.preIterAlgs = append(e.preIterAlgs, a)
	return nil
}

// AddPostIterTask appends a side task run after the systems each iteration.
func (e *EquationSystems) AddPostIterTask(a Algorithm) error {
	if e.frozen {
		return ErrFrozen
	}
	e.postIterAlgs = append(e.postIterAlgs, a)
	return nil
}

// RegisterOversetFieldUpdate forwards to the overset driver. It is valid
// whether or not the realm ends up with overset topology.
func (e *EquationSystems) RegisterOversetFieldUpdate(f *field.Field, rows, cols int) error {
	if err := e.overset.Register(f, rows, cols); err != nil {
		return configErr("register overset field update", fieldName(f), err)
	}
	return nil
}

func fieldName(f *field.Field) string {
	if f == nil {
		return ""
	}
	return f.Name()
}

// AllSystemsDecoupled is true iff the realm has overset topology and every
// member is solved decoupled.
func (e *EquationSystems) AllSystemsDecoupled() bool {
	if !e.realm.HasOverset() {
		return false
	}
	for _, sys := range e.members {
		if !sys.IsDecoupled() {
			return false
		}
	}
	return true
}

// Initialize initializes every member, accumulating each one's init timer.
func (e *EquationSystems) Initialize() error {
	e.log.Info("initialize begin", "realm", e.realm.Name())
	for _, sys := range e.members {
		start := time.Now()
		err := sys.Initialize()
		sys.AddInitTime(time.Since(start))
		if err != nil {
			return fmt.Errorf("initialize %s: %w", sys.Name(), err)
		}
	}
	e.log.Info("initialize end", "realm", e.realm.Name())

	if e.realm.HasOverset() {
		e.log.Info("overset solution strategy")
		for _, sys := range e.members {
			if sys.IsWrapper() {
				continue
			}
			mode := "coupled"
			if sys.IsDecoupled() {
				mode = "decoupled"
			}
			e.log.Info("overset strategy", "system", sys.EqnTypeName(), "mode", mode)
		}
	}
	return nil
}

// SolveAndUpdate runs one nonlinear iteration over every system and reports
// whether all of them converged.
func (e *EquationSystems) SolveAndUpdate() (bool, error) {
	e.frozen = true
	defer e.notifyPhase(PhaseIdle)

	e.notifyPhase(PhasePreIter)
	if err := e.preIterWork(); err != nil {
		return false, err
	}

	e.notifyPhase(PhasePerSystemSolve)
	for _, sys := range e.systems {
		start := time.Now()
		if err := sys.PreIterWork(); err != nil {
			return false, fmt.Errorf("pre iter work %s: %w", sys.Name(), err)
		}
		if err := sys.SolveAndUpdate(); err != nil {
			return false, fmt.Errorf("solve %s: %w", sys.Name(), err)
		}
		if err := sys.PostIterWork(); err != nil {
			return false, fmt.Errorf("post iter work %s: %w", sys.Name(), err)
		}
		for _, o := range e.observers {
			o.OnSystemSolved(sys, time.Since(start))
		}
	}

	// TODO: fold remaining PostIterWorkDep implementations into PostIterWork
	// and drop this pass.
	for _, sys := range e.members {
		if legacy, ok := sys.(LegacyPostIterWorker); ok {
			if err := legacy.PostIterWorkDep(); err != nil {
				return false, fmt.Errorf("post iter work dep %s: %w", sys.Name(), err)
			}
		}
	}

	e.notifyPhase(PhasePostIter)
	for _, alg := range e.postIterAlgs {
		if err := alg.Execute(); err != nil {
			return false, fmt.Errorf("post iter task: %w", err)
		}
	}

	converged := true
	for _, sys := range e.members {
		if !sys.SystemIsConverged() {
			converged = false
		}
	}
	if converged {
		e.notifyPhase(PhaseConverged)
	} else {
		e.notifyPhase(PhaseNotConverged)
	}
	return converged, nil
}

func (e *EquationSystems) preIterWork() error {
	if e.realm.HasOverset() {
		if err := e.overset.Execute(); err != nil {
			return err
		}
	}
	for _, alg := range e.preIterAlgs {
		if err := alg.Execute(); err != nil {
			return fmt.Errorf("pre iter task: %w", err)
		}
	}
	return nil
}

func (e *EquationSystems) notifyPhase(p Phase) {
	for _, o := range e.observers {
		o.OnPhase(p)
	}
}

// ProvideSystemNorm returns the largest member scaled norm.
func (e *EquationSystems) ProvideSystemNorm() float64 {
	if len(e.members) == 0 {
		return 0
	}
	maxNorm := e.members[0].ScaledNorm()
	for _, sys := range e.members[1:] {
		if n := sys.ScaledNorm(); n > maxNorm {
			maxNorm = n
		}
	}
	return maxNorm
}

// ProvideMeanSystemNorm returns the summed norms over the summed norm
// increments, or ErrUndefinedNorm when the increments sum to zero.
func (e *EquationSystems) ProvideMeanSystemNorm() (float64, error) {
	var norm, increment float64
	for _, sys := range e.members {
		norm += sys.Norm()
		increment += sys.NormIncrement()
	}
	if increment == 0 {
		return 0, ErrUndefinedNorm
	}
	return norm / increment, nil
}

// DumpEqTime logs and returns the timers of every member.
func (e *EquationSystems) DumpEqTime() []TimeReport {
	out := make([]TimeReport, 0, len(e.members))
	for _, sys := range e.members {
		out = append(out, sys.DumpEqTime())
	}
	return out
}

func (e *EquationSystems) EvaluateProperties() error {
	for _, sys := range e.members {
		if err := sys.EvaluateProperties(); err != nil {
			return err
		}
	}
	return nil
}

// ReinitializeLinearSystem rebuilds member linear systems, charging the
// time to their init timers.
func (e *EquationSystems) ReinitializeLinearSystem() error {
	for _, sys := range e.members {
		r, ok := sys.(LinearSystemReinitializer)
		if !ok {
			continue
		}
		start := time.Now()
		err := r.ReinitializeLinearSystem()
		sys.AddInitTime(time.Since(start))
		if err != nil {
			return fmt.Errorf("reinitialize %s: %w", sys.Name(), err)
		}
	}
	return nil
}

func (e *EquationSystems) InitialWork() error {
	return visit(e.members, func(w InitialWorker) error { return w.InitialWork() })
}

func (e *EquationSystems) PopulateDerivedQuantities() error {
	return visit(e.members, func(p DerivedQuantityPopulator) error { return p.PopulateDerivedQuantities() })
}

func (e *EquationSystems) PredictState() error {
	return visit(e.members, func(p StatePredictor) error { return p.PredictState() })
}

func (e *EquationSystems) PreTimestepWork() error {
	return visit(e.members, func(p TimestepPreparer) error { return p.PreTimestepWork() })
}

func (e *EquationSystems) PostConvergedWork() error {
	return visit(e.members, func(c ConvergedWorker) error { return c.PostConvergedWork() })
}

func (e *EquationSystems) ProvideOutput() error {
	return visit(e.members, func(o OutputProvider) error { return o.ProvideOutput() })
}

// PopulateBoundaryData runs every member's boundary data algorithms.
func (e *EquationSystems) PopulateBoundaryData() error {
	for _, sys := range e.members {
		for _, alg := range sys.BoundaryDataAlgorithms() {
			if err := alg.Execute(); err != nil {
				return fmt.Errorf("boundary data %s: %w", sys.Name(), err)
			}
		}
	}
	return nil
}

// BoundaryDataToStateData copies boundary data into the solution states.
func (e *EquationSystems) BoundaryDataToStateData() error {
	for _, sys := range e.members {
		for _, alg := range sys.BoundaryDataMapAlgorithms() {
			if err := alg.Execute(); err != nil {
				return fmt.Errorf("boundary data map %s: %w", sys.Name(), err)
			}
		}
	}
	return nil
}

// PostExternalDataTransferWork notifies members that own boundary data.
func (e *EquationSystems) PostExternalDataTransferWork() error {
	for _, sys := range e.members {
		w, ok := sys.(ExternalTransferWorker)
		if !ok || len(sys.BoundaryDataAlgorithms()) == 0 {
			continue
		}
		if err := w.PostExternalDataTransferWork(); err != nil {
			return fmt.Errorf("external transfer %s: %w", sys.Name(), err)
		}
	}
	return nil
}

// visit calls fn on every member implementing T, in order.
func visit[T any](members []System, fn func(T) error) error {
	for _, sys := range members {
		c, ok := sys.(T)
		if !ok {
			continue
		}
		if err := fn(c); err != nil {
			return fmt.Errorf("%s: %w", sys.Name(), err)
		}
	}
	return nil
}
