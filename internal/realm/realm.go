package realm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/go-logr/logr"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// NumStates is the number of time levels kept for multi-state fields.
const NumStates = 3

type Option func(*Realm)

func WithLogger(log logr.Logger) Option {
	return func(r *Realm) { r.log = log }
}

// WithSchedulerOption forwards o to the equation systems.
func WithSchedulerOption(o eqsys.Option) Option {
	return func(r *Realm) { r.eqsOpts = append(r.eqsOpts, o) }
}

// Realm owns the mesh, the fields and the equation systems of one deck and
// drives them through time.
type Realm struct {
	cfg    *config.Config
	log    logr.Logger
	meta   *mesh.MetaData
	fields *field.Manager
	eqs    *eqsys.EquationSystems

	eqsOpts     []eqsys.Option
	metrics     []Metric
	observers   []Observer
	initialized bool

	step int
	time float64
}

// New validates cfg, builds the mesh and the equation systems and runs
// every registration. Nothing is solved until Run or Initialize.
func New(cfg *config.Config, reg *eqsys.Registry, opts ...Option) (*Realm, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	meta, err := mesh.Grid(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	r := &Realm{
		cfg:    cfg,
		log:    logging.NewNop(),
		meta:   meta,
		fields: field.NewManager(meta, NumStates),
	}
	for _, o := range opts {
		o(r)
	}
	r.eqs = eqsys.New(r, append([]eqsys.Option{eqsys.WithLogger(r.log)}, r.eqsOpts...)...)
	r.log = r.log.WithName("Realm")

	if err := r.eqs.Load(cfg.EquationSystems, reg); err != nil {
		return nil, err
	}
	if err := r.register(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Realm) Name() string                 { return r.cfg.Name }
func (r *Realm) MetaData() *mesh.MetaData     { return r.meta }
func (r *Realm) Fields() *field.Manager       { return r.fields }
func (r *Realm) HasOverset() bool             { return r.meta.HasOverset() }
func (r *Realm) MatrixFree() bool             { return r.cfg.MatrixFree }
func (r *Realm) LinearSolvers() []linsys.Spec { return r.cfg.LinearSolvers }
func (r *Realm) TimeStep() float64            { return r.cfg.TimeIntegrator.TimeStep }

func (r *Realm) Config() *config.Config { return r.cfg }

// Time is the simulated time reached by the last completed step.
func (r *Realm) Time() float64 { return r.time }

func (r *Realm) EquationSystems() *eqsys.EquationSystems { return r.eqs }

func (r *Realm) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Realm) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Realm) register() error {
	targets := r.cfg.MaterialProperties.Targets
	if err := r.eqs.RegisterNodalFields(targets); err != nil {
		return err
	}
	if err := r.eqs.RegisterEdgeFields(targets); err != nil {
		return err
	}
	if err := r.eqs.RegisterElementFields(targets); err != nil {
		return err
	}
	if err := r.eqs.RegisterInteriorAlgorithm(targets); err != nil {
		return err
	}

	for _, bc := range r.cfg.BoundaryConditions {
		if err := r.eqs.RegisterBoundaryCondition(bc); err != nil {
			return err
		}
	}

	for _, ic := range r.cfg.InitialConditions {
		if !ic.IsFunction() {
			continue
		}
		for _, name := range ic.Targets {
			part, err := r.part("initial condition", name)
			if err != nil {
				return err
			}
			if err := r.eqs.RegisterInitialConditionFcn(part, ic); err != nil {
				return err
			}
		}
	}

	for _, pp := range r.cfg.PostProcessing {
		if pp.Type != "surface" {
			r.log.Info("unsupported post-processing type", "warning", true, "name", pp.Name, "type", pp.Type)
			continue
		}
		if err := r.eqs.RegisterSurfacePPAlgorithm(pp); err != nil {
			return err
		}
	}
	return nil
}

func (r *Realm) part(op, name string) (*mesh.Part, error) {
	p, ok := r.meta.GetPart(name)
	if !ok {
		return nil, &eqsys.ConfigError{Op: op, Target: name, Err: fmt.Errorf("%w: %q", mesh.ErrPartNotFound, name)}
	}
	return p, nil
}

// Initialize sizes the linear systems and seeds every field. It is called
// by Run and may be called once beforehand.
func (r *Realm) Initialize() error {
	if r.initialized {
		return nil
	}
	if err := r.eqs.Initialize(); err != nil {
		return err
	}
	r.applyMaterialProperties()
	if err := r.applyInitialConditions(); err != nil {
		return err
	}

	steps := []func() error{
		r.eqs.InitialWork,
		r.eqs.PopulateBoundaryData,
		r.eqs.BoundaryDataToStateData,
		r.eqs.PopulateDerivedQuantities,
		r.eqs.EvaluateProperties,
	}
	for _, fn := range steps {
		if err := fn(); err != nil {
			return err
		}
	}
	r.initialized = true
	return nil
}

func (r *Realm) applyMaterialProperties() {
	names := make([]string, 0, len(r.cfg.MaterialProperties.Constants))
	for name := range r.cfg.MaterialProperties.Constants {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := r.fields.Get(name)
		if err != nil {
			r.log.V(logging.DEBUG).Info("material property has no field", "property", name)
			continue
		}
		for k := 0; k < f.NumStates(); k++ {
			f.Fill(field.State(k), r.cfg.MaterialProperties.Constants[name])
		}
	}
}

func (r *Realm) applyInitialConditions() error {
	for _, ic := range r.cfg.InitialConditions {
		if ic.IsFunction() {
			continue
		}
		for _, target := range ic.Targets {
			part, err := r.part("initial condition", target)
			if err != nil {
				return err
			}
			for name, value := range ic.Values {
				f, err := r.fields.Get(name)
				if err != nil {
					r.log.Info("initial condition for unregistered field", "warning", true, "ic", ic.Name, "field", name)
					continue
				}
				if err := setNodes(f, part.Nodes(), value); err != nil {
					return &eqsys.ConfigError{Op: "initial condition", Target: ic.Name, Err: err}
				}
			}
		}
	}
	return nil
}

// setNodes writes value at nodes into every state of f.
func setNodes(f *field.Field, nodes []int, value []float64) error {
	comps := f.Components()
	if len(value) != 1 && len(value) != comps {
		return fmt.Errorf("%s needs %d components, got %d", f.Name(), comps, len(value))
	}
	for k := 0; k < f.NumStates(); k++ {
		vals := f.Values(field.State(k))
		for _, n := range nodes {
			for c := 0; c < comps; c++ {
				v := value[0]
				if len(value) == comps {
					v = value[c]
				}
				vals[n*comps+c] = v
			}
		}
	}
	return nil
}

// Run initializes the realm and advances the configured number of steps.
func (r *Realm) Run(ctx context.Context) (*Result, error) {
	if err := r.Initialize(); err != nil {
		return nil, err
	}

	steps := r.cfg.TimeIntegrator.Steps
	result := &Result{
		Systems: r.SolvingSystems(),
		Steps:   make([]Step, 0, steps),
		Metrics: make(map[string]float64),
	}
	for _, m := range r.metrics {
		m.Reset()
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		s, err := r.advance()
		if err != nil {
			return result, err
		}
		result.Steps = append(result.Steps, s)
		result.StepsTaken++

		for _, m := range r.metrics {
			m.Observe(s)
		}
		for _, obs := range r.observers {
			obs.OnStep(s)
		}
	}

	result.Timers = r.eqs.DumpEqTime()
	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// RunWithCallback advances until the step count is reached or callback
// returns false.
func (r *Realm) RunWithCallback(ctx context.Context, callback func(Step) bool) error {
	if err := r.Initialize(); err != nil {
		return err
	}
	for i := 0; i < r.cfg.TimeIntegrator.Steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s, err := r.advance()
		if err != nil {
			return err
		}
		if !callback(s) {
			return nil
		}
	}
	return nil
}

func (r *Realm) advance() (Step, error) {
	r.step++
	r.time += r.TimeStep()
	for _, f := range r.fields.Fields() {
		if f.NumStates() > 1 {
			f.RotateStates()
		}
	}

	prepare := []func() error{
		r.eqs.PreTimestepWork,
		r.eqs.PredictState,
		r.eqs.PopulateBoundaryData,
		r.eqs.BoundaryDataToStateData,
		r.eqs.EvaluateProperties,
	}
	for _, fn := range prepare {
		if err := fn(); err != nil {
			return Step{}, fmt.Errorf("step %d: %w", r.step, err)
		}
	}

	var (
		iters     int
		converged bool
	)
	for iters < r.eqs.MaxIterations() && !converged {
		iters++
		var err error
		if converged, err = r.eqs.SolveAndUpdate(); err != nil {
			return Step{}, fmt.Errorf("step %d iteration %d: %w", r.step, iters, err)
		}
	}

	if err := r.eqs.PostConvergedWork(); err != nil {
		return Step{}, fmt.Errorf("step %d: %w", r.step, err)
	}
	if err := r.eqs.ProvideOutput(); err != nil {
		return Step{}, fmt.Errorf("step %d: %w", r.step, err)
	}

	s := Step{
		Index:      r.step,
		Time:       r.time,
		Iterations: iters,
		Converged:  converged,
		SystemNorm: r.eqs.ProvideSystemNorm(),
		Norms:      make(map[string]float64),
	}
	mean, err := r.eqs.ProvideMeanSystemNorm()
	switch {
	case errors.Is(err, eqsys.ErrUndefinedNorm):
		s.MeanNorm = math.NaN()
	case err != nil:
		return Step{}, err
	default:
		s.MeanNorm = mean
	}
	for _, sys := range r.eqs.Members() {
		if !sys.IsWrapper() {
			s.Norms[sys.Name()] = sys.ScaledNorm()
		}
	}

	r.log.V(logging.DEBUG).Info("time step", "step", s.Index, "time", s.Time,
		"iterations", s.Iterations, "converged", s.Converged, "norm", s.SystemNorm)
	return s, nil
}

// SolvingSystems names the members that own a linear system, in member order.
func (r *Realm) SolvingSystems() []string {
	var names []string
	for _, sys := range r.eqs.Members() {
		if !sys.IsWrapper() {
			names = append(names, sys.Name())
		}
	}
	return names
}
