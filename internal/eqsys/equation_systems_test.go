package eqsys

import (
	"bytes"
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

func ptr[T any](v T) *T { return &v }

// testRegistry knows "Probe" (a solving system) and "Group" (a wrapper with
// two probe children named <name>_a and <name>_b).
func testRegistry(calls *[]string) *Registry {
	reg := NewRegistry()
	reg.Register("Probe", func(parent *EquationSystems, s Settings, opts map[string]any) (System, error) {
		var o Options
		if err := DecodeOptions(opts, &o); err != nil {
			return nil, err
		}
		p := &probe{Base: NewBase(parent, s, "Probe", "probe", o), calls: calls, converged: true}
		p.SetLinearSystem(&stubLinsys{})
		return p, nil
	})
	reg.Register("Group", func(parent *EquationSystems, s Settings, opts map[string]any) (System, error) {
		var o Options
		if err := DecodeOptions(opts, &o); err != nil {
			return nil, err
		}
		g := &group{Base: NewBase(parent, s, "WrapperGroup", "none", o)}
		g.children = []System{
			newProbe(parent, g.Name()+"_a", calls),
			newProbe(parent, g.Name()+"_b", calls),
		}
		return g, nil
	})
	return reg
}

func deck(blocks ...config.SystemBlock) config.EquationSystems {
	return config.EquationSystems{
		Name:                      "theEqSys",
		MaxIterations:             2,
		SolverSystemSpecification: map[string]string{"probe": "solve"},
		Systems:                   blocks,
	}
}

func block(tag, name string) config.SystemBlock {
	return config.SystemBlock{Type: tag, Options: map[string]any{"name": name}}
}

var _ = Describe("EquationSystems", func() {
	var (
		realm *fakeRealm
		calls []string
		buf   *bytes.Buffer
		eqs   *EquationSystems
		obs   *recordingObserver
	)

	build := func(hasOverset bool, opts ...Option) {
		realm = newFakeRealm(hasOverset)
		buf = &bytes.Buffer{}
		obs = &recordingObserver{}
		opts = append([]Option{WithLogger(logging.NewWriter(buf)), WithObserver(obs)}, opts...)
		eqs = New(realm, opts...)
	}

	probeAt := func(i int) *probe { return eqs.Members()[i].(*probe) }

	BeforeEach(func() {
		calls = nil
		build(false)
	})

	Context("loading", func() {
		It("builds one system per physics block in declaration order", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Group", "G"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())

			names := func(systems []System) []string {
				out := make([]string, 0, len(systems))
				for _, s := range systems {
					out = append(out, s.Name())
				}
				return out
			}
			Expect(eqs.Name()).To(Equal("theEqSys"))
			Expect(eqs.MaxIterations()).To(Equal(2))
			Expect(names(eqs.Systems())).To(Equal([]string{"A", "G", "B"}))
			Expect(names(eqs.Members())).To(Equal([]string{"A", "G", "G_a", "G_b", "B"}))
		})

		It("rejects an unknown physics tag", func() {
			err := eqs.Load(deck(block("Probe", "A"), block("Bogus", "x")), testRegistry(&calls))
			Expect(errors.Is(err, ErrUnknownSystem)).To(BeTrue())
			var ce *ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
		})

		It("rejects a deck without a solver specification", func() {
			cfg := deck(block("Probe", "A"))
			cfg.SolverSystemSpecification = nil
			err := eqs.Load(cfg, testRegistry(&calls))
			Expect(errors.Is(err, config.ErrMissingKey)).To(BeTrue())
		})

		It("reports unknown block options", func() {
			b := config.SystemBlock{Type: "Probe", Options: map[string]any{"colour": "red"}}
			Expect(eqs.Load(deck(b), testRegistry(&calls))).To(HaveOccurred())
		})

		It("ignores overset keys when the realm has no overset topology", func() {
			cfg := deck(block("Probe", "A"))
			cfg.DecoupledOversetSolve = ptr(true)
			cfg.NumOversetCorrectors = ptr(3)
			Expect(eqs.Load(cfg, testRegistry(&calls))).To(Succeed())

			Expect(eqs.Settings().DecoupledOverset).To(BeFalse())
			Expect(eqs.Settings().NumOversetIters).To(Equal(1))
			Expect(probeAt(0).IsDecoupled()).To(BeFalse())
			Expect(probeAt(0).OversetSweeps()).To(Equal(1))
		})

		It("applies global overset keys and per-system overrides on overset realms", func() {
			build(true)
			cfg := deck(
				block("Probe", "A"),
				config.SystemBlock{Type: "Probe", Options: map[string]any{
					"name": "B", "decoupled_overset_solve": false, "num_overset_correctors": 5,
				}},
			)
			cfg.DecoupledOversetSolve = ptr(true)
			cfg.NumOversetCorrectors = ptr(3)
			Expect(eqs.Load(cfg, testRegistry(&calls))).To(Succeed())

			Expect(probeAt(0).IsDecoupled()).To(BeTrue())
			Expect(probeAt(0).OversetSweeps()).To(Equal(3))
			Expect(probeAt(1).IsDecoupled()).To(BeFalse())
			Expect(probeAt(1).NumOversetIters()).To(Equal(5))
			Expect(probeAt(1).OversetSweeps()).To(Equal(1))
		})
	})

	Context("solver blocks", func() {
		BeforeEach(func() {
			Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(&calls))).To(Succeed())
		})

		It("maps a dof to its solver block", func() {
			name, err := eqs.SolverBlockName("probe")
			Expect(err).NotTo(HaveOccurred())
			Expect(name).To(Equal("solve"))
		})

		It("fails for an unmapped dof", func() {
			_, err := eqs.SolverBlockName("velocity")
			Expect(errors.Is(err, ErrMissingSolverBlock)).To(BeTrue())
			Expect(buf.String()).To(ContainSubstring("missed equation solver block specification"))
		})
	})

	Context("the nonlinear iteration", func() {
		It("runs the per-system triple, legacy pass and side tasks in order", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
			Expect(eqs.AddPreIterTask(AlgorithmFunc(func() error { calls = append(calls, "preTask"); return nil }))).To(Succeed())
			Expect(eqs.AddPostIterTask(AlgorithmFunc(func() error { calls = append(calls, "postTask"); return nil }))).To(Succeed())

			converged, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeTrue())

			want := []string{
				"preTask",
				"A.pre", "A.solve", "A.post",
				"B.pre", "B.solve", "B.post",
				"A.dep", "B.dep",
				"postTask",
				"A.converged", "B.converged",
			}
			Expect(cmp.Diff(want, calls)).To(BeEmpty())
			Expect(obs.solved).To(Equal([]string{"A", "B"}))
			Expect(obs.phases).To(Equal([]Phase{PhasePreIter, PhasePerSystemSolve, PhasePostIter, PhaseConverged, PhaseIdle}))
		})

		It("lets wrappers drive their children", func() {
			Expect(eqs.Load(deck(block("Group", "G")), testRegistry(&calls))).To(Succeed())
			_, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())

			want := []string{
				"G_a.pre", "G_a.solve", "G_a.post",
				"G_b.pre", "G_b.solve", "G_b.post",
				"G_a.dep", "G_b.dep",
				"G_a.converged", "G_b.converged",
			}
			Expect(cmp.Diff(want, calls)).To(BeEmpty())
		})

		It("asks every member for convergence even after one fails", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
			probeAt(0).converged = false

			converged, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(converged).To(BeFalse())
			Expect(calls).To(ContainElements("A.converged", "B.converged"))
			Expect(obs.phases).To(ContainElement(PhaseNotConverged))
		})

		It("stops at the first failing system", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
			boom := errors.New("boom")
			probeAt(0).solve = func() error { return boom }

			_, err := eqs.SolveAndUpdate()
			Expect(errors.Is(err, boom)).To(BeTrue())
			Expect(calls).NotTo(ContainElement("B.pre"))
			Expect(obs.phases[len(obs.phases)-1]).To(Equal(PhaseIdle))
		})

		It("freezes the side task lists once iterating", func() {
			Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(&calls))).To(Succeed())
			_, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())

			noop := AlgorithmFunc(func() error { return nil })
			Expect(eqs.AddPreIterTask(noop)).To(MatchError(ErrFrozen))
			Expect(eqs.AddPostIterTask(noop)).To(MatchError(ErrFrozen))
		})

		It("shows a later system's update to earlier systems only on the next iteration", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
			f, err := realm.Fields().Register("pressure", nil)
			Expect(err).NotTo(HaveOccurred())
			shared := f.Values(field.StateNP1)

			var aSaw, bSaw []float64
			iter := 0.0
			a, b := probeAt(0), probeAt(1)
			a.pre = func() { aSaw = append(aSaw, shared[1]) }
			a.solve = func() error { shared[0] = iter; return nil }
			b.pre = func() { bSaw = append(bSaw, shared[0]) }
			b.solve = func() error { shared[1] = iter; return nil }

			for iter = 1; iter <= 2; iter++ {
				_, err := eqs.SolveAndUpdate()
				Expect(err).NotTo(HaveOccurred())
			}
			Expect(bSaw).To(Equal([]float64{1, 2}))
			Expect(aSaw).To(Equal([]float64{0, 1}))
		})
	})

	Context("overset", func() {
		load := func() {
			Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(&calls))).To(Succeed())
			f, err := realm.Fields().Register("pressure", []*mesh.Part{})
			Expect(err).NotTo(HaveOccurred())
			Expect(eqs.RegisterOversetFieldUpdate(f, 1, 1)).To(Succeed())
		}

		It("exchanges fringe values before any system runs", func() {
			build(true, WithExchanger(&recordingExchanger{calls: &calls}))
			load()

			_, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(cmp.Diff([]string{"overset.pressure", "A.pre"}, calls[:2])).To(BeEmpty())
			Expect(eqs.Overset().Executions()).To(Equal(1))
		})

		It("never exchanges without overset topology", func() {
			build(false, WithExchanger(&recordingExchanger{calls: &calls}))
			load()

			_, err := eqs.SolveAndUpdate()
			Expect(err).NotTo(HaveOccurred())
			Expect(calls).NotTo(ContainElement("overset.pressure"))
			Expect(eqs.Overset().Executions()).To(BeZero())
		})

		It("refuses fields the realm does not own", func() {
			Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(&calls))).To(Succeed())
			err := eqs.RegisterOversetFieldUpdate(nil, 1, 1)
			var ce *ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
		})

		DescribeTable("AllSystemsDecoupled",
			func(hasOverset, a, b, want bool) {
				build(hasOverset)
				cfg := deck(
					config.SystemBlock{Type: "Probe", Options: map[string]any{"name": "A", "decoupled_overset_solve": a}},
					config.SystemBlock{Type: "Probe", Options: map[string]any{"name": "B", "decoupled_overset_solve": b}},
				)
				Expect(eqs.Load(cfg, testRegistry(&calls))).To(Succeed())
				Expect(eqs.AllSystemsDecoupled()).To(Equal(want))
			},
			Entry("no overset", false, true, true, false),
			Entry("overset, all decoupled", true, true, true, true),
			Entry("overset, one coupled", true, true, false, false),
			Entry("overset, none decoupled", true, false, false, false),
		)

		It("logs the strategy of every non-wrapper member", func() {
			build(true)
			cfg := deck(block("Group", "G"))
			cfg.DecoupledOversetSolve = ptr(true)
			Expect(eqs.Load(cfg, testRegistry(&calls))).To(Succeed())
			buf.Reset()

			Expect(eqs.Initialize()).To(Succeed())
			out := buf.String()
			Expect(out).To(ContainSubstring("overset solution strategy"))
			Expect(out).To(ContainSubstring("decoupled"))
			Expect(out).NotTo(ContainSubstring("WrapperGroup"))
		})
	})

	Context("norms", func() {
		It("reports the largest scaled norm", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B"), block("Probe", "C")), testRegistry(&calls))).To(Succeed())
			for i, n := range []float64{0.1, 5.0, 2.0} {
				probeAt(i).SetLinearSystem(&stubLinsys{scaled: n})
			}
			Expect(eqs.ProvideSystemNorm()).To(Equal(5.0))
		})

		It("reports zero with no systems", func() {
			Expect(eqs.ProvideSystemNorm()).To(BeZero())
		})

		It("divides summed norms by summed increments", func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
			probeAt(0).SetLinearSystem(&stubLinsys{norm: 1, increment: 0.5})
			probeAt(1).SetLinearSystem(&stubLinsys{norm: 2, increment: 0.5})

			mean, err := eqs.ProvideMeanSystemNorm()
			Expect(err).NotTo(HaveOccurred())
			Expect(mean).To(BeNumerically("~", 3.0, 1e-12))
		})

		It("refuses a mean norm without increments", func() {
			Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(&calls))).To(Succeed())
			probeAt(0).SetLinearSystem(&stubLinsys{norm: 1})

			_, err := eqs.ProvideMeanSystemNorm()
			Expect(err).To(MatchError(ErrUndefinedNorm))
		})

		It("treats wrappers as converged whatever the tolerance", func() {
			g := &group{Base: NewBase(eqs, eqs.Settings(), "WrapperGroup", "none", Options{ConvergenceTolerance: 1e-300})}
			Expect(g.IsWrapper()).To(BeTrue())
			Expect(g.SystemIsConverged()).To(BeTrue())
			Expect(g.ScaledNorm()).To(BeZero())

			s := &plain{Base: NewBase(eqs, eqs.Settings(), "Plain", "probe", Options{})}
			s.SetLinearSystem(&stubLinsys{scaled: 5})
			Expect(s.SystemIsConverged()).To(BeFalse())
			s.SetLinearSystem(&stubLinsys{scaled: DefaultConvergenceTolerance})
			Expect(s.SystemIsConverged()).To(BeTrue())
		})
	})

	Context("per-step hooks", func() {
		BeforeEach(func() {
			Expect(eqs.Load(deck(block("Probe", "A"), block("Group", "G")), testRegistry(&calls))).To(Succeed())
		})

		It("visits implementing members in order", func() {
			Expect(eqs.PredictState()).To(Succeed())
			Expect(eqs.PostConvergedWork()).To(Succeed())
			Expect(eqs.ProvideOutput()).To(Succeed())

			want := []string{
				"A.predict", "G_a.predict", "G_b.predict",
				"A.postConverged", "G_a.postConverged", "G_b.postConverged",
				"A.output", "G_a.output", "G_b.output",
			}
			Expect(cmp.Diff(want, calls)).To(BeEmpty())
		})

		It("runs boundary data algorithms and notifies their owners", func() {
			var ran []string
			probeAt(0).AddBoundaryDataAlgorithm(AlgorithmFunc(func() error { ran = append(ran, "data"); return nil }))
			probeAt(0).AddBoundaryDataMapAlgorithm(AlgorithmFunc(func() error { ran = append(ran, "map"); return nil }))

			Expect(eqs.PopulateBoundaryData()).To(Succeed())
			Expect(eqs.BoundaryDataToStateData()).To(Succeed())
			Expect(eqs.PostExternalDataTransferWork()).To(Succeed())

			Expect(ran).To(Equal([]string{"data", "map"}))
			Expect(calls).To(Equal([]string{"A.externalTransfer"}))
		})

		It("reports timers for every member", func() {
			Expect(eqs.Initialize()).To(Succeed())
			reports := eqs.DumpEqTime()
			Expect(reports).To(HaveLen(4))
			Expect(reports[1].EqnType).To(Equal("WrapperGroup"))
			Expect(buf.String()).To(ContainSubstring("timing"))
		})
	})
})
