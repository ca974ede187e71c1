package eqsys

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/linsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

var _ = Describe("Registration", func() {
	var (
		realm *fakeRealm
		calls []string
		buf   *bytes.Buffer
		eqs   *EquationSystems
	)

	BeforeEach(func() {
		calls = nil
		buf = &bytes.Buffer{}
		realm = newFakeRealm(false)
		eqs = New(realm, WithLogger(logging.NewWriter(buf)))
		Expect(eqs.Load(deck(block("Probe", "A"), block("Probe", "B")), testRegistry(&calls))).To(Succeed())
	})

	probeAt := func(i int) *probe { return eqs.Members()[i].(*probe) }

	wall := func(target string) config.BoundaryCondition {
		return config.BoundaryCondition{Kind: config.WallBC, Name: "bc_" + target, Target: target}
	}

	Context("surface boundary conditions", func() {
		It("hands every subset to every capable member", func() {
			Expect(eqs.RegisterBoundaryCondition(wall("bottom"))).To(Succeed())
			Expect(probeAt(0).walls).To(Equal([]string{"bottom_line_2"}))
			Expect(probeAt(1).walls).To(Equal([]string{"bottom_line_2"}))
		})

		It("skips members without the capability", func() {
			Expect(eqs.RegisterBoundaryCondition(config.BoundaryCondition{Kind: config.InflowBC, Target: "left"})).To(Succeed())
			Expect(probeAt(0).walls).To(BeEmpty())
		})

		It("fails on a missing part", func() {
			err := eqs.RegisterBoundaryCondition(wall("nowhere"))
			Expect(errors.Is(err, mesh.ErrPartNotFound)).To(BeTrue())
			var ce *ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Target).To(Equal("nowhere"))
		})

		It("fails when the target is not a side", func() {
			err := eqs.RegisterBoundaryCondition(wall("block_1"))
			Expect(errors.Is(err, mesh.ErrWrongRank)).To(BeTrue())
			var re *mesh.RankError
			Expect(errors.As(err, &re)).To(BeTrue())
			Expect(re.Want).To(Equal(mesh.EdgeRank))
			Expect(probeAt(0).walls).To(BeEmpty())
		})

		It("rejects an unknown kind", func() {
			err := eqs.RegisterBoundaryCondition(config.BoundaryCondition{Kind: "moat", Name: "x"})
			var ce *ConfigError
			Expect(errors.As(err, &ce)).To(BeTrue())
		})
	})

	Context("volume registration", func() {
		It("requires element parts", func() {
			Expect(eqs.RegisterElementFields([]string{"block_1"})).To(Succeed())
			Expect(realm.Fields().Exists("element_volume")).To(BeTrue())

			Expect(errors.Is(eqs.RegisterInteriorAlgorithm([]string{"left"}), mesh.ErrWrongRank)).To(BeTrue())
			Expect(errors.Is(eqs.RegisterElementFields([]string{"nope"}), mesh.ErrPartNotFound)).To(BeTrue())
		})

		It("registers the nodal volume", func() {
			Expect(eqs.RegisterNodalFields([]string{"block_1"})).To(Succeed())
			Expect(realm.Fields().Exists("dual_nodal_volume")).To(BeTrue())
		})
	})

	Context("periodic pairs", func() {
		It("warns when subset counts differ but still pairs the surfaces", func() {
			meta := realm.MetaData()
			slave, err := meta.DeclarePart("slave", mesh.EdgeRank, mesh.TopoLine2, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = meta.DeclareSubset(slave, "slave_a", mesh.EdgeRank, mesh.TopoLine2, []int{0})
			Expect(err).NotTo(HaveOccurred())
			_, err = meta.DeclareSubset(slave, "slave_b", mesh.EdgeRank, mesh.TopoLine2, []int{1})
			Expect(err).NotTo(HaveOccurred())

			bc := config.BoundaryCondition{Kind: config.PeriodicBC, Name: "p", Targets: []string{"left", "slave"}}
			Expect(eqs.RegisterBoundaryCondition(bc)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("do not match in size"))
			Expect(meta.Periodic()).To(HaveLen(1))
		})

		It("needs exactly two targets", func() {
			bc := config.BoundaryCondition{Kind: config.PeriodicBC, Name: "p", Targets: []string{"left"}}
			Expect(eqs.RegisterBoundaryCondition(bc)).To(HaveOccurred())
		})
	})

	Context("non-conformal interfaces", func() {
		It("fails when an opposing part is missing", func() {
			bc := config.BoundaryCondition{Kind: config.NonConformalBC, Current: []string{"left"}, Opposing: []string{"ghost"}}
			Expect(errors.Is(eqs.RegisterBoundaryCondition(bc), mesh.ErrPartNotFound)).To(BeTrue())
		})

		It("warns on a count mismatch and records the interface", func() {
			bc := config.BoundaryCondition{Kind: config.NonConformalBC, Current: []string{"left", "right"}, Opposing: []string{"top"}}
			Expect(eqs.RegisterBoundaryCondition(bc)).To(Succeed())
			Expect(buf.String()).To(ContainSubstring("part counts differ"))
			Expect(realm.MetaData().NonConformal()).To(HaveLen(1))
		})
	})

	It("only logs surface post-processing problems", func() {
		pp := config.PostProcessing{Name: "pp", Type: "surface", Targets: []string{"ghost", "bottom"}}
		Expect(eqs.RegisterSurfacePPAlgorithm(pp)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("no part with name"))
	})
})

var _ = Describe("Base", func() {
	var eqs *EquationSystems

	BeforeEach(func() {
		eqs = New(newFakeRealm(false))
		Expect(eqs.Load(deck(block("Probe", "A")), testRegistry(new([]string)))).To(Succeed())
	})

	It("blends an increment into a field", func() {
		b := NewBase(eqs, eqs.Settings(), "Probe", "probe", Options{})
		f := []float64{1, 2}
		b.SolutionUpdate(0.5, []float64{10, 20}, 2, f)
		Expect(f).To(Equal([]float64{7, 14}))
	})

	It("builds the linear system named by the solver block", func() {
		b := NewBase(eqs, eqs.Settings(), "Probe", "probe", Options{Name: "myProbe"})
		Expect(b.CreateLinearSystem(3)).To(Succeed())
		Expect(b.IsWrapper()).To(BeFalse())
		Expect(b.LinearSystem().Name()).To(Equal("myProbe"))
		Expect(b.LinearSystem().Size()).To(Equal(3))
	})

	It("fails without a solver block for its dof", func() {
		b := NewBase(eqs, eqs.Settings(), "Enthalpy", "enthalpy", Options{})
		Expect(errors.Is(b.CreateLinearSystem(3), ErrMissingSolverBlock)).To(BeTrue())
	})

	It("tracks linear iteration statistics", func() {
		b := NewBase(eqs, eqs.Settings(), "Probe", "probe", Options{})
		b.SetLinearSystem(&stubLinsys{})
		delta := make([]float64, 1)
		for i := 0; i < 3; i++ {
			Expect(b.AssembleAndSolve(func(linsys.LinearSystem) error { return nil }, delta)).To(Succeed())
		}
		Expect(b.Stats().LinearSolves).To(Equal(3))
		Expect(b.Stats().AvgLinearIterations).To(Equal(1.0))
	})
})
