package overset

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

type recordingExchanger struct {
	calls []string
	fail  error
}

func (r *recordingExchanger) Exchange(u FieldUpdate) error {
	r.calls = append(r.calls, u.Field.Name())
	return r.fail
}

var _ = Describe("Driver", func() {
	var (
		meta   *mesh.MetaData
		fields *field.Manager
		rec    *recordingExchanger
		driver *Driver
	)

	BeforeEach(func() {
		var err error
		meta, err = mesh.Grid(mesh.GridOptions{Nx: 4, Ny: 2, Overset: true})
		Expect(err).NotTo(HaveOccurred())
		fields = field.NewManager(meta, 2)
		rec = &recordingExchanger{}
		driver = NewDriver(fields, rec)
	})

	Context("registration", func() {
		It("rejects a field that is not resident", func() {
			other := field.NewManager(meta, 2)
			stray, err := other.Register("pressure", meta.Parts())
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Register(stray, 1, 1)).To(MatchError(ErrFieldNotResident))
			Expect(driver.Register(nil, 1, 1)).To(MatchError(ErrFieldNotResident))
			Expect(driver.Updates()).To(BeEmpty())
		})

		It("rejects a shape that does not match the field", func() {
			vel, err := fields.Register("velocity", meta.Parts())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Register(vel, 1, 3)).To(MatchError(ErrShape))
			Expect(driver.Register(vel, 1, 2)).To(Succeed())
			Expect(driver.Register(vel, 1, 2)).To(Succeed())
			Expect(driver.Register(vel, 2, 1)).To(MatchError(ErrShape))
			Expect(driver.Updates()).To(HaveLen(1))
		})
	})

	Context("execution", func() {
		BeforeEach(func() {
			p, err := fields.Register("pressure", meta.Parts())
			Expect(err).NotTo(HaveOccurred())
			v, err := fields.Register("velocity", meta.Parts())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.Register(v, 1, 2)).To(Succeed())
			Expect(driver.Register(p, 1, 1)).To(Succeed())
		})

		It("runs every update in registration order", func() {
			Expect(driver.Execute()).To(Succeed())
			Expect(rec.calls).To(Equal([]string{"velocity", "pressure"}))
			Expect(driver.Executions()).To(Equal(1))
		})

		It("runs a single field on request", func() {
			p, _ := fields.Get("pressure")
			Expect(driver.ExecuteField(p)).To(Succeed())
			Expect(rec.calls).To(Equal([]string{"pressure"}))
			Expect(driver.Executions()).To(BeZero())

			t, err := fields.Register("temperature", meta.Parts())
			Expect(err).NotTo(HaveOccurred())
			Expect(driver.ExecuteField(t)).To(MatchError(ErrNotRegistered))
		})

		It("stops at the first failing exchange", func() {
			rec.fail = errors.New("lost donor")
			Expect(driver.Execute()).To(MatchError(ContainSubstring("lost donor")))
			Expect(rec.calls).To(HaveLen(1))
		})
	})
})

var _ = Describe("FringeExchanger", func() {
	It("interpolates receptors from their donors", func() {
		meta, err := mesh.Grid(mesh.GridOptions{Nx: 4, Ny: 2, Overset: true})
		Expect(err).NotTo(HaveOccurred())
		fields := field.NewManager(meta, 1)
		vel, err := fields.Register("velocity", meta.Parts())
		Expect(err).NotTo(HaveOccurred())

		vals := vel.Values(field.StateNP1)
		for n := 0; n < meta.NumNodes(); n++ {
			vals[2*n] = float64(n)
			vals[2*n+1] = -float64(n)
		}

		Expect(NewFringeExchanger(meta).Exchange(FieldUpdate{Field: vel, Rows: 1, Cols: 2})).To(Succeed())
		for _, c := range meta.Fringe() {
			want := 0.5*float64(c.Donors[0]) + 0.5*float64(c.Donors[1])
			Expect(vals[2*c.Receptor]).To(BeNumerically("~", want, 1e-12))
			Expect(vals[2*c.Receptor+1]).To(BeNumerically("~", -want, 1e-12))
		}
	})

	It("refuses non-nodal fields", func() {
		meta, err := mesh.Grid(mesh.GridOptions{Nx: 2, Ny: 1, Overset: true})
		Expect(err).NotTo(HaveOccurred())
		fields := field.NewManager(meta, 1)
		vol, err := fields.Register("element_volume", meta.Parts()[:1])
		Expect(err).NotTo(HaveOccurred())
		Expect(NewFringeExchanger(meta).Exchange(FieldUpdate{Field: vol, Rows: 1, Cols: 1})).NotTo(Succeed())
	})
})
