package physics

import (
	"math"

	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

const (
	cMu             = 0.09
	tinyDissipation = 1.0e-12
)

// TurbKineticEnergy transports k with the molecular viscosity and keeps it
// non-negative.
type TurbKineticEnergy struct {
	transport
}

func newTurbKineticEnergy(parent *eqsys.EquationSystems, s eqsys.Settings, o eqsys.Options) *TurbKineticEnergy {
	t := &TurbKineticEnergy{transport: newTransport(parent, s, "TurbKineticEnergy", "turbulent_ke", "turbulent_ke", o)}
	t.gammaField = "viscosity"
	t.AddPostIterAlgorithm(clipAlgorithm(t.Field, 0, math.Inf(1)))
	return t
}

func newTurbKineticEnergySystem(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	var o eqsys.Options
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	return newTurbKineticEnergy(parent, s, o), nil
}

// Dissipation transports omega or epsilon, floored at a small positive value.
type Dissipation struct {
	transport
}

func newDissipation(parent *eqsys.EquationSystems, s eqsys.Settings, o eqsys.Options, eqnType, fieldName string) *Dissipation {
	d := &Dissipation{transport: newTransport(parent, s, eqnType, fieldName, fieldName, o)}
	d.gammaField = "viscosity"
	d.AddPostIterAlgorithm(clipAlgorithm(d.Field, tinyDissipation, math.Inf(1)))
	return d
}

// twoEquation is the common shape of the k-omega and k-epsilon wrappers:
// solve k, solve the dissipation, then refresh the turbulent viscosity.
type twoEquation struct {
	wrapper
	tke         *TurbKineticEnergy
	dissipation *Dissipation
	eddy        func(k, d float64) float64
	tvisc       *field.Field
}

func newTwoEquation(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any, eqnType, dissipationType, dissipationField string) (twoEquation, error) {
	var o eqsys.Options
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return twoEquation{}, err
	}
	m := twoEquation{wrapper: newWrapper(parent, s, eqnType, o)}
	m.tke = newTurbKineticEnergy(parent, s, childOptions(o, "TurbKineticEnergyEQS"))
	m.dissipation = newDissipation(parent, s, childOptions(o, dissipationType+"EQS"), dissipationType, dissipationField)
	m.children = []eqsys.System{m.tke, m.dissipation}
	return m, nil
}

func (m *twoEquation) TurbKineticEnergy() *TurbKineticEnergy { return m.tke }
func (m *twoEquation) Dissipation() *Dissipation             { return m.dissipation }

func (m *twoEquation) RegisterNodalFields(parts []*mesh.Part) error {
	f, err := m.Parent().Realm().Fields().Register("turbulent_viscosity", parts)
	if err != nil {
		return err
	}
	m.tvisc = f
	return nil
}

func (m *twoEquation) SolveAndUpdate() error {
	if err := m.wrapper.SolveAndUpdate(); err != nil {
		return err
	}
	return m.updateViscosity()
}

func (m *twoEquation) PopulateDerivedQuantities() error {
	return m.updateViscosity()
}

func (m *twoEquation) updateViscosity() error {
	k, d := m.tke.Field(), m.dissipation.Field()
	if m.tvisc == nil || k == nil || d == nil {
		return nil
	}
	kv, dv := k.Values(field.StateNP1), d.Values(field.StateNP1)
	mut := m.tvisc.Values(field.StateNP1)
	for n := range mut {
		mut[n] = m.eddy(kv[n], math.Max(dv[n], tinyDissipation))
	}
	return nil
}

// ShearStressTransport is the SST k-omega model.
type ShearStressTransport struct {
	twoEquation
}

func newShearStressTransport(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	m, err := newTwoEquation(parent, s, opts, "ShearStressTransport", "SpecificDissipationRate", "specific_dissipation_rate")
	if err != nil {
		return nil, err
	}
	// no strain-rate limiter: the mesh carries no geometry
	m.eddy = func(k, omega float64) float64 { return k / omega }
	return &ShearStressTransport{twoEquation: m}, nil
}

// WilcoxKOmega is the standard k-omega model.
type WilcoxKOmega struct {
	twoEquation
}

func newWilcoxKOmega(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	m, err := newTwoEquation(parent, s, opts, "WilcoxKOmega", "SpecificDissipationRate", "specific_dissipation_rate")
	if err != nil {
		return nil, err
	}
	m.eddy = func(k, omega float64) float64 { return k / omega }
	return &WilcoxKOmega{twoEquation: m}, nil
}

// ChienKEpsilon is the low-Reynolds k-epsilon model.
type ChienKEpsilon struct {
	twoEquation
}

func newChienKEpsilon(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	m, err := newTwoEquation(parent, s, opts, "ChienKEpsilon", "TotalDissipationRate", "total_dissipation_rate")
	if err != nil {
		return nil, err
	}
	m.eddy = func(k, eps float64) float64 { return cMu * k * k / eps }
	return &ChienKEpsilon{twoEquation: m}, nil
}
