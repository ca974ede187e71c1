package physics

import (
	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
)

const (
	DefaultMinimumTemperature = 250.0
	DefaultMaximumTemperature = 3000.0
)

type enthalpyOptions struct {
	eqsys.Options            `mapstructure:",squash"`
	MinimumTemperature       float64 `mapstructure:"minimum_temperature"`
	MaximumTemperature       float64 `mapstructure:"maximum_temperature"`
	OutputClippingDiagnostic *bool   `mapstructure:"output_clipping_diagnostic"`
}

// Enthalpy transports h = cp*T with the thermal conductivity. Boundary and
// initial data are given as temperature.
type Enthalpy struct {
	transport
	tMin, tMax float64
	diagnostic bool
	clipped    int
}

func newEnthalpy(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	o := enthalpyOptions{
		MinimumTemperature: DefaultMinimumTemperature,
		MaximumTemperature: DefaultMaximumTemperature,
	}
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	e := &Enthalpy{
		transport:  newTransport(parent, s, "Enthalpy", "enthalpy", "enthalpy", o.Options),
		tMin:       o.MinimumTemperature,
		tMax:       o.MaximumTemperature,
		diagnostic: o.OutputClippingDiagnostic == nil || *o.OutputClippingDiagnostic,
	}
	e.gammaField = "thermal_conductivity"
	e.aux = []string{"temperature", "specific_heat"}
	e.bcValue = func(bc config.BoundaryCondition) ([]float64, bool) {
		v, ok := bc.Values["temperature"]
		return v, ok
	}
	e.target = func(node int, temp float64) float64 { return e.cp(node) * temp }
	return e, nil
}

func (e *Enthalpy) TemperatureBounds() (lo, hi float64) { return e.tMin, e.tMax }

// Clipped is the number of nodes clipped by the last temperature update.
func (e *Enthalpy) Clipped() int { return e.clipped }

func (e *Enthalpy) cp(node int) float64 {
	f, err := e.fields().Get("specific_heat")
	if err != nil {
		return 1
	}
	if v := f.Values(field.StateNP1)[node]; v > 0 {
		return v
	}
	return 1
}

// InitialWork sets every enthalpy state from the temperature field, then
// applies any enthalpy user functions.
func (e *Enthalpy) InitialWork() error {
	temp, err := e.fields().Get("temperature")
	if err != nil {
		return err
	}
	for k := 0; k < e.field.NumStates() && k < temp.NumStates(); k++ {
		h := e.field.Values(field.State(k))
		t := temp.Values(field.State(k))
		for n := range h {
			h[n] = e.cp(n) * t[n]
		}
	}
	return e.transport.InitialWork()
}

func (e *Enthalpy) PopulateDerivedQuantities() error {
	_, err := e.updateTemperature()
	return err
}

// PostIterWorkDep recovers temperature from enthalpy, clipping it to the
// configured bounds.
//
// Deprecated: runs in the legacy pass after all systems have solved.
func (e *Enthalpy) PostIterWorkDep() error {
	n, err := e.updateTemperature()
	if err != nil {
		return err
	}
	if n > 0 && e.diagnostic {
		e.Parent().Logger().Info("temperature clipped", "system", e.Name(), "nodes", n, "min", e.tMin, "max", e.tMax)
	}
	return nil
}

func (e *Enthalpy) updateTemperature() (int, error) {
	temp, err := e.fields().Get("temperature")
	if err != nil {
		return 0, err
	}
	h := e.field.Values(field.StateNP1)
	t := temp.Values(field.StateNP1)
	for n := range t {
		t[n] = h[n] / e.cp(n)
	}
	e.clipped = clip(t, e.tMin, e.tMax)
	return e.clipped, nil
}
