package physics

import (
	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
)

type lowMachOptions struct {
	eqsys.Options        `mapstructure:",squash"`
	ElementContinuityEqs bool `mapstructure:"element_continuity_eqs"`
}

// LowMachEOM couples momentum and continuity. Momentum is solved first so
// continuity sees the new velocity in the same iteration.
type LowMachEOM struct {
	wrapper
	momentum   *Momentum
	continuity *Continuity
}

func newLowMachEOM(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	var o lowMachOptions
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	m := &LowMachEOM{wrapper: newWrapper(parent, s, "LowMachEOM", o.Options)}
	m.momentum = newMomentum(parent, s, childOptions(o.Options, "MomentumEQS"))
	m.continuity = newContinuity(parent, s, childOptions(o.Options, "ContinuityEQS"), o.ElementContinuityEqs)
	m.children = []eqsys.System{m.momentum, m.continuity}
	return m, nil
}

func (m *LowMachEOM) Momentum() *Momentum     { return m.momentum }
func (m *LowMachEOM) Continuity() *Continuity { return m.continuity }

// Momentum transports velocity with the nodal viscosity. Walls without a
// velocity value are no-slip.
type Momentum struct {
	transport
}

func newMomentum(parent *eqsys.EquationSystems, s eqsys.Settings, o eqsys.Options) *Momentum {
	m := &Momentum{transport: newTransport(parent, s, "MomentumEQS", "velocity", "velocity", o)}
	m.gammaField = "viscosity"
	m.bcValue = m.velocity
	return m
}

func (m *Momentum) velocity(bc config.BoundaryCondition) ([]float64, bool) {
	if v, ok := bc.Values["velocity"]; ok {
		return v, true
	}
	if bc.Kind == config.WallBC {
		return []float64{0}, true
	}
	return nil, false
}

// Continuity is a steady pressure diffusion pinned by open boundaries. The
// element_continuity_eqs flag is recorded and logged; assembly is
// edge-based either way.
type Continuity struct {
	transport
	elementBased bool
}

func newContinuity(parent *eqsys.EquationSystems, s eqsys.Settings, o eqsys.Options, elementBased bool) *Continuity {
	c := &Continuity{
		transport:    newTransport(parent, s, "ContinuityEQS", "pressure", "pressure", o),
		elementBased: elementBased,
	}
	c.steady = true
	return c
}

// ElementBased reports whether element_continuity_eqs was requested.
func (c *Continuity) ElementBased() bool { return c.elementBased }

func (c *Continuity) Initialize() error {
	c.Parent().Logger().V(logging.DEBUG).Info("continuity discretization", "system", c.Name(), "elementBased", c.elementBased)
	return c.transport.Initialize()
}
