package physics

import (
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
)

const DefaultVOFDiffusivity = 1.0e-3

type vofOptions struct {
	eqsys.Options `mapstructure:",squash"`
	Diffusivity   float64 `mapstructure:"diffusivity"`
}

// VolumeOfFluid transports the liquid fraction. The fraction is bounded to
// [0, 1] in every time level once initial conditions are applied, and in
// the current level before and after every solve.
type VolumeOfFluid struct {
	transport
}

func newVolumeOfFluid(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	o := vofOptions{Diffusivity: DefaultVOFDiffusivity}
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	v := &VolumeOfFluid{transport: newTransport(parent, s, "VolumeOfFluid", "volume_of_fluid", "volume_of_fluid", o.Options)}
	v.gamma = o.Diffusivity
	v.AddPreIterAlgorithm(clipAlgorithm(v.Field, 0, 1))
	v.AddPostIterAlgorithm(clipAlgorithm(v.Field, 0, 1))
	return v, nil
}

func (v *VolumeOfFluid) InitialWork() error {
	if err := v.transport.InitialWork(); err != nil {
		return err
	}
	if n := clipStates(v.field, 0, 1); n > 0 {
		v.Parent().Logger().Info("initial volume fraction clipped", "system", v.Name(), "values", n)
	}
	return nil
}
