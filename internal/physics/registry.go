package physics

import "github.com/saitoasukakawaii/nalu-wind/internal/eqsys"

// NewRegistry returns a registry with every physics block tag bound.
func NewRegistry() *eqsys.Registry {
	r := eqsys.NewRegistry()

	r.Register("LowMachEOM", newLowMachEOM)
	r.Register("Enthalpy", newEnthalpy)
	r.Register("HeatConduction", newHeatConduction)
	r.Register("VolumeOfFluid", newVolumeOfFluid)
	r.Register("WallDistance", newWallDistance)

	r.Register("TurbKineticEnergy", newTurbKineticEnergySystem)
	r.Register("ShearStressTransport", newShearStressTransport)
	r.Register("WilcoxKOmega", newWilcoxKOmega)
	r.Register("ChienKEpsilon", newChienKEpsilon)

	return r
}
