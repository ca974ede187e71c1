// Package physics provides the concrete equation systems and the default
// registry that maps physics block tags to them.
//
// Every solving system is a [transport] equation on one nodal field,
//
//	(phi - phi_n)/dt = div(gamma grad phi) + source
//
// assembled on the mesh edge graph and solved for the increment. Wrappers
// own no linear system and drive their children:
//
//   - LowMachEOM: momentum (velocity) then continuity (pressure)
//   - ShearStressTransport, WilcoxKOmega: turbulent_ke then specific_dissipation_rate
//   - ChienKEpsilon: turbulent_ke then total_dissipation_rate
//
// The remaining tags (Enthalpy, TurbKineticEnergy, WallDistance,
// VolumeOfFluid, HeatConduction) are single transport systems with their
// own pre/post work.
//
// Use [NewRegistry] to obtain a registry with every tag bound:
//
//	reg := physics.NewRegistry()
//	err := eqs.Load(cfg.EquationSystems, reg)
package physics
