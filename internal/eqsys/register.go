package eqsys

import (
	"fmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// lookup resolves name, failing when no part carries it.
func (e *EquationSystems) lookup(op, name string) (*mesh.Part, error) {
	part, ok := e.realm.MetaData().GetPart(name)
	if !ok {
		return nil, configErr(op, name, fmt.Errorf("%w: %q", mesh.ErrPartNotFound, name))
	}
	return part, nil
}

// lookupRank resolves name and checks its primary rank.
func (e *EquationSystems) lookupRank(op, name string, rank mesh.Rank) (*mesh.Part, error) {
	part, err := e.realm.MetaData().Resolve(name, rank)
	if err != nil {
		return nil, configErr(op, name, err)
	}
	return part, nil
}

func (e *EquationSystems) lookupAll(op string, names []string) ([]*mesh.Part, error) {
	parts := make([]*mesh.Part, 0, len(names))
	for _, name := range names {
		p, err := e.lookup(op, name)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// sideParts expands a named surface into its subsets and checks each one
// has the side rank.
func (e *EquationSystems) sideParts(op, name string) ([]*mesh.Part, error) {
	part, err := e.lookup(op, name)
	if err != nil {
		return nil, err
	}
	side := e.realm.MetaData().SideRank()
	subsets := part.Expand()
	for _, p := range subsets {
		if p.Rank() != side {
			return nil, configErr(op, name, &mesh.RankError{Part: p.Name(), Want: side, Got: p.Rank()})
		}
	}
	return subsets, nil
}

// RegisterNodalFields registers the nodal volume on the named parts and
// fans the parts out to every member.
func (e *EquationSystems) RegisterNodalFields(targets []string) error {
	parts, err := e.lookupAll("register nodal fields", targets)
	if err != nil {
		return err
	}
	if _, err := e.realm.Fields().Register("dual_nodal_volume", parts); err != nil {
		return err
	}
	return visit(e.members, func(r NodalFieldRegistrar) error { return r.RegisterNodalFields(parts) })
}

func (e *EquationSystems) RegisterEdgeFields(targets []string) error {
	parts, err := e.lookupAll("register edge fields", targets)
	if err != nil {
		return err
	}
	return visit(e.members, func(r EdgeFieldRegistrar) error { return r.RegisterEdgeFields(parts) })
}

// RegisterElementFields requires element-rank parts and registers the
// element volume on them.
func (e *EquationSystems) RegisterElementFields(targets []string) error {
	parts := make([]*mesh.Part, 0, len(targets))
	for _, name := range targets {
		p, err := e.lookupRank("register element fields", name, mesh.ElementRank)
		if err != nil {
			return err
		}
		parts = append(parts, p)
	}
	for _, p := range parts {
		if err := visit(e.members, func(r ElementFieldRegistrar) error { return r.RegisterElementFields(p, p.Topology()) }); err != nil {
			return err
		}
	}
	_, err := e.realm.Fields().Register("element_volume", parts)
	return err
}

// RegisterInteriorAlgorithm requires element-rank parts.
func (e *EquationSystems) RegisterInteriorAlgorithm(targets []string) error {
	for _, name := range targets {
		p, err := e.lookupRank("register interior algorithm", name, mesh.ElementRank)
		if err != nil {
			return err
		}
		if err := visit(e.members, func(r InteriorAlgorithmRegistrar) error { return r.RegisterInteriorAlgorithm(p) }); err != nil {
			return err
		}
	}
	return nil
}

func (e *EquationSystems) RegisterWallBC(bc config.BoundaryCondition) error {
	return registerSurface(e, "register wall bc", bc, func(r WallBCRegistrar, p *mesh.Part) error {
		return r.RegisterWallBC(p, p.Topology(), bc)
	})
}

func (e *EquationSystems) RegisterInflowBC(bc config.BoundaryCondition) error {
	return registerSurface(e, "register inflow bc", bc, func(r InflowBCRegistrar, p *mesh.Part) error {
		return r.RegisterInflowBC(p, p.Topology(), bc)
	})
}

func (e *EquationSystems) RegisterOpenBC(bc config.BoundaryCondition) error {
	return registerSurface(e, "register open bc", bc, func(r OpenBCRegistrar, p *mesh.Part) error {
		return r.RegisterOpenBC(p, p.Topology(), bc)
	})
}

func (e *EquationSystems) RegisterSymmetryBC(bc config.BoundaryCondition) error {
	return registerSurface(e, "register symmetry bc", bc, func(r SymmetryBCRegistrar, p *mesh.Part) error {
		return r.RegisterSymmetryBC(p, p.Topology(), bc)
	})
}

func (e *EquationSystems) RegisterABLTopBC(bc config.BoundaryCondition) error {
	return registerSurface(e, "register abltop bc", bc, func(r ABLTopBCRegistrar, p *mesh.Part) error {
		return r.RegisterABLTopBC(p, p.Topology(), bc)
	})
}

// registerSurface validates every subset of the target surface before
// dispatching any of them.
func registerSurface[T any](e *EquationSystems, op string, bc config.BoundaryCondition, fn func(T, *mesh.Part) error) error {
	parts, err := e.sideParts(op, bc.Target)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if err := visit(e.members, func(r T) error { return fn(r, p) }); err != nil {
			return err
		}
	}
	return nil
}

// RegisterPeriodicBC pairs the master and slave surfaces on the mesh. A
// subset count mismatch is logged and registration continues.
func (e *EquationSystems) RegisterPeriodicBC(bc config.BoundaryCondition) error {
	const op = "register periodic bc"
	if len(bc.Targets) != 2 {
		return configErr(op, bc.Name, fmt.Errorf("need master and slave targets, got %d", len(bc.Targets)))
	}
	master, err := e.lookup(op, bc.Targets[0])
	if err != nil {
		return err
	}
	slave, err := e.lookup(op, bc.Targets[1])
	if err != nil {
		return err
	}

	if len(master.Subsets()) != len(slave.Subsets()) {
		e.log.Info("mesh part subsets for master slave do not match in size", "warning", true,
			"master", master.Name(), "slave", slave.Name())
	}
	if len(master.Subsets()) > 1 {
		e.log.Info("surface has subsets active; make sure the topologies match", "warning", true, "master", master.Name())
	}

	e.realm.MetaData().RegisterPeriodic(master, slave, bc.SearchTolerance, bc.SearchMethod)
	return visit(e.members, func(r PeriodicBCRegistrar) error { return r.RegisterPeriodicBC(master, slave, bc) })
}

// RegisterNonConformalBC records the interface on the mesh, then registers
// each side-rank subset of the current parts.
func (e *EquationSystems) RegisterNonConformalBC(bc config.BoundaryCondition) error {
	const op = "register non-conformal bc"
	current, err := e.lookupAll(op, bc.Current)
	if err != nil {
		return err
	}
	opposing, err := e.lookupAll(op, bc.Opposing)
	if err != nil {
		return err
	}
	if len(current) != len(opposing) {
		e.log.Info("non-conformal current and opposing part counts differ", "warning", true,
			"current", len(current), "opposing", len(opposing))
	}

	e.realm.MetaData().SetupNonConformal(current, opposing)

	side := e.realm.MetaData().SideRank()
	for _, c := range current {
		for _, p := range c.Expand() {
			if p.Rank() != side {
				return configErr(op, c.Name(), &mesh.RankError{Part: p.Name(), Want: side, Got: p.Rank()})
			}
			if err := visit(e.members, func(r NonConformalBCRegistrar) error { return r.RegisterNonConformalBC(p, p.Topology()) }); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *EquationSystems) RegisterOversetBC(config.BoundaryCondition) error {
	return visit(e.members, func(r OversetBCRegistrar) error { return r.RegisterOversetBC() })
}

// RegisterSurfacePPAlgorithm collects the subsets of the post-processing
// targets. Missing or non-side parts are logged, not fatal.
func (e *EquationSystems) RegisterSurfacePPAlgorithm(pp config.PostProcessing) error {
	side := e.realm.MetaData().SideRank()
	var parts []*mesh.Part
	for _, name := range pp.Targets {
		part, ok := e.realm.MetaData().GetPart(name)
		if !ok {
			e.log.Info("surface post-processing: no part with name", "warning", true, "part", name)
			continue
		}
		for _, p := range part.Expand() {
			if p.Rank() != side {
				e.log.Info("surface post-processing: part is not a face", "warning", true, "part", name)
			}
			parts = append(parts, p)
		}
	}
	return visit(e.members, func(r SurfacePPRegistrar) error { return r.RegisterSurfacePPAlgorithm(pp, parts) })
}

// RegisterInitialConditionFcn hands a user-function initial condition on
// part to every member.
func (e *EquationSystems) RegisterInitialConditionFcn(part *mesh.Part, ic config.InitialCondition) error {
	params := make(map[string][]float64, len(ic.Params))
	for k, v := range ic.Params {
		params[k] = []float64(v)
	}
	return visit(e.members, func(r InitialConditionRegistrar) error {
		return r.RegisterInitialConditionFcn(part, ic.Fcn, params)
	})
}

// RegisterBoundaryCondition dispatches bc by its kind.
func (e *EquationSystems) RegisterBoundaryCondition(bc config.BoundaryCondition) error {
	switch bc.Kind {
	case config.WallBC:
		return e.RegisterWallBC(bc)
	case config.InflowBC:
		return e.RegisterInflowBC(bc)
	case config.OpenBC:
		return e.RegisterOpenBC(bc)
	case config.SymmetryBC:
		return e.RegisterSymmetryBC(bc)
	case config.ABLTopBC:
		return e.RegisterABLTopBC(bc)
	case config.PeriodicBC:
		return e.RegisterPeriodicBC(bc)
	case config.NonConformalBC:
		return e.RegisterNonConformalBC(bc)
	case config.OversetBC:
		return e.RegisterOversetBC(bc)
	default:
		return configErr("register boundary condition", bc.Name, fmt.Errorf("unknown kind %q", bc.Kind))
	}
}
