package physics

import (
	"math"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/field"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// WallDistance solves -lap(phi) = 1 with phi = 0 on walls and derives the
// nodal distance d = sqrt(2 phi). It only solves during the first time
// step; afterwards it reports converged with zero norms.
type WallDistance struct {
	transport
	dist   *field.Field
	solved bool
	frozen bool
}

func newWallDistance(parent *eqsys.EquationSystems, s eqsys.Settings, opts map[string]any) (eqsys.System, error) {
	var o eqsys.Options
	if err := eqsys.DecodeOptions(opts, &o); err != nil {
		return nil, err
	}
	w := &WallDistance{transport: newTransport(parent, s, "WallDistance", "ndtw", "wall_distance_phi", o)}
	w.steady = true
	w.source = 1
	w.bcValue = func(bc config.BoundaryCondition) ([]float64, bool) {
		return []float64{0}, bc.Kind == config.WallBC
	}
	return w, nil
}

func (w *WallDistance) RegisterNodalFields(parts []*mesh.Part) error {
	if err := w.transport.RegisterNodalFields(parts); err != nil {
		return err
	}
	f, err := w.fields().Register("minimum_distance_to_wall", parts)
	if err != nil {
		return err
	}
	w.dist = f
	return nil
}

func (w *WallDistance) PreTimestepWork() error {
	if w.solved {
		w.frozen = true
	}
	return w.transport.PreTimestepWork()
}

func (w *WallDistance) SolveAndUpdate() error {
	if w.frozen {
		return nil
	}
	if err := w.transport.SolveAndUpdate(); err != nil {
		return err
	}
	w.solved = true
	phi := w.field.Values(field.StateNP1)
	d := w.dist.Values(field.StateNP1)
	for n := range d {
		d[n] = math.Sqrt(2 * math.Max(phi[n], 0))
	}
	return nil
}

func (w *WallDistance) SystemIsConverged() bool {
	return w.frozen || w.transport.SystemIsConverged()
}

func (w *WallDistance) ScaledNorm() float64 {
	if w.frozen {
		return 0
	}
	return w.transport.ScaledNorm()
}

func (w *WallDistance) Norm() float64 {
	if w.frozen {
		return 0
	}
	return w.transport.Norm()
}

func (w *WallDistance) NormIncrement() float64 {
	if w.frozen {
		return 0
	}
	return w.transport.NormIncrement()
}
