package eqsys

import (
	"time"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/mesh"
)

// System is the per-iteration contract every equation system satisfies.
// Embedding Base provides all of it; concrete systems override what they need.
type System interface {
	Name() string
	EqnTypeName() string
	DofName() string

	Initialize() error
	PreIterWork() error
	SolveAndUpdate() error
	PostIterWork() error
	EvaluateProperties() error

	SystemIsConverged() bool
	ScaledNorm() float64
	Norm() float64
	NormIncrement() float64

	IsDecoupled() bool
	IsWrapper() bool

	BoundaryDataAlgorithms() []Algorithm
	BoundaryDataMapAlgorithms() []Algorithm

	AddInitTime(d time.Duration)
	Stats() Stats
	Timers() Timers
	DumpEqTime() TimeReport
}

// Algorithm is a unit of work executed on behalf of a system or the
// composite: property evaluation, boundary data, side tasks.
type Algorithm interface {
	Execute() error
}

// AlgorithmFunc adapts a function to Algorithm.
type AlgorithmFunc func() error

func (f AlgorithmFunc) Execute() error { return f() }

// Capability interfaces. The composite visits every member and calls the
// hook only on systems that implement it.

type NodalFieldRegistrar interface {
	RegisterNodalFields(parts []*mesh.Part) error
}

type EdgeFieldRegistrar interface {
	RegisterEdgeFields(parts []*mesh.Part) error
}

type ElementFieldRegistrar interface {
	RegisterElementFields(part *mesh.Part, topo mesh.Topology) error
}

type InteriorAlgorithmRegistrar interface {
	RegisterInteriorAlgorithm(part *mesh.Part) error
}

type WallBCRegistrar interface {
	RegisterWallBC(part *mesh.Part, topo mesh.Topology, bc config.BoundaryCondition) error
}

type InflowBCRegistrar interface {
	RegisterInflowBC(part *mesh.Part, topo mesh.Topology, bc config.BoundaryCondition) error
}

type OpenBCRegistrar interface {
	RegisterOpenBC(part *mesh.Part, topo mesh.Topology, bc config.BoundaryCondition) error
}

type SymmetryBCRegistrar interface {
	RegisterSymmetryBC(part *mesh.Part, topo mesh.Topology, bc config.BoundaryCondition) error
}

type ABLTopBCRegistrar interface {
	RegisterABLTopBC(part *mesh.Part, topo mesh.Topology, bc config.BoundaryCondition) error
}

type PeriodicBCRegistrar interface {
	RegisterPeriodicBC(master, slave *mesh.Part, bc config.BoundaryCondition) error
}

type NonConformalBCRegistrar interface {
	RegisterNonConformalBC(part *mesh.Part, topo mesh.Topology) error
}

type OversetBCRegistrar interface {
	RegisterOversetBC() error
}

type SurfacePPRegistrar interface {
	RegisterSurfacePPAlgorithm(pp config.PostProcessing, parts []*mesh.Part) error
}

type InitialConditionRegistrar interface {
	RegisterInitialConditionFcn(part *mesh.Part, fcn map[string]string, params map[string][]float64) error
}

type InitialWorker interface {
	InitialWork() error
}

type DerivedQuantityPopulator interface {
	PopulateDerivedQuantities() error
}

type StatePredictor interface {
	PredictState() error
}

type TimestepPreparer interface {
	PreTimestepWork() error
}

type ConvergedWorker interface {
	PostConvergedWork() error
}

type OutputProvider interface {
	ProvideOutput() error
}

type LinearSystemReinitializer interface {
	ReinitializeLinearSystem() error
}

type ExternalTransferWorker interface {
	PostExternalDataTransferWork() error
}

// LegacyPostIterWorker is run in a second pass after every system has
// finished its pre/solve/post triple and before the composite post tasks.
//
// Deprecated: move the work into PostIterWork once no system depends on
// running after its successors.
type LegacyPostIterWorker interface {
	PostIterWorkDep() error
}

// Grouping is implemented by wrapper systems that own child systems. The
// composite visits children right after their wrapper for registration and
// bookkeeping; the wrapper drives its children's solves itself.
type Grouping interface {
	Children() []System
}
