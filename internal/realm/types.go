package realm

import "github.com/saitoasukakawaii/nalu-wind/internal/eqsys"

// Step summarizes one completed time step.
type Step struct {
	Index      int
	Time       float64
	Iterations int
	Converged  bool
	// SystemNorm is the largest scaled norm over all systems.
	SystemNorm float64
	// MeanNorm is NaN when the summed norm increment was zero.
	MeanNorm float64
	// Norms holds the scaled norm of every solving system by name.
	Norms map[string]float64
}

type Metric interface {
	Name() string
	Observe(s Step)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Step)
}

type Result struct {
	// Systems lists the solving systems in member order.
	Systems    []string
	Steps      []Step
	StepsTaken int
	Metrics    map[string]float64
	Timers     []eqsys.TimeReport
}
