package metrics

import (
	"math"

	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

// Convergence is the fraction of time steps whose nonlinear iterations
// converged before the iteration limit.
type Convergence struct {
	name      string
	converged int
	samples   int
}

func NewConvergence() *Convergence {
	return &Convergence{name: "converged_fraction"}
}

func (c *Convergence) Name() string { return c.name }

func (c *Convergence) Observe(s realm.Step) {
	c.samples++
	if s.Converged {
		c.converged++
	}
}

func (c *Convergence) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return float64(c.converged) / float64(c.samples)
}

func (c *Convergence) Reset() {
	c.converged = 0
	c.samples = 0
}

// Iterations is the mean number of nonlinear iterations per step.
type Iterations struct {
	name    string
	total   int
	samples int
}

func NewIterations() *Iterations {
	return &Iterations{name: "mean_nonlinear_iterations"}
}

func (it *Iterations) Name() string { return it.name }

func (it *Iterations) Observe(s realm.Step) {
	it.total += s.Iterations
	it.samples++
}

func (it *Iterations) Value() float64 {
	if it.samples == 0 {
		return 0
	}
	return float64(it.total) / float64(it.samples)
}

func (it *Iterations) Reset() {
	it.total = 0
	it.samples = 0
}

// PeakNorm tracks the largest system norm seen at the end of any step.
type PeakNorm struct {
	name string
	peak float64
}

func NewPeakNorm() *PeakNorm {
	return &PeakNorm{name: "peak_system_norm"}
}

func (p *PeakNorm) Name() string { return p.name }

func (p *PeakNorm) Observe(s realm.Step) {
	p.peak = math.Max(p.peak, s.SystemNorm)
}

func (p *PeakNorm) Value() float64 { return p.peak }

func (p *PeakNorm) Reset() { p.peak = 0 }

// Defaults returns the metrics attached to every CLI run.
func Defaults() []realm.Metric {
	return []realm.Metric{NewConvergence(), NewIterations(), NewPeakNorm()}
}
