package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

const namespace = "nalu"

// Collector exports scheduler activity as Prometheus metrics. It observes
// both the equation systems (phases, per-system solves) and the realm's
// time loop.
type Collector struct {
	reg *prometheus.Registry

	phases       *prometheus.CounterVec
	solves       *prometheus.CounterVec
	solveSeconds *prometheus.HistogramVec
	scaledNorm   *prometheus.GaugeVec
	steps        *prometheus.CounterVec
	iterations   prometheus.Histogram
	systemNorm   prometheus.Gauge
}

func NewCollector() *Collector {
	c := &Collector{
		reg: prometheus.NewRegistry(),
		phases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_transitions_total",
				Help:      "Scheduler phase transitions.",
			},
			[]string{"phase"},
		),
		solves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "system_solves_total",
				Help:      "Per-system pre-work, solve and post-work passes.",
			},
			[]string{"system"},
		),
		solveSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "system_solve_seconds",
				Help:      "Wall time of one per-system pass.",
				Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
			},
			[]string{"system"},
		),
		scaledNorm: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "system_scaled_norm",
				Help:      "Scaled residual norm after the last solve.",
			},
			[]string{"system"},
		),
		steps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "time_steps_total",
				Help:      "Completed time steps by convergence outcome.",
			},
			[]string{"converged"},
		),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "nonlinear_iterations",
			Help:      "Nonlinear iterations per time step.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		systemNorm: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "system_norm",
			Help:      "Largest scaled norm over all systems at the end of the last step.",
		}),
	}
	c.reg.MustRegister(c.phases, c.solves, c.solveSeconds, c.scaledNorm, c.steps, c.iterations, c.systemNorm)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) OnPhase(p eqsys.Phase) {
	c.phases.WithLabelValues(p.String()).Inc()
}

func (c *Collector) OnSystemSolved(sys eqsys.System, elapsed time.Duration) {
	c.solves.WithLabelValues(sys.Name()).Inc()
	c.solveSeconds.WithLabelValues(sys.Name()).Observe(elapsed.Seconds())
	if !sys.IsWrapper() {
		c.scaledNorm.WithLabelValues(sys.Name()).Set(sys.ScaledNorm())
	}
}

func (c *Collector) OnStep(s realm.Step) {
	label := "false"
	if s.Converged {
		label = "true"
	}
	c.steps.WithLabelValues(label).Inc()
	c.iterations.Observe(float64(s.Iterations))
	c.systemNorm.Set(s.SystemNorm)
	for name, n := range s.Norms {
		c.scaledNorm.WithLabelValues(name).Set(n)
	}
}

// WriteText writes every gathered family in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
