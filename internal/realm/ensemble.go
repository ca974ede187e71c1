package realm

import (
	"context"
	"fmt"
	"sync"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
)

// Ensemble runs independent decks concurrently. Every run gets its own
// realm, registry and metrics so no state is shared between goroutines.
type Ensemble struct {
	registry func() *eqsys.Registry
	metrics  func() []Metric
	opts     []Option
}

func NewEnsemble(registry func() *eqsys.Registry, metrics func() []Metric, opts ...Option) *Ensemble {
	return &Ensemble{registry: registry, metrics: metrics, opts: opts}
}

// Run builds and runs one realm per config. Results are in config order;
// the first failure by index is returned.
func (e *Ensemble) Run(ctx context.Context, cfgs []*config.Config) ([]*Result, error) {
	results := make([]*Result, len(cfgs))
	errs := make([]error, len(cfgs))

	var wg sync.WaitGroup
	for i, cfg := range cfgs {
		wg.Add(1)
		go func(idx int, cfg *config.Config) {
			defer wg.Done()

			r, err := New(cfg, e.registry(), e.opts...)
			if err != nil {
				errs[idx] = err
				return
			}
			if e.metrics != nil {
				for _, m := range e.metrics() {
					r.AddMetric(m)
				}
			}
			results[idx], errs[idx] = r.Run(ctx)
		}(i, cfg)
	}

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %d (%s): %w", i, cfgs[i].Name, err)
		}
	}

	return results, nil
}
