package storage

import (
	"encoding/json"
	"io"
	"math"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
)

type ExportStep struct {
	Index      int                `json:"step"`
	Time       float64            `json:"time"`
	Iterations int                `json:"iterations"`
	Converged  bool               `json:"converged"`
	SystemNorm float64            `json:"system_norm"`
	MeanNorm   *float64           `json:"mean_norm"` // null when undefined
	Norms      map[string]float64 `json:"norms"`
}

type ExportData struct {
	Realm         string             `json:"realm"`
	TimeStep      float64            `json:"time_step"`
	MaxIterations int                `json:"max_iterations"`
	StepsTaken    int                `json:"steps_taken"`
	Systems       []string           `json:"systems"`
	Steps         []ExportStep       `json:"steps"`
	Timers        []eqsys.TimeReport `json:"timers"`
	Metrics       map[string]float64 `json:"metrics"`
}

func NewExportData(cfg *config.Config, result *realm.Result) ExportData {
	data := ExportData{
		Realm:         cfg.Name,
		TimeStep:      cfg.TimeIntegrator.TimeStep,
		MaxIterations: cfg.EquationSystems.MaxIterations,
		StepsTaken:    result.StepsTaken,
		Systems:       result.Systems,
		Steps:         make([]ExportStep, len(result.Steps)),
		Timers:        result.Timers,
		Metrics:       result.Metrics,
	}
	for i, s := range result.Steps {
		es := ExportStep{
			Index:      s.Index,
			Time:       s.Time,
			Iterations: s.Iterations,
			Converged:  s.Converged,
			SystemNorm: s.SystemNorm,
			Norms:      s.Norms,
		}
		if !math.IsNaN(s.MeanNorm) {
			mean := s.MeanNorm
			es.MeanNorm = &mean
		}
		data.Steps[i] = es
	}
	return data
}

// ExportJSON writes the run as indented JSON to w.
func ExportJSON(w io.Writer, cfg *config.Config, result *realm.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewExportData(cfg, result))
}
