package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
	"github.com/saitoasukakawaii/nalu-wind/internal/storage"
)

const normFloor = 1e-16

func log10(v float64) float64 {
	return math.Log10(math.Max(v, normFloor))
}

func exportPNG(cmd *cobra.Command, args []string) error {
	runID, out := args[0], args[1]

	st := storage.New(settings.GetString("data"))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	steps, systems, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("run %s has no steps", runID)
	}

	p, err := normPlot(meta.Realm, steps, systems)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, out); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}

// normPlot draws the system norm and every per-system norm against time
// on a log axis.
func normPlot(title string, steps []realm.Step, systems []string) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time"
	p.Y.Label.Text = "scaled norm"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{}

	series := append([]string{"system"}, systems...)
	for i, name := range series {
		pts := make(plotter.XYs, len(steps))
		for j, s := range steps {
			v := s.SystemNorm
			if i > 0 {
				v = s.Norms[name]
			}
			if math.IsNaN(v) || v < normFloor {
				v = normFloor
			}
			pts[j].X = s.Time
			pts[j].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(name, line)
	}
	p.Add(plotter.NewGrid())
	return p, nil
}
