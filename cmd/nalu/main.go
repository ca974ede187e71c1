package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/saitoasukakawaii/nalu-wind/internal/config"
	"github.com/saitoasukakawaii/nalu-wind/internal/eqsys"
	"github.com/saitoasukakawaii/nalu-wind/internal/logging"
	"github.com/saitoasukakawaii/nalu-wind/internal/metrics"
	"github.com/saitoasukakawaii/nalu-wind/internal/physics"
	"github.com/saitoasukakawaii/nalu-wind/internal/realm"
	"github.com/saitoasukakawaii/nalu-wind/internal/storage"
	"github.com/saitoasukakawaii/nalu-wind/internal/tui"
)

// settings are read through viper so every flag can also come from a
// NALU_* environment variable.
var (
	settings = viper.New()
	log      = logging.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "nalu",
		Short:         "low-Mach flow solver driver",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := settings.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			l, err := logging.New(settings.GetString("log-level"), settings.GetString("log-format"))
			if err != nil {
				return err
			}
			log = l
			return nil
		},
	}

	settings.SetEnvPrefix("NALU")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	rootCmd.PersistentFlags().String("data", ".nalu", "data directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")

	runCmd := &cobra.Command{
		Use:   "run [deck.yaml]",
		Short: "run a deck or preset and store the results",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDeck,
	}
	runCmd.Flags().String("preset", "", "run a built-in deck instead of a file")
	runCmd.Flags().Int("steps", 0, "override termination_step_count")
	runCmd.Flags().Bool("live", false, "show the live convergence monitor")

	validateCmd := &cobra.Command{
		Use:   "validate [deck.yaml]",
		Short: "load a deck and run every registration without solving",
		Args:  cobra.ExactArgs(1),
		RunE:  validateDeck,
	}

	systemsCmd := &cobra.Command{
		Use:   "systems",
		Short: "list equation system types and initial-condition functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("equation systems:")
			for _, tag := range physics.NewRegistry().List() {
				fmt.Printf("  %s\n", tag)
			}
			fmt.Println("user functions:")
			for _, name := range physics.UserFunctions() {
				fmt.Printf("  %s\n", name)
			}
			return nil
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in decks",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	dumpCmd := &cobra.Command{
		Use:   "dump-preset [name]",
		Short: "print a built-in deck as YAML",
		Args:  cobra.ExactArgs(1),
		RunE:  dumpPreset,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot the norm history of a run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	exportPNGCmd := &cobra.Command{
		Use:   "export-png [run_id] [out.png]",
		Short: "plot per-system norms of a run to a PNG",
		Args:  cobra.ExactArgs(2),
		RunE:  exportPNG,
	}

	ensembleCmd := &cobra.Command{
		Use:   "ensemble [deck.yaml]...",
		Short: "run several decks or presets concurrently",
		RunE:  runEnsemble,
	}
	ensembleCmd.Flags().StringSlice("preset", nil, "built-in decks to include")
	ensembleCmd.Flags().Int("steps", 0, "override termination_step_count")

	rootCmd.AddCommand(runCmd, validateCmd, systemsCmd, presetsCmd, dumpCmd, listCmd, plotCmd, exportCmd, exportPNGCmd, ensembleCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadDeck reads a deck from path, or from the preset flag when no path
// is given, and applies the steps override.
func loadDeck(args []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch preset := settings.GetString("preset"); {
	case len(args) > 0:
		cfg, err = config.Load(args[0])
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %s)", preset, strings.Join(config.ListPresets(), ", "))
		}
	default:
		return nil, fmt.Errorf("need a deck file or --preset")
	}
	if err != nil {
		return nil, err
	}
	if steps := settings.GetInt("steps"); steps > 0 {
		cfg.TimeIntegrator.Steps = steps
	}
	return cfg, nil
}

func runDeck(cmd *cobra.Command, args []string) error {
	cfg, err := loadDeck(args)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	r, err := realm.New(cfg, physics.NewRegistry(),
		realm.WithLogger(log),
		realm.WithSchedulerOption(eqsys.WithObserver(collector)))
	if err != nil {
		return err
	}
	for _, m := range metrics.Defaults() {
		r.AddMetric(m)
	}
	r.AddObserver(collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	var result *realm.Result
	if settings.GetBool("live") {
		result, err = tui.Run(ctx, r)
	} else {
		fmt.Printf("running %s...\n", cfg.Name)
		result, err = r.Run(ctx)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	st := storage.New(settings.GetString("data"))
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}
	if err := st.SaveMetrics(runID, collector.WriteText); err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, m[name])
	}
}

func validateDeck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	r, err := realm.New(cfg, physics.NewRegistry(), realm.WithLogger(log))
	if err != nil {
		return err
	}
	if err := r.Initialize(); err != nil {
		return err
	}

	fmt.Printf("%s: ok\n", cfg.Name)
	for _, sys := range r.EquationSystems().Members() {
		kind := "solve"
		if sys.IsWrapper() {
			kind = "wrapper"
		}
		fmt.Printf("  %-24s %-24s %s\n", sys.Name(), sys.EqnTypeName(), kind)
	}
	return nil
}

func dumpPreset(cmd *cobra.Command, args []string) error {
	cfg := config.GetPreset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset %q", args[0])
	}
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func runEnsemble(cmd *cobra.Command, args []string) error {
	var cfgs []*config.Config
	for _, path := range args {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		cfgs = append(cfgs, cfg)
	}
	for _, name := range settings.GetStringSlice("preset") {
		cfg := config.GetPreset(name)
		if cfg == nil {
			return fmt.Errorf("unknown preset %q", name)
		}
		cfgs = append(cfgs, cfg)
	}
	if len(cfgs) == 0 {
		return fmt.Errorf("need at least one deck or --preset")
	}
	if steps := settings.GetInt("steps"); steps > 0 {
		for _, cfg := range cfgs {
			cfg.TimeIntegrator.Steps = steps
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ens := realm.NewEnsemble(physics.NewRegistry, metrics.Defaults, realm.WithLogger(log))
	results, err := ens.Run(ctx, cfgs)
	if err != nil {
		return err
	}

	st := storage.New(settings.GetString("data"))
	if err := st.Init(); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tREALM\tSTEPS\tCONVERGED\tMEAN ITERS")
	for i, res := range results {
		runID, err := st.Save(cfgs[i], res)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\n",
			runID, cfgs[i].Name, res.StepsTaken,
			res.Metrics["converged_fraction"], res.Metrics["mean_nonlinear_iterations"])
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(settings.GetString("data"))
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREALM\tTIME\tSTEPS\tDT\tCONVERGED\tSYSTEMS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.4g\t%.2f\t%s\n",
			run.ID,
			run.Realm,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.TimeStep,
			run.Metrics["converged_fraction"],
			strings.Join(run.Systems, ","),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(settings.GetString("data"))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	steps, systems, err := st.LoadSteps(runID)
	if err != nil {
		return err
	}
	if len(steps) < 2 {
		return fmt.Errorf("need at least 2 steps to plot, run has %d", len(steps))
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("realm: %s\n", meta.Realm)
	fmt.Printf("steps: %d\n\n", len(steps))

	series := [][]float64{make([]float64, len(steps)), make([]float64, len(steps))}
	for i, s := range steps {
		series[0][i] = log10(s.SystemNorm)
		series[1][i] = float64(s.Iterations)
	}
	captions := []string{"log10 system norm", "nonlinear iterations"}
	for _, name := range systems {
		data := make([]float64, len(steps))
		for i, s := range steps {
			data[i] = log10(s.Norms[name])
		}
		series = append(series, data)
		captions = append(captions, "log10 "+name)
	}

	for i, data := range series {
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(captions[i]),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(settings.GetString("data"))
	cfg, result, err := loadRun(st, args[0])
	if err != nil {
		return err
	}
	return storage.ExportJSON(os.Stdout, cfg, result)
}

// loadRun rebuilds the deck and result of a stored run.
func loadRun(st *storage.Store, runID string) (*config.Config, *realm.Result, error) {
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := st.LoadDeck(runID)
	if err != nil {
		return nil, nil, err
	}
	steps, systems, err := st.LoadSteps(runID)
	if err != nil {
		return nil, nil, err
	}
	timers, err := st.LoadTimers(runID)
	if err != nil {
		return nil, nil, err
	}
	return cfg, &realm.Result{
		Systems:    systems,
		Steps:      steps,
		StepsTaken: meta.Steps,
		Metrics:    meta.Metrics,
		Timers:     timers,
	}, nil
}
