package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/san-kum/porosim/internal/config"
	"github.com/san-kum/porosim/internal/sim"
	"github.com/san-kum/porosim/internal/storage"
	"github.com/san-kum/porosim/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string
	horizon    float64
	series     string
	noPersist  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "porosim",
		Short: "adaptive two-phase reservoir simulation lab",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "runs", "run data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario to its horizon",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "built-in scenario preset")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "override simulated horizon (s)")
	runCmd.Flags().BoolVar(&noPersist, "no-persist", false, "skip writing run data")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scenario with a live terminal view",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "built-in scenario preset")
	liveCmd.Flags().Float64Var(&horizon, "horizon", 0, "override simulated horizon (s)")

	batchCmd := &cobra.Command{
		Use:   "batch [preset...]",
		Short: "run several presets concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runBatch,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			fmt.Println(viz.SummaryTable(runs))
			return nil
		},
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "chart a stored run's step diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&series, "series", viz.SeriesDt, "series: dt, cfl, pressure or sw")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and diagnostics as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenario presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a scenario file to edit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a built-in preset")

	rootCmd.AddCommand(runCmd, liveCmd, batchCmd, listCmd, plotCmd, exportCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func loadScenario() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("load scenario: %w", err)
		}
		cfg = loaded
	case preset != "":
		if cfg = config.GetPreset(preset); cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
		}
	default:
		cfg = config.DefaultConfig()
	}
	if horizon > 0 {
		cfg.Horizon = horizon
	}
	cfg.Output.Dir = dataDir
	return cfg, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}

	run, err := sim.Build(cfg, newLogger())
	if err != nil {
		return err
	}

	var store *storage.Store
	if !noPersist {
		store = storage.New(dataDir)
	}

	start := time.Now()
	res, err := run.Execute(store)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", time.Since(start).Round(time.Millisecond))
	if res.RunID != "" {
		fmt.Printf("run id: %s\n", res.RunID)
	}
	fmt.Printf("simulated: %s in %d steps (%d rejects)\n",
		formatDuration(res.FinalTime), res.Summary.Accepts, run.Controller.TotalRejects())
	fmt.Printf("step size: %.1fs min / %.1fs mean / %.1fs max\n",
		res.Summary.MinDt, res.Summary.MeanDt, res.Summary.MaxDt)
	fmt.Printf("cfl: %.3f mean / %.3f max\n", res.Summary.MeanCFL, res.Summary.MaxCFL)
	for name, wins := range res.Summary.SolverWins {
		fmt.Printf("solver %s: %d steps\n", name, wins)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}

	// The live view owns the terminal; keep logs out of it.
	logger := slog.New(slog.DiscardHandler)
	run, err := sim.Build(cfg, logger)
	if err != nil {
		return err
	}

	monitor, err := viz.NewMonitor(run)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(monitor, tea.WithAltScreen()).Run()
	return err
}

func runBatch(cmd *cobra.Command, args []string) error {
	configs := make([]*config.Config, 0, len(args))
	for _, name := range args {
		cfg := config.GetPreset(name)
		if cfg == nil {
			return fmt.Errorf("unknown preset %q (available: %v)", name, config.ListPresets())
		}
		cfg.Output.Dir = dataDir
		configs = append(configs, cfg)
	}

	store := storage.New(dataDir)
	results, err := sim.NewBatch(configs, newLogger()).Run(store)
	if err != nil {
		return err
	}
	for i, res := range results {
		fmt.Printf("%s: %d steps to t=%s (run %s)\n",
			args[i], res.Summary.Accepts, formatDuration(res.FinalTime), res.RunID)
	}
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	steps, err := store.LoadSteps(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("run: %s (%s)\n", meta.ID, meta.Scenario)
	fmt.Printf("steps: %d, rejects: %d\n\n", meta.AcceptedSteps, meta.TotalRejects)

	chart, err := viz.PlotRun(steps, series, 70, 12)
	if err != nil {
		return err
	}
	fmt.Println(chart)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	meta, err := store.Load(args[0])
	if err != nil {
		return err
	}
	steps, err := store.LoadSteps(args[0])
	if err != nil {
		return err
	}

	out := struct {
		Meta  *storage.RunMetadata `json:"meta"`
		Steps []storage.StepRecord `json:"steps"`
	}{Meta: meta, Steps: steps}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func formatDuration(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Second).String()
}
