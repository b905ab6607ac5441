package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/kinpath/internal/config"
	"github.com/san-kum/kinpath/internal/export"
	"github.com/san-kum/kinpath/internal/kinetics"
	"github.com/san-kum/kinpath/internal/metrics"
	"github.com/san-kum/kinpath/internal/ode"
	"github.com/san-kum/kinpath/internal/output"
	"github.com/san-kum/kinpath/internal/storage"
	"github.com/san-kum/kinpath/internal/store"
	"github.com/san-kum/kinpath/internal/tui"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	duration   float64
	method     string
	format     string
	showPlot   bool
	jsonOut    bool
	svgFile    string
	saveRun    bool
	quiet      bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinpath",
		Short: "reaction path integrator with nested chemical equilibrium",
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kinpath", "data directory")

	runCmd := &cobra.Command{
		Use:   "run [preset]",
		Short: "integrate a kinetic path",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPath,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().Float64Var(&duration, "time", 0, "integration interval in seconds")
	runCmd.Flags().StringVar(&method, "method", "", "integration method (rosenbrock, dormand-prince)")
	runCmd.Flags().StringVar(&format, "format", "", "output quantity format string")
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot species amounts after the run")
	runCmd.Flags().BoolVar(&jsonOut, "json", false, "write the trajectory as JSON to stdout")
	runCmd.Flags().StringVar(&svgFile, "svg", "", "write an SVG plot to this file")
	runCmd.Flags().BoolVar(&saveRun, "save", false, "persist the run under the data directory")
	runCmd.Flags().BoolVar(&quiet, "quiet", false, "suppress the step table")

	liveCmd := &cobra.Command{
		Use:   "live [preset]",
		Short: "integrate with a live terminal view",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	liveCmd.Flags().Float64Var(&duration, "time", 0, "integration interval in seconds")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Printf("%-10s %d species, %d reactions, %.0fs\n",
					name, len(cfg.Species), len(cfg.Reactions), cfg.Duration)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list saved runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a saved run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	compareCmd := &cobra.Command{
		Use:   "compare [preset]",
		Short: "compare integration methods on the same scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE:  compareMethods,
	}
	compareCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	compareCmd.Flags().Float64Var(&duration, "time", 0, "integration interval in seconds")

	rootCmd.AddCommand(runCmd, liveCmd, presetsCmd, listCmd, plotCmd, exportJSONCmd, compareCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves the preset argument and the --config flag, applying
// flag overrides that were explicitly set.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var cfg *config.Config
	switch {
	case configFile != "":
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	case len(args) == 1:
		cfg = config.GetPreset(args[0])
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", args[0], config.ListPresets())
		}
	default:
		return nil, fmt.Errorf("need a preset name or --config")
	}

	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("method") {
		cfg.Method = method
	}
	if cmd.Flags().Changed("format") {
		cfg.Format = format
	}

	return cfg, nil
}

func loadScenario(cmd *cobra.Command, args []string) (*config.Scenario, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// newPath assembles a kinetic path for the scenario, bound to its chemical
// state but not yet initialized.
func newPath(sc *config.Scenario) (*kinetics.Path, error) {
	path := kinetics.New(sc.Reactions, ode.NewSolver(sc.Settings))
	if err := path.SetPartition(sc.Partition, equilibriumOf(sc)); err != nil {
		return nil, err
	}
	return path, nil
}

// equilibriumOf avoids handing the path a typed nil when the scenario has
// no equilibrium subset.
func equilibriumOf(sc *config.Scenario) kinetics.EquilibriumSolver {
	if sc.Equilibrium == nil {
		return nil
	}
	return sc.Equilibrium
}

func runPath(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	path, err := newPath(sc)
	if err != nil {
		return err
	}

	rec := store.NewRecorder(sc.System)
	drift := metrics.NewElementDrift(sc.System)
	pos := metrics.NewPositivity(1e-12)
	path.AddObserver(rec)
	path.AddObserver(drift)
	path.AddObserver(pos)

	// Track turnover of the first kinetic species as a progress indicator.
	var extent *metrics.Extent
	var extentSpecies string
	if kin := sc.Partition.KineticSpecies(); len(kin) > 0 {
		extentSpecies = sc.System.Species()[kin[0]].Name
		extent = metrics.NewExtent(extentSpecies)
		path.AddObserver(extent)
	}

	if !quiet && !jsonOut {
		w, err := output.NewWriter(sc.Reactions, sc.Format, os.Stdout)
		if err != nil {
			return err
		}
		path.AddObserver(w)
	}

	start := time.Now()
	if err := path.Solve(sc.State, 0, sc.Duration); err != nil {
		return err
	}
	elapsed := time.Since(start)

	rec.SetMetric("element_drift", drift.Value())
	rec.SetMetric("positivity", pos.Value())
	if extent != nil {
		rec.SetMetric("extent", extent.Value())
	}

	if jsonOut {
		return store.ExportJSONStdout(sc.Name, sc.Method, sc.Duration, rec.Result())
	}

	fmt.Printf("\ncompleted in %v (%d steps)\n", elapsed, len(rec.Result().Times))
	fmt.Printf("element drift: %.3e\n", drift.Value())
	if extent != nil {
		fmt.Printf("turnover of %s: %.1f%%\n", extentSpecies, 100*extent.Value())
	}

	if saveRun {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(sc.Name, sc.Duration, sc.Method, rec.Result())
		if err != nil {
			return err
		}
		fmt.Printf("run id: %s\n", runID)
	}

	if svgFile != "" {
		svg := export.ResultToSVG(rec.Result(), 800, 450)
		if err := os.WriteFile(svgFile, []byte(svg), 0644); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgFile)
	}

	if showPlot {
		plotResult(rec.Result())
	}

	return nil
}

func plotResult(result *store.Result) {
	for s, name := range result.Species {
		data := make([]float64, len(result.Times))
		for i := range result.Times {
			data[i] = result.Amounts[i][s]
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("n[%s] vs step", name)),
		)
		fmt.Println()
		fmt.Println(graph)
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(cmd, args)
	if err != nil {
		return err
	}

	path, err := newPath(sc)
	if err != nil {
		return err
	}
	if err := path.Initialize(sc.State, 0); err != nil {
		return err
	}

	p := tea.NewProgram(tui.NewModel(sc, path))
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tDURATION\tMETHOD\tSPECIES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1fs\t%s\t%s\n",
			run.ID,
			run.Scenario,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Duration,
			run.Integrator,
			strings.Join(run.Species, " "),
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rows, _, err := st.LoadAmounts(runID)
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("scenario: %s\n", meta.Scenario)
	fmt.Printf("samples: %d\n", len(rows))

	for s, name := range meta.Species {
		data := make([]float64, len(rows))
		for i := range rows {
			if s < len(rows[i]) {
				data[i] = rows[i][s]
			}
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(fmt.Sprintf("n[%s] vs step", name)),
		)
		fmt.Println()
		fmt.Println(graph)
	}

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	rows, times, err := st.LoadAmounts(runID)
	if err != nil {
		return err
	}

	result := &store.Result{
		Species:  meta.Species,
		Elements: meta.Elements,
		Times:    times,
		Metrics:  meta.Metrics,
	}
	ns := len(meta.Species)
	for _, row := range rows {
		if len(row) < ns {
			continue
		}
		result.Amounts = append(result.Amounts, row[:ns])
		result.Totals = append(result.Totals, row[ns:])
	}

	return store.ExportJSONStdout(meta.Scenario, meta.Integrator, meta.Duration, result)
}

func compareMethods(cmd *cobra.Command, args []string) error {
	methods := []string{"rosenbrock", "dormand-prince"}

	fmt.Printf("%-16s  %-12s  %-12s  %-10s  %s\n", "method", "steps", "func_evals", "drift", "time")
	fmt.Println(strings.Repeat("-", 64))

	for _, name := range methods {
		cfg, err := loadConfig(cmd, args)
		if err != nil {
			return err
		}
		cfg.Method = name

		sc, err := cfg.Build()
		if err != nil {
			return err
		}

		solver := ode.NewSolver(sc.Settings)
		path := kinetics.New(sc.Reactions, solver)
		if err := path.SetPartition(sc.Partition, equilibriumOf(sc)); err != nil {
			return err
		}

		drift := metrics.NewElementDrift(sc.System)
		path.AddObserver(drift)

		start := time.Now()
		err = path.Solve(sc.State, 0, sc.Duration)
		elapsed := time.Since(start)
		if err != nil {
			fmt.Printf("%-16s  error: %v\n", name, err)
			continue
		}

		stats := solver.Stats()
		fmt.Printf("%-16s  %-12d  %-12d  %-10.2e  %v\n",
			name, stats.Steps, stats.FuncEvals, drift.Value(), elapsed)
	}

	return nil
}
