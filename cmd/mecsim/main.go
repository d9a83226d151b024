package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/mecsim/internal/analysis"
	"github.com/san-kum/mecsim/internal/config"
	"github.com/san-kum/mecsim/internal/drive"
	"github.com/san-kum/mecsim/internal/export"
	"github.com/san-kum/mecsim/internal/ident"
	"github.com/san-kum/mecsim/internal/logging"
	"github.com/san-kum/mecsim/internal/metrics"
	"github.com/san-kum/mecsim/internal/optim"
	"github.com/san-kum/mecsim/internal/sim"
	"github.com/san-kum/mecsim/internal/storage"
	"github.com/san-kum/mecsim/internal/telemetry"
	"github.com/san-kum/mecsim/internal/viz"
)

var (
	configFile string
	dataDir    string
	debug      bool

	preset    string
	overrides []string
	workers   int
	noSave    bool

	gradParams   []string
	gradStep     float64
	iterations   int
	learningRate float64
	useTUI       bool

	asArray bool
	asYAML  bool

	against  string
	showPath bool
	svgFile  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "mecsim",
		Short:         "mecanum drive simulator and parameter identification",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", config.DefaultDataDir, "run data directory")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	simulateCmd := &cobra.Command{
		Use:   "simulate [csv...]",
		Short: "replay telemetry through the model and store the runs",
		RunE:  runSimulate,
	}
	addModelFlags(simulateCmd)
	simulateCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store runs")

	costCmd := &cobra.Command{
		Use:   "cost [csv...]",
		Short: "squared velocity error per sample",
		RunE:  runCost,
	}
	addModelFlags(costCmd)

	gradCmd := &cobra.Command{
		Use:   "grad [csv...]",
		Short: "central-difference cost gradient averaged over samples",
		RunE:  runGrad,
	}
	addModelFlags(gradCmd)
	gradCmd.Flags().StringSliceVar(&gradParams, "param", nil, "parameter names (default: fit.params)")
	gradCmd.Flags().Float64Var(&gradStep, "step", ident.DefaultStep, "perturbation")

	fitCmd := &cobra.Command{
		Use:   "fit [csv...]",
		Short: "fit parameters by gradient descent",
		RunE:  runFit,
	}
	addModelFlags(fitCmd)
	fitCmd.Flags().StringSliceVar(&gradParams, "param", nil, "parameter names (default: fit.params)")
	fitCmd.Flags().Float64Var(&gradStep, "step", ident.DefaultStep, "perturbation")
	fitCmd.Flags().IntVar(&iterations, "iterations", config.DefaultIterations, "maximum iterations")
	fitCmd.Flags().Float64Var(&learningRate, "lr", config.DefaultLearningRate, "initial step size")
	fitCmd.Flags().BoolVar(&useTUI, "tui", false, "live progress view")

	searchCmd := &cobra.Command{
		Use:   "search [csv...]",
		Short: "grid search over search.grid",
		RunE:  runSearch,
	}
	addModelFlags(searchCmd)

	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "print the resolved drive parameters",
		RunE:  runParams,
	}
	paramsCmd.Flags().StringVar(&preset, "preset", "", "named parameter preset ("+strings.Join(config.ListPresets(), ", ")+")")
	paramsCmd.Flags().StringArrayVar(&overrides, "set", nil, "override a parameter, name=value")
	paramsCmd.Flags().BoolVar(&asArray, "array", false, "print the interchange vector")
	paramsCmd.Flags().BoolVar(&asYAML, "yaml", false, "print as yaml")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored trajectory",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&against, "against", "", "telemetry csv to compare with (default: the run's sample)")
	plotCmd.Flags().BoolVar(&showPath, "path", false, "also draw the planar path")
	plotCmd.Flags().StringVar(&svgFile, "svg", "", "write the planar path to an svg file")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata and trajectory as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [csv...]",
		Short: "frequency analysis of velocity residuals",
		RunE:  analyzeResiduals,
	}
	addModelFlags(analyzeCmd)

	rootCmd.AddCommand(simulateCmd, costCmd, gradCmd, fitCmd, searchCmd, paramsCmd, listCmd, plotCmd, exportCmd, analyzeCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&preset, "preset", "", "named parameter preset")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "override a parameter, name=value")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (default: fit.workers)")
}

// env is what every command resolves before doing work.
type env struct {
	cfg     *config.Config
	params  drive.Parameters
	logger  *logging.Logger
	store   *storage.Store
	samples []*telemetry.Sample
}

func setup(cmd *cobra.Command, args []string, needSamples bool) (*env, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}
	cfg.DataDir = dataDirFor(cmd, cfg)
	if cmd.Flags().Changed("workers") {
		cfg.Fit.Workers = workers
	}
	if cmd.Flags().Changed("step") {
		cfg.Fit.Step = gradStep
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Fit.Iterations = iterations
	}
	if cmd.Flags().Changed("lr") {
		cfg.Fit.LearningRate = learningRate
	}
	if cmd.Flags().Changed("param") {
		cfg.Fit.Params = gradParams
	}

	params, err := resolveParams(cfg.Drive)
	if err != nil {
		return nil, err
	}
	cfg.Drive = params
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New("mecsim", debug)
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, params: params, logger: logger, store: storage.New(cfg.DataDir)}
	if !needSamples {
		return e, nil
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = cfg.Samples
	}
	if len(patterns) == 0 {
		return nil, errors.New("no telemetry given: pass csv files or set samples in the config")
	}
	if e.samples, err = telemetry.LoadAll(patterns...); err != nil {
		return nil, err
	}
	logger.Debugw("loaded samples", "count", len(e.samples))
	return e, nil
}

// dataDirFor picks --data when it was given or no config file is in use,
// and the config's data_dir otherwise.
func dataDirFor(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("data") || configFile == "" {
		return dataDir
	}
	return cfg.DataDir
}

// runStore opens the run store for commands that only read runs.
func runStore(cmd *cobra.Command) (*storage.Store, error) {
	cfg := config.DefaultConfig()
	if configFile != "" && !cmd.Flags().Changed("data") {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}
		cfg = loaded
	}
	return storage.New(dataDirFor(cmd, cfg)), nil
}

// resolveParams applies --preset and then every --set on top of base.
func resolveParams(base drive.Parameters) (drive.Parameters, error) {
	p := base
	if preset != "" {
		var ok bool
		if p, ok = config.GetPreset(preset); !ok {
			return p, errors.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	for _, kv := range overrides {
		name, raw, ok := strings.Cut(kv, "=")
		if !ok {
			return p, errors.Errorf("--set %q: expected name=value", kv)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return p, errors.Wrapf(err, "--set %s", name)
		}
		if p, err = p.With(name, v); err != nil {
			return p, err
		}
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	simulator := sim.New(drive.NewModel(e.params))
	results, err := sim.NewBatch(simulator, e.cfg.Fit.Workers).Run(ctx, e.samples)
	if err != nil {
		return err
	}

	if !noSave {
		if err := e.store.Init(); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tSTEPS\tCOST\tX RMSE\tY RMSE\tANGLE RMSE\tRUN")
	for k, res := range results {
		sample := e.samples[k]
		cost := ident.SquaredError(sample, res)
		m := metrics.Evaluate(res, metrics.Standard(e.params, sample)...)

		runID := "-"
		if !noSave {
			meta := storage.RunMetadata{
				Kind:    "simulate",
				Sample:  sample.Name,
				Dt:      telemetry.T,
				Cost:    cost,
				Params:  e.params,
				Metrics: m,
			}
			if runID, err = e.store.Save(meta, res.ToSample(sample.Name)); err != nil {
				return err
			}
		}
		fmt.Fprintf(w, "%s\t%d\t%.6g\t%.4f\t%.4f\t%.4f\t%s\n",
			sample.Name, res.Len(), cost,
			m["x_velocity_rmse"], m["y_velocity_rmse"], m["angular_velocity_rmse"],
			runID,
		)
	}
	return w.Flush()
}

func runCost(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SAMPLE\tCOST")
	total := 0.0
	for _, sample := range e.samples {
		c, err := ident.SafeCost(ctx, sample, e.params)
		if err != nil {
			return err
		}
		total += c
		fmt.Fprintf(w, "%s\t%.6g\n", sample.Name, c)
	}
	fmt.Fprintf(w, "total\t%.6g\n", total)
	return w.Flush()
}

func estimator(e *env) *ident.GradientEstimator {
	g := ident.NewGradientEstimator(e.logger)
	g.Step = e.cfg.Fit.Step
	if e.cfg.Fit.Workers > 0 {
		g.Workers = e.cfg.Fit.Workers
	}
	return g
}

func runGrad(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	grad, err := estimator(e).Gradient(ctx, e.samples, e.params, e.cfg.Fit.Params)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(grad))
	for name := range grad {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAM\tVALUE\tGRADIENT")
	for _, name := range names {
		v, _ := e.params.Get(name)
		fmt.Fprintf(w, "%s\t%.6g\t%.6g\n", name, v, grad[name])
	}
	return w.Flush()
}

func objectives(e *env) (optim.CostFunc, optim.GradientFunc) {
	cost := func(ctx context.Context, p drive.Parameters) (float64, error) {
		return ident.TotalCost(ctx, ident.SafeCost, e.samples, p, e.cfg.Fit.Workers)
	}
	g := estimator(e)
	grad := func(ctx context.Context, p drive.Parameters, names []string) (map[string]float64, error) {
		return g.Gradient(ctx, e.samples, p, names)
	}
	return cost, grad
}

func runFit(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	cost, grad := objectives(e)
	fitLogger := e.logger
	if useTUI {
		fitLogger = logging.Nop()
	}
	fitter := optim.NewFitter(e.cfg.Fit.Params, cost, grad, fitLogger)
	fitter.LearningRate = e.cfg.Fit.LearningRate
	fitter.Iterations = e.cfg.Fit.Iterations
	fitter.Tolerance = e.cfg.Fit.Tolerance

	var res optim.FitResult
	if useTUI {
		res, err = fitWithTUI(ctx, cancel, fitter, e.params)
	} else {
		res, err = fitter.Fit(ctx, e.params)
	}
	if err != nil {
		return err
	}

	if err := e.store.Init(); err != nil {
		return err
	}
	runID, err := e.store.Save(storage.RunMetadata{
		Kind:    "fit",
		Sample:  strings.Join(sampleNames(e.samples), ","),
		Dt:      telemetry.T,
		Cost:    res.Cost,
		Params:  res.Params,
		Metrics: map[string]float64{"iterations": float64(res.Iterations)},
	}, nil)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\ncost: %.6g\niterations: %d\nconverged: %v\n\n", runID, res.Cost, res.Iterations, res.Converged)
	return printYAML(res.Params)
}

func fitWithTUI(ctx context.Context, cancel context.CancelFunc, fitter *optim.Fitter, start drive.Parameters) (optim.FitResult, error) {
	updates := make(chan optim.Progress, 16)
	fitter.Observer = func(p optim.Progress) {
		select {
		case updates <- p:
		case <-ctx.Done():
		}
	}

	type outcome struct {
		res optim.FitResult
		err error
	}
	finished := make(chan outcome, 1)
	go func() {
		res, err := fitter.Fit(ctx, start)
		close(updates)
		finished <- outcome{res, err}
	}()

	final, err := tea.NewProgram(viz.NewFitModel(fitter.Names, fitter.Iterations, updates)).Run()
	if err != nil {
		cancel()
	}
	if m, ok := final.(viz.FitModel); ok && m.Aborted() {
		cancel()
	}
	out := <-finished
	if out.err != nil {
		return out.res, out.err
	}
	return out.res, err
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	cost, _ := objectives(e)
	search := optim.NewGridSearch(e.cfg.Search.Axes(), e.logger)
	e.logger.Infow("grid search", "combinations", search.Size())

	best, bestCost, err := search.Search(ctx, e.params, cost)
	if err != nil {
		return err
	}

	if err := e.store.Init(); err != nil {
		return err
	}
	runID, err := e.store.Save(storage.RunMetadata{
		Kind:    "search",
		Sample:  strings.Join(sampleNames(e.samples), ","),
		Dt:      telemetry.T,
		Cost:    bestCost,
		Params:  best,
		Metrics: map[string]float64{"combinations": float64(search.Size())},
	}, nil)
	if err != nil {
		return err
	}

	fmt.Printf("run: %s\nbest cost: %.6g\n\n", runID, bestCost)
	return printYAML(best)
}

func runParams(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, false)
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	switch {
	case asArray:
		a := e.params.ToArray()
		strs := make([]string, len(a))
		for i, v := range a {
			strs[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		fmt.Println("[" + strings.Join(strs, ", ") + "]")
	case asYAML:
		return printYAML(e.params)
	default:
		fmt.Println(e.params)
		if m, err := e.params.ToUniformFrictionMap(); err == nil {
			fmt.Printf("uniform friction: wheel=%g roller=%g directional=%g\n",
				m[drive.WheelFriction], m[drive.RollerFriction], m[drive.DirectionalFriction])
		}
	}
	return nil
}

func printYAML(p drive.Parameters) error {
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]drive.Parameters{"drive": p}); err != nil {
		return err
	}
	return enc.Close()
}

func sampleNames(samples []*telemetry.Sample) []string {
	names := make([]string, len(samples))
	for i, s := range samples {
		names[i] = s.Name
	}
	return names
}

func listRuns(cmd *cobra.Command, args []string) error {
	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tSTEPS\tCOST\tSAMPLE")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.6g\t%s\n",
			run.ID,
			run.Kind,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Steps,
			run.Cost,
			run.Sample,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	simulated, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	source := against
	if source == "" && meta.Kind == "simulate" {
		source = meta.Sample
	}
	var measured *telemetry.Sample
	if source != "" {
		if measured, err = telemetry.LoadCSV(source); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot load %s, plotting the simulation alone: %v\n", source, err)
			measured = nil
		}
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("kind: %s\n", meta.Kind)
	fmt.Printf("samples: %d\n\n", simulated.Len())

	fmt.Print(viz.VelocityPlot(measured, simulated, 80, 10))
	if showPath {
		fmt.Print(viz.PathPlot(60, 20, measured, simulated))
	}
	if svgFile != "" {
		return writeSVG(svgFile, measured, simulated)
	}
	return nil
}

func writeSVG(path string, measured, simulated *telemetry.Sample) error {
	series := []export.Series{export.SeriesOf(simulated, "#ff4444")}
	if measured != nil {
		series = append(series, export.SeriesOf(measured, "#00ccff"))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := export.PathsToSVG(f, 800, 600, series...); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st, err := runStore(cmd)
	if err != nil {
		return err
	}
	return st.ExportJSON(os.Stdout, args[0])
}

func analyzeResiduals(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd, args, true)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, cancel := signalContext()
	defer cancel()

	results, err := sim.NewBatch(sim.New(drive.NewModel(e.params)), e.cfg.Fit.Workers).Run(ctx, e.samples)
	if err != nil {
		return err
	}

	for k, res := range results {
		sample := e.samples[k]
		residuals, err := analysis.Residuals(sample, res)
		if err != nil {
			return err
		}

		fmt.Printf("frequency analysis: %s\n\n", sample.Name)
		for _, channel := range analysis.Channels {
			r := residuals[channel]
			freq, power, err := analysis.DominantFrequency(r, telemetry.T)
			if err != nil {
				return err
			}
			ps := analysis.PowerSpectrum(r)
			fmt.Println(asciigraph.Plot(ps[1:],
				asciigraph.Height(8),
				asciigraph.Width(80),
				asciigraph.Caption(channel+" residual power spectrum"),
			))
			fmt.Printf("dominant frequency: %.3f hz (power %.4g)\n", freq, power)
			if freq > 0 {
				fmt.Printf("period: %.3f s\n", 1.0/freq)
			}
			fmt.Println()
		}
	}
	return nil
}
