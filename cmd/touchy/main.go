package main

import (
	"fmt"
	"io"
	"os"

	"github.com/san-kum/touchy/internal/config"
	"github.com/san-kum/touchy/internal/log"
	"github.com/san-kum/touchy/internal/session"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	logLevel   string
	configFile string
	preset     string

	rate       float64
	duration   float64
	radius     float64
	center     []float64
	stiffness  float64
	scaled     bool
	integrator string
	hand       []float64
	handTo     []float64
	maxForce   float64
	every      int

	theme string

	sweepParam  string
	sweepMin    float64
	sweepMax    float64
	sweepPoints int
	workers     int

	exportOut string
	plane     string
	svgSize   []int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "touchy",
		Short:        "haptic servo loop on a simulated force-feedback device",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".touchy", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run a force model against the simulated hand and record it",
		Args:  cobra.ExactArgs(1),
		RunE:  runModel,
	}
	addModelFlags(runCmd)
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration in seconds")
	runCmd.Flags().Float64SliceVar(&handTo, "hand-to", nil, "move the hand to x,y,z over the run")
	runCmd.Flags().IntVar(&every, "every", 1, "record one frame in N")

	monitorCmd := &cobra.Command{
		Use:   "monitor [model]",
		Short: "live view of the servo loop",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMonitor,
	}
	addModelFlags(monitorCmd)
	monitorCmd.Flags().StringVar(&theme, "theme", "lab", "color theme")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "play a scripted scenario and record every step",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}
	scenarioCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	scenarioCmd.Flags().IntVar(&every, "every", 1, "record one frame in N")

	sweepCmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "rerun a model across a range of stiffness or radius",
		Args:  cobra.ExactArgs(1),
		RunE:  runSweep,
	}
	addModelFlags(sweepCmd)
	sweepCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "duration of each point in seconds")
	sweepCmd.Flags().Float64SliceVar(&handTo, "hand-to", nil, "move the hand to x,y,z over each point")
	sweepCmd.Flags().StringVar(&sweepParam, "param", "stiffness", "parameter to sweep (stiffness, radius)")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0.5, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 5.0, "last value")
	sweepCmd.Flags().IntVar(&sweepPoints, "points", 5, "number of values")
	sweepCmd.Flags().IntVar(&workers, "workers", 1, "points run in parallel, each on its own device")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list recorded runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot position, force and distance of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "contact statistics and force spectrum of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export a run's frames as csv",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw a run's trajectory and the sphere as svg",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
	exportSVGCmd.Flags().StringVar(&plane, "plane", "xy", "projection plane (xy, xz, yz)")
	exportSVGCmd.Flags().IntSliceVar(&svgSize, "size", []int{600, 600}, "image width,height in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, monitorCmd, scenarioCmd, sweepCmd, listCmd, plotCmd, analyzeCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&rate, "rate", config.DefaultRate, "servo rate in Hz")
	cmd.Flags().Float64Var(&radius, "radius", config.DefaultRadius, "sphere radius in meters")
	cmd.Flags().Float64SliceVar(&center, "center", []float64{0, 0, 0}, "sphere center x,y,z")
	cmd.Flags().Float64Var(&stiffness, "stiffness", 0, "force gain (0 keeps the model default)")
	cmd.Flags().BoolVar(&scaled, "scaled", false, "scale the to-center pull by penetration depth")
	cmd.Flags().StringVar(&integrator, "integrator", "rk4", "device integrator (rk4, euler)")
	cmd.Flags().Float64SliceVar(&hand, "hand", []float64{0, 0, 0}, "initial hand position x,y,z")
	cmd.Flags().Float64Var(&maxForce, "max-force", 0, "device force limit in newtons (0 is unlimited)")
}

// loadConfig layers defaults, preset, config file and changed flags, in
// that order.
func loadConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		cfg = config.GetPreset(model, preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	if model != "" {
		cfg.Model = model
	}

	flags := cmd.Flags()
	if flags.Changed("rate") {
		cfg.Rate = rate
	}
	if flags.Lookup("time") != nil && flags.Changed("time") {
		cfg.Duration = duration
	}
	if flags.Changed("radius") {
		cfg.Sphere.Radius = radius
	}
	if flags.Changed("center") {
		v, err := triple("center", center)
		if err != nil {
			return nil, err
		}
		cfg.Sphere.Center = v
	}
	if flags.Changed("stiffness") {
		cfg.Servo.Stiffness = stiffness
	}
	if flags.Changed("scaled") {
		cfg.Servo.ToCenterScaled = scaled
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("hand") {
		v, err := triple("hand", hand)
		if err != nil {
			return nil, err
		}
		cfg.Device.Hand = v
	}
	if flags.Changed("max-force") {
		cfg.Device.MaxForce = maxForce
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLog sends logs to w at the config's level unless --log-level was given.
func initLog(cmd *cobra.Command, cfg *config.Config, w io.Writer) {
	level := logLevel
	if cfg != nil && cfg.LogLevel != "" && !rootChanged(cmd, "log-level") {
		level = cfg.LogLevel
	}
	log.InitWriter(level, w)
}

func rootChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		f = cmd.InheritedFlags().Lookup(name)
	}
	return f != nil && f.Changed
}

func triple(name string, v []float64) ([3]float64, error) {
	if len(v) != 3 {
		return [3]float64{}, fmt.Errorf("--%s needs 3 values x,y,z, got %d", name, len(v))
	}
	return [3]float64{v[0], v[1], v[2]}, nil
}

func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		Servo:         cfg.ServoOptions(),
		Stiffness:     cfg.Servo.Stiffness,
		ScaleToCenter: cfg.Servo.ToCenterScaled,
	}
}
