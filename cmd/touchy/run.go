package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/san-kum/touchy/internal/config"
	"github.com/san-kum/touchy/internal/log"
	"github.com/san-kum/touchy/internal/scenario"
	"github.com/san-kum/touchy/internal/session"
	"github.com/san-kum/touchy/internal/simdevice"
	"github.com/san-kum/touchy/internal/storage"
	"github.com/spf13/cobra"
)

// openSession builds a simulated device and a session bound to it. Manual
// devices advance only when stepped.
func openSession(cfg *config.Config, manual bool) (*simdevice.Device, *session.Session, error) {
	simCfg := cfg.SimDevice()
	simCfg.Manual = manual
	drv, err := simdevice.New(simCfg)
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(drv, sessionOptions(cfg), log.L())
	if err := sess.Init(); err != nil {
		return nil, nil, fmt.Errorf("init device: %w (status %d)", err, session.StatusCode(err))
	}
	return drv, sess, nil
}

func newRunner(cfg *config.Config, drv *simdevice.Device, sess *session.Session) *scenario.Runner {
	return &scenario.Runner{
		Session: sess,
		Device:  drv,
		Every:   every,
		Mass:    cfg.Device.Mass,
		Log:     log.L(),
	}
}

// stepFromConfig turns the flag-level configuration into one scenario step.
func stepFromConfig(cfg *config.Config) (scenario.Step, error) {
	st := scenario.Step{
		Model:     cfg.Model,
		Duration:  cfg.Duration,
		Stiffness: cfg.Servo.Stiffness,
		Sphere:    scenario.SphereSpec{Center: cfg.Sphere.Center, Radius: cfg.Sphere.Radius},
		Hand:      scenario.HandPath{From: cfg.Device.Hand, To: cfg.Device.Hand},
	}
	if len(handTo) > 0 {
		to, err := triple("hand-to", handTo)
		if err != nil {
			return st, err
		}
		st.Hand.To = to
	}
	return st, nil
}

func runMeta(cfg *config.Config, res scenario.StepResult) storage.RunMetadata {
	sp := res.Step.Sphere
	return storage.RunMetadata{
		Model:      res.Step.Model,
		Rate:       cfg.Rate,
		Duration:   res.Step.Duration,
		Integrator: cfg.Integrator,
		Stiffness:  res.Step.Stiffness,
		Sphere:     [4]float64{sp.Center[0], sp.Center[1], sp.Center[2], sp.Radius},
		LastError:  res.LastError,
		Metrics:    res.Metrics,
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runModel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	initLog(cmd, cfg, os.Stderr)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	step, err := stepFromConfig(cfg)
	if err != nil {
		return err
	}

	drv, sess, err := openSession(cfg, true)
	if err != nil {
		return err
	}
	defer sess.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("running %s at %g Hz...\n", cfg.Model, cfg.Rate)
	start := time.Now()

	res, err := newRunner(cfg, drv, sess).RunStep(ctx, step)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(runMeta(cfg, *res), res.Frames)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("frames: %d\n", len(res.Frames))
	if res.LastError != 0 {
		fmt.Printf("last error: 0x%04x\n", res.LastError)
	}
	printMetrics(res.Metrics)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := scenario.Load(args[0])
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	initLog(cmd, cfg, os.Stderr)

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	drv, sess, err := openSession(cfg, true)
	if err != nil {
		return err
	}
	defer sess.Shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("scenario: %s (%d steps)\n", sc.Name, len(sc.Steps))
	results, runErr := newRunner(cfg, drv, sess).Run(ctx, sc)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tMODEL\tRUN\tFRAMES\tMEAN_F\tCONTACT\tERR")
	for i, res := range results {
		meta := runMeta(cfg, res)
		meta.Scenario = sc.Name
		if res.Step.SaveAs != "" {
			meta.Model = res.Step.SaveAs
		}
		runID, err := st.Save(meta, res.Frames)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%.4f\t%.2f\t0x%04x\n",
			i+1,
			res.Step.Model,
			runID,
			len(res.Frames),
			res.Metrics["force_effort"],
			res.Metrics["contact_ratio"],
			res.LastError,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args[0])
	if err != nil {
		return err
	}
	initLog(cmd, cfg, os.Stderr)

	step, err := stepFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	sweep := &scenario.Sweep{
		Step:     step,
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepPoints,
	}

	var results []scenario.SweepResult
	if workers > 1 {
		results, err = scenario.ParallelSweep(ctx, sweep, workers, func() (*scenario.Runner, func() error, error) {
			drv, sess, err := openSession(cfg, true)
			if err != nil {
				return nil, nil, err
			}
			return newRunner(cfg, drv, sess), sess.Shutdown, nil
		})
	} else {
		drv, sess, oerr := openSession(cfg, true)
		if oerr != nil {
			return oerr
		}
		defer sess.Shutdown()
		results, err = newRunner(cfg, drv, sess).RunSweep(ctx, sweep)
	}
	if err != nil {
		return err
	}

	fmt.Printf("sweeping %s over %s\n\n", sweepParam, cfg.Model)
	if len(results) == 0 {
		return nil
	}

	names := make([]string, 0, len(results[0].Metrics))
	for name := range results[0].Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s", sweepParam)
	for _, name := range names {
		fmt.Fprintf(w, "\t%s", name)
	}
	fmt.Fprintln(w, "\terr")
	for _, r := range results {
		fmt.Fprintf(w, "%.4g", r.ParamValue)
		for _, name := range names {
			fmt.Fprintf(w, "\t%.4f", r.Metrics[name])
		}
		fmt.Fprintf(w, "\t0x%04x\n", r.LastError)
	}
	return w.Flush()
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}
