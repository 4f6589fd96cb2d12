package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/session"
	"github.com/san-kum/touchy/internal/simdevice"
)

const sample = `
name: touch-and-release
description: approach the sphere, press, back off
steps:
  - model: sphere
    duration: 1.0
    sphere:
      radius: 0.05
    hand:
      from: [0.1, 0, 0]
      to: [0, 0, 0]
    buttons:
      - at: 0.1
        primary: true
      - at: 0.2
      - at: 0.3
        primary: true
        secondary: true
  - model: idle
    duration: 0.5
    hand:
      from: [0, 0, 0]
      to: [0.1, 0, 0]
`

func newRunner(t *testing.T) *Runner {
	t.Helper()
	cfg := simdevice.DefaultConfig()
	cfg.Manual = true
	drv, err := simdevice.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	sess := session.New(drv, session.DefaultOptions(), nil)
	if err := sess.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Shutdown() })
	return &Runner{Session: sess, Device: drv, Every: 10, Mass: cfg.Mass}
}

func TestParse(t *testing.T) {
	sc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if sc.Name != "touch-and-release" || len(sc.Steps) != 2 {
		t.Fatalf("got %+v", sc)
	}
	st := sc.Steps[0]
	if st.Sphere.Radius != 0.05 || st.Hand.From[0] != 0.1 {
		t.Errorf("step = %+v", st)
	}
	if len(st.Buttons) != 3 || !st.Buttons[2].Secondary {
		t.Errorf("buttons = %+v", st.Buttons)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sc.yaml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no steps", "name: empty\n"},
		{"unknown model", "steps:\n  - model: magnet\n    duration: 1\n"},
		{"zero duration", "steps:\n  - model: idle\n"},
		{"negative stiffness", "steps:\n  - model: sphere\n    duration: 1\n    stiffness: -1\n"},
		{"unordered buttons", "steps:\n  - model: idle\n    duration: 1\n    buttons:\n      - at: 0.5\n      - at: 0.1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRun(t *testing.T) {
	sc, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	r := newRunner(t)

	results, err := r.Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}

	touch := results[0]
	if len(touch.Frames) != 100 {
		t.Errorf("kept %d frames, want 100", len(touch.Frames))
	}
	if touch.Metrics["contact_ratio"] <= 0 || touch.Metrics["peak_force"] <= 0 {
		t.Errorf("sphere step never touched: %v", touch.Metrics)
	}
	if touch.Metrics["button_presses"] != 2 {
		t.Errorf("button presses = %f, want 2", touch.Metrics["button_presses"])
	}
	if touch.LastError != 0 {
		t.Errorf("last error = %d", touch.LastError)
	}

	idle := results[1]
	if idle.Metrics["contact_ratio"] != 0 {
		t.Errorf("idle step commanded force: %v", idle.Metrics)
	}
	if _, ok := r.Session.Active(); ok {
		t.Error("model still active after run")
	}
}

func TestRunCancelled(t *testing.T) {
	sc, _ := Parse([]byte(sample))
	r := newRunner(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := r.Run(ctx, sc)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(results) != 0 {
		t.Errorf("got %d results", len(results))
	}
	if _, ok := r.Session.Active(); ok {
		t.Error("cancelled step left its model running")
	}
}

func TestRunCancelledReportsStopFailure(t *testing.T) {
	sc, _ := Parse([]byte(sample))
	r := newRunner(t)
	r.Device.FailNext(simdevice.OpUnschedule, device.ErrorInfo{Code: device.CommError})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.RunStep(ctx, sc.Steps[0])
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := device.CodeOf(err); got != device.CommError {
		t.Errorf("code = %v, want the stop failure CommError", got)
	}
}

func TestRunSweepStiffness(t *testing.T) {
	sc, _ := Parse([]byte(sample))
	r := newRunner(t)

	step := sc.Steps[0]
	step.Buttons = nil
	results, err := r.RunSweep(context.Background(), &Sweep{
		Step:     step,
		Param:    "stiffness",
		Min:      1,
		Max:      50,
		NumSteps: 3,
	})
	if err != nil {
		t.Fatalf("RunSweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d points", len(results))
	}
	if results[1].ParamValue != 25.5 {
		t.Errorf("midpoint = %f, want 25.5", results[1].ParamValue)
	}
	if results[0].Metrics["peak_force"] >= results[2].Metrics["peak_force"] {
		t.Errorf("stiffer wall should push harder: %f vs %f",
			results[0].Metrics["peak_force"], results[2].Metrics["peak_force"])
	}
}

func TestRunSweepRejectsBadInput(t *testing.T) {
	r := newRunner(t)
	if _, err := r.RunSweep(context.Background(), &Sweep{Param: "mass", NumSteps: 3}); err == nil {
		t.Error("expected error for unknown parameter")
	}
	if _, err := r.RunSweep(context.Background(), &Sweep{Param: "radius", NumSteps: 1}); err == nil {
		t.Error("expected error for a single point")
	}
	// zero stiffness would silently run at the model default
	if _, err := r.RunSweep(context.Background(), &Sweep{Param: "stiffness", Min: 0, Max: 10, NumSteps: 3}); err == nil {
		t.Error("expected error for a non-positive stiffness bound")
	}
}

func openRunner() (*Runner, func() error, error) {
	cfg := simdevice.DefaultConfig()
	cfg.Manual = true
	drv, err := simdevice.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	sess := session.New(drv, session.DefaultOptions(), nil)
	if err := sess.Init(); err != nil {
		return nil, nil, err
	}
	return &Runner{Session: sess, Device: drv, Every: 10, Mass: cfg.Mass}, sess.Shutdown, nil
}

func TestParallelSweep(t *testing.T) {
	sc, _ := Parse([]byte(sample))
	step := sc.Steps[0]
	step.Buttons = nil

	results, err := ParallelSweep(context.Background(), &Sweep{
		Step:     step,
		Param:    "stiffness",
		Min:      1,
		Max:      50,
		NumSteps: 4,
	}, 2, openRunner)
	if err != nil {
		t.Fatalf("ParallelSweep: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d points", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].ParamValue <= results[i-1].ParamValue {
			t.Errorf("results out of order at %d: %v", i, results)
		}
	}
	if results[0].Metrics["peak_force"] >= results[3].Metrics["peak_force"] {
		t.Errorf("stiffer wall should push harder: %f vs %f",
			results[0].Metrics["peak_force"], results[3].Metrics["peak_force"])
	}
}

func TestParallelSweepFactoryError(t *testing.T) {
	boom := errors.New("no device")
	_, err := ParallelSweep(context.Background(), &Sweep{
		Step:     Step{Model: "sphere", Duration: 0.1},
		Param:    "radius",
		Min:      0.01,
		Max:      0.02,
		NumSteps: 2,
	}, 4, func() (*Runner, func() error, error) { return nil, nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}
