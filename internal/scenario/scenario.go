package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/metrics"
	"github.com/san-kum/touchy/internal/session"
	"github.com/san-kum/touchy/internal/simdevice"
	"github.com/san-kum/touchy/internal/storage"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

// Scenario defines a scripted sequence of force models
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step runs one model while the simulated hand moves from From to To.
type Step struct {
	Model     string        `yaml:"model"`
	Duration  float64       `yaml:"duration"`
	Stiffness float64       `yaml:"stiffness"`
	Sphere    SphereSpec    `yaml:"sphere"`
	Hand      HandPath      `yaml:"hand"`
	Buttons   []ButtonEvent `yaml:"buttons"`
	SaveAs    string        `yaml:"save_as"`
}

type SphereSpec struct {
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
}

// HandPath is a straight line traversed at constant speed over the step.
type HandPath struct {
	From [3]float64 `yaml:"from"`
	To   [3]float64 `yaml:"to"`
}

// ButtonEvent sets the button state at time At, relative to the step start.
type ButtonEvent struct {
	At        float64 `yaml:"at"`
	Primary   bool    `yaml:"primary"`
	Secondary bool    `yaml:"secondary"`
}

func (b ButtonEvent) mask() device.Buttons {
	var m device.Buttons
	if b.Primary {
		m |= device.Button1
	}
	if b.Secondary {
		m |= device.Button2
	}
	return m
}

// Load reads a scenario from a YAML file
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) Validate() error {
	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, st := range sc.Steps {
		if _, err := force.ParseKind(st.Model); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		if st.Duration <= 0 {
			return fmt.Errorf("step %d: duration must be positive, got %g", i+1, st.Duration)
		}
		if st.Stiffness < 0 {
			return fmt.Errorf("step %d: stiffness must not be negative, got %g", i+1, st.Stiffness)
		}
		for j := 1; j < len(st.Buttons); j++ {
			if st.Buttons[j].At < st.Buttons[j-1].At {
				return fmt.Errorf("step %d: button events out of order at %g", i+1, st.Buttons[j].At)
			}
		}
	}
	return nil
}

// StepResult is the recording of one step.
type StepResult struct {
	Step      Step
	Frames    []simdevice.Sample
	Metrics   map[string]float64
	LastError int
}

// Runner plays steps against a session bound to a manually stepped device.
type Runner struct {
	Session *session.Session
	Device  *simdevice.Device
	// Every keeps one frame in Every for the recording.
	Every int
	// Mass feeds the energy metric.
	Mass float64
	Log  *slog.Logger
}

// Run executes all steps in order. Results for completed steps are returned
// even when a later step fails.
func (r *Runner) Run(ctx context.Context, sc *Scenario) ([]StepResult, error) {
	results := make([]StepResult, 0, len(sc.Steps))
	for i, st := range sc.Steps {
		r.logger().Info("running step", "step", i+1, "of", len(sc.Steps), "model", st.Model)
		res, err := r.RunStep(ctx, st)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, *res)
	}
	return results, nil
}

// RunStep starts the step's model, ticks the device for the step duration
// and stops the model again.
func (r *Runner) RunStep(ctx context.Context, st Step) (*StepResult, error) {
	kind, err := force.ParseKind(st.Model)
	if err != nil {
		return nil, err
	}

	rec := storage.NewRecorder(r.Every, metrics.Standard(r.Mass))
	r.Device.OnFrame(rec.Observe)
	defer r.Device.OnFrame(nil)

	from, to := vec(st.Hand.From), vec(st.Hand.To)
	r.Device.SetHandTarget(from)
	r.Device.SetButtons(0)
	r.Session.ClearError()

	sphere := force.Sphere{Center: vec(st.Sphere.Center), Radius: st.Sphere.Radius}
	if st.Stiffness > 0 {
		err = r.Session.StartModel(kind, st.Stiffness, sphere)
	} else {
		err = r.Session.Start(kind, sphere)
	}
	if err != nil {
		return nil, err
	}

	dt := r.Device.Dt()
	ticks := int(math.Round(st.Duration / dt))
	next := 0
	for n := 0; n < ticks; n++ {
		if n%100 == 0 {
			if err := ctx.Err(); err != nil {
				if serr := r.Session.Stop(); serr != nil {
					r.logger().Warn("stop after cancel failed", "model", st.Model, "err", serr)
					return nil, errors.Join(err, fmt.Errorf("stop: %w", serr))
				}
				return nil, err
			}
		}

		t := float64(n) * dt
		for next < len(st.Buttons) && st.Buttons[next].At <= t {
			r.Device.SetButtons(st.Buttons[next].mask())
			next++
		}
		frac := float64(n+1) / float64(ticks)
		r.Device.SetHandTarget(r3.Add(from, r3.Scale(frac, r3.Sub(to, from))))
		r.Device.Step()
	}

	if err := r.Session.Stop(); err != nil {
		return nil, err
	}

	return &StepResult{
		Step:      st,
		Frames:    rec.Frames(),
		Metrics:   rec.Metrics(),
		LastError: r.Session.LastError(),
	}, nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Log == nil {
		return slog.Default()
	}
	return r.Log
}

func vec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}
