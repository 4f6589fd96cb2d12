package scenario

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// Sweep reruns one step across a range of a single parameter.
type Sweep struct {
	Step Step
	// Param is "stiffness" or "radius".
	Param    string
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult holds the metrics of one sweep point.
type SweepResult struct {
	ParamValue float64
	Metrics    map[string]float64
	LastError  int
}

func (s *Sweep) apply(st *Step, v float64) error {
	switch s.Param {
	case "stiffness":
		st.Stiffness = v
	case "radius":
		st.Sphere.Radius = v
	default:
		return fmt.Errorf("unknown sweep parameter: %s", s.Param)
	}
	return nil
}

func (s *Sweep) check() error {
	if s.NumSteps < 2 {
		return fmt.Errorf("sweep needs at least 2 points, got %d", s.NumSteps)
	}
	if err := s.apply(&Step{}, 0); err != nil {
		return err
	}
	// zero stiffness means "model default", which would mislabel the point
	if s.Param == "stiffness" && math.Min(s.Min, s.Max) <= 0 {
		return fmt.Errorf("stiffness sweep needs positive bounds, got %g..%g", s.Min, s.Max)
	}
	return nil
}

func (s *Sweep) values() []float64 {
	vs := make([]float64, s.NumSteps)
	d := (s.Max - s.Min) / float64(s.NumSteps-1)
	for i := range vs {
		vs[i] = s.Min + float64(i)*d
	}
	return vs
}

// RunSweep executes the step once per parameter value, evenly spaced from
// Min to Max inclusive.
func (r *Runner) RunSweep(ctx context.Context, sweep *Sweep) ([]SweepResult, error) {
	if err := sweep.check(); err != nil {
		return nil, err
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	for i, v := range sweep.values() {
		st := sweep.Step
		if err := sweep.apply(&st, v); err != nil {
			return nil, err
		}

		res, err := r.RunStep(ctx, st)
		if err != nil {
			return results, fmt.Errorf("sweep %s=%g: %w", sweep.Param, v, err)
		}
		results = append(results, SweepResult{
			ParamValue: v,
			Metrics:    res.Metrics,
			LastError:  res.LastError,
		})

		r.logger().Debug("sweep point done", "point", i+1, "of", sweep.NumSteps, sweep.Param, v)
	}
	return results, nil
}

// RunnerFactory opens a runner on its own device. release tears it down.
type RunnerFactory func() (r *Runner, release func() error, err error)

// ParallelSweep runs the sweep points concurrently, each on a runner of its
// own, with at most workers in flight. Results are in parameter order. The
// first failure cancels the remaining points.
func ParallelSweep(ctx context.Context, sweep *Sweep, workers int, open RunnerFactory) ([]SweepResult, error) {
	if err := sweep.check(); err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}

	values := sweep.values()
	results := make([]SweepResult, len(values))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range values {
		i, v := i, v
		g.Go(func() error {
			st := sweep.Step
			if err := sweep.apply(&st, v); err != nil {
				return err
			}

			r, release, err := open()
			if err != nil {
				return err
			}
			res, err := r.RunStep(ctx, st)
			if rerr := release(); err == nil {
				err = rerr
			}
			if err != nil {
				return fmt.Errorf("sweep %s=%g: %w", sweep.Param, v, err)
			}

			results[i] = SweepResult{
				ParamValue: v,
				Metrics:    res.Metrics,
				LastError:  res.LastError,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
