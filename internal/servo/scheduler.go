package servo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultStopTimeout  = 500 * time.Millisecond
	DefaultPollInterval = time.Millisecond
)

type Options struct {
	// StopTimeout bounds how long Stop waits for the in-flight frame.
	StopTimeout time.Duration
	// PollInterval is the status polling period used by Stop.
	PollInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		StopTimeout:  DefaultStopTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// Scheduler installs force models on the driver's servo scheduler and owns
// the state they share with control callers.
type Scheduler struct {
	drv  device.Driver
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	dev    device.DeviceHandle
	ready  bool
	active *frame
	handle device.Handle

	snap    Snapshot
	sphere  SphereCell
	lastErr errorCell
}

func New(drv device.Driver, opts Options, logger *slog.Logger) *Scheduler {
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		drv:  drv,
		opts: opts,
		log:  logger.With("component", "servo"),
		dev:  device.InvalidDevice,
	}
}

// Init opens the default device, enables force output and starts the servo loop.
func (s *Scheduler) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		info := device.ErrorInfo{Code: device.AlreadyInitiated}
		s.lastErr.Store(info)
		return &device.Error{Op: "open device", Info: info}
	}
	s.snap.Reset()

	dev := s.drv.OpenDefaultDevice()
	if err := s.check("open device"); err != nil {
		return err
	}
	s.dev = dev

	s.drv.EnableForceOutput()
	s.drv.StartScheduler()
	if err := s.check("start scheduler"); err != nil {
		return err
	}

	s.ready = true
	s.log.Info("device initialized", "device", dev)
	return nil
}

// ScheduleIdle installs the snapshot-only callback at default priority.
func (s *Scheduler) ScheduleIdle() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installLocked(force.New(force.Idle), device.PriorityDefault)
}

// ScheduleForceModel stores the sphere and installs model at maximum priority.
func (s *Scheduler) ScheduleForceModel(model force.Model, sphere force.Sphere) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sphere.Store(sphere)
	p := device.PriorityMax
	if !model.Kind.ProducesForce() {
		p = device.PriorityDefault
	}
	return s.installLocked(model, p)
}

func (s *Scheduler) installLocked(model force.Model, p device.Priority) error {
	if !s.ready {
		return notInitialized("schedule " + model.Kind.String())
	}
	if s.active != nil {
		if err := s.stopLocked(context.Background()); err != nil {
			return err
		}
	}

	f := &frame{
		drv:     s.drv,
		dev:     s.dev,
		model:   model,
		snap:    &s.snap,
		sphere:  &s.sphere,
		lastErr: &s.lastErr,
	}
	h := s.drv.ScheduleAsynchronous(f.Tick, p)
	if err := s.check("schedule " + model.Kind.String()); err != nil {
		return err
	}

	s.active, s.handle = f, h
	s.log.Debug("callback scheduled", "model", model.Kind, "stiffness", model.Stiffness, "priority", p, "handle", h)
	return nil
}

// Stop waits for the active callback to leave its current frame, then
// unschedules it. Without an active callback it does nothing.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Scheduler) stopLocked(parent context.Context) error {
	f := s.active
	if f == nil {
		return nil
	}
	f.stopping.Store(true)

	ctx, cancel := context.WithTimeout(parent, s.opts.StopTimeout)
	defer cancel()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	var scheduled bool
	for {
		scheduled = s.drv.WaitForCompletion(s.handle, device.WaitCheckStatus)
		if err := s.check("wait for completion"); err != nil {
			return err
		}
		if !scheduled || !f.inFrame.Load() {
			break
		}
		select {
		case <-ctx.Done():
			cause := device.ErrStopTimeout
			if err := parent.Err(); err != nil {
				cause = err
			}
			s.log.Warn("callback still in frame", "model", f.model.Kind, "timeout", s.opts.StopTimeout, "cause", cause)
			return &device.Error{
				Op:      "stop " + f.model.Kind.String(),
				Info:    device.ErrorInfo{Code: device.CodeStopTimeout},
				Wrapped: cause,
			}
		case <-ticker.C:
		}
	}

	if scheduled {
		s.drv.Unschedule(s.handle)
		if err := s.check("unschedule"); err != nil {
			return err
		}
	}

	s.log.Debug("callback stopped", "model", f.model.Kind, "handle", s.handle)
	s.active, s.handle = nil, device.InvalidHandle
	return nil
}

// Shutdown stops the servo loop and disables the device. Failures carry
// OffsetStopScheduler or OffsetDisableDevice in their status.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		s.active.stopping.Store(true)
	}

	s.drv.StopScheduler()
	if err := s.checkOffset("stop scheduler", device.OffsetStopScheduler); err != nil {
		return err
	}
	s.active, s.handle = nil, device.InvalidHandle

	s.drv.DisableDevice(s.dev)
	if err := s.checkOffset("disable device", device.OffsetDisableDevice); err != nil {
		return err
	}

	s.ready = false
	s.dev = device.InvalidDevice
	s.log.Info("device shut down")
	return nil
}

// Active reports the installed model, if its callback is still running.
func (s *Scheduler) Active() (force.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.finished.Load() {
		return force.Idle, false
	}
	return s.active.model.Kind, true
}

func (s *Scheduler) Snapshot() Reading { return s.snap.Read() }

func (s *Scheduler) Sphere() force.Sphere          { return s.sphere.Load() }
func (s *Scheduler) SetSphere(sp force.Sphere)     { s.sphere.Store(sp) }
func (s *Scheduler) SphereRadius() float64         { return s.sphere.Radius() }
func (s *Scheduler) SetSphereRadius(r float64)     { s.sphere.SetRadius(r) }
func (s *Scheduler) SetSphereCenter(center r3.Vec) { s.sphere.SetCenter(center) }

// LastError returns the most recent device error seen by any operation or
// frame. It stays set until ClearError.
func (s *Scheduler) LastError() device.ErrorInfo {
	if info := s.drv.GetError(); info.IsError() {
		s.lastErr.Store(info)
	}
	return s.lastErr.Load()
}

func (s *Scheduler) ClearError() {
	s.lastErr.Store(device.ErrorInfo{})
}

// check pops the driver error and records it.
func (s *Scheduler) check(op string) error {
	return s.checkOffset(op, 0)
}

func (s *Scheduler) checkOffset(op string, offset int) error {
	info := s.drv.GetError()
	if !info.IsError() {
		return nil
	}
	s.lastErr.Store(info)
	s.log.Debug("device error", "op", op, "code", info.Code, "internal", info.Internal)
	return &device.Error{Op: op, Info: info, Offset: offset}
}

func notInitialized(op string) error {
	return &device.Error{
		Op:      op,
		Info:    device.ErrorInfo{Code: device.CodeNotInitialized},
		Wrapped: device.ErrNotInitialized,
	}
}
