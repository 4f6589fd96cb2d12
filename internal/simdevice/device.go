package simdevice

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/integrators"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	DefaultRate          = 1000.0
	DefaultMaxCallbacks  = 32
	DefaultMass          = 0.2
	DefaultDamping       = 2.0
	DefaultHandStiffness = 5.0

	simDevice     device.DeviceHandle = 1
	maxErrorStack                     = 32
)

// Op names a driver operation for failure injection.
type Op string

const (
	OpOpen       Op = "open"
	OpEnable     Op = "enable"
	OpStart      Op = "start"
	OpStop       Op = "stop"
	OpDisable    Op = "disable"
	OpSchedule   Op = "schedule"
	OpUnschedule Op = "unschedule"
	OpWait       Op = "wait"
	OpFrame      Op = "frame"
)

type Config struct {
	// Rate is servo ticks per second. Zero leaves ticking to Step at
	// DefaultRate.
	Rate float64
	// Manual leaves ticking to Step while keeping the time step 1/Rate.
	Manual        bool
	MaxCallbacks  int
	Mass          float64
	Damping       float64
	HandStiffness float64
	// MaxForce clamps the output; exceeding it raises ExceededMaxForce.
	// Zero disables the limit.
	MaxForce   float64
	Integrator string
	Start      r3.Vec
}

func DefaultConfig() Config {
	return Config{
		Rate:          DefaultRate,
		MaxCallbacks:  DefaultMaxCallbacks,
		Mass:          DefaultMass,
		Damping:       DefaultDamping,
		HandStiffness: DefaultHandStiffness,
		Integrator:    "rk4",
	}
}

// Sample is the device state after one tick.
type Sample struct {
	Tick       uint64
	Time       float64
	Position   r3.Vec
	Velocity   r3.Vec
	Force      r3.Vec
	HandTarget r3.Vec
	Buttons    device.Buttons
}

type entry struct {
	handle   device.Handle
	priority device.Priority
	cb       device.Callback
	removed  atomic.Bool
}

type Device struct {
	cfg   Config
	dt    float64
	integ integrators.Integrator
	body  *effector

	mu      sync.Mutex
	changed *sync.Cond
	opened  bool
	enabled bool
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
	// errs belongs to control callers; servoErrs to the goroutine running
	// callbacks, whose id is in servoG during a tick.
	errs      []device.ErrorInfo
	servoErrs []device.ErrorInfo
	servoG    atomic.Uint64
	fail      map[Op]device.ErrorInfo
	entries   []*entry
	next      device.Handle
	state     integrators.State
	held      bool
	hold      r3.Vec
	buttons   device.Buttons
	hand      r3.Vec
	frames    int
	pending   r3.Vec
	applied   r3.Vec
	ticks     uint64
	t         float64
	onFrame   func(Sample)
}

func New(cfg Config) (*Device, error) {
	if cfg.MaxCallbacks <= 0 {
		cfg.MaxCallbacks = DefaultMaxCallbacks
	}
	if cfg.Mass <= 0 {
		return nil, fmt.Errorf("mass must be positive, got %f", cfg.Mass)
	}
	if cfg.Rate < 0 {
		return nil, fmt.Errorf("rate must not be negative, got %f", cfg.Rate)
	}
	integ, err := integrators.ByName(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	dt := 1.0 / DefaultRate
	if cfg.Rate > 0 {
		dt = 1.0 / cfg.Rate
	}

	d := &Device{
		cfg:   cfg,
		dt:    dt,
		integ: integ,
		body:  &effector{mass: cfg.Mass, damping: cfg.Damping},
		fail:  make(map[Op]device.ErrorInfo),
		next:  1,
		state: integrators.State{cfg.Start.X, cfg.Start.Y, cfg.Start.Z, 0, 0, 0},
		hand:  cfg.Start,
	}
	d.changed = sync.NewCond(&d.mu)
	return d, nil
}

// FailNext makes the next call of op raise info.
func (d *Device) FailNext(op Op, info device.ErrorInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail[op] = info
}

// failLocked consumes an injected failure for op. Caller holds d.mu.
func (d *Device) failLocked(op Op) bool {
	info, ok := d.fail[op]
	if !ok {
		return false
	}
	delete(d.fail, op)
	d.pushLocked(info)
	return true
}

// stackLocked picks the caller's error stack. Like a vendor driver's
// per-thread stacks, errors raised inside a callback are only visible to
// that callback.
func (d *Device) stackLocked() *[]device.ErrorInfo {
	if g := d.servoG.Load(); g != 0 && g == goid() {
		return &d.servoErrs
	}
	return &d.errs
}

func (d *Device) pushLocked(info device.ErrorInfo) {
	st := d.stackLocked()
	if len(*st) == maxErrorStack {
		*st = (*st)[1:]
	}
	*st = append(*st, info)
}

// GetError pops the most recent error raised on the caller's side.
func (d *Device) GetError() device.ErrorInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.stackLocked()
	if len(*st) == 0 {
		return device.ErrorInfo{}
	}
	info := (*st)[len(*st)-1]
	*st = (*st)[:len(*st)-1]
	return info
}

func (d *Device) OpenDefaultDevice() device.DeviceHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpOpen) {
		return device.InvalidDevice
	}
	if d.opened {
		d.pushLocked(device.ErrorInfo{Code: device.AlreadyInitiated})
		return device.InvalidDevice
	}
	d.opened = true
	return simDevice
}

func (d *Device) DisableDevice(h device.DeviceHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpDisable) {
		return
	}
	if !d.opened || h != simDevice {
		d.pushLocked(device.ErrorInfo{Code: device.BadHandle})
		return
	}
	d.opened = false
	d.enabled = false
}

func (d *Device) EnableForceOutput() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpEnable) {
		return
	}
	d.enabled = true
}

func (d *Device) BeginFrame(h device.DeviceHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if h != simDevice {
		d.pushLocked(device.ErrorInfo{Code: device.BadHandle})
		return
	}
	d.frames++
}

func (d *Device) EndFrame(h device.DeviceHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frames == 0 {
		d.pushLocked(device.ErrorInfo{Code: device.IllegalEnd})
		return
	}
	d.frames--
	if d.failLocked(OpFrame) || d.frames > 0 {
		return
	}

	f := d.pending
	if !d.enabled {
		f = r3.Vec{}
	}
	if limit := d.cfg.MaxForce; limit > 0 {
		if n := r3.Norm(f); n > limit {
			f = r3.Scale(limit/n, f)
			d.pushLocked(device.ErrorInfo{Code: device.ExceededMaxForce})
		}
	}
	d.applied = f
}

func (d *Device) Buttons() device.Buttons {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buttons
}

func (d *Device) Position() r3.Vec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionLocked()
}

func (d *Device) positionLocked() r3.Vec {
	if d.held {
		return d.hold
	}
	return r3.Vec{X: d.state[0], Y: d.state[1], Z: d.state[2]}
}

func (d *Device) SetForce(f r3.Vec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.frames == 0 {
		d.pushLocked(device.ErrorInfo{Code: device.InvalidOperation})
		return
	}
	d.pending = f
}

func (d *Device) StartScheduler() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpStart) || d.running {
		return
	}
	d.running = true
	if d.cfg.Rate > 0 && !d.cfg.Manual {
		d.stop = make(chan struct{})
		d.wg.Add(1)
		go d.loop(d.stop, time.Duration(float64(time.Second)/d.cfg.Rate))
	}
}

func (d *Device) StopScheduler() {
	d.mu.Lock()
	if d.failLocked(OpStop) || !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	stop := d.stop
	d.stop = nil
	for _, e := range d.entries {
		e.removed.Store(true)
	}
	d.entries = nil
	d.changed.Broadcast()
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		d.wg.Wait()
	}
}

func (d *Device) loop(stop <-chan struct{}, period time.Duration) {
	defer d.wg.Done()
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.Step()
		}
	}
}

func (d *Device) ScheduleAsynchronous(cb device.Callback, p device.Priority) device.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpSchedule) {
		return device.InvalidHandle
	}
	if len(d.entries) >= d.cfg.MaxCallbacks {
		d.pushLocked(device.ErrorInfo{Code: device.SchedulerFull})
		return device.InvalidHandle
	}

	e := &entry{handle: d.next, priority: p, cb: cb}
	d.next++
	d.entries = append(d.entries, e)
	sort.SliceStable(d.entries, func(i, j int) bool {
		return d.entries[i].priority > d.entries[j].priority
	})
	return e.handle
}

func (d *Device) Unschedule(h device.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpUnschedule) {
		return
	}
	if !d.removeLocked(h) {
		d.pushLocked(device.ErrorInfo{Code: device.BadHandle})
	}
}

func (d *Device) removeLocked(h device.Handle) bool {
	for i, e := range d.entries {
		if e.handle == h {
			e.removed.Store(true)
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			d.changed.Broadcast()
			return true
		}
	}
	return false
}

func (d *Device) scheduledLocked(h device.Handle) bool {
	for _, e := range d.entries {
		if e.handle == h {
			return true
		}
	}
	return false
}

// WaitForCompletion with WaitInfinite blocks until h leaves the table or the
// scheduler stops. In manual mode another goroutine must call Step.
func (d *Device) WaitForCompletion(h device.Handle, mode device.WaitMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failLocked(OpWait) {
		return d.scheduledLocked(h)
	}
	if mode == device.WaitInfinite {
		for d.running && d.scheduledLocked(h) {
			d.changed.Wait()
		}
	}
	return d.scheduledLocked(h)
}

// Step runs one servo tick: every scheduled callback in priority order,
// then the end-effector dynamics under the committed force.
func (d *Device) Step() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	entries := make([]*entry, len(d.entries))
	copy(entries, d.entries)
	d.pending = r3.Vec{}
	d.applied = r3.Vec{}
	d.mu.Unlock()

	d.servoG.Store(goid())
	for _, e := range entries {
		if e.removed.Load() {
			continue
		}
		if e.cb() == device.CallbackDone {
			d.mu.Lock()
			d.removeLocked(e.handle)
			d.mu.Unlock()
		}
	}
	d.servoG.Store(0)

	d.mu.Lock()
	d.advanceLocked()
	sample := d.sampleLocked()
	fn := d.onFrame
	d.mu.Unlock()

	if fn != nil {
		fn(sample)
	}
}

func (d *Device) advanceLocked() {
	d.ticks++
	d.t += d.dt
	if d.held {
		d.state = integrators.State{d.hold.X, d.hold.Y, d.hold.Z, 0, 0, 0}
		return
	}
	pos := d.positionLocked()
	hand := r3.Scale(d.cfg.HandStiffness, r3.Sub(d.hand, pos))
	total := r3.Add(d.applied, hand)
	next := d.integ.Step(d.body, d.state, integrators.Control{total.X, total.Y, total.Z}, d.t, d.dt)
	if next.IsValid() {
		d.state = next
	}
}

func (d *Device) sampleLocked() Sample {
	return Sample{
		Tick:       d.ticks,
		Time:       d.t,
		Position:   d.positionLocked(),
		Velocity:   r3.Vec{X: d.state[3], Y: d.state[4], Z: d.state[5]},
		Force:      d.applied,
		HandTarget: d.hand,
		Buttons:    d.buttons,
	}
}

// OnFrame registers fn to receive a Sample after every tick. It runs on the
// servo goroutine.
func (d *Device) OnFrame(fn func(Sample)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onFrame = fn
}

func (d *Device) SetButtons(b device.Buttons) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buttons = b
}

func (d *Device) SetHandTarget(v r3.Vec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hand = v
}

func (d *Device) HandTarget() r3.Vec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hand
}

// Hold pins the end-effector at pos until Release.
func (d *Device) Hold(pos r3.Vec) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = true
	d.hold = pos
	d.state = integrators.State{pos.X, pos.Y, pos.Z, 0, 0, 0}
}

func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.held = false
}

// AppliedForce is the force committed in the last tick.
func (d *Device) AppliedForce() r3.Vec {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.applied
}

func (d *Device) Scheduled(h device.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scheduledLocked(h)
}

func (d *Device) CallbackCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

func (d *Device) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Device) Time() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t
}

// Dt is the simulated time advanced per tick.
func (d *Device) Dt() float64 { return d.dt }
