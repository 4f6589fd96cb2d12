package simdevice

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/san-kum/touchy/internal/device"
	"gonum.org/v1/gonum/spatial/r3"
)

func manual(t *testing.T) *Device {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Rate = 0
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if h := d.OpenDefaultDevice(); h == device.InvalidDevice {
		t.Fatalf("open failed: %v", d.GetError())
	}
	d.EnableForceOutput()
	d.StartScheduler()
	return d
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero mass", func(c *Config) { c.Mass = 0 }},
		{"negative rate", func(c *Config) { c.Rate = -1 }},
		{"unknown integrator", func(c *Config) { c.Integrator = "leapfrog" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(&cfg)
			if _, err := New(cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOpenTwice(t *testing.T) {
	d := manual(t)
	if h := d.OpenDefaultDevice(); h != device.InvalidDevice {
		t.Errorf("second open returned %d", h)
	}
	if got := d.GetError().Code; got != device.AlreadyInitiated {
		t.Errorf("got %v, want AlreadyInitiated", got)
	}
}

func TestErrorStackIsLIFO(t *testing.T) {
	d := manual(t)
	d.Unschedule(99)
	d.EndFrame(simDevice)

	if got := d.GetError().Code; got != device.IllegalEnd {
		t.Errorf("first pop = %v, want IllegalEnd", got)
	}
	if got := d.GetError().Code; got != device.BadHandle {
		t.Errorf("second pop = %v, want BadHandle", got)
	}
	if got := d.GetError(); got.IsError() {
		t.Errorf("stack should be empty, got %v", got)
	}
}

func TestFailNextFiresOnce(t *testing.T) {
	d := manual(t)
	d.FailNext(OpSchedule, device.ErrorInfo{Code: device.InvalidPriority, Internal: 7})

	noop := func() device.CallbackCode { return device.CallbackContinue }
	if h := d.ScheduleAsynchronous(noop, device.PriorityDefault); h != device.InvalidHandle {
		t.Errorf("injected failure still scheduled %d", h)
	}
	info := d.GetError()
	if info.Code != device.InvalidPriority || info.Internal != 7 {
		t.Errorf("got %v", info)
	}
	if h := d.ScheduleAsynchronous(noop, device.PriorityDefault); h == device.InvalidHandle {
		t.Error("second schedule should succeed")
	}
}

func TestCallbacksRunByPriority(t *testing.T) {
	d := manual(t)
	var order []string
	add := func(name string, p device.Priority) {
		d.ScheduleAsynchronous(func() device.CallbackCode {
			order = append(order, name)
			return device.CallbackContinue
		}, p)
	}
	add("default", device.PriorityDefault)
	add("max", device.PriorityMax)
	add("min", device.PriorityMin)

	d.Step()

	want := []string{"max", "default", "min"}
	if len(order) != len(want) {
		t.Fatalf("ran %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestDoneCallbackIsRemoved(t *testing.T) {
	d := manual(t)
	runs := 0
	h := d.ScheduleAsynchronous(func() device.CallbackCode {
		runs++
		return device.CallbackDone
	}, device.PriorityDefault)

	d.Step()
	d.Step()

	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
	if d.Scheduled(h) {
		t.Error("callback still scheduled")
	}
	if d.WaitForCompletion(h, device.WaitCheckStatus) {
		t.Error("WaitForCompletion reports scheduled")
	}
}

func TestSchedulerFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 0
	cfg.MaxCallbacks = 2
	d, _ := New(cfg)
	d.StartScheduler()

	noop := func() device.CallbackCode { return device.CallbackContinue }
	d.ScheduleAsynchronous(noop, device.PriorityDefault)
	d.ScheduleAsynchronous(noop, device.PriorityDefault)
	if h := d.ScheduleAsynchronous(noop, device.PriorityDefault); h != device.InvalidHandle {
		t.Errorf("third schedule returned %d", h)
	}
	if got := d.GetError().Code; got != device.SchedulerFull {
		t.Errorf("got %v, want SchedulerFull", got)
	}
}

func TestForceLatchedPerFrame(t *testing.T) {
	d := manual(t)
	want := r3.Vec{X: 0.5, Y: -0.25, Z: 1}
	first := true
	d.ScheduleAsynchronous(func() device.CallbackCode {
		d.BeginFrame(simDevice)
		if first {
			d.SetForce(want)
			first = false
		}
		d.EndFrame(simDevice)
		return device.CallbackContinue
	}, device.PriorityMax)

	d.Step()
	if got := d.AppliedForce(); got != want {
		t.Errorf("applied = %v, want %v", got, want)
	}
	d.Step()
	if got := d.AppliedForce(); got != (r3.Vec{}) {
		t.Errorf("force should reset next frame, got %v", got)
	}
}

func TestForceNeedsOutputEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 0
	d, _ := New(cfg)
	d.OpenDefaultDevice()
	d.StartScheduler()
	d.ScheduleAsynchronous(func() device.CallbackCode {
		d.BeginFrame(simDevice)
		d.SetForce(r3.Vec{X: 1})
		d.EndFrame(simDevice)
		return device.CallbackContinue
	}, device.PriorityMax)

	d.Step()
	if got := d.AppliedForce(); got != (r3.Vec{}) {
		t.Errorf("applied = %v with output disabled", got)
	}
}

func TestMaxForceClamps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 0
	cfg.MaxForce = 2
	d, _ := New(cfg)
	d.OpenDefaultDevice()
	d.EnableForceOutput()
	d.StartScheduler()

	var info device.ErrorInfo
	d.ScheduleAsynchronous(func() device.CallbackCode {
		d.BeginFrame(simDevice)
		d.SetForce(r3.Vec{Z: 10})
		d.EndFrame(simDevice)
		info = d.GetError()
		return device.CallbackContinue
	}, device.PriorityMax)

	d.Step()
	if got := r3.Norm(d.AppliedForce()); math.Abs(got-2) > 1e-12 {
		t.Errorf("|F| = %f, want 2", got)
	}
	if info.Code != device.ExceededMaxForce {
		t.Errorf("frame error = %v, want ExceededMaxForce", info)
	}
}

func TestSetForceOutsideFrame(t *testing.T) {
	d := manual(t)
	d.SetForce(r3.Vec{X: 1})
	if got := d.GetError().Code; got != device.InvalidOperation {
		t.Errorf("got %v, want InvalidOperation", got)
	}
}

func TestHandSpringMovesEffector(t *testing.T) {
	d := manual(t)
	target := r3.Vec{X: 0.1}
	d.SetHandTarget(target)
	for i := 0; i < 5000; i++ {
		d.Step()
	}
	if got := d.Position(); r3.Norm(r3.Sub(got, target)) > 1e-3 {
		t.Errorf("position = %v, want near %v", got, target)
	}
	if got := d.Time(); math.Abs(got-5) > 1e-9 {
		t.Errorf("time = %f, want 5", got)
	}
}

func TestHoldPinsEffector(t *testing.T) {
	d := manual(t)
	pin := r3.Vec{X: 1, Y: 2, Z: 3}
	d.Hold(pin)
	d.SetHandTarget(r3.Vec{})
	for i := 0; i < 100; i++ {
		d.Step()
	}
	if got := d.Position(); got != pin {
		t.Errorf("held position moved to %v", got)
	}
	d.Release()
	d.Step()
	if got := d.Position(); got == pin {
		t.Error("released effector should move toward the hand")
	}
}

func TestOnFrameSample(t *testing.T) {
	d := manual(t)
	d.SetButtons(device.Button1 | device.Button2)
	var got []Sample
	d.OnFrame(func(s Sample) { got = append(got, s) })

	d.Step()
	d.Step()

	if len(got) != 2 {
		t.Fatalf("got %d samples", len(got))
	}
	if got[1].Tick != 2 {
		t.Errorf("tick = %d, want 2", got[1].Tick)
	}
	if !got[0].Buttons.Primary() || !got[0].Buttons.Secondary() {
		t.Errorf("buttons = %b", got[0].Buttons)
	}
}

func TestStopSchedulerClearsCallbacks(t *testing.T) {
	d := manual(t)
	h := d.ScheduleAsynchronous(func() device.CallbackCode { return device.CallbackContinue }, device.PriorityDefault)
	d.StopScheduler()
	if d.Running() {
		t.Error("still running")
	}
	if d.Scheduled(h) || d.CallbackCount() != 0 {
		t.Error("callbacks survived StopScheduler")
	}
}

func TestDisableBadHandle(t *testing.T) {
	d := manual(t)
	d.DisableDevice(42)
	if got := d.GetError().Code; got != device.BadHandle {
		t.Errorf("got %v, want BadHandle", got)
	}
	d.DisableDevice(simDevice)
	if got := d.GetError(); got.IsError() {
		t.Errorf("disable failed: %v", got)
	}
}

func TestTickerLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 1000
	d, _ := New(cfg)
	d.OpenDefaultDevice()
	d.StartScheduler()

	var mu sync.Mutex
	runs := 0
	h := d.ScheduleAsynchronous(func() device.CallbackCode {
		mu.Lock()
		defer mu.Unlock()
		runs++
		if runs == 10 {
			return device.CallbackDone
		}
		return device.CallbackContinue
	}, device.PriorityDefault)

	done := make(chan bool)
	go func() { done <- d.WaitForCompletion(h, device.WaitInfinite) }()

	select {
	case scheduled := <-done:
		if scheduled {
			t.Error("callback still scheduled after wait")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("WaitForCompletion did not return")
	}
	d.StopScheduler()

	mu.Lock()
	defer mu.Unlock()
	if runs != 10 {
		t.Errorf("runs = %d, want 10", runs)
	}
}

func TestManualKeepsRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 500
	cfg.Manual = true
	d, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	d.StartScheduler()
	defer d.StopScheduler()

	d.Step()
	d.Step()
	if got := d.Time(); math.Abs(got-0.004) > 1e-12 {
		t.Errorf("time = %f, want 0.004", got)
	}
}

func TestCallbackErrorsStayOnServoSide(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rate = 0
	cfg.MaxForce = 0.1
	d, _ := New(cfg)
	d.OpenDefaultDevice()
	d.EnableForceOutput()
	d.StartScheduler()

	// raised by a control call before the tick
	d.Unschedule(99)

	parked := make(chan struct{})
	resume := make(chan struct{})
	var frameErr, seenBefore device.ErrorInfo
	d.ScheduleAsynchronous(func() device.CallbackCode {
		seenBefore = d.GetError()
		d.BeginFrame(simDevice)
		d.SetForce(r3.Vec{X: 1})
		d.EndFrame(simDevice)
		close(parked)
		<-resume
		frameErr = d.GetError()
		return device.CallbackContinue
	}, device.PriorityMax)

	stepped := make(chan struct{})
	go func() {
		defer close(stepped)
		d.Step()
	}()
	<-parked

	if got := d.GetError().Code; got != device.BadHandle {
		t.Errorf("control side popped %v, want BadHandle", got)
	}
	if got := d.GetError(); got.IsError() {
		t.Errorf("control side saw the frame's error %v", got)
	}

	close(resume)
	<-stepped

	if seenBefore.IsError() {
		t.Errorf("callback saw control error %v", seenBefore)
	}
	if frameErr.Code != device.ExceededMaxForce {
		t.Errorf("frame error = %v, want ExceededMaxForce", frameErr)
	}
}

func TestGoid(t *testing.T) {
	here := goid()
	if here == 0 {
		t.Fatal("goid returned 0")
	}
	other := make(chan uint64)
	go func() { other <- goid() }()
	if id := <-other; id == here || id == 0 {
		t.Errorf("other goroutine id = %d, here = %d", id, here)
	}
}
