package servo_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/servo"
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

// rig wraps the simulated device to record priorities and to park a frame
// inside BeginFrame, or right after EndFrame, on demand.
type rig struct {
	*simdevice.Device

	mu         sync.Mutex
	priorities []device.Priority

	block    atomic.Bool
	blockEnd atomic.Bool
	entered  chan struct{}
	release  chan struct{}
}

func newRig(mods ...func(*simdevice.Config)) *rig {
	cfg := simdevice.DefaultConfig()
	cfg.Rate = 0
	for _, mod := range mods {
		mod(&cfg)
	}
	d, err := simdevice.New(cfg)
	Expect(err).NotTo(HaveOccurred())
	return &rig{
		Device:  d,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (r *rig) ScheduleAsynchronous(cb device.Callback, p device.Priority) device.Handle {
	r.mu.Lock()
	r.priorities = append(r.priorities, p)
	r.mu.Unlock()
	return r.Device.ScheduleAsynchronous(cb, p)
}

func (r *rig) BeginFrame(h device.DeviceHandle) {
	r.Device.BeginFrame(h)
	if r.block.CompareAndSwap(true, false) {
		r.entered <- struct{}{}
		<-r.release
	}
}

func (r *rig) EndFrame(h device.DeviceHandle) {
	r.Device.EndFrame(h)
	if r.blockEnd.CompareAndSwap(true, false) {
		r.entered <- struct{}{}
		<-r.release
	}
}

func (r *rig) lastPriority() device.Priority {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.priorities[len(r.priorities)-1]
}

var _ = Describe("Scheduler", func() {
	var (
		drv   *rig
		sched *servo.Scheduler
	)

	BeforeEach(func() {
		drv = newRig()
		sched = servo.New(drv, servo.Options{
			StopTimeout:  50 * time.Millisecond,
			PollInterval: time.Millisecond,
		}, nil)
	})

	Describe("Init", func() {
		It("opens the device and starts the servo loop", func() {
			Expect(sched.Init()).To(Succeed())
			Expect(drv.Running()).To(BeTrue())
			Expect(sched.LastError().IsError()).To(BeFalse())
		})

		It("reports an open failure", func() {
			drv.FailNext(simdevice.OpOpen, device.ErrorInfo{Code: device.DeviceFault, Internal: 9})
			err := sched.Init()
			Expect(err).To(HaveOccurred())
			Expect(device.CodeOf(err)).To(Equal(device.DeviceFault))
			Expect(sched.LastError()).To(Equal(device.ErrorInfo{Code: device.DeviceFault, Internal: 9}))
		})

		It("reports a scheduler start failure", func() {
			drv.FailNext(simdevice.OpStart, device.ErrorInfo{Code: device.TimerError})
			Expect(device.CodeOf(sched.Init())).To(Equal(device.TimerError))
		})

		It("zeroes the snapshot", func() {
			Expect(sched.Init()).To(Succeed())
			Expect(sched.Snapshot()).To(Equal(servo.Reading{}))
		})

		It("rejects a second Init without touching the running loop", func() {
			Expect(sched.Init()).To(Succeed())
			Expect(sched.ScheduleIdle()).To(Succeed())
			drv.Step()

			err := sched.Init()
			Expect(device.CodeOf(err)).To(Equal(device.AlreadyInitiated))
			Expect(sched.Snapshot().Frame).To(BeEquivalentTo(1))
			Expect(drv.CallbackCount()).To(Equal(1))
		})
	})

	It("refuses to schedule before Init", func() {
		err := sched.ScheduleIdle()
		Expect(errors.Is(err, device.ErrNotInitialized)).To(BeTrue())
		Expect(device.CodeOf(err)).To(Equal(device.CodeNotInitialized))
	})

	Context("after Init", func() {
		BeforeEach(func() {
			Expect(sched.Init()).To(Succeed())
		})

		It("runs idle at default priority", func() {
			Expect(sched.ScheduleIdle()).To(Succeed())
			Expect(drv.lastPriority()).To(Equal(device.PriorityDefault))

			kind, ok := sched.Active()
			Expect(ok).To(BeTrue())
			Expect(kind).To(Equal(force.Idle))
		})

		It("runs force models at maximum priority", func() {
			sphere := force.Sphere{Center: r3.Vec{Z: 1}, Radius: 2}
			Expect(sched.ScheduleForceModel(force.New(force.FrictionlessRepel), sphere)).To(Succeed())
			Expect(drv.lastPriority()).To(Equal(device.PriorityMax))
			Expect(sched.Sphere()).To(Equal(sphere))
		})

		It("publishes device state every frame", func() {
			drv.Hold(r3.Vec{X: 0.1, Y: 0.2, Z: 0.3})
			drv.SetButtons(device.Button2)
			Expect(sched.ScheduleIdle()).To(Succeed())

			drv.Step()

			r := sched.Snapshot()
			Expect(r.Position).To(Equal(r3.Vec{X: 0.1, Y: 0.2, Z: 0.3}))
			Expect(r.Primary).To(BeFalse())
			Expect(r.Secondary).To(BeTrue())
			Expect(r.Frame).To(BeEquivalentTo(1))
		})

		It("replaces the active callback on a new start", func() {
			Expect(sched.ScheduleIdle()).To(Succeed())
			Expect(sched.ScheduleForceModel(force.New(force.ToCenter), force.Sphere{Radius: 1})).To(Succeed())

			Expect(drv.CallbackCount()).To(Equal(1))
			kind, _ := sched.Active()
			Expect(kind).To(Equal(force.ToCenter))
		})

		It("applies radius changes to the running model", func() {
			drv.Hold(r3.Vec{Z: 0.5})
			Expect(sched.ScheduleForceModel(force.New(force.FrictionlessRepel), force.Sphere{})).To(Succeed())
			drv.Step()
			Expect(drv.AppliedForce()).To(Equal(r3.Vec{}))

			sched.SetSphereRadius(1)
			drv.Step()
			Expect(drv.AppliedForce().Z).To(BeNumerically("~", 0.5, 1e-12))
		})

		Describe("Stop", func() {
			It("is a no-op without an active callback", func() {
				Expect(sched.Stop(context.Background())).To(Succeed())
			})

			It("unschedules the active callback", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				Expect(sched.Stop(context.Background())).To(Succeed())

				Expect(drv.CallbackCount()).To(Equal(0))
				_, ok := sched.Active()
				Expect(ok).To(BeFalse())
			})

			It("times out while a frame is in progress", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				drv.block.Store(true)

				stepped := make(chan struct{})
				go func() {
					defer close(stepped)
					drv.Step()
				}()
				Eventually(drv.entered).Should(Receive())

				err := sched.Stop(context.Background())
				Expect(errors.Is(err, device.ErrStopTimeout)).To(BeTrue())
				Expect(device.CodeOf(err)).To(Equal(device.CodeStopTimeout))

				close(drv.release)
				Eventually(stepped).Should(BeClosed())

				Expect(sched.Stop(context.Background())).To(Succeed())
				Expect(drv.CallbackCount()).To(Equal(0))
			})

			It("honors context cancellation", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				drv.block.Store(true)

				stepped := make(chan struct{})
				go func() {
					defer close(stepped)
					drv.Step()
				}()
				Eventually(drv.entered).Should(Receive())

				ctx, cancel := context.WithCancel(context.Background())
				cancel()
				err := sched.Stop(ctx)
				Expect(device.CodeOf(err)).To(Equal(device.CodeStopTimeout))
				Expect(errors.Is(err, context.Canceled)).To(BeTrue())
				Expect(errors.Is(err, device.ErrStopTimeout)).To(BeFalse())

				close(drv.release)
				Eventually(stepped).Should(BeClosed())
			})

			It("waits out a frame that raised its own error", func() {
				drv = newRig(func(c *simdevice.Config) { c.MaxForce = 0.1 })
				sched = servo.New(drv, servo.Options{
					StopTimeout:  time.Second,
					PollInterval: time.Millisecond,
				}, nil)
				Expect(sched.Init()).To(Succeed())
				drv.Hold(r3.Vec{Z: 0.5})
				Expect(sched.ScheduleForceModel(force.New(force.FrictionlessRepel), force.Sphere{Radius: 1})).To(Succeed())
				drv.blockEnd.Store(true)

				stepped := make(chan struct{})
				go func() {
					defer close(stepped)
					drv.Step()
				}()
				Eventually(drv.entered).Should(Receive())

				stopped := make(chan error, 1)
				go func() { stopped <- sched.Stop(context.Background()) }()
				Consistently(stopped, 20*time.Millisecond).ShouldNot(Receive())

				close(drv.release)
				Eventually(stepped).Should(BeClosed())
				Eventually(stopped).Should(Receive(BeNil()))

				Expect(sched.Snapshot().Err.Code).To(Equal(device.ExceededMaxForce))
				Expect(sched.LastError().Code).To(Equal(device.ExceededMaxForce))
				Expect(drv.CallbackCount()).To(Equal(0))
			})

			It("reports an unschedule failure", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				drv.FailNext(simdevice.OpUnschedule, device.ErrorInfo{Code: device.BadHandle})
				Expect(device.CodeOf(sched.Stop(context.Background()))).To(Equal(device.BadHandle))
			})
		})

		It("terminates the callback on SchedulerFull", func() {
			Expect(sched.ScheduleForceModel(force.New(force.ToCenter), force.Sphere{Radius: 1})).To(Succeed())
			drv.FailNext(simdevice.OpFrame, device.ErrorInfo{Code: device.SchedulerFull})

			drv.Step()

			_, ok := sched.Active()
			Expect(ok).To(BeFalse())
			Expect(drv.CallbackCount()).To(Equal(0))
			Expect(sched.LastError().Code).To(Equal(device.SchedulerFull))
			Expect(sched.Stop(context.Background())).To(Succeed())
		})

		It("reports a full callback table when scheduling", func() {
			drv.FailNext(simdevice.OpSchedule, device.ErrorInfo{Code: device.SchedulerFull})
			Expect(device.CodeOf(sched.ScheduleIdle())).To(Equal(device.SchedulerFull))
			_, ok := sched.Active()
			Expect(ok).To(BeFalse())
		})

		Describe("LastError", func() {
			It("stays set after later successful frames", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				drv.FailNext(simdevice.OpFrame, device.ErrorInfo{Code: device.CommError})
				drv.Step()
				drv.Step()

				Expect(sched.Snapshot().Err.IsError()).To(BeFalse())
				Expect(sched.LastError().Code).To(Equal(device.CommError))

				sched.ClearError()
				Expect(sched.LastError().IsError()).To(BeFalse())
			})

			It("drains pending driver errors", func() {
				drv.Unschedule(12345)
				Expect(sched.LastError().Code).To(Equal(device.BadHandle))
			})
		})

		Describe("Shutdown", func() {
			It("stops the loop and disables the device", func() {
				Expect(sched.ScheduleIdle()).To(Succeed())
				Expect(sched.Shutdown()).To(Succeed())
				Expect(drv.Running()).To(BeFalse())
				Expect(errors.Is(sched.ScheduleIdle(), device.ErrNotInitialized)).To(BeTrue())
			})

			It("offsets a scheduler stop failure by 2000", func() {
				drv.FailNext(simdevice.OpStop, device.ErrorInfo{Code: device.TimerError})
				err := sched.Shutdown()

				var de *device.Error
				Expect(errors.As(err, &de)).To(BeTrue())
				Expect(de.Status()).To(Equal(int(device.TimerError) + 2000))
			})

			It("offsets a device disable failure by 4000", func() {
				drv.FailNext(simdevice.OpDisable, device.ErrorInfo{Code: device.CommError})
				err := sched.Shutdown()

				var de *device.Error
				Expect(errors.As(err, &de)).To(BeTrue())
				Expect(de.Status()).To(Equal(int(device.CommError) + 4000))
			})
		})
	})
})
