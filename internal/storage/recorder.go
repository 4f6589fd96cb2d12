package storage

import (
	"sync"

	"github.com/san-kum/touchy/internal/metrics"
	"github.com/san-kum/touchy/internal/simdevice"
)

// Recorder collects device samples for a run. Every sample feeds the
// metrics; only every Nth is kept as a frame. It is safe to attach to
// simdevice.Device.OnFrame while another goroutine reads it.
type Recorder struct {
	mu      sync.Mutex
	every   int
	seen    int
	frames  []simdevice.Sample
	metrics []metrics.Metric
}

func NewRecorder(every int, ms []metrics.Metric) *Recorder {
	if every < 1 {
		every = 1
	}
	return &Recorder{every: every, metrics: ms}
}

func (r *Recorder) Observe(s simdevice.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.metrics {
		m.Observe(s)
	}
	if r.seen%r.every == 0 {
		r.frames = append(r.frames, s)
	}
	r.seen++
}

func (r *Recorder) Frames() []simdevice.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]simdevice.Sample, len(r.frames))
	copy(out, r.frames)
	return out
}

func (r *Recorder) Metrics() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return metrics.Values(r.metrics)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = 0
	r.frames = nil
	for _, m := range r.metrics {
		m.Reset()
	}
}
