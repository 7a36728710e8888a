package capture

import (
	"sync"
	"time"

	"github.com/keegancsmith/nth"
	"github.com/murkland/ringbuf"
	"golang.org/x/exp/constraints"
)

const latencyWindowSize = 256

type orderableSlice[T constraints.Ordered] []T

func (s orderableSlice[T]) Len() int {
	return len(s)
}

func (s orderableSlice[T]) Swap(i, j int) {
	s[i], s[j] = s[j], s[i]
}

func (s orderableSlice[T]) Less(i, j int) bool {
	return s[i] < s[j]
}

type latencyWindow struct {
	mu  sync.RWMutex
	buf *ringbuf.RingBuf[time.Duration]
}

func newLatencyWindow() *latencyWindow {
	return &latencyWindow{buf: ringbuf.New[time.Duration](latencyWindowSize)}
}

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Free() == 0 {
		w.buf.Advance(1)
	}
	w.buf.Push([]time.Duration{d})
}

func (w *latencyWindow) median() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.buf.Used() == 0 {
		return 0
	}

	ds := make([]time.Duration, w.buf.Used())
	w.buf.Peek(ds, 0)

	i := len(ds) / 2
	nth.Element(orderableSlice[time.Duration](ds), i)
	return ds[i]
}

type Stats struct {
	Frames int
	// MedianWrite is the median time the sink took to accept a frame over
	// recent writes.
	MedianWrite time.Duration
	Synchronous bool
}

func (c *Capturer) Stats() Stats {
	return Stats{
		Frames:      c.Frames(),
		MedianWrite: c.stats.median(),
		Synchronous: c.readback == nil,
	}
}
