package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	width  int
	height int
	frame  int

	stops  int
	speeds []int
}

func (e *fakeEngine) ScreenSize() (int, int) {
	return e.width, e.height
}

// render fills dst with a pattern unique to the current frame.
func (e *fakeEngine) render(dst []byte) {
	for i := range dst {
		dst[i] = byte(i*7 + e.frame*13)
	}
}

func (e *fakeEngine) ReadScreen(dst []byte) error {
	e.render(dst)
	return nil
}

func (e *fakeEngine) SetSpeedFactor(percent int) error {
	e.speeds = append(e.speeds, percent)
	return nil
}

func (e *fakeEngine) Stop() {
	e.stops++
}

type asyncEngine struct {
	fakeEngine

	initErr     error
	slots       [2][]byte
	inflight    int
	maxInflight int
	closed      int
}

func (e *asyncEngine) InitReadback(width int, height int) error {
	if e.initErr != nil {
		return e.initErr
	}
	for i := range e.slots {
		e.slots[i] = make([]byte, width*height*BytesPerPixel)
	}
	return nil
}

func (e *asyncEngine) StartReadback(slot int) error {
	e.render(e.slots[slot])
	e.inflight++
	if e.inflight > e.maxInflight {
		e.maxInflight = e.inflight
	}
	return nil
}

func (e *asyncEngine) FinishReadback(slot int, dst []byte) error {
	e.inflight--
	copy(dst, e.slots[slot])
	return nil
}

func (e *asyncEngine) CloseReadback() {
	e.closed++
}

type fakeSink struct {
	mu       sync.Mutex
	format   Format
	opens    int
	closes   int
	frames   [][]byte
	openErr  error
	writeErr error
	failAt   int
	delay    time.Duration
}

func (s *fakeSink) Open(f Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens++
	if s.openErr != nil {
		return s.openErr
	}
	s.format = f
	return nil
}

func (s *fakeSink) WriteFrame(frame []byte) error {
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil && len(s.frames) == s.failAt {
		return s.writeErr
	}
	s.frames = append(s.frames, append([]byte(nil), frame...))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSink) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// expectedFrame is what the sink should receive for the engine's frame n.
func expectedFrame(width int, height int, n int) []byte {
	e := &fakeEngine{width: width, height: height, frame: n}
	src := make([]byte, width*height*BytesPerPixel)
	e.render(src)
	dst := make([]byte, len(src))
	flipRows(dst, src, width*BytesPerPixel)
	return dst
}

// run drives frames 1..n through the capturer and finishes it.
func run(t *testing.T, c *Capturer, e *fakeEngine, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		e.frame = i
		require.NoError(t, c.Frame())
	}
	require.NoError(t, c.Finish())
}

func TestFlipRows(t *testing.T) {
	src := []byte{
		1, 2, 3, 4, 5, 6,
		7, 8, 9, 10, 11, 12,
		13, 14, 15, 16, 17, 18,
	}
	dst := make([]byte, len(src))
	flipRows(dst, src, 6)
	assert.Equal(t, []byte{
		13, 14, 15, 16, 17, 18,
		7, 8, 9, 10, 11, 12,
		1, 2, 3, 4, 5, 6,
	}, dst)
}

func TestCaptureSynchronous(t *testing.T) {
	e := &fakeEngine{width: 4, height: 3}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{Width: 4, Height: 3, FrameRate: 60, Quality: 23})

	run(t, c, e, 5)

	frames := sink.written()
	require.Len(t, frames, 5)
	for i, f := range frames {
		assert.Equal(t, expectedFrame(4, 3, i+1), f, "frame %d", i+1)
	}
	assert.Equal(t, 1, sink.opens)
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, 5, c.Frames())
	assert.True(t, c.Stats().Synchronous)
	assert.Equal(t, 0, e.stops)
}

func TestCaptureAsynchronous(t *testing.T) {
	e := &asyncEngine{fakeEngine: fakeEngine{width: 4, height: 3}}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{Width: 4, Height: 3, FrameRate: 60})

	run(t, c, &e.fakeEngine, 7)

	frames := sink.written()
	require.Len(t, frames, 7)
	for i, f := range frames {
		assert.Equal(t, expectedFrame(4, 3, i+1), f, "frame %d", i+1)
	}
	assert.Equal(t, 1, sink.closes)
	assert.Equal(t, 1, e.closed)
	assert.Equal(t, 0, e.inflight)
	assert.LessOrEqual(t, e.maxInflight, 2)
	assert.False(t, c.Stats().Synchronous)
}

func TestCaptureSynchronousAndAsynchronousMatch(t *testing.T) {
	const n = 30

	syncEngine := &fakeEngine{width: 16, height: 9}
	syncSink := &fakeSink{}
	run(t, New(context.Background(), syncEngine, syncSink, Config{}), syncEngine, n)

	asyncEng := &asyncEngine{fakeEngine: fakeEngine{width: 16, height: 9}}
	asyncSink := &fakeSink{delay: time.Millisecond}
	run(t, New(context.Background(), asyncEng, asyncSink, Config{}), &asyncEng.fakeEngine, n)

	require.Len(t, syncSink.written(), n)
	assert.Equal(t, syncSink.written(), asyncSink.written())
}

func TestCaptureForcedSynchronous(t *testing.T) {
	e := &asyncEngine{fakeEngine: fakeEngine{width: 2, height: 2}}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{Synchronous: true})

	run(t, c, &e.fakeEngine, 3)
	assert.Len(t, sink.written(), 3)
	assert.True(t, c.Stats().Synchronous)
	assert.Equal(t, 0, e.maxInflight)
}

func TestCaptureReadbackUnavailable(t *testing.T) {
	e := &asyncEngine{fakeEngine: fakeEngine{width: 2, height: 2}, initErr: errors.New("no pixel buffer objects")}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{})

	run(t, c, &e.fakeEngine, 4)
	frames := sink.written()
	require.Len(t, frames, 4)
	assert.Equal(t, expectedFrame(2, 2, 4), frames[3])
	assert.True(t, c.Stats().Synchronous)
	assert.Equal(t, 0, e.closed)
}

func TestCaptureOpensAtRenderSize(t *testing.T) {
	e := &fakeEngine{width: 320, height: 240}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{Width: 640, Height: 480, FrameRate: 60, Quality: 18})

	run(t, c, e, 1)
	assert.Equal(t, Format{Width: 320, Height: 240, FrameRate: 60, Quality: 18}, sink.format)
	require.Len(t, sink.written(), 1)
	assert.Len(t, sink.written()[0], 320*240*3)
}

func TestCaptureWaitsForRenderSize(t *testing.T) {
	e := &fakeEngine{}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{})

	require.NoError(t, c.Frame())
	assert.Equal(t, 0, sink.opens)

	e.width, e.height = 2, 1
	e.frame = 2
	require.NoError(t, c.Frame())
	require.NoError(t, c.Finish())
	assert.Equal(t, 1, sink.opens)
	assert.Equal(t, [][]byte{expectedFrame(2, 1, 2)}, sink.written())
}

func TestCaptureEncoderOpenFailure(t *testing.T) {
	e := &fakeEngine{width: 2, height: 2}
	sink := &fakeSink{openErr: errors.New("exec: ffmpeg: not found")}
	c := New(context.Background(), e, sink, Config{})

	err := c.Frame()
	require.ErrorIs(t, err, ErrEncoderOpen)
	assert.Equal(t, 1, e.stops)

	require.ErrorIs(t, c.Frame(), ErrEncoderOpen)
	require.ErrorIs(t, c.Finish(), ErrEncoderOpen)
	assert.Equal(t, 1, e.stops)
	assert.Equal(t, 1, sink.opens)
	assert.Equal(t, 0, sink.closes)
	assert.Empty(t, sink.written())
}

func TestCaptureCancellation(t *testing.T) {
	for _, async := range []bool{false, true} {
		name := "synchronous"
		if async {
			name = "asynchronous"
		}
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var e *fakeEngine
			var eng Engine
			if async {
				ae := &asyncEngine{fakeEngine: fakeEngine{width: 3, height: 2}}
				e, eng = &ae.fakeEngine, ae
			} else {
				e = &fakeEngine{width: 3, height: 2}
				eng = e
			}
			sink := &fakeSink{}
			c := New(ctx, eng, sink, Config{})

			for i := 1; i <= 5; i++ {
				e.frame = i
				require.NoError(t, c.Frame())
			}
			cancel()

			for i := 6; i <= 8; i++ {
				e.frame = i
				require.ErrorIs(t, c.Frame(), ErrCancelled)
			}
			require.ErrorIs(t, c.Finish(), ErrCancelled)

			frames := sink.written()
			assert.NotEmpty(t, frames)
			assert.LessOrEqual(t, len(frames), 5)
			for i, f := range frames {
				assert.Equal(t, expectedFrame(3, 2, i+1), f)
			}
			assert.Equal(t, 1, sink.closes)
			assert.Equal(t, 1, e.stops)
		})
	}
}

func TestCaptureSpeedFactorOnce(t *testing.T) {
	e := &fakeEngine{width: 1, height: 1}
	c := New(context.Background(), e, &fakeSink{}, Config{SpeedFactor: 500})
	run(t, c, e, 10)
	assert.Equal(t, []int{500}, e.speeds)

	e = &fakeEngine{width: 1, height: 1}
	c = New(context.Background(), e, &fakeSink{}, Config{})
	run(t, c, e, 2)
	assert.Empty(t, e.speeds)
}

func TestCaptureSizeChange(t *testing.T) {
	e := &fakeEngine{width: 4, height: 4}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{})

	require.NoError(t, c.Frame())
	e.width = 8
	require.Error(t, c.Frame())
	assert.Equal(t, 1, e.stops)
	assert.Equal(t, 1, sink.closes)
}

func TestCaptureWriteError(t *testing.T) {
	writeErr := errors.New("broken pipe")

	for _, async := range []bool{false, true} {
		var e *fakeEngine
		var eng Engine
		if async {
			ae := &asyncEngine{fakeEngine: fakeEngine{width: 2, height: 2}}
			e, eng = &ae.fakeEngine, ae
		} else {
			e = &fakeEngine{width: 2, height: 2}
			eng = e
		}
		sink := &fakeSink{writeErr: writeErr, failAt: 2}
		c := New(context.Background(), eng, sink, Config{})

		var err error
		for i := 1; i <= 10 && err == nil; i++ {
			e.frame = i
			err = c.Frame()
		}
		if err == nil {
			err = c.Finish()
		}
		require.ErrorIs(t, err, writeErr, "async=%v", async)
		assert.Len(t, sink.written(), 2)
		assert.Equal(t, 1, sink.closes)
		// The asynchronous error may only surface when finishing.
		assert.LessOrEqual(t, e.stops, 1)
	}
}

func TestCaptureProgress(t *testing.T) {
	var mu sync.Mutex
	var got [][2]int
	progress := func(done int, total int) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, [2]int{done, total})
	}

	e := &asyncEngine{fakeEngine: fakeEngine{width: 1, height: 1}}
	c := New(context.Background(), e, &fakeSink{}, Config{ExpectedFrames: 3, Progress: progress})
	run(t, c, &e.fakeEngine, 3)

	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, got)
}

func TestCaptureFinishWithoutFrames(t *testing.T) {
	sink := &fakeSink{}
	c := New(context.Background(), &fakeEngine{width: 2, height: 2}, sink, Config{})
	require.NoError(t, c.Finish())
	require.NoError(t, c.Finish())
	assert.Equal(t, 0, sink.opens)
	assert.Equal(t, 0, sink.closes)
}

func TestCaptureFinishTwice(t *testing.T) {
	e := &asyncEngine{fakeEngine: fakeEngine{width: 2, height: 2}}
	sink := &fakeSink{}
	c := New(context.Background(), e, sink, Config{})
	run(t, c, &e.fakeEngine, 2)

	require.NoError(t, c.Finish())
	require.NoError(t, c.Frame())
	assert.Equal(t, 1, sink.closes)
	assert.Len(t, sink.written(), 2)
}

func TestLatencyWindowMedian(t *testing.T) {
	w := newLatencyWindow()
	assert.Equal(t, time.Duration(0), w.median())

	for _, d := range []time.Duration{5, 1, 9, 3, 7} {
		w.add(d)
	}
	assert.Equal(t, time.Duration(5), w.median())

	for i := 0; i < latencyWindowSize; i++ {
		w.add(100)
	}
	assert.Equal(t, time.Duration(100), w.median())
}
