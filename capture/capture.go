package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrEncoderOpen = errors.New("failed to open encoder")
	ErrCancelled   = errors.New("capture cancelled")
)

const BytesPerPixel = 3

// Engine is the part of the emulator the capturer drives.
type Engine interface {
	// ScreenSize is the current render size. It may be zero before the
	// first frame is presented.
	ScreenSize() (width int, height int)
	// ReadScreen fills dst with the current frame as bottom-up RGB24.
	ReadScreen(dst []byte) error
	SetSpeedFactor(percent int) error
	Stop()
}

// Readback is implemented by engines that can copy frames off the GPU
// asynchronously. Slots are 0 and 1.
type Readback interface {
	InitReadback(width int, height int) error
	StartReadback(slot int) error
	// FinishReadback waits for the transfer in slot and copies it to dst as
	// bottom-up RGB24.
	FinishReadback(slot int, dst []byte) error
	CloseReadback()
}

type Format struct {
	Width     int
	Height    int
	FrameRate float64
	Quality   int
}

// Sink receives top-down RGB24 frames.
type Sink interface {
	Open(f Format) error
	WriteFrame(frame []byte) error
	Close() error
}

type Config struct {
	// Width and Height are the requested size. The sink is opened at the
	// size the engine actually renders.
	Width          int
	Height         int
	FrameRate      float64
	Quality        int
	ExpectedFrames int
	// SpeedFactor is applied to the engine on the first frame, in percent.
	// Zero leaves the engine alone.
	SpeedFactor int
	Synchronous bool
	Progress    func(done int, total int)
}

type Capturer struct {
	ctx    context.Context
	engine Engine
	sink   Sink
	conf   Config

	started bool
	opened  bool
	closed  bool
	width   int
	height  int

	readback Readback
	slot     int
	pending  bool

	// staging is passed between the producer and the worker over work and
	// free. Exactly one side owns it at a time.
	work chan []byte
	free chan []byte
	done chan struct{}
	errg *errgroup.Group

	// Used instead of the worker when capturing synchronously.
	staging []byte
	scratch []byte

	frames atomic.Int64
	stats  *latencyWindow

	mu  sync.Mutex
	err error
}

func New(ctx context.Context, engine Engine, sink Sink, conf Config) *Capturer {
	return &Capturer{
		ctx:    ctx,
		engine: engine,
		sink:   sink,
		conf:   conf,
		stats:  newLatencyWindow(),
	}
}

func (c *Capturer) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	return c.err
}

// Err is the first error that aborted the capture.
func (c *Capturer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Frames is the number of frames written to the sink.
func (c *Capturer) Frames() int {
	return int(c.frames.Load())
}

func (c *Capturer) frameSize() int {
	return c.width * c.height * BytesPerPixel
}

func (c *Capturer) open() error {
	width, height := c.engine.ScreenSize()
	if width <= 0 || height <= 0 {
		return nil
	}

	if width != c.conf.Width || height != c.conf.Height {
		log.Printf("capture: render size is %dx%d (requested %dx%d)", width, height, c.conf.Width, c.conf.Height)
	}

	if err := c.sink.Open(Format{
		Width:     width,
		Height:    height,
		FrameRate: c.conf.FrameRate,
		Quality:   c.conf.Quality,
	}); err != nil {
		return fmt.Errorf("%w: %s", ErrEncoderOpen, err)
	}
	c.opened = true
	c.width = width
	c.height = height

	if rb, ok := c.engine.(Readback); ok && !c.conf.Synchronous {
		if err := rb.InitReadback(width, height); err != nil {
			log.Printf("capture: asynchronous readback unavailable, capturing synchronously: %s", err)
		} else {
			c.readback = rb
		}
	}

	if c.readback == nil {
		c.staging = make([]byte, c.frameSize())
		c.scratch = make([]byte, c.frameSize())
	} else {
		c.work = make(chan []byte, 1)
		c.free = make(chan []byte, 1)
		c.done = make(chan struct{})
		c.free <- make([]byte, c.frameSize())

		c.errg = &errgroup.Group{}
		c.errg.Go(func() error {
			defer close(c.done)
			return c.worker()
		})
	}

	return nil
}

// Frame captures the frame the engine has just presented. It is called on
// the emulation thread once per frame. After an error the engine has been
// told to stop and further calls do nothing.
func (c *Capturer) Frame() error {
	if err := c.Err(); err != nil {
		return err
	}
	if c.closed {
		return nil
	}

	if c.ctx.Err() != nil {
		c.Abort()
		c.engine.Stop()
		return c.fail(ErrCancelled)
	}

	if !c.started {
		c.started = true
		if c.conf.SpeedFactor > 0 {
			if err := c.engine.SetSpeedFactor(c.conf.SpeedFactor); err != nil {
				log.Printf("capture: failed to set speed factor: %s", err)
			}
		}
	}

	if err := c.capture(); err != nil {
		c.Abort()
		c.engine.Stop()
		return c.fail(err)
	}
	return nil
}

func (c *Capturer) capture() error {
	if !c.opened {
		if err := c.open(); err != nil {
			return err
		}
		if !c.opened {
			return nil
		}
	}

	if width, height := c.engine.ScreenSize(); width != c.width || height != c.height {
		return fmt.Errorf("render size changed from %dx%d to %dx%d", c.width, c.height, width, height)
	}

	if c.readback == nil {
		return c.captureSync()
	}

	if c.pending {
		if err := c.handoff(); err != nil {
			return err
		}
	}

	if err := c.readback.StartReadback(c.slot); err != nil {
		return err
	}
	c.pending = true
	c.slot ^= 1
	return nil
}

// handoff waits for the worker to release the staging buffer, fills it from
// the transfer issued on the previous frame and gives it back to the worker.
func (c *Capturer) handoff() error {
	var staging []byte
	select {
	case staging = <-c.free:
	case <-c.done:
		return c.errg.Wait()
	}

	c.pending = false
	if err := c.readback.FinishReadback(c.slot^1, staging); err != nil {
		c.free <- staging
		return err
	}
	c.work <- staging
	return nil
}

func (c *Capturer) captureSync() error {
	if err := c.engine.ReadScreen(c.staging); err != nil {
		return err
	}
	flipRows(c.scratch, c.staging, c.width*BytesPerPixel)
	return c.write(c.scratch)
}

func (c *Capturer) worker() error {
	scratch := make([]byte, c.frameSize())
	for staging := range c.work {
		flipRows(scratch, staging, c.width*BytesPerPixel)
		c.free <- staging
		if err := c.write(scratch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Capturer) write(frame []byte) error {
	start := time.Now()
	if err := c.sink.WriteFrame(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	c.stats.add(time.Since(start))

	n := int(c.frames.Add(1))
	if c.conf.Progress != nil {
		c.conf.Progress(n, c.conf.ExpectedFrames)
	}
	return nil
}

// Finish writes out the last pending frame, waits for the worker and closes
// the sink. It is safe to call more than once.
func (c *Capturer) Finish() error {
	if c.closed {
		return c.Err()
	}

	var err error
	if c.pending {
		err = c.handoff()
	}
	if werr := c.shutdown(); err == nil {
		err = werr
	}
	if err != nil {
		return c.fail(err)
	}
	return c.Err()
}

// Abort drops any pending transfer and closes the sink without flushing.
func (c *Capturer) Abort() {
	if c.closed {
		return
	}
	c.pending = false
	if err := c.shutdown(); err != nil {
		log.Printf("capture: error while aborting: %s", err)
	}
}

func (c *Capturer) shutdown() error {
	c.closed = true

	var err error
	if c.errg != nil {
		close(c.work)
		err = c.errg.Wait()
	}
	if c.readback != nil {
		c.readback.CloseReadback()
	}
	if c.opened {
		if cerr := c.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func flipRows(dst []byte, src []byte, stride int) {
	rows := len(src) / stride
	for y := 0; y < rows; y++ {
		copy(dst[y*stride:(y+1)*stride], src[(rows-1-y)*stride:(rows-y)*stride])
	}
}
