package convert

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/murkland/krec2mp4/avsync"
	"github.com/murkland/krec2mp4/capture"
	"github.com/murkland/krec2mp4/config"
	"github.com/murkland/krec2mp4/ffmpeg"
	"github.com/murkland/krec2mp4/joybus"
	"github.com/murkland/krec2mp4/krec"
)

var (
	ErrNoInput  = errors.New("no input frames in log")
	ErrNoFrames = errors.New("no frames were captured")
)

// Engine is an emulator instance prepared for one conversion run.
type Engine interface {
	capture.Engine

	// Run emulates until Stop is called or the game ends. onFrame is called
	// after every presented frame and onBus for every PIF transaction, both
	// on the emulation thread.
	Run(onFrame func(), onBus func(chs []joybus.Channel)) error
	// AudioStats reports what the audio capture wrote.
	AudioStats() (sampleRate int, bytes int64)
	Close() error
}

type EngineConfig struct {
	Engine    config.Engine
	Video     config.Video
	Players   int
	AudioPath string
}

type EngineFactory func(conf EngineConfig) (Engine, error)

type Converter struct {
	conf      config.Config
	ff        *ffmpeg.FFmpeg
	newEngine EngineFactory

	// Progress receives (done, total) frame counts while capturing and
	// (-1, 0) when muxing starts.
	Progress func(done int, total int)
}

func New(conf config.Config, ff *ffmpeg.FFmpeg, newEngine EngineFactory) *Converter {
	return &Converter{conf: conf, ff: ff, newEngine: newEngine}
}

// OutputPath is output if set, otherwise the input path with an .mp4
// extension.
func OutputPath(input string, output string) string {
	if output != "" {
		return output
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".mp4"
}

// onceEngine stops the underlying engine at most once.
type onceEngine struct {
	Engine
	once sync.Once
}

func (e *onceEngine) Stop() {
	e.once.Do(e.Engine.Stop)
}

func removeTemps(paths ...string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("failed to remove %s: %s", p, err)
		}
	}
}

// Convert renders one log to a video file.
func (c *Converter) Convert(ctx context.Context, input string, output string) error {
	log.Printf("--- converting: %s ---", input)
	log.Printf("output: %s", output)

	if err := ctx.Err(); err != nil {
		return capture.ErrCancelled
	}

	l, err := krec.Open(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}

	fps := c.conf.FrameRate()
	var info strings.Builder
	krec.WriteInfo(&info, l, fps)
	for _, line := range strings.Split(strings.TrimRight(info.String(), "\n"), "\n") {
		log.Print(line)
	}

	if l.TotalFrames == 0 {
		return ErrNoInput
	}

	tempVideo := output + ".tmp_v.mp4"
	tempAudio := output + ".tmp_a.raw"
	defer removeTemps(tempVideo, tempAudio)

	frames, audioRate, audioBytes, err := c.run(ctx, l, tempVideo, tempAudio)
	if err != nil {
		return err
	}

	if frames <= 0 {
		return ErrNoFrames
	}

	if audioBytes == 0 {
		log.Printf("no audio captured, keeping video-only output")
		return os.Rename(tempVideo, output)
	}

	if c.Progress != nil {
		c.Progress(-1, 0)
	}

	av := avsync.Calculate(frames, fps, audioBytes, audioRate)
	log.Printf("a/v sync: %s", av)
	log.Printf("muxing video and audio (sample rate: %d Hz)", audioRate)

	if err := c.ff.Mux(ctx, ffmpeg.MuxParams{
		Video:      tempVideo,
		Audio:      tempAudio,
		SampleRate: audioRate,
		Scale:      av.Scale,
		Output:     output,
	}); err != nil {
		log.Printf("mux failed, keeping video-only output: %s", err)
		wavPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".wav"
		if err := writeWAV(wavPath, tempAudio, audioRate); err != nil {
			log.Printf("failed to save audio to %s: %s", wavPath, err)
		} else {
			log.Printf("audio saved to: %s", wavPath)
		}
		return os.Rename(tempVideo, output)
	}

	log.Printf("output saved to: %s", output)
	return nil
}

func (c *Converter) run(ctx context.Context, l *krec.Log, tempVideo string, tempAudio string) (int, int, int64, error) {
	log.Printf("initializing emulator...")
	e, err := c.newEngine(EngineConfig{
		Engine:    c.conf.Engine,
		Video:     c.conf.Video,
		Players:   l.Players(),
		AudioPath: tempAudio,
	})
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to start emulator: %w", err)
	}
	engine := &onceEngine{Engine: e}

	var ce capture.Engine = engine
	if rb, ok := e.(capture.Readback); ok {
		ce = struct {
			*onceEngine
			capture.Readback
		}{engine, rb}
	}

	encoder := c.ff.NewEncoder(tempVideo, c.conf.Encoder.Codec.String())
	replayer := joybus.NewReplayer(l, engine.Stop)
	capturer := capture.New(ctx, ce, encoder, capture.Config{
		Width:          c.conf.Video.Width,
		Height:         c.conf.Video.Height,
		FrameRate:      c.conf.FrameRate(),
		Quality:        c.conf.Encoder.CRF,
		ExpectedFrames: l.TotalFrames,
		SpeedFactor:    c.conf.Engine.SpeedFactor,
		Synchronous:    c.conf.Video.Synchronous,
		Progress:       c.Progress,
	})

	log.Printf("requested resolution: %dx%d @ %g fps, crf %d", c.conf.Video.Width, c.conf.Video.Height, c.conf.FrameRate(), c.conf.Encoder.CRF)
	log.Printf("running emulation (%d input frames)...", l.TotalFrames)

	onFrame := func() {
		replayer.EndFrame()
		if replayer.Finished() {
			if err := capturer.Finish(); err != nil {
				log.Printf("capture: %s", err)
			}
			engine.Stop()
			return
		}
		capturer.Frame()
	}

	runErr := engine.Run(onFrame, replayer.HandleTransaction)

	// The engine can also stop on its own, e.g. when the game crashes.
	if ctx.Err() != nil {
		capturer.Abort()
	} else if err := capturer.Finish(); err != nil && !errors.Is(err, capture.ErrCancelled) {
		log.Printf("capture: %s", err)
	}

	stats := capturer.Stats()
	log.Printf("emulation finished, captured %d frames (median write %s)", stats.Frames, stats.MedianWrite)

	audioRate, audioBytes := engine.AudioStats()
	if audioRate <= 0 {
		audioRate = config.DefaultSampleRate
	}
	log.Printf("audio capture: %d bytes, frequency: %d Hz", audioBytes, audioRate)

	if err := engine.Close(); err != nil {
		log.Printf("failed to shut down emulator: %s", err)
	}

	if ctx.Err() != nil || errors.Is(capturer.Err(), capture.ErrCancelled) {
		log.Printf("conversion cancelled")
		return 0, 0, 0, capture.ErrCancelled
	}
	if err := capturer.Err(); err != nil {
		return 0, 0, 0, err
	}
	if runErr != nil {
		return 0, 0, 0, fmt.Errorf("emulation failed: %w", runErr)
	}
	if !replayer.Finished() {
		log.Printf("emulation stopped after %d of %d input frames", replayer.Frame(), replayer.Total())
	}

	return stats.Frames, audioRate, audioBytes, nil
}
