//go:build m64p

package m64p

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/murkland/krec2mp4/capture"
	"github.com/murkland/krec2mp4/joybus"
)

const pifChannels = 5

const (
	gfxPlugin   = "mupen64plus-video-GLideN64"
	rspPlugin   = "mupen64plus-rsp-hle"
	inputPlugin = "RMG-Input"
	audioPlugin = "krec2mp4-audio"
)

type Config struct {
	CorePath  string
	PluginDir string
	DataDir   string
	ROMPath   string
	// AudioPlugin defaults to the capture plugin in PluginDir.
	AudioPlugin string

	Video   VideoSettings
	Players int
	// AudioPath receives raw s16le stereo audio.
	AudioPath string
	Verbose   bool
}

// running is the engine the core's callbacks are delivered to.
var running atomic.Pointer[Engine]

// Engine is a core with its plugins attached and a ROM loaded, ready to
// run once.
type Engine struct {
	conf Config

	core    *Core
	plugins []*Plugin
	screen  *screenReader
	audio   *audioCapture
	pack    *pixelPack

	onFrame  func()
	onBus    func(chs []joybus.Channel)
	channels [pifChannels]joybus.Channel

	attached      []PluginType
	stopRequested bool
	stopIssued    bool
}

var (
	_ capture.Engine   = (*Engine)(nil)
	_ capture.Readback = (*Engine)(nil)
)

func pluginPath(dir string, name string) string {
	return filepath.Join(dir, name+libraryExt())
}

func New(conf Config) (*Engine, error) {
	SetVerbose(conf.Verbose)

	e := &Engine{conf: conf}
	if err := e.init(); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) init() error {
	core, err := LoadCore(e.conf.CorePath)
	if err != nil {
		return err
	}
	e.core = core

	dataDir, err := filepath.Abs(e.conf.DataDir)
	if err != nil {
		return err
	}
	if err := core.Startup(dataDir, dataDir); err != nil {
		return err
	}
	if err := core.OverrideVidExt(); err != nil {
		return err
	}

	if err := PatchGLideN64(filepath.Join(dataDir, "GLideN64.ini"), e.conf.Video); err != nil {
		logf("failed to configure GLideN64: %s", err)
	}

	audioPath := e.conf.AudioPlugin
	if audioPath == "" {
		audioPath = pluginPath(e.conf.PluginDir, audioPlugin)
	}

	for _, p := range []struct {
		t    PluginType
		path string
	}{
		{PluginGFX, pluginPath(e.conf.PluginDir, gfxPlugin)},
		{PluginRSP, pluginPath(e.conf.PluginDir, rspPlugin)},
		{PluginAudio, audioPath},
		{PluginInput, pluginPath(e.conf.PluginDir, inputPlugin)},
	} {
		plugin, err := LoadPlugin(core, p.t, p.path)
		if err != nil {
			return err
		}
		e.plugins = append(e.plugins, plugin)

		switch p.t {
		case PluginGFX:
			e.screen = newScreenReader(plugin)
			if e.screen == nil {
				logf("%s does not export ReadScreen2, reading the framebuffer directly", filepath.Base(p.path))
			}
		case PluginAudio:
			if e.audio, err = newAudioCapture(plugin); err != nil {
				return fmt.Errorf("audio plugin cannot capture: %w", err)
			}
			e.audio.SetOutput(e.conf.AudioPath)
		}
	}

	rom, err := os.ReadFile(e.conf.ROMPath)
	if err != nil {
		return fmt.Errorf("failed to read rom: %w", err)
	}
	if err := core.OpenROM(rom); err != nil {
		return err
	}

	for _, t := range []PluginType{PluginGFX, PluginAudio, PluginInput, PluginRSP} {
		if err := core.AttachPlugin(t, e.plugin(t)); err != nil {
			return err
		}
		e.attached = append(e.attached, t)
	}

	if err := core.ApplyDeterministicSettings(); err != nil {
		return err
	}
	return core.ConfigureControllers(e.conf.Players)
}

func (e *Engine) plugin(t PluginType) *Plugin {
	for _, p := range e.plugins {
		if p.Type == t {
			return p
		}
	}
	return nil
}

// Run emulates on the calling goroutine, locked to its thread, until the
// core stops.
func (e *Engine) Run(onFrame func(), onBus func(chs []joybus.Channel)) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if !running.CompareAndSwap(nil, e) {
		return errors.New("another engine is already running")
	}
	defer running.Store(nil)

	e.onFrame = onFrame
	e.onBus = onBus

	if err := e.core.enableCallbacks(); err != nil {
		return err
	}
	defer e.core.disableCallbacks()

	logf("executing %s", filepath.Base(e.conf.ROMPath))
	return e.core.Execute()
}

func (e *Engine) frameCallback() {
	if e.onFrame != nil {
		e.onFrame()
	}

	// Stopping is deferred to here so the GL context is still alive while
	// the frame handler flushes the last readback.
	if e.stopRequested && !e.stopIssued {
		e.stopIssued = true
		if err := e.core.Stop(); err != nil {
			logf("failed to stop: %s", err)
		}
	}
}

// Stop asks the core to stop after the current frame. It must be called
// from inside Run's callbacks.
func (e *Engine) Stop() {
	e.stopRequested = true
}

func (e *Engine) SetSpeedFactor(percent int) error {
	return e.core.SetSpeedFactor(percent)
}

func (e *Engine) ScreenSize() (int, int) {
	if !video.ready() {
		return 0, 0
	}
	if e.screen != nil {
		return e.screen.size()
	}
	return video.size()
}

func (e *Engine) ReadScreen(dst []byte) error {
	if !video.ready() {
		return errNoContext
	}
	width, height := e.ScreenSize()
	if len(dst) < width*height*capture.BytesPerPixel {
		return fmt.Errorf("screen buffer too small for %dx%d", width, height)
	}
	if e.screen != nil {
		e.screen.read(dst)
		return nil
	}
	return readPixels(width, height, dst)
}

func (e *Engine) InitReadback(width int, height int) error {
	if !video.ready() {
		return errNoContext
	}
	e.pack = &pixelPack{}
	if err := e.pack.init(width, height); err != nil {
		e.pack = nil
		return err
	}
	return nil
}

func (e *Engine) StartReadback(slot int) error {
	if e.pack == nil || !video.ready() {
		return errNoContext
	}
	return e.pack.start(slot)
}

func (e *Engine) FinishReadback(slot int, dst []byte) error {
	if e.pack == nil || !video.ready() {
		return errNoContext
	}
	return e.pack.finish(slot, dst)
}

func (e *Engine) CloseReadback() {
	if e.pack == nil {
		return
	}
	if video.ready() {
		e.pack.close()
	}
	e.pack = nil
}

func (e *Engine) AudioStats() (int, int64) {
	if e.audio == nil {
		return 0, 0
	}
	return e.audio.Frequency(), e.audio.BytesWritten()
}

func (e *Engine) Close() error {
	if e.core == nil {
		return nil
	}

	for _, t := range e.attached {
		if err := e.core.DetachPlugin(t); err != nil {
			logf("%s", err)
		}
	}
	e.attached = nil
	err := e.core.CloseROM()
	for _, p := range e.plugins {
		p.Close()
	}
	e.plugins = nil
	e.core.Close()
	e.core = nil
	video.quit()
	return err
}
