//go:build m64p

package m64p

/*
#include "m64p.h"

extern void krec2mp4_debugCallback(void *context, int level, char *message);

m64p_error krec2mp4_PluginStartup(void *fn, void *core) {
	return ((ptr_PluginStartup)fn)(core, NULL, (ptr_DebugCallback)krec2mp4_debugCallback);
}

m64p_error krec2mp4_PluginShutdown(void *fn) {
	return ((ptr_PluginShutdown)fn)();
}

void krec2mp4_ReadScreen2(void *fn, void *dest, int *width, int *height) {
	((ptr_ReadScreen2)fn)(dest, width, height, 0);
}

void krec2mp4_audioCaptureSetOutput(void *fn, const char *path) {
	((ptr_audio_capture_set_output)fn)(path);
}

unsigned int krec2mp4_audioCaptureGetFrequency(void *fn) {
	return ((ptr_audio_capture_get_frequency)fn)();
}

unsigned long long krec2mp4_audioCaptureGetBytesWritten(void *fn) {
	return ((ptr_audio_capture_get_bytes_written)fn)();
}
*/
import "C"
import (
	"fmt"
	"path/filepath"
	"unsafe"
)

// Plugin is a started mupen64plus plugin library.
type Plugin struct {
	Type PluginType

	lib      *library
	shutdown unsafe.Pointer
}

func LoadPlugin(core *Core, t PluginType, path string) (*Plugin, error) {
	lib, err := openLibrary(path)
	if err != nil {
		return nil, err
	}

	startup, err := lib.mustSym("PluginStartup")
	if err != nil {
		lib.Close()
		return nil, err
	}
	shutdown, err := lib.mustSym("PluginShutdown")
	if err != nil {
		lib.Close()
		return nil, err
	}

	if code := Error(C.krec2mp4_PluginStartup(startup, core.lib.handle)); code != ErrSuccess && code != ErrAlreadyInit {
		lib.Close()
		return nil, fmt.Errorf("PluginStartup(%s): %w", filepath.Base(path), code)
	}

	return &Plugin{Type: t, lib: lib, shutdown: shutdown}, nil
}

func (p *Plugin) Close() {
	if p.lib == nil {
		return
	}
	C.krec2mp4_PluginShutdown(p.shutdown)
	p.lib.Close()
	p.lib = nil
}

// screenReader reads the last rendered frame through the video plugin.
type screenReader struct {
	fn unsafe.Pointer
}

func newScreenReader(gfx *Plugin) *screenReader {
	fn := gfx.lib.sym("ReadScreen2")
	if fn == nil {
		return nil
	}
	return &screenReader{fn}
}

func (r *screenReader) size() (int, int) {
	var width, height C.int
	C.krec2mp4_ReadScreen2(r.fn, nil, &width, &height)
	return int(width), int(height)
}

// read fills dst with bottom-up RGB24.
func (r *screenReader) read(dst []byte) (int, int) {
	var width, height C.int
	C.krec2mp4_ReadScreen2(r.fn, unsafe.Pointer(&dst[0]), &width, &height)
	return int(width), int(height)
}

// audioCapture is the control surface exported by the capture audio plugin.
type audioCapture struct {
	setOutput    unsafe.Pointer
	frequency    unsafe.Pointer
	bytesWritten unsafe.Pointer
}

func newAudioCapture(p *Plugin) (*audioCapture, error) {
	ac := &audioCapture{}
	var err error
	if ac.setOutput, err = p.lib.mustSym("audio_capture_set_output"); err != nil {
		return nil, err
	}
	if ac.frequency, err = p.lib.mustSym("audio_capture_get_frequency"); err != nil {
		return nil, err
	}
	if ac.bytesWritten, err = p.lib.mustSym("audio_capture_get_bytes_written"); err != nil {
		return nil, err
	}
	return ac, nil
}

func (ac *audioCapture) SetOutput(path string) {
	pathCstr := C.CString(path)
	defer C.free(unsafe.Pointer(pathCstr))
	C.krec2mp4_audioCaptureSetOutput(ac.setOutput, pathCstr)
}

func (ac *audioCapture) Frequency() int {
	return int(C.krec2mp4_audioCaptureGetFrequency(ac.frequency))
}

func (ac *audioCapture) BytesWritten() int64 {
	return int64(C.krec2mp4_audioCaptureGetBytesWritten(ac.bytesWritten))
}
