//go:build m64p

package m64p

/*
#include "m64p.h"

extern m64p_error krec2mp4_vidextInit(void);
extern m64p_error krec2mp4_vidextInitWithRenderMode(int mode);
extern m64p_error krec2mp4_vidextQuit(void);
extern m64p_error krec2mp4_vidextListModes(m64p_2d_size *sizes, int *num);
extern m64p_error krec2mp4_vidextListRates(m64p_2d_size size, int *num, int *rates);
extern m64p_error krec2mp4_vidextSetMode(int width, int height, int bpp, int mode, int flags);
extern m64p_error krec2mp4_vidextSetModeWithRate(int width, int height, int rate, int bpp, int mode, int flags);
extern m64p_function krec2mp4_vidextGLGetProc(char *proc);
extern m64p_error krec2mp4_vidextGLSetAttr(m64p_GLattr attr, int value);
extern m64p_error krec2mp4_vidextGLGetAttr(m64p_GLattr attr, int *value);
extern m64p_error krec2mp4_vidextGLSwapBuf(void);
extern m64p_error krec2mp4_vidextSetCaption(char *title);
extern m64p_error krec2mp4_vidextToggleFS(void);
extern m64p_error krec2mp4_vidextResizeWindow(int width, int height);
extern uint32_t krec2mp4_vidextGLGetDefaultFramebuffer(void);
extern m64p_error krec2mp4_vidextVKGetSurface(void **surface, void *instance);
extern m64p_error krec2mp4_vidextVKGetInstanceExtensions(char ***extensions, uint32_t *num);

void krec2mp4_vidextFill(m64p_video_extension_functions *f) {
	f->Functions = 17;
	f->VidExtFuncInit = krec2mp4_vidextInit;
	f->VidExtFuncInitWithRenderMode = krec2mp4_vidextInitWithRenderMode;
	f->VidExtFuncQuit = krec2mp4_vidextQuit;
	f->VidExtFuncListModes = krec2mp4_vidextListModes;
	f->VidExtFuncListRates = krec2mp4_vidextListRates;
	f->VidExtFuncSetMode = krec2mp4_vidextSetMode;
	f->VidExtFuncSetModeWithRate = krec2mp4_vidextSetModeWithRate;
	f->VidExtFuncGLGetProc = krec2mp4_vidextGLGetProc;
	f->VidExtFuncGLSetAttr = krec2mp4_vidextGLSetAttr;
	f->VidExtFuncGLGetAttr = krec2mp4_vidextGLGetAttr;
	f->VidExtFuncGLSwapBuf = krec2mp4_vidextGLSwapBuf;
	f->VidExtFuncSetCaption = krec2mp4_vidextSetCaption;
	f->VidExtFuncToggleFS = krec2mp4_vidextToggleFS;
	f->VidExtFuncResizeWindow = krec2mp4_vidextResizeWindow;
	f->VidExtFuncGLGetDefaultFramebuffer = krec2mp4_vidextGLGetDefaultFramebuffer;
	f->VidExtFuncVKGetSurface = krec2mp4_vidextVKGetSurface;
	f->VidExtFuncVKGetInstanceExtensions = krec2mp4_vidextVKGetInstanceExtensions;
}
*/
import "C"
import (
	"sync"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

var vidextFunctions C.m64p_video_extension_functions

func init() {
	C.krec2mp4_vidextFill(&vidextFunctions)
}

const windowTitle = "krec2mp4"

// window is the hidden window the video plugin renders into. The GL context
// is current on the emulation thread.
type window struct {
	mu sync.Mutex

	initialized bool
	win         *sdl.Window
	ctx         sdl.GLContext
	glReady     bool

	width  int
	height int

	attrs map[int]int
}

var video = &window{attrs: defaultGLAttrs()}

func defaultGLAttrs() map[int]int {
	return map[int]int{
		C.M64P_GL_DOUBLEBUFFER:          1,
		C.M64P_GL_DEPTH_SIZE:            24,
		C.M64P_GL_RED_SIZE:              8,
		C.M64P_GL_GREEN_SIZE:            8,
		C.M64P_GL_BLUE_SIZE:             8,
		C.M64P_GL_ALPHA_SIZE:            8,
		C.M64P_GL_SWAP_CONTROL:          0,
		C.M64P_GL_MULTISAMPLEBUFFERS:    0,
		C.M64P_GL_MULTISAMPLESAMPLES:    0,
		C.M64P_GL_CONTEXT_MAJOR_VERSION: 3,
		C.M64P_GL_CONTEXT_MINOR_VERSION: 3,
		C.M64P_GL_CONTEXT_PROFILE_MASK:  C.M64P_GL_CONTEXT_PROFILE_COMPATIBILITY,
	}
}

var sdlGLAttrs = map[int]sdl.GLattr{
	C.M64P_GL_DOUBLEBUFFER:          sdl.GL_DOUBLEBUFFER,
	C.M64P_GL_DEPTH_SIZE:            sdl.GL_DEPTH_SIZE,
	C.M64P_GL_RED_SIZE:              sdl.GL_RED_SIZE,
	C.M64P_GL_GREEN_SIZE:            sdl.GL_GREEN_SIZE,
	C.M64P_GL_BLUE_SIZE:             sdl.GL_BLUE_SIZE,
	C.M64P_GL_ALPHA_SIZE:            sdl.GL_ALPHA_SIZE,
	C.M64P_GL_MULTISAMPLEBUFFERS:    sdl.GL_MULTISAMPLEBUFFERS,
	C.M64P_GL_MULTISAMPLESAMPLES:    sdl.GL_MULTISAMPLESAMPLES,
	C.M64P_GL_CONTEXT_MAJOR_VERSION: sdl.GL_CONTEXT_MAJOR_VERSION,
	C.M64P_GL_CONTEXT_MINOR_VERSION: sdl.GL_CONTEXT_MINOR_VERSION,
}

func sdlProfile(profile int) int {
	switch profile {
	case C.M64P_GL_CONTEXT_PROFILE_CORE:
		return sdl.GL_CONTEXT_PROFILE_CORE
	case C.M64P_GL_CONTEXT_PROFILE_ES:
		return sdl.GL_CONTEXT_PROFILE_ES
	default:
		return sdl.GL_CONTEXT_PROFILE_COMPATIBILITY
	}
}

func (w *window) init() C.m64p_error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.initialized {
		return C.M64ERR_ALREADY_INIT
	}
	if err := sdl.InitSubSystem(sdl.INIT_VIDEO); err != nil {
		logf("vidext: failed to init video: %s", err)
		return C.M64ERR_SYSTEM_FAIL
	}
	w.initialized = true
	return C.M64ERR_SUCCESS
}

func (w *window) destroyLocked() {
	w.glReady = false
	if w.ctx != nil {
		sdl.GLDeleteContext(w.ctx)
		w.ctx = nil
	}
	if w.win != nil {
		w.win.Destroy()
		w.win = nil
	}
}

func (w *window) quit() C.m64p_error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.destroyLocked()
	if w.initialized {
		sdl.QuitSubSystem(sdl.INIT_VIDEO)
		w.initialized = false
	}
	w.width, w.height = 0, 0
	return C.M64ERR_SUCCESS
}

func (w *window) setMode(width int, height int) C.m64p_error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for attr, sdlAttr := range sdlGLAttrs {
		sdl.GLSetAttribute(sdlAttr, w.attrs[attr])
	}
	sdl.GLSetAttribute(sdl.GL_CONTEXT_PROFILE_MASK, sdlProfile(w.attrs[C.M64P_GL_CONTEXT_PROFILE_MASK]))

	w.destroyLocked()

	win, err := sdl.CreateWindow(windowTitle, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_OPENGL|sdl.WINDOW_HIDDEN)
	if err != nil {
		logf("vidext: failed to create hidden window, trying minimized: %s", err)
		win, err = sdl.CreateWindow(windowTitle, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, int32(width), int32(height), sdl.WINDOW_OPENGL|sdl.WINDOW_MINIMIZED)
		if err != nil {
			logf("vidext: failed to create window: %s", err)
			return C.M64ERR_SYSTEM_FAIL
		}
	}

	ctx, err := win.GLCreateContext()
	if err != nil {
		logf("vidext: failed to create gl context: %s", err)
		win.Destroy()
		return C.M64ERR_SYSTEM_FAIL
	}

	if err := win.GLMakeCurrent(ctx); err != nil {
		logf("vidext: failed to make gl context current: %s", err)
		sdl.GLDeleteContext(ctx)
		win.Destroy()
		return C.M64ERR_SYSTEM_FAIL
	}
	sdl.GLSetSwapInterval(0)

	if err := gl.Init(); err != nil {
		logf("vidext: failed to load gl: %s", err)
		sdl.GLDeleteContext(ctx)
		win.Destroy()
		return C.M64ERR_SYSTEM_FAIL
	}
	w.glReady = true

	w.win = win
	w.ctx = ctx
	w.width = width
	w.height = height
	logf("vidext: %dx%d", width, height)
	return C.M64ERR_SUCCESS
}

func (w *window) setAttr(attr int, value int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if attr == C.M64P_GL_SWAP_CONTROL {
		value = 0
	}
	w.attrs[attr] = value
}

func (w *window) attr(attr int) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if attr == C.M64P_GL_BUFFER_SIZE {
		return w.attrs[C.M64P_GL_RED_SIZE] + w.attrs[C.M64P_GL_GREEN_SIZE] + w.attrs[C.M64P_GL_BLUE_SIZE] + w.attrs[C.M64P_GL_ALPHA_SIZE], true
	}
	v, ok := w.attrs[attr]
	return v, ok
}

func (w *window) ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.glReady
}

func (w *window) size() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width, w.height
}
