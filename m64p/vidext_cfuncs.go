//go:build m64p

package m64p

/*
#include "m64p.h"
*/
import "C"
import (
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/veandco/go-sdl2/sdl"
)

//export krec2mp4_vidextInit
func krec2mp4_vidextInit() C.m64p_error {
	return video.init()
}

//export krec2mp4_vidextInitWithRenderMode
func krec2mp4_vidextInitWithRenderMode(mode C.int) C.m64p_error {
	if mode != C.M64P_RENDER_OPENGL {
		return C.M64ERR_UNSUPPORTED
	}
	return video.init()
}

//export krec2mp4_vidextQuit
func krec2mp4_vidextQuit() C.m64p_error {
	return video.quit()
}

//export krec2mp4_vidextListModes
func krec2mp4_vidextListModes(sizes *C.m64p_2d_size, num *C.int) C.m64p_error {
	return C.M64ERR_UNSUPPORTED
}

//export krec2mp4_vidextListRates
func krec2mp4_vidextListRates(size C.m64p_2d_size, num *C.int, rates *C.int) C.m64p_error {
	return C.M64ERR_UNSUPPORTED
}

//export krec2mp4_vidextSetMode
func krec2mp4_vidextSetMode(width C.int, height C.int, bpp C.int, mode C.int, flags C.int) C.m64p_error {
	return video.setMode(int(width), int(height))
}

//export krec2mp4_vidextSetModeWithRate
func krec2mp4_vidextSetModeWithRate(width C.int, height C.int, rate C.int, bpp C.int, mode C.int, flags C.int) C.m64p_error {
	return C.M64ERR_UNSUPPORTED
}

//export krec2mp4_vidextGLGetProc
func krec2mp4_vidextGLGetProc(proc *C.char) C.m64p_function {
	return C.m64p_function(sdl.GLGetProcAddress(C.GoString(proc)))
}

//export krec2mp4_vidextGLSetAttr
func krec2mp4_vidextGLSetAttr(attr C.m64p_GLattr, value C.int) C.m64p_error {
	video.setAttr(int(attr), int(value))
	return C.M64ERR_SUCCESS
}

//export krec2mp4_vidextGLGetAttr
func krec2mp4_vidextGLGetAttr(attr C.m64p_GLattr, value *C.int) C.m64p_error {
	if v, ok := video.attr(int(attr)); ok {
		*value = C.int(v)
	}
	return C.M64ERR_SUCCESS
}

// Nothing is presented. The frame stays in the back buffer until the frame
// callback has read it.
//
//export krec2mp4_vidextGLSwapBuf
func krec2mp4_vidextGLSwapBuf() C.m64p_error {
	if video.ready() {
		gl.Finish()
	}
	return C.M64ERR_SUCCESS
}

//export krec2mp4_vidextSetCaption
func krec2mp4_vidextSetCaption(title *C.char) C.m64p_error {
	return C.M64ERR_SUCCESS
}

//export krec2mp4_vidextToggleFS
func krec2mp4_vidextToggleFS() C.m64p_error {
	return C.M64ERR_SUCCESS
}

//export krec2mp4_vidextResizeWindow
func krec2mp4_vidextResizeWindow(width C.int, height C.int) C.m64p_error {
	return C.M64ERR_SUCCESS
}

//export krec2mp4_vidextGLGetDefaultFramebuffer
func krec2mp4_vidextGLGetDefaultFramebuffer() C.uint32_t {
	return 0
}

//export krec2mp4_vidextVKGetSurface
func krec2mp4_vidextVKGetSurface(surface *unsafe.Pointer, instance unsafe.Pointer) C.m64p_error {
	return C.M64ERR_UNSUPPORTED
}

//export krec2mp4_vidextVKGetInstanceExtensions
func krec2mp4_vidextVKGetInstanceExtensions(extensions ***C.char, num *C.uint32_t) C.m64p_error {
	return C.M64ERR_UNSUPPORTED
}
