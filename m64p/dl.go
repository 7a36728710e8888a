//go:build m64p

package m64p

/*
#cgo linux LDFLAGS: -ldl

#include <stdlib.h>

#ifdef _WIN32
#include <windows.h>

void *krec2mp4_dlopen(const char *path) {
	return (void *)LoadLibraryA(path);
}

void *krec2mp4_dlsym(void *handle, const char *name) {
	return (void *)GetProcAddress((HMODULE)handle, name);
}

void krec2mp4_dlclose(void *handle) {
	FreeLibrary((HMODULE)handle);
}

const char *krec2mp4_dlerror(void) {
	return "LoadLibrary failed";
}
#else
#include <dlfcn.h>

void *krec2mp4_dlopen(const char *path) {
	return dlopen(path, RTLD_NOW);
}

void *krec2mp4_dlsym(void *handle, const char *name) {
	return dlsym(handle, name);
}

void krec2mp4_dlclose(void *handle) {
	dlclose(handle);
}

const char *krec2mp4_dlerror(void) {
	return dlerror();
}
#endif
*/
import "C"
import (
	"fmt"
	"runtime"
	"unsafe"
)

type library struct {
	path   string
	handle unsafe.Pointer
}

func libraryExt() string {
	switch runtime.GOOS {
	case "windows":
		return ".dll"
	case "darwin":
		return ".dylib"
	default:
		return ".so"
	}
}

func openLibrary(path string) (*library, error) {
	pathCstr := C.CString(path)
	defer C.free(unsafe.Pointer(pathCstr))

	handle := C.krec2mp4_dlopen(pathCstr)
	if handle == nil {
		return nil, fmt.Errorf("could not load %s: %s", path, C.GoString(C.krec2mp4_dlerror()))
	}
	return &library{path, handle}, nil
}

// sym returns nil if the library does not export name.
func (l *library) sym(name string) unsafe.Pointer {
	nameCstr := C.CString(name)
	defer C.free(unsafe.Pointer(nameCstr))
	return C.krec2mp4_dlsym(l.handle, nameCstr)
}

func (l *library) mustSym(name string) (unsafe.Pointer, error) {
	p := l.sym(name)
	if p == nil {
		return nil, fmt.Errorf("%s does not export %s", l.path, name)
	}
	return p, nil
}

func (l *library) Close() {
	if l.handle == nil {
		return
	}
	C.krec2mp4_dlclose(l.handle)
	l.handle = nil
}
