//go:build m64p

package m64p

/*
#include "m64p.h"

extern void krec2mp4_debugCallback(void *context, int level, char *message);
extern void krec2mp4_frameCallback(unsigned int index);
extern void krec2mp4_pifCallback(struct pif *pif);

m64p_error krec2mp4_CoreStartup(void *fn, int version, const char *configPath, const char *dataPath, void *context) {
	return ((ptr_CoreStartup)fn)(version, configPath, dataPath, context, (ptr_DebugCallback)krec2mp4_debugCallback, NULL, NULL);
}

m64p_error krec2mp4_CoreShutdown(void *fn) {
	return ((ptr_CoreShutdown)fn)();
}

m64p_error krec2mp4_CoreAttachPlugin(void *fn, int type, void *handle) {
	return ((ptr_CoreAttachPlugin)fn)(type, handle);
}

m64p_error krec2mp4_CoreDetachPlugin(void *fn, int type) {
	return ((ptr_CoreDetachPlugin)fn)(type);
}

m64p_error krec2mp4_CoreDoCommand(void *fn, int command, int param, void *ptr) {
	return ((ptr_CoreDoCommand)fn)(command, param, ptr);
}

m64p_error krec2mp4_CoreSetFrameCallback(void *fn) {
	return ((ptr_CoreDoCommand)fn)(M64CMD_SET_FRAME_CALLBACK, 0, (void *)krec2mp4_frameCallback);
}

m64p_error krec2mp4_CoreOverrideVidExt(void *fn, m64p_video_extension_functions *funcs) {
	return ((ptr_CoreOverrideVidExt)fn)(funcs);
}

void krec2mp4_setPIFSyncCallback(void *fn) {
	((ptr_set_pif_sync_callback)fn)(krec2mp4_pifCallback);
}

void krec2mp4_clearPIFSyncCallback(void *fn) {
	((ptr_set_pif_sync_callback)fn)(NULL);
}
*/
import "C"
import (
	"errors"
	"fmt"
	"unsafe"
)

const coreAPIVersion = 0x020001

type PluginType int

const (
	PluginRSP   PluginType = C.M64PLUGIN_RSP
	PluginGFX   PluginType = C.M64PLUGIN_GFX
	PluginAudio PluginType = C.M64PLUGIN_AUDIO
	PluginInput PluginType = C.M64PLUGIN_INPUT
)

func (t PluginType) String() string {
	switch t {
	case PluginRSP:
		return "rsp"
	case PluginGFX:
		return "gfx"
	case PluginAudio:
		return "audio"
	case PluginInput:
		return "input"
	default:
		return fmt.Sprintf("plugin(%d)", int(t))
	}
}

// Core is a loaded mupen64plus core library. Only one may be started per
// process.
type Core struct {
	lib *library

	startup        unsafe.Pointer
	shutdown       unsafe.Pointer
	attachPlugin   unsafe.Pointer
	detachPlugin   unsafe.Pointer
	doCommand      unsafe.Pointer
	overrideVidExt unsafe.Pointer
	configOpen     unsafe.Pointer
	configSet      unsafe.Pointer
	setPIFCallback unsafe.Pointer

	started bool
	romOpen bool
	rom     unsafe.Pointer
}

func LoadCore(path string) (*Core, error) {
	lib, err := openLibrary(path)
	if err != nil {
		return nil, err
	}

	c := &Core{lib: lib}
	for _, s := range []struct {
		name string
		dst  *unsafe.Pointer
	}{
		{"CoreStartup", &c.startup},
		{"CoreShutdown", &c.shutdown},
		{"CoreAttachPlugin", &c.attachPlugin},
		{"CoreDetachPlugin", &c.detachPlugin},
		{"CoreDoCommand", &c.doCommand},
		{"CoreOverrideVidExt", &c.overrideVidExt},
		{"ConfigOpenSection", &c.configOpen},
		{"ConfigSetParameter", &c.configSet},
	} {
		if *s.dst, err = lib.mustSym(s.name); err != nil {
			lib.Close()
			return nil, err
		}
	}

	c.setPIFCallback = lib.sym("set_pif_sync_callback")
	if c.setPIFCallback == nil {
		lib.Close()
		return nil, fmt.Errorf("%s does not export set_pif_sync_callback and cannot replay input", path)
	}

	return c, nil
}

func (c *Core) Startup(configDir string, dataDir string) error {
	configCstr := C.CString(configDir)
	defer C.free(unsafe.Pointer(configCstr))

	dataCstr := C.CString(dataDir)
	defer C.free(unsafe.Pointer(dataCstr))

	if err := check("CoreStartup", int(C.krec2mp4_CoreStartup(c.startup, coreAPIVersion, configCstr, dataCstr, nil))); err != nil {
		return err
	}
	c.started = true
	return nil
}

func (c *Core) OverrideVidExt() error {
	return check("CoreOverrideVidExt", int(C.krec2mp4_CoreOverrideVidExt(c.overrideVidExt, &vidextFunctions)))
}

func (c *Core) AttachPlugin(t PluginType, p *Plugin) error {
	return check(fmt.Sprintf("CoreAttachPlugin(%s)", t), int(C.krec2mp4_CoreAttachPlugin(c.attachPlugin, C.int(t), p.lib.handle)))
}

func (c *Core) DetachPlugin(t PluginType) error {
	return check(fmt.Sprintf("CoreDetachPlugin(%s)", t), int(C.krec2mp4_CoreDetachPlugin(c.detachPlugin, C.int(t))))
}

func (c *Core) command(name string, cmd C.int, param int, ptr unsafe.Pointer) error {
	return check(name, int(C.krec2mp4_CoreDoCommand(c.doCommand, cmd, C.int(param), ptr)))
}

// OpenROM hands the core a copy of rom. The copy stays alive until the ROM
// is closed.
func (c *Core) OpenROM(rom []byte) error {
	if len(rom) == 0 {
		return errors.New("rom is empty")
	}
	c.rom = C.CBytes(rom)
	if err := c.command("M64CMD_ROM_OPEN", C.M64CMD_ROM_OPEN, len(rom), c.rom); err != nil {
		C.free(c.rom)
		c.rom = nil
		return err
	}
	c.romOpen = true
	return nil
}

func (c *Core) CloseROM() error {
	if !c.romOpen {
		return nil
	}
	err := c.command("M64CMD_ROM_CLOSE", C.M64CMD_ROM_CLOSE, 0, nil)
	c.romOpen = false
	C.free(c.rom)
	c.rom = nil
	return err
}

// Execute runs the emulator on the calling thread until it is stopped.
func (c *Core) Execute() error {
	return c.command("M64CMD_EXECUTE", C.M64CMD_EXECUTE, 0, nil)
}

func (c *Core) Stop() error {
	return c.command("M64CMD_STOP", C.M64CMD_STOP, 0, nil)
}

func (c *Core) SetSpeedFactor(percent int) error {
	v := C.int(percent)
	return c.command("M64CMD_CORE_STATE_SET", C.M64CMD_CORE_STATE_SET, C.M64CORE_SPEED_FACTOR, unsafe.Pointer(&v))
}

func (c *Core) enableCallbacks() error {
	if err := check("M64CMD_SET_FRAME_CALLBACK", int(C.krec2mp4_CoreSetFrameCallback(c.doCommand))); err != nil {
		return err
	}
	C.krec2mp4_setPIFSyncCallback(c.setPIFCallback)
	return nil
}

func (c *Core) disableCallbacks() {
	C.krec2mp4_clearPIFSyncCallback(c.setPIFCallback)
	c.command("M64CMD_SET_FRAME_CALLBACK", C.M64CMD_SET_FRAME_CALLBACK, 0, nil)
}

func (c *Core) Close() {
	if c.lib == nil {
		return
	}
	if err := c.CloseROM(); err != nil {
		logf("failed to close rom: %s", err)
	}
	if c.started {
		C.krec2mp4_CoreShutdown(c.shutdown)
		c.started = false
	}
	c.lib.Close()
	c.lib = nil
}
