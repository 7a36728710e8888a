//go:build m64p

// Command krec2mp4-audio is a mupen64plus audio plugin that writes what the
// game plays to a file instead of a sound device. Build it with
// -buildmode=c-shared and place it in the plugin directory.
package main

/*
#include <stdlib.h>
#include "plugin.h"
*/
import "C"
import (
	"log"
	"unsafe"

	"github.com/murkland/krec2mp4/audiocap"
)

const (
	pluginVersion = 0x010000
	apiVersion    = 0x020000
	rdramMask     = 0xffffff
)

var (
	initialized bool
	info        C.AUDIO_INFO
	recorder    = audiocap.New()

	pluginName = C.CString("krec2mp4 audio capture")
	volume     = C.CString("100%")
)

//export audio_capture_set_output
func audio_capture_set_output(path *C.char) {
	recorder.SetOutput(C.GoString(path))
}

//export audio_capture_get_frequency
func audio_capture_get_frequency() C.uint {
	return C.uint(recorder.Frequency())
}

//export audio_capture_get_bytes_written
func audio_capture_get_bytes_written() C.ulonglong {
	return C.ulonglong(recorder.BytesWritten())
}

//export PluginStartup
func PluginStartup(core unsafe.Pointer, context unsafe.Pointer, debug unsafe.Pointer) C.m64p_error {
	if initialized {
		return C.M64ERR_ALREADY_INIT
	}
	initialized = true
	return C.M64ERR_SUCCESS
}

//export PluginShutdown
func PluginShutdown() C.m64p_error {
	if !initialized {
		return C.M64ERR_NOT_INIT
	}
	initialized = false
	return C.M64ERR_SUCCESS
}

//export PluginGetVersion
func PluginGetVersion(pluginType *C.int, version *C.int, api *C.int, name **C.char, capabilities *C.int) C.m64p_error {
	if pluginType != nil {
		*pluginType = C.M64PLUGIN_AUDIO
	}
	if version != nil {
		*version = pluginVersion
	}
	if api != nil {
		*api = apiVersion
	}
	if name != nil {
		*name = pluginName
	}
	if capabilities != nil {
		*capabilities = 0
	}
	return C.M64ERR_SUCCESS
}

//export InitiateAudio
func InitiateAudio(audioInfo C.AUDIO_INFO) C.int {
	info = audioInfo
	return 1
}

//export RomOpen
func RomOpen() C.int {
	if err := recorder.Open(); err != nil {
		log.Printf("audio capture: %s", err)
		return 0
	}
	return 1
}

//export RomClosed
func RomClosed() {
	if err := recorder.Close(); err != nil {
		log.Printf("audio capture: %s", err)
	}
	log.Printf("audio capture: %d bytes at %d Hz", recorder.BytesWritten(), recorder.Frequency())
}

//export AiDacrateChanged
func AiDacrateChanged(systemType C.int) {
	if info.AI_DACRATE_REG == nil {
		return
	}
	recorder.SetFrequency(audiocap.SystemType(systemType), uint32(*info.AI_DACRATE_REG))
}

//export AiLenChanged
func AiLenChanged() {
	if info.RDRAM == nil || info.AI_DRAM_ADDR_REG == nil || info.AI_LEN_REG == nil {
		return
	}
	addr := uintptr(*info.AI_DRAM_ADDR_REG) & rdramMask
	n := int(*info.AI_LEN_REG)
	if n == 0 {
		return
	}
	src := unsafe.Slice((*byte)(unsafe.Add(unsafe.Pointer(info.RDRAM), addr)), n)
	if err := recorder.Write(src); err != nil {
		log.Printf("audio capture: %s", err)
	}
}

//export ProcessAList
func ProcessAList() {}

//export SetSpeedFactor
func SetSpeedFactor(percent C.int) {}

//export VolumeUp
func VolumeUp() {}

//export VolumeDown
func VolumeDown() {}

//export VolumeGetLevel
func VolumeGetLevel() C.int {
	return 100
}

//export VolumeSetLevel
func VolumeSetLevel(level C.int) {}

//export VolumeMute
func VolumeMute() {}

//export VolumeGetString
func VolumeGetString() *C.char {
	return volume
}

func main() {}
