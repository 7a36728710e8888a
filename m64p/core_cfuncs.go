//go:build m64p

package m64p

/*
#include "m64p.h"
*/
import "C"
import (
	"unsafe"

	"github.com/murkland/krec2mp4/joybus"
)

//export krec2mp4_debugCallback
func krec2mp4_debugCallback(context unsafe.Pointer, level C.int, message *C.char) {
	coreMessage(int(level), C.GoString(message))
}

//export krec2mp4_frameCallback
func krec2mp4_frameCallback(index C.uint) {
	if e := running.Load(); e != nil {
		e.frameCallback()
	}
}

//export krec2mp4_pifCallback
func krec2mp4_pifCallback(pif *C.struct_pif) {
	e := running.Load()
	if e == nil || e.onBus == nil {
		return
	}

	chs := e.channels[:]
	for i := range chs {
		ch := &pif.channels[i]
		chs[i] = joybus.Channel{}
		if ch.tx == nil || ch.tx_buf == nil || ch.rx == nil {
			continue
		}
		chs[i].Tx = true
		chs[i].Command = joybus.Command(*ch.tx_buf)
		chs[i].Status = byte(*ch.rx)
		if ch.rx_buf != nil {
			// The low bits of the receive byte are the response length.
			n := int(*ch.rx) &^ joybus.StatusErrorMask
			chs[i].Rx = unsafe.Slice((*byte)(unsafe.Pointer(ch.rx_buf)), n)
		}
	}

	e.onBus(chs)

	for i := range chs {
		if chs[i].Tx {
			*pif.channels[i].rx = C.uint8_t(chs[i].Status)
		}
	}
}
