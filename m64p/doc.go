// Package m64p drives a mupen64plus core without a visible window so that
// every rendered frame can be read back and encoded.
//
// The binding needs cgo and is only built with the m64p tag. The core must
// export set_pif_sync_callback, which the Kaillera-enabled cores do.
package m64p
