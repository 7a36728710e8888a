package m64p

import "fmt"

// Error is a mupen64plus m64p_error code.
type Error int

const (
	ErrSuccess Error = iota
	ErrNotInit
	ErrAlreadyInit
	ErrIncompatible
	ErrInputAssert
	ErrInputInvalid
	ErrInputNotFound
	ErrNoMemory
	ErrFiles
	ErrInternal
	ErrInvalidState
	ErrPluginFail
	ErrSystemFail
	ErrUnsupported
	ErrWrongType
)

var errorNames = [...]string{
	ErrSuccess:       "success",
	ErrNotInit:       "not initialized",
	ErrAlreadyInit:   "already initialized",
	ErrIncompatible:  "incompatible api version",
	ErrInputAssert:   "invalid parameter",
	ErrInputInvalid:  "invalid input",
	ErrInputNotFound: "not found",
	ErrNoMemory:      "out of memory",
	ErrFiles:         "file error",
	ErrInternal:      "internal error",
	ErrInvalidState:  "invalid state",
	ErrPluginFail:    "plugin failure",
	ErrSystemFail:    "system failure",
	ErrUnsupported:   "unsupported",
	ErrWrongType:     "wrong parameter type",
}

func (e Error) Error() string {
	if e >= 0 && int(e) < len(errorNames) {
		return "m64p: " + errorNames[e]
	}
	return fmt.Sprintf("m64p: error %d", int(e))
}

// check converts a result code to nil or an Error wrapped with the call
// that produced it.
func check(call string, code int) error {
	if Error(code) == ErrSuccess {
		return nil
	}
	return fmt.Errorf("%s: %w", call, Error(code))
}
