//go:build m64p

package m64p

/*
#include "m64p.h"

m64p_error krec2mp4_ConfigOpenSection(void *fn, const char *name, m64p_handle *section) {
	return ((ptr_ConfigOpenSection)fn)(name, section);
}

m64p_error krec2mp4_ConfigSetParameter(void *fn, m64p_handle section, const char *name, int type, const void *value) {
	return ((ptr_ConfigSetParameter)fn)(section, name, type, value);
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// Section is one section of the core's configuration.
type Section struct {
	core   *Core
	name   string
	handle C.m64p_handle
}

func (c *Core) OpenSection(name string) (*Section, error) {
	nameCstr := C.CString(name)
	defer C.free(unsafe.Pointer(nameCstr))

	s := &Section{core: c, name: name}
	if err := check(fmt.Sprintf("ConfigOpenSection(%q)", name), int(C.krec2mp4_ConfigOpenSection(c.configOpen, nameCstr, &s.handle))); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Section) set(key string, typ C.int, value unsafe.Pointer) error {
	keyCstr := C.CString(key)
	defer C.free(unsafe.Pointer(keyCstr))
	return check(fmt.Sprintf("ConfigSetParameter(%s/%s)", s.name, key), int(C.krec2mp4_ConfigSetParameter(s.core.configSet, s.handle, keyCstr, typ, value)))
}

func (s *Section) SetInt(key string, v int) error {
	cv := C.int(v)
	return s.set(key, C.M64TYPE_INT, unsafe.Pointer(&cv))
}

func (s *Section) SetBool(key string, v bool) error {
	var cv C.int
	if v {
		cv = 1
	}
	return s.set(key, C.M64TYPE_BOOL, unsafe.Pointer(&cv))
}

func (s *Section) SetString(key string, v string) error {
	cv := C.CString(v)
	defer C.free(unsafe.Pointer(cv))
	return s.set(key, C.M64TYPE_STRING, unsafe.Pointer(cv))
}

type setting struct {
	key   string
	value any
}

func (s *Section) apply(settings []setting) error {
	for _, st := range settings {
		var err error
		switch v := st.value.(type) {
		case int:
			err = s.SetInt(st.key, v)
		case bool:
			err = s.SetBool(st.key, v)
		case string:
			err = s.SetString(st.key, v)
		default:
			err = fmt.Errorf("unsupported type %T for %s", v, st.key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Settings that make emulation match the netplay session that recorded the
// log.
var deterministicSettings = []setting{
	{"RandomizeInterrupt", false},
	{"R4300Emulator", 2},
	{"CountPerOp", 0},
	{"CountPerOpDenomPot", 0},
	{"SiDmaDuration", -1},
	{"DisableExtraMem", false},
	{"DisableSaveFileLoading", true},
}

func (c *Core) ApplyDeterministicSettings() error {
	s, err := c.OpenSection("Core")
	if err != nil {
		return err
	}
	return s.apply(deterministicSettings)
}

const (
	inputProfileSection = "Rosalie's Mupen GUI - Input Plugin Profile %d"
	pakNone             = 1
)

// ConfigureControllers plugs in a controller without a pak for each player
// so the input plugin answers the PIF for them.
func (c *Core) ConfigureControllers(players int) error {
	for i := 0; i < 4; i++ {
		s, err := c.OpenSection(fmt.Sprintf(inputProfileSection, i))
		if err != nil {
			return err
		}
		if err := s.apply([]setting{
			{"PluggedIn", i < players},
			{"Plugin", pakNone},
		}); err != nil {
			return err
		}
	}
	return nil
}
