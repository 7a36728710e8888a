//go:build !m64p

package main

import (
	"errors"

	"github.com/murkland/krec2mp4/convert"
)

func newEngine(conf convert.EngineConfig) (convert.Engine, error) {
	return nil, errors.New("built without emulator support, rebuild with -tags m64p")
}
