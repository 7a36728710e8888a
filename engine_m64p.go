//go:build m64p

package main

import (
	"github.com/murkland/krec2mp4/convert"
	"github.com/murkland/krec2mp4/m64p"
)

func newEngine(conf convert.EngineConfig) (convert.Engine, error) {
	e, err := m64p.New(m64p.Config{
		CorePath:    conf.Engine.CorePath,
		PluginDir:   conf.Engine.PluginDir,
		DataDir:     conf.Engine.DataDir,
		ROMPath:     conf.Engine.ROMPath,
		AudioPlugin: conf.Engine.AudioPlugin,
		Video: m64p.VideoSettings{
			Width:  conf.Video.Width,
			Height: conf.Video.Height,
			MSAA:   conf.Video.MSAA,
			Aniso:  conf.Video.Aniso,
		},
		Players:   conf.Players,
		AudioPath: conf.AudioPath,
		Verbose:   conf.Engine.Verbose,
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}
