package config

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
)

type Codec int

const (
	CodecX264 Codec = iota
	CodecX265
	CodecH264AMF
	CodecHEVCAMF
	CodecH264NVENC
	CodecHEVCNVENC
)

var codecNames = map[Codec]string{
	CodecX264:      "libx264",
	CodecX265:      "libx265",
	CodecH264AMF:   "h264_amf",
	CodecHEVCAMF:   "hevc_amf",
	CodecH264NVENC: "h264_nvenc",
	CodecHEVCNVENC: "hevc_nvenc",
}

func (c Codec) String() string {
	return codecNames[c]
}

func ParseCodec(s string) (Codec, error) {
	var c Codec
	if err := c.UnmarshalText([]byte(s)); err != nil {
		return 0, err
	}
	return c, nil
}

func (c *Codec) UnmarshalText(text []byte) error {
	for k, v := range codecNames {
		if v == string(text) {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown codec: %s", string(text))
}

func (c Codec) MarshalText() ([]byte, error) {
	name, ok := codecNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown codec: %d", int(c))
	}
	return []byte(name), nil
}

type Engine struct {
	CorePath  string
	PluginDir string
	DataDir   string
	ROMPath   string
	// AudioPlugin overrides the audio capture plugin in PluginDir.
	AudioPlugin string
	// SpeedFactor is applied once capture starts, in percent.
	SpeedFactor int
	// Verbose passes the core's informational messages to the log.
	Verbose bool
}

type Video struct {
	FPS    float64
	Width  int
	Height int
	MSAA   int
	Aniso  int
	// Synchronous disables asynchronous GPU readback.
	Synchronous bool
}

type Encoder struct {
	FFmpegPath string
	Codec      Codec
	CRF        int
}

type Config struct {
	Engine  Engine
	Video   Video
	Encoder Encoder
}

const (
	DefaultFPS        = 60.0
	DefaultSampleRate = 33600
)

func Default() Config {
	return Config{
		Engine: Engine{
			CorePath:    "mupen64plus",
			PluginDir:   ".",
			DataDir:     ".",
			SpeedFactor: 500,
		},
		Video: Video{
			FPS:    DefaultFPS,
			Width:  640,
			Height: 480,
		},
		Encoder: Encoder{
			FFmpegPath: "ffmpeg",
			Codec:      CodecX264,
			CRF:        23,
		},
	}
}

// FrameRate is the configured frame rate, or the default when it is not
// positive.
func (c Config) FrameRate() float64 {
	if c.Video.FPS <= 0 {
		return DefaultFPS
	}
	return c.Video.FPS
}

func Save(config Config, w io.Writer) error {
	return toml.NewEncoder(w).Encode(config)
}

func Load(r io.Reader) (Config, error) {
	c := Default()

	if _, err := toml.NewDecoder(r).Decode(&c); err != nil {
		return c, err
	}

	return c, nil
}
