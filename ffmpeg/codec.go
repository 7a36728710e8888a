package ffmpeg

import (
	"strconv"

	"golang.org/x/exp/slices"
)

type Codec struct {
	Name        string
	Description string
	Hardware    bool
}

const DefaultCodec = "libx264"

var Codecs = []Codec{
	{"libx264", "H.264 (CPU)", false},
	{"libx265", "H.265 (CPU)", false},
	{"h264_amf", "H.264 (AMD GPU)", true},
	{"hevc_amf", "H.265 (AMD GPU)", true},
	{"h264_nvenc", "H.264 (NVIDIA GPU)", true},
	{"hevc_nvenc", "H.265 (NVIDIA GPU)", true},
}

func LookupCodec(name string) (Codec, bool) {
	i := slices.IndexFunc(Codecs, func(c Codec) bool { return c.Name == name })
	if i < 0 {
		return Codec{}, false
	}
	return Codecs[i], true
}

// CodecArgs returns the output options for encoding with codec at the given
// quality (CRF or its hardware equivalent). Unknown codecs use libx264.
func CodecArgs(codec string, quality int) []string {
	q := strconv.Itoa(quality)

	var args []string
	switch codec {
	case "libx265":
		args = []string{"-c:v", "libx265", "-preset", "medium", "-crf", q}
	case "h264_amf", "hevc_amf":
		args = []string{"-c:v", codec, "-quality", "quality", "-rc", "cqp", "-qp_i", q, "-qp_p", q}
	case "h264_nvenc", "hevc_nvenc":
		args = []string{"-c:v", codec, "-preset", "p7", "-rc", "vbr", "-cq", q}
	default:
		args = []string{"-c:v", DefaultCodec, "-preset", "medium", "-crf", q}
	}
	return append(args, "-pix_fmt", "yuv420p")
}
