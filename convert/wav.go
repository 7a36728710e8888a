package convert

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavChannels   = 2
	wavBitDepth   = 16
	wavFormatPCM  = 1
	wavChunkBytes = 64 * 1024
)

// writeWAV wraps raw interleaved s16le stereo audio in a WAV file.
func writeWAV(path string, rawPath string, sampleRate int) error {
	in, err := os.Open(rawPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := wav.NewEncoder(out, sampleRate, wavBitDepth, wavChannels, wavFormatPCM)

	r := bufio.NewReader(in)
	raw := make([]byte, wavChunkBytes)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: wavChannels, SampleRate: sampleRate},
		SourceBitDepth: wavBitDepth,
	}
	for {
		n, err := io.ReadFull(r, raw)
		// Drop a trailing partial sample.
		n -= n % 2
		if n > 0 {
			buf.Data = buf.Data[:0]
			for i := 0; i < n; i += 2 {
				buf.Data = append(buf.Data, int(int16(binary.LittleEndian.Uint16(raw[i:]))))
			}
			if err := enc.Write(buf); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	if err := enc.Close(); err != nil {
		return err
	}
	return out.Close()
}
