package krec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/exp/constraints"
)

var ErrInvalidFormat = errors.New("invalid format")

const (
	MagicLegacy  = "KRC0"
	MagicCurrent = "KRC1"

	legacyHeaderSize  = 272
	currentHeaderSize = 400

	nameSize       = 128
	playerNameSize = 32

	MaxPlayers = 4

	// BytesPerSample is the size of one controller state in the log.
	BytesPerSample = 4
)

const (
	TagInput = 0x12
	TagDrop  = 0x14
	TagChat  = 0x08
)

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

type Header struct {
	Magic        string
	App          string
	Game         string
	Timestamp    uint32
	PlayerNumber int32
	NumPlayers   int32
	PlayerNames  []string
}

type EventKind int

const (
	EventDrop EventKind = iota
	EventChat
)

type Event struct {
	Kind   EventKind
	Frame  int
	Name   string
	Player uint32
	Text   string
}

// Sample is the state of one controller for one frame, exactly as recorded.
type Sample [BytesPerSample]byte

func (s Sample) Uint32() uint32 {
	return binary.LittleEndian.Uint32(s[:])
}

type Log struct {
	Header
	Input       []byte
	TotalFrames int
	DelayFrames int
	Events      []Event
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Players is the player count clamped to [1, MaxPlayers].
func (l *Log) Players() int {
	return int(clamp(l.NumPlayers, 1, MaxPlayers))
}

func (l *Log) BytesPerFrame() int {
	return l.Players() * BytesPerSample
}

// Frames returns how many whole frames the input payload holds.
func (l *Log) Frames() int {
	return len(l.Input) / l.BytesPerFrame()
}

func (l *Log) Frame(i int) []Sample {
	bpf := l.BytesPerFrame()
	raw := l.Input[i*bpf : (i+1)*bpf]
	samples := make([]Sample, l.Players())
	for j := range samples {
		copy(samples[j][:], raw[j*BytesPerSample:])
	}
	return samples
}

func headerSize(magic string) (int, bool) {
	switch magic {
	case MagicLegacy:
		return legacyHeaderSize, true
	case MagicCurrent:
		return currentHeaderSize, true
	default:
		return 0, false
	}
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Marshaled log format is:
//
// header:
// u8[4]: KRC0 or KRC1
// u8[128]: app name
// u8[128]: game name
// u32: timestamp
// i32: player number
// i32: number of players
// u8[12]: reserved
// u8[32][4]: player names (KRC1 only)
//
// records:
// u8: tag
// 0x12: u16 length, length bytes of input
// 0x14: NUL-terminated name, u32 player number
// 0x08: NUL-terminated name, NUL-terminated message
func Decode(b []byte) (*Log, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: file too short", ErrInvalidFormat)
	}

	magic := string(b[:4])
	size, ok := headerSize(magic)
	if !ok {
		return nil, fmt.Errorf("%w: unknown magic %q", ErrInvalidFormat, magic)
	}
	if len(b) < size {
		return nil, fmt.Errorf("%w: file is %d bytes, header needs %d", ErrInvalidFormat, len(b), size)
	}

	l := &Log{
		Header: Header{
			Magic:        magic,
			App:          cstring(b[4 : 4+nameSize]),
			Game:         cstring(b[132 : 132+nameSize]),
			Timestamp:    binary.LittleEndian.Uint32(b[260:]),
			PlayerNumber: int32(binary.LittleEndian.Uint32(b[264:])),
			NumPlayers:   int32(binary.LittleEndian.Uint32(b[268:])),
		},
	}

	if magic == MagicCurrent {
		for i := 0; i < MaxPlayers; i++ {
			off := legacyHeaderSize + i*playerNameSize
			l.PlayerNames = append(l.PlayerNames, cstring(b[off:off+playerNameSize]))
		}
	}

	l.scan(b[size:])
	return l, nil
}

func (l *Log) scan(b []byte) {
	bpf := l.BytesPerFrame()
	inDelay := true
	zeroFrame := make([]byte, bpf)

	// nextString consumes one NUL-terminated string. ok is false if the
	// terminator is missing.
	nextString := func() (string, bool) {
		i := bytes.IndexByte(b, 0)
		if i < 0 {
			return "", false
		}
		s := string(b[:i])
		b = b[i+1:]
		return s, true
	}

	for len(b) >= 2 {
		tag := b[0]
		b = b[1:]

		switch tag {
		case TagInput:
			if len(b) < 2 {
				log.Printf("krec: log was truncated")
				return
			}
			n := int(binary.LittleEndian.Uint16(b))
			b = b[2:]

			if n > 0 {
				if len(b) < n {
					log.Printf("krec: log was truncated")
					return
				}
				l.Input = append(l.Input, b[:n]...)
				b = b[n:]
				inDelay = false
			} else {
				if inDelay {
					l.DelayFrames++
				}
				l.Input = append(l.Input, zeroFrame...)
			}
			l.TotalFrames++

		case TagDrop:
			name, ok := nextString()
			if !ok || len(b) < 4 {
				return
			}
			l.Events = append(l.Events, Event{
				Kind:   EventDrop,
				Frame:  l.TotalFrames,
				Name:   name,
				Player: binary.LittleEndian.Uint32(b),
			})
			b = b[4:]

		case TagChat:
			name, ok := nextString()
			if !ok {
				return
			}
			text, ok := nextString()
			if !ok {
				return
			}
			l.Events = append(l.Events, Event{
				Kind:  EventChat,
				Frame: l.TotalFrames,
				Name:  name,
				Text:  text,
			})

		default:
			return
		}
	}
}

// Open reads and decodes a log from disk. Logs compressed with zstd are
// decompressed first.
func Open(path string) (*Log, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(b, zstdMagic) {
		zr, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer zr.Close()

		b, err = zr.DecodeAll(b, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, err)
		}
	}

	return Decode(b)
}
