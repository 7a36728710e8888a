package krec

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

type Writer struct {
	closer io.Closer
	zw     *zstd.Encoder
	w      io.Writer
}

func putString(dst []byte, s string) {
	// Always leave room for the terminator.
	copy(dst[:len(dst)-1], s)
}

func NewWriter(w io.Writer, h Header, compress bool) (*Writer, error) {
	kw := &Writer{w: w}
	if compress {
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
		kw.zw = zw
		kw.w = zw
	}

	if h.Magic == "" {
		h.Magic = MagicCurrent
	}
	size, ok := headerSize(h.Magic)
	if !ok {
		return nil, ErrInvalidFormat
	}

	header := make([]byte, size)
	copy(header[:4], h.Magic)
	putString(header[4:4+nameSize], h.App)
	putString(header[132:132+nameSize], h.Game)
	binary.LittleEndian.PutUint32(header[260:], h.Timestamp)
	binary.LittleEndian.PutUint32(header[264:], uint32(h.PlayerNumber))
	binary.LittleEndian.PutUint32(header[268:], uint32(h.NumPlayers))
	if h.Magic == MagicCurrent {
		for i, name := range h.PlayerNames {
			if i >= MaxPlayers {
				break
			}
			off := legacyHeaderSize + i*playerNameSize
			putString(header[off:off+playerNameSize], name)
		}
	}

	if _, err := kw.w.Write(header); err != nil {
		return nil, err
	}
	return kw, nil
}

func Create(filename string, h Header, compress bool) (*Writer, error) {
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}

	kw, err := NewWriter(f, h, compress)
	if err != nil {
		f.Close()
		return nil, err
	}
	kw.closer = f
	return kw, nil
}

// WriteInput writes one input record. An empty payload is a frame-delay
// record.
func (kw *Writer) WriteInput(raw []byte) error {
	if len(raw) > math.MaxUint16 {
		return errors.New("input record too large")
	}

	var hdr [3]byte
	hdr[0] = TagInput
	binary.LittleEndian.PutUint16(hdr[1:], uint16(len(raw)))
	if _, err := kw.w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := kw.w.Write(raw); err != nil {
		return err
	}
	return nil
}

func (kw *Writer) WriteSamples(samples []Sample) error {
	raw := make([]byte, 0, len(samples)*BytesPerSample)
	for _, s := range samples {
		raw = append(raw, s[:]...)
	}
	return kw.WriteInput(raw)
}

func (kw *Writer) WriteDrop(name string, player uint32) error {
	buf := append([]byte{TagDrop}, name...)
	buf = append(buf, 0)
	buf = binary.LittleEndian.AppendUint32(buf, player)
	_, err := kw.w.Write(buf)
	return err
}

func (kw *Writer) WriteChat(name string, text string) error {
	buf := append([]byte{TagChat}, name...)
	buf = append(buf, 0)
	buf = append(buf, text...)
	buf = append(buf, 0)
	_, err := kw.w.Write(buf)
	return err
}

func (kw *Writer) Close() error {
	if kw.zw != nil {
		if err := kw.zw.Close(); err != nil {
			return err
		}
	}
	if kw.closer != nil {
		if err := kw.closer.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Encode writes the log's records to kw, one input record per frame. Leading
// delay frames are written as empty records and events are placed before the
// frame they were recorded at.
func (l *Log) Encode(kw *Writer) error {
	bpf := l.BytesPerFrame()
	events := l.Events

	flushEvents := func(frame int) error {
		for len(events) > 0 && events[0].Frame <= frame {
			ev := events[0]
			events = events[1:]

			var err error
			switch ev.Kind {
			case EventDrop:
				err = kw.WriteDrop(ev.Name, ev.Player)
			case EventChat:
				err = kw.WriteChat(ev.Name, ev.Text)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}

	for i := 0; i < l.Frames(); i++ {
		if err := flushEvents(i); err != nil {
			return err
		}

		var raw []byte
		if i >= l.DelayFrames {
			raw = l.Input[i*bpf : (i+1)*bpf]
		}
		if err := kw.WriteInput(raw); err != nil {
			return err
		}
	}

	return flushEvents(math.MaxInt)
}
