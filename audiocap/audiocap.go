// Package audiocap records the audio interface's output as raw s16le stereo
// PCM. It backs the capture audio plugin loaded by the emulator.
package audiocap

import (
	"bufio"
	"fmt"
	"os"
	"sync"
)

const (
	DefaultFrequency = 33600
	BytesPerSample   = 4
)

type SystemType int

const (
	SystemNTSC SystemType = iota
	SystemPAL
	SystemMPAL
)

var viClocks = [...]int{
	SystemNTSC: 48681812,
	SystemPAL:  49656530,
	SystemMPAL: 48628316,
}

// Frequency is the sample rate the audio interface produces for a DAC rate
// register value.
func Frequency(system SystemType, dacrate uint32) int {
	clock := viClocks[SystemNTSC]
	if system >= 0 && int(system) < len(viClocks) {
		clock = viClocks[system]
	}
	return clock / int(dacrate+1)
}

// Samples in RDRAM are big-endian 16-bit pairs stored as 32-bit words, so
// on a little-endian host each word reads as right then left.
func swapChannels(dst []byte, src []byte) {
	for i := 0; i+BytesPerSample <= len(src); i += BytesPerSample {
		dst[i+0] = src[i+2]
		dst[i+1] = src[i+3]
		dst[i+2] = src[i+0]
		dst[i+3] = src[i+1]
	}
}

type Recorder struct {
	mu sync.Mutex

	path      string
	f         *os.File
	w         *bufio.Writer
	buf       []byte
	frequency int
	written   int64
}

func New() *Recorder {
	return &Recorder{frequency: DefaultFrequency}
}

// SetOutput sets the file the next Open writes to.
func (r *Recorder) SetOutput(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = path
}

// Open starts a new recording. Without an output path it records nothing.
func (r *Recorder) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closeLocked()
	r.written = 0
	if r.path == "" {
		return nil
	}

	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("audiocap: %w", err)
	}
	r.f = f
	r.w = bufio.NewWriter(f)
	return nil
}

// Write records whole samples from an RDRAM audio buffer.
func (r *Recorder) Write(rdram []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.w == nil {
		return nil
	}

	n := len(rdram) - len(rdram)%BytesPerSample
	if cap(r.buf) < n {
		r.buf = make([]byte, n)
	}
	buf := r.buf[:n]
	swapChannels(buf, rdram[:n])

	if _, err := r.w.Write(buf); err != nil {
		return fmt.Errorf("audiocap: %w", err)
	}
	r.written += int64(n)
	return nil
}

func (r *Recorder) SetFrequency(system SystemType, dacrate uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frequency = Frequency(system, dacrate)
}

func (r *Recorder) Frequency() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frequency
}

func (r *Recorder) BytesWritten() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

func (r *Recorder) closeLocked() error {
	if r.f == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.f = nil
	r.w = nil
	return err
}

// Close finishes the recording. BytesWritten stays valid.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}
