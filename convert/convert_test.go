package convert

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/wav"
	"github.com/murkland/krec2mp4/capture"
	"github.com/murkland/krec2mp4/config"
	"github.com/murkland/krec2mp4/ffmpeg"
	"github.com/murkland/krec2mp4/ffmpeg/ffmock"
	"github.com/murkland/krec2mp4/joybus"
	"github.com/murkland/krec2mp4/krec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	ffmock.Main()
	os.Exit(m.Run())
}

const (
	testWidth  = 4
	testHeight = 2
)

type fakeEngine struct {
	conf EngineConfig

	maxFrames     int
	audioPerFrame int
	sampleRate    int

	audio      *os.File
	audioBytes int64

	frame   int
	stopped bool
	stops   int
	speeds  []int
	closed  bool
	inputs  []uint32
}

func (e *fakeEngine) render(dst []byte) {
	for i := range dst {
		dst[i] = byte(e.frame*31 + i)
	}
}

func (e *fakeEngine) ScreenSize() (int, int) {
	return testWidth, testHeight
}

func (e *fakeEngine) ReadScreen(dst []byte) error {
	e.render(dst)
	return nil
}

func (e *fakeEngine) SetSpeedFactor(percent int) error {
	e.speeds = append(e.speeds, percent)
	return nil
}

func (e *fakeEngine) Stop() {
	e.stops++
	e.stopped = true
}

func (e *fakeEngine) Run(onFrame func(), onBus func(chs []joybus.Channel)) error {
	for e.frame = 0; e.frame < e.maxFrames && !e.stopped; e.frame++ {
		// Games poll more than once per frame; only the first poll may
		// advance the replay.
		for poll := 0; poll < 2; poll++ {
			chs := make([]joybus.Channel, 4)
			for i := 0; i < e.conf.Players; i++ {
				chs[i] = joybus.Channel{Tx: true, Command: joybus.CommandReadButtons, Status: 0x84, Rx: make([]byte, 4)}
			}
			onBus(chs)
			if poll == 0 {
				e.inputs = append(e.inputs, binary.BigEndian.Uint32(chs[0].Rx))
			}
		}

		if e.audio != nil && e.audioPerFrame > 0 {
			n, err := e.audio.Write(make([]byte, e.audioPerFrame))
			if err != nil {
				return err
			}
			e.audioBytes += int64(n)
		}

		onFrame()
	}
	return nil
}

func (e *fakeEngine) AudioStats() (int, int64) {
	return e.sampleRate, e.audioBytes
}

func (e *fakeEngine) Close() error {
	e.closed = true
	if e.audio != nil {
		return e.audio.Close()
	}
	return nil
}

type readbackEngine struct {
	*fakeEngine
	slots [2][]byte
}

func (e *readbackEngine) InitReadback(width int, height int) error {
	for i := range e.slots {
		e.slots[i] = make([]byte, width*height*capture.BytesPerPixel)
	}
	return nil
}

func (e *readbackEngine) StartReadback(slot int) error {
	e.render(e.slots[slot])
	return nil
}

func (e *readbackEngine) FinishReadback(slot int, dst []byte) error {
	copy(dst, e.slots[slot])
	return nil
}

func (e *readbackEngine) CloseReadback() {}

type harness struct {
	dir     string
	conf    config.Config
	engine  *fakeEngine
	factory EngineFactory
	configs []EngineConfig
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		dir:  t.TempDir(),
		conf: config.Default(),
		engine: &fakeEngine{
			maxFrames:  1000,
			sampleRate: 33600,
		},
	}
	h.conf.Video.Width = testWidth
	h.conf.Video.Height = testHeight
	h.factory = func(conf EngineConfig) (Engine, error) {
		h.configs = append(h.configs, conf)
		h.engine.conf = conf
		f, err := os.Create(conf.AudioPath)
		if err != nil {
			return nil, err
		}
		h.engine.audio = f
		return h.engine, nil
	}
	return h
}

func (h *harness) writeLog(t *testing.T, name string, players int32, frames int) string {
	t.Helper()

	path := filepath.Join(h.dir, name)
	kw, err := krec.Create(path, krec.Header{NumPlayers: players, Game: "test"}, false)
	require.NoError(t, err)
	for i := 0; i < frames; i++ {
		raw := make([]byte, int(players)*krec.BytesPerSample)
		raw[0] = byte(i + 1)
		require.NoError(t, kw.WriteInput(raw))
	}
	require.NoError(t, kw.Close())
	return path
}

// expectedVideo is what the fake encoder writes for frames 0..n-1.
func expectedVideo(n int) []byte {
	var out []byte
	for i := 0; i < n; i++ {
		e := &fakeEngine{frame: i}
		src := make([]byte, testWidth*testHeight*capture.BytesPerPixel)
		e.render(src)
		stride := testWidth * capture.BytesPerPixel
		for y := testHeight - 1; y >= 0; y-- {
			out = append(out, src[y*stride:(y+1)*stride]...)
		}
	}
	return out
}

func assertNoTemps(t *testing.T, output string) {
	t.Helper()
	assert.NoFileExists(t, output+".tmp_v.mp4")
	assert.NoFileExists(t, output+".tmp_a.raw")
}

func TestConvertVideoOnly(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 2, 10)
	output := filepath.Join(h.dir, "match.mp4")

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	require.NoError(t, c.Convert(context.Background(), input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, expectedVideo(10), got)
	assertNoTemps(t, output)

	// One recorded frame per emulated frame, then zeros once exhausted.
	want := make([]uint32, 11)
	for i := 0; i < 10; i++ {
		want[i] = uint32(i + 1)
	}
	assert.Equal(t, want, h.engine.inputs)
	assert.Equal(t, 1, h.engine.stops)
	assert.Equal(t, []int{500}, h.engine.speeds)
	assert.True(t, h.engine.closed)
	require.Len(t, h.configs, 1)
	assert.Equal(t, 2, h.configs[0].Players)
}

func TestConvertWithAudio(t *testing.T) {
	h := newHarness(t)
	h.engine.audioPerFrame = 2240
	input := h.writeLog(t, "match.krec", 1, 30)
	output := filepath.Join(h.dir, "match.mp4")

	var progress [][2]int
	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	c.Progress = func(done int, total int) {
		progress = append(progress, [2]int{done, total})
	}
	require.NoError(t, c.Convert(context.Background(), input, output))

	b, err := os.ReadFile(output)
	require.NoError(t, err)
	args := strings.Split(string(b), "\n")
	assert.Equal(t, "-itsscale", args[1])
	assert.Contains(t, args, "33600")
	assert.Contains(t, args, output+".tmp_v.mp4")
	assert.Contains(t, args, output+".tmp_a.raw")
	assertNoTemps(t, output)

	require.NotEmpty(t, progress)
	assert.Equal(t, [2]int{-1, 0}, progress[len(progress)-1])
	assert.Equal(t, [2]int{30, 30}, progress[len(progress)-2])
}

func TestConvertMuxFailureKeepsVideo(t *testing.T) {
	h := newHarness(t)
	h.engine.audioPerFrame = 8
	input := h.writeLog(t, "match.krec", 1, 5)
	output := filepath.Join(h.dir, "match.mp4")

	c := New(h.conf, ffmock.New(ffmock.Config{FailMux: true}), h.factory)
	require.NoError(t, c.Convert(context.Background(), input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, expectedVideo(5), got)
	assertNoTemps(t, output)

	f, err := os.Open(filepath.Join(h.dir, "match.wav"))
	require.NoError(t, err)
	defer f.Close()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(33600), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	// Six emulated frames ran: five replayed and the one that ran out.
	assert.Len(t, buf.Data, 6*8/2)
}

func TestConvertCancelled(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 1, 50)
	output := filepath.Join(h.dir, "match.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	c.Progress = func(done int, total int) {
		if done == 5 {
			cancel()
		}
	}
	err := c.Convert(ctx, input, output)
	require.ErrorIs(t, err, capture.ErrCancelled)

	assert.NoFileExists(t, output)
	assertNoTemps(t, output)
	assert.Equal(t, 1, h.engine.stops)
	assert.Less(t, h.engine.frame, 50)
}

func TestConvertAlreadyCancelled(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	require.ErrorIs(t, c.Convert(ctx, input, filepath.Join(h.dir, "match.mp4")), capture.ErrCancelled)
	assert.Empty(t, h.configs)
}

func TestConvertReadback(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 1, 12)
	output := filepath.Join(h.dir, "match.mp4")

	factory := h.factory
	c := New(h.conf, ffmock.New(ffmock.Config{}), func(conf EngineConfig) (Engine, error) {
		e, err := factory(conf)
		if err != nil {
			return nil, err
		}
		return &readbackEngine{fakeEngine: e.(*fakeEngine)}, nil
	})
	require.NoError(t, c.Convert(context.Background(), input, output))

	got, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, expectedVideo(12), got)
}

func TestConvertEncoderMissing(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 1, 5)
	output := filepath.Join(h.dir, "match.mp4")

	c := New(h.conf, ffmpeg.New(filepath.Join(h.dir, "no-such-ffmpeg")), h.factory)
	err := c.Convert(context.Background(), input, output)
	require.ErrorIs(t, err, capture.ErrEncoderOpen)

	assert.NoFileExists(t, output)
	assertNoTemps(t, output)
	assert.Equal(t, 1, h.engine.stops)
	assert.True(t, h.engine.closed)
}

func TestConvertEngineFailure(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 1, 5)

	c := New(h.conf, ffmock.New(ffmock.Config{}), func(EngineConfig) (Engine, error) {
		return nil, errors.New("failed to load core")
	})
	err := c.Convert(context.Background(), input, filepath.Join(h.dir, "match.mp4"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load core")
}

func TestConvertEmptyLog(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "empty.krec", 1, 0)

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	err := c.Convert(context.Background(), input, filepath.Join(h.dir, "empty.mp4"))
	require.ErrorIs(t, err, ErrNoInput)
	assert.Empty(t, h.configs)
}

func TestConvertInvalidLog(t *testing.T) {
	h := newHarness(t)
	input := filepath.Join(h.dir, "bad.krec")
	require.NoError(t, os.WriteFile(input, []byte("not a krec file"), 0o600))

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	err := c.Convert(context.Background(), input, filepath.Join(h.dir, "bad.mp4"))
	require.ErrorIs(t, err, krec.ErrInvalidFormat)
}

func TestConvertNoFramesCaptured(t *testing.T) {
	h := newHarness(t)
	h.engine.maxFrames = 0
	input := h.writeLog(t, "match.krec", 1, 5)
	output := filepath.Join(h.dir, "match.mp4")

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	require.ErrorIs(t, c.Convert(context.Background(), input, output), ErrNoFrames)
	assert.NoFileExists(t, output)
	assertNoTemps(t, output)
}

func TestConvertClampsPlayers(t *testing.T) {
	h := newHarness(t)
	input := h.writeLog(t, "match.krec", 4, 3)

	// Rewrite the stored player count to an out-of-range value.
	b, err := os.ReadFile(input)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(b[268:], 9)
	require.NoError(t, os.WriteFile(input, b, 0o600))

	c := New(h.conf, ffmock.New(ffmock.Config{}), h.factory)
	require.NoError(t, c.Convert(context.Background(), input, filepath.Join(h.dir, "match.mp4")))
	require.Len(t, h.configs, 1)
	assert.Equal(t, 4, h.configs[0].Players)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "out.mkv", OutputPath("a.krec", "out.mkv"))
	assert.Equal(t, "replays/a.mp4", OutputPath("replays/a.krec", ""))
	assert.Equal(t, "noext.mp4", OutputPath("noext", ""))
}

func TestWriteWAV(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "a.raw")

	var pcm bytes.Buffer
	for _, s := range []int16{0, -1, 32767, -32768, 100, -100} {
		binary.Write(&pcm, binary.LittleEndian, s)
	}
	pcm.WriteByte(0x7f)
	require.NoError(t, os.WriteFile(raw, pcm.Bytes(), 0o600))

	out := filepath.Join(dir, "a.wav")
	require.NoError(t, writeWAV(out, raw, 44100))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(44100), dec.SampleRate)
	assert.Equal(t, uint16(16), dec.BitDepth)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, []int{0, -1, 32767, -32768, 100, -100}, buf.Data)
}
