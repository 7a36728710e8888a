package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const probeTimeout = 5 * time.Second

// CommandFunc builds the command for one ffmpeg invocation.
type CommandFunc func(ctx context.Context, args ...string) *exec.Cmd

// FFmpeg runs one ffmpeg binary.
type FFmpeg struct {
	command CommandFunc
}

func New(bin string) *FFmpeg {
	return &FFmpeg{
		command: func(ctx context.Context, args ...string) *exec.Cmd {
			return exec.CommandContext(ctx, bin, args...)
		},
	}
}

// NewWithCommand is used for mocking.
func NewWithCommand(command CommandFunc) *FFmpeg {
	return &FFmpeg{command: command}
}

// Check runs ffmpeg -version and returns the first line of its output.
func (f *FFmpeg) Check(ctx context.Context) (string, error) {
	cmd := f.command(ctx, "-version")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg not usable: %w", err)
	}

	version, _, _ := strings.Cut(out.String(), "\n")
	version = strings.TrimSpace(version)
	if version == "" {
		return "", fmt.Errorf("ffmpeg not usable: no output from -version")
	}
	return version, nil
}

// ProbeEncoders returns the codecs that are usable. Software codecs are
// always usable; hardware codecs are tried with a tiny test encode.
func (f *FFmpeg) ProbeEncoders(ctx context.Context) []Codec {
	var available []Codec
	for _, c := range Codecs {
		if !c.Hardware || f.probe(ctx, c.Name) {
			available = append(available, c)
		}
	}
	return available
}

func (f *FFmpeg) probe(ctx context.Context, codec string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := f.command(ctx, "-v", "quiet", "-f", "lavfi", "-i", "nullsrc=s=16x16:d=0.01", "-frames:v", "1", "-c:v", codec, "-f", "null", "-")
	return cmd.Run() == nil
}

type MuxParams struct {
	Video      string
	Audio      string
	SampleRate int
	// Scale multiplies the video timestamps.
	Scale  float64
	Output string
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func MuxArgs(p MuxParams) []string {
	return []string{
		"-y",
		"-itsscale", formatFloat(p.Scale),
		"-i", p.Video,
		"-f", "s16le", "-ar", strconv.Itoa(p.SampleRate), "-ac", "2",
		"-i", p.Audio,
		"-c:v", "copy",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		p.Output,
	}
}

// Mux combines an encoded video with raw 16-bit stereo audio.
func (f *FFmpeg) Mux(ctx context.Context, p MuxParams) error {
	args := MuxArgs(p)
	cmd := f.command(ctx, args...)
	log.Printf("ffmpeg: mux: %s", strings.Join(args, " "))

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	done := make(chan struct{})
	go func() {
		defer close(done)
		logLines(pr, "ffmpeg mux")
	}()

	err := cmd.Run()
	pw.Close()
	<-done

	if err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w", err)
	}
	return nil
}

func logLines(r io.Reader, prefix string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		log.Printf("%s: %s", prefix, line)
	}
	// Keep draining so the process never blocks on a full pipe.
	io.Copy(io.Discard, r)
}
