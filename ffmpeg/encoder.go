package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/murkland/krec2mp4/capture"
	"golang.org/x/sync/errgroup"
)

var errNotOpen = errors.New("encoder is not open")

// Encoder pipes raw RGB24 frames into an ffmpeg process.
type Encoder struct {
	ff     *FFmpeg
	output string
	codec  string

	stdin     io.WriteCloser
	wait      func() error
	errg      *errgroup.Group
	frameSize int
}

func (f *FFmpeg) NewEncoder(output string, codec string) *Encoder {
	return &Encoder{ff: f, output: output, codec: codec}
}

func EncodeArgs(format capture.Format, codec string, output string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgb24",
		"-video_size", fmt.Sprintf("%dx%d", format.Width, format.Height),
		"-framerate", formatFloat(format.FrameRate),
		"-i", "pipe:0",
	}
	args = append(args, CodecArgs(codec, format.Quality)...)
	return append(args, output)
}

func (e *Encoder) Open(format capture.Format) error {
	if e.stdin != nil {
		return errors.New("encoder is already open")
	}

	args := EncodeArgs(format, e.codec, e.output)
	// The process is stopped by closing stdin, not by cancellation.
	cmd := e.ff.command(context.Background(), args...)
	log.Printf("ffmpeg: encode: %s", strings.Join(args, " "))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	e.errg = &errgroup.Group{}
	e.errg.Go(func() error {
		logLines(stderr, "ffmpeg")
		return nil
	})

	e.stdin = stdin
	e.wait = cmd.Wait
	e.frameSize = format.Width * format.Height * capture.BytesPerPixel
	return nil
}

func (e *Encoder) WriteFrame(frame []byte) error {
	if e.stdin == nil {
		return errNotOpen
	}
	if len(frame) != e.frameSize {
		return fmt.Errorf("frame is %d bytes, expected %d", len(frame), e.frameSize)
	}
	_, err := e.stdin.Write(frame)
	return err
}

// Close ends the input stream and waits for ffmpeg to finish writing the
// file.
func (e *Encoder) Close() error {
	if e.stdin == nil {
		return errNotOpen
	}

	err := e.stdin.Close()
	e.errg.Wait()
	if werr := e.wait(); werr != nil {
		err = fmt.Errorf("ffmpeg exited: %w", werr)
	}
	e.stdin = nil
	return err
}

func (e *Encoder) Output() string {
	return e.output
}
