// Package ffmock runs the current test binary as a stand-in for ffmpeg.
//
// A test package using it must route the re-executed binary through Main:
//
//	func TestMain(m *testing.M) {
//		ffmock.Main()
//		os.Exit(m.Run())
//	}
package ffmock

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/murkland/krec2mp4/ffmpeg"
)

const envActive = "FFMOCK_ACTIVE"

type Config struct {
	// Broken makes every invocation fail.
	Broken bool
	// Hardware lists the hardware codecs that pass probing.
	Hardware []string
	// FailMux makes muxing fail after writing partial output.
	FailMux bool
	// FailEncode makes the encoder exit without reading its input.
	FailEncode bool
}

func (c Config) env() []string {
	env := []string{envActive + "=1"}
	if c.Broken {
		env = append(env, "FFMOCK_BROKEN=1")
	}
	if c.FailMux {
		env = append(env, "FFMOCK_FAIL_MUX=1")
	}
	if c.FailEncode {
		env = append(env, "FFMOCK_FAIL_ENCODE=1")
	}
	env = append(env, "FFMOCK_HARDWARE="+strings.Join(c.Hardware, ","))
	return env
}

// New returns an FFmpeg whose invocations run the fake.
func New(c Config) *ffmpeg.FFmpeg {
	return ffmpeg.NewWithCommand(func(ctx context.Context, args ...string) *exec.Cmd {
		cmd := exec.CommandContext(ctx, os.Args[0], args...)
		cmd.Env = c.env()
		return cmd
	})
}

// Main exits the process after acting as ffmpeg if this process was started
// by the fake. Otherwise it returns immediately.
func Main() {
	if os.Getenv(envActive) != "1" {
		return
	}
	os.Exit(run(os.Args[1:]))
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func has(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

// run imitates the ffmpeg invocations this module makes. The encoder copies
// its raw input to the output file and the muxer writes its arguments, one
// per line.
func run(args []string) int {
	if os.Getenv("FFMOCK_BROKEN") == "1" {
		fmt.Fprintln(os.Stderr, "ffmock: broken")
		return 1
	}

	switch {
	case has(args, "-version"):
		fmt.Println("ffmpeg version ffmock Copyright (c) the ffmock authors")
		fmt.Println("configuration: --enable-fake")
		return 0

	case has(args, "lavfi"):
		codec := argAfter(args, "-c:v")
		for _, hw := range strings.Split(os.Getenv("FFMOCK_HARDWARE"), ",") {
			if hw != "" && hw == codec {
				return 0
			}
		}
		return 1

	case has(args, "pipe:0"):
		if os.Getenv("FFMOCK_FAIL_ENCODE") == "1" {
			fmt.Fprintln(os.Stderr, "ffmock: unknown encoder")
			return 1
		}
		out, err := os.Create(args[len(args)-1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer out.Close()
		n, err := io.Copy(out, os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "ffmock: encoded %d bytes\n", n)
		return 0

	case has(args, "-itsscale"):
		out := args[len(args)-1]
		if os.Getenv("FFMOCK_FAIL_MUX") == "1" {
			os.WriteFile(out, []byte("partial"), 0o644)
			fmt.Fprintln(os.Stderr, "ffmock: mux failed")
			return 1
		}
		if err := os.WriteFile(out, []byte(strings.Join(args, "\n")), 0o644); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintln(os.Stderr, "ffmock: muxed")
		return 0
	}

	fmt.Fprintf(os.Stderr, "ffmock: unexpected arguments: %q\n", args)
	return 1
}
