package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xuanwo/go-locale"
	"github.com/mattn/go-isatty"
	"github.com/murkland/krec2mp4/capture"
	"github.com/murkland/krec2mp4/config"
	"github.com/murkland/krec2mp4/convert"
	"github.com/murkland/krec2mp4/ffmpeg"
	"github.com/ncruces/zenity"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	logFile      = flag.String("log_file", "", "file to also log to")
	configPath   = flag.String("config_path", "krec2mp4.toml", "path to config")
	outPath      = flag.String("out", "", "output video path (single input) or directory (-batch)")
	batchDir     = flag.String("batch", "", "convert every .krec file in this directory")
	ffmpegPath   = flag.String("ffmpeg", "", "path to ffmpeg, overrides config")
	codecName    = flag.String("codec", "", "video codec, overrides config")
	crf          = flag.Int("crf", -1, "encoder quality, overrides config")
	fps          = flag.Float64("fps", 0, "output frame rate, overrides config")
	romPath      = flag.String("rom", "", "path to rom, overrides config")
	corePath     = flag.String("core", "", "path to mupen64plus core library, overrides config")
	synchronous  = flag.Bool("sync", false, "read frames back synchronously")
	listEncoders = flag.Bool("list_encoders", false, "list usable encoders and exit")
	verbose      = flag.Bool("verbose", false, "log emulator messages, and log to stderr even while showing progress")
)

var version string

func loadConfig(path string) config.Config {
	confF, err := os.Open(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Fatalf("failed to open config: %s", err)
		}
		log.Printf("config doesn't exist, making a new one at: %s", path)
		confF, err = os.Create(path)
		if err != nil {
			log.Fatalf("failed to open config: %s", err)
		}
		defer confF.Close()
		conf := config.Default()
		if err := config.Save(conf, confF); err != nil {
			log.Fatalf("failed to save config: %s", err)
		}
		return conf
	}
	defer confF.Close()

	conf, err := config.Load(confF)
	if err != nil {
		log.Fatalf("failed to open config: %s", err)
	}
	return conf
}

func applyFlags(conf *config.Config) {
	if *ffmpegPath != "" {
		conf.Encoder.FFmpegPath = *ffmpegPath
	}
	if *codecName != "" {
		codec, err := config.ParseCodec(*codecName)
		if err != nil {
			log.Fatalf("%s", err)
		}
		conf.Encoder.Codec = codec
	}
	if *crf >= 0 {
		conf.Encoder.CRF = *crf
	}
	if *fps > 0 {
		conf.Video.FPS = *fps
	}
	if *romPath != "" {
		conf.Engine.ROMPath = *romPath
	}
	if *corePath != "" {
		conf.Engine.CorePath = *corePath
	}
	if *synchronous {
		conf.Video.Synchronous = true
	}
	if *verbose {
		conf.Engine.Verbose = true
	}
}

// progress reports conversion progress as a bar on a terminal and as
// periodic log lines otherwise.
type progress struct {
	bar     *progressbar.ProgressBar
	lastLog int
}

func newProgress(interactive bool) *progress {
	p := &progress{}
	if interactive {
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("capturing"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p
}

func (p *progress) update(done int, total int) {
	if done < 0 {
		if p.bar != nil {
			p.bar.Describe("muxing")
		} else {
			log.Printf("muxing...")
		}
		return
	}

	if done == 1 {
		p.lastLog = 0
	}

	if p.bar != nil {
		if done == 1 {
			p.bar.Reset()
			p.bar.ChangeMax(total)
			p.bar.Describe("capturing")
		}
		p.bar.Set(done)
		return
	}

	if total > 0 && (done-p.lastLog >= total/20 || done == total) {
		p.lastLog = done
		log.Printf("progress: %d/%d frames (%d%%)", done, total, done*100/total)
	}
}

func (p *progress) finish() {
	if p.bar != nil {
		p.bar.Finish()
	}
}

func main() {
	flag.Parse()

	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	var logOutputs []io.Writer
	if !interactive || *verbose {
		logOutputs = append(logOutputs, os.Stderr)
	}
	if *logFile != "" {
		f, err := os.Create(*logFile)
		if err != nil {
			log.Fatalf("failed to open log file: %s", err)
		}
		defer f.Close()
		logOutputs = append(logOutputs, f)
	}
	if len(logOutputs) == 0 {
		logOutputs = append(logOutputs, io.Discard)
	}
	log.SetOutput(io.MultiWriter(logOutputs...))

	log.Printf("welcome to krec2mp4 %s", version)

	lang, err := locale.Detect()
	if err != nil {
		lang = language.English
	}
	log.Printf("selected language: %s", lang)
	pr := message.NewPrinter(lang)

	conf := loadConfig(*configPath)
	applyFlags(&conf)
	log.Printf("config settings: %+v", conf)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ff := ffmpeg.New(conf.Encoder.FFmpegPath)
	ffVersion, err := ff.Check(ctx)
	if err != nil {
		log.Fatalf("%s", err)
	}
	log.Printf("using %s", ffVersion)

	if *listEncoders {
		for _, c := range ff.ProbeEncoders(ctx) {
			fmt.Printf("%-12s %s\n", c.Name, c.Description)
		}
		return
	}

	p := newProgress(interactive)
	c := convert.New(conf, ff, newEngine)
	c.Progress = p.update

	if *batchDir != "" {
		inputs, err := convert.FindLogs(*batchDir)
		if err != nil {
			log.Fatalf("failed to list %s: %s", *batchDir, err)
		}
		if len(inputs) == 0 {
			log.Fatalf("no .krec files in %s", *batchDir)
		}
		outDir := *outPath
		if outDir == "" {
			outDir = *batchDir
		}
		if err := os.MkdirAll(outDir, 0o700); err != nil {
			log.Fatalf("failed to create %s: %s", outDir, err)
		}

		s := c.ConvertAll(ctx, inputs, outDir)
		p.finish()
		pr.Fprintf(os.Stderr, "%d succeeded, %d failed\n", len(s.Succeeded), len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(os.Stderr, "  failed: %s\n", f)
		}
		if s.Cancelled || len(s.Failed) > 0 {
			os.Exit(1)
		}
		return
	}

	input := flag.Arg(0)
	if input == "" {
		input, err = zenity.SelectFile(
			zenity.Title("Select a krec file"),
			zenity.FileFilters{{Name: "Kaillera recordings", Patterns: []string{"*.krec"}}},
		)
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				return
			}
			log.Fatalf("failed to select input: %s", err)
		}
	}

	output := convert.OutputPath(input, *outPath)
	err = c.Convert(ctx, input, output)
	p.finish()
	if err != nil {
		if errors.Is(err, capture.ErrCancelled) {
			fmt.Fprintln(os.Stderr, "cancelled")
			os.Exit(130)
		}
		log.Printf("conversion failed: %s", err)
		fmt.Fprintf(os.Stderr, "conversion failed: %s\n", err)
		os.Exit(1)
	}
	if fi, err := os.Stat(output); err == nil {
		pr.Fprintf(os.Stderr, "saved %s (%d bytes)\n", output, fi.Size())
	} else {
		fmt.Fprintf(os.Stderr, "saved %s\n", output)
	}
}
