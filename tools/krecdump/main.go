package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/murkland/krec2mp4/krec"
)

var (
	fps      = flag.Float64("fps", 60, "frame rate used for durations")
	quiet    = flag.Bool("quiet", false, "only print the summary")
	repack   = flag.String("repack", "", "if set, rewrite the log to this path")
	compress = flag.Bool("zstd", false, "compress the rewritten log")
)

func main() {
	flag.Parse()

	l, err := krec.Open(flag.Arg(0))
	if err != nil {
		log.Fatalf("failed to open log: %s", err)
	}

	if err := krec.WriteInfo(os.Stdout, l, *fps); err != nil {
		log.Fatalf("failed to write info: %s", err)
	}

	if !*quiet {
		dump(l)
	}

	if *repack != "" {
		kw, err := krec.Create(*repack, l.Header, *compress)
		if err != nil {
			log.Fatalf("failed to create log: %s", err)
		}
		if err := l.Encode(kw); err != nil {
			kw.Close()
			log.Fatalf("failed to write log: %s", err)
		}
		if err := kw.Close(); err != nil {
			log.Fatalf("failed to write log: %s", err)
		}
		log.Printf("wrote %s", *repack)
	}
}

func printEvent(ev krec.Event) {
	switch ev.Kind {
	case krec.EventDrop:
		fmt.Fprintf(os.Stdout, " +drop: %s (p%d)\n", ev.Name, ev.Player)
	case krec.EventChat:
		fmt.Fprintf(os.Stdout, " +chat: <%s> %s\n", ev.Name, ev.Text)
	}
}

func dump(l *krec.Log) {
	events := l.Events
	for i := 0; i < l.Frames(); i++ {
		for len(events) > 0 && events[0].Frame <= i {
			printEvent(events[0])
			events = events[1:]
		}

		fmt.Fprintf(os.Stdout, "%d:", i)
		if i < l.DelayFrames {
			fmt.Fprintf(os.Stdout, " delay")
		}
		for j, s := range l.Frame(i) {
			fmt.Fprintf(os.Stdout, " p%d=%08x", j+1, s.Uint32())
		}
		fmt.Fprintln(os.Stdout)
	}
	for _, ev := range events {
		printEvent(ev)
	}
}
