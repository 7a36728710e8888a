package krec

import (
	"fmt"
	"io"
	"time"
)

func (l *Log) Duration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(l.TotalFrames) / fps * float64(time.Second))
}

// WriteInfo prints a human-readable summary of the log.
func WriteInfo(w io.Writer, l *Log, fps float64) error {
	ew := &errWriter{w: w}

	ew.printf("Format:     %s\n", l.Magic)
	ew.printf("App:        %s\n", l.App)
	ew.printf("Game:       %s\n", l.Game)
	ew.printf("Date:       %s\n", time.Unix(int64(l.Timestamp), 0).Local().Format("2006-01-02 15:04:05"))
	ew.printf("Player #:   %d\n", l.PlayerNumber)
	if int(l.NumPlayers) != l.Players() {
		ew.printf("Players:    %d (header says %d)\n", l.Players(), l.NumPlayers)
	} else {
		ew.printf("Players:    %d\n", l.Players())
	}
	for i, name := range l.PlayerNames {
		if i >= l.Players() {
			break
		}
		if name != "" {
			ew.printf("  P%d:       %s\n", i+1, name)
		}
	}
	ew.printf("Frames:     %d\n", l.TotalFrames)
	if l.DelayFrames > 0 {
		ew.printf("Delay:      %d frames (netplay frame delay)\n", l.DelayFrames)
	}

	secs := int(l.Duration(fps) / time.Second)
	ew.printf("Duration:   %d:%02d (at %.0f fps)\n", secs/60, secs%60, fps)
	ew.printf("Input data: %d bytes\n", len(l.Input))

	var drops, chats int
	for _, ev := range l.Events {
		switch ev.Kind {
		case EventDrop:
			drops++
		case EventChat:
			chats++
		}
	}
	if drops > 0 || chats > 0 {
		ew.printf("Events:     %d drops, %d chat messages\n", drops, chats)
	}

	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
