//go:build m64p

package m64p

import (
	"log"
	"sync/atomic"
)

const (
	msgError = iota + 1
	msgWarning
	msgInfo
	msgStatus
	msgVerbose
)

var verbose atomic.Bool

// SetVerbose controls whether informational messages from the core and
// plugins are logged. Errors and warnings always are.
func SetVerbose(v bool) {
	verbose.Store(v)
}

func levelName(level int) string {
	switch level {
	case msgError:
		return "error"
	case msgWarning:
		return "warning"
	case msgInfo:
		return "info"
	case msgStatus:
		return "status"
	case msgVerbose:
		return "verbose"
	default:
		return "?"
	}
}

func logf(format string, args ...any) {
	log.Printf("m64p: "+format, args...)
}

func coreMessage(level int, message string) {
	if level > msgWarning && !verbose.Load() {
		return
	}
	logf("level=%s %s", levelName(level), message)
}
