package obs

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	loggerMu sync.Mutex
	logger   *zerolog.Logger
)

// Logger returns the shared structured logger used across the console.
func Logger() zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if logger == nil {
		l := newLogger(os.Stderr, "info", false)
		logger = &l
	}
	return *logger
}

// InitLogger configures the shared logger. Level is one of zerolog's level
// strings; unknown values fall back to info. Console selects human-readable
// output instead of JSON lines.
func InitLogger(level string, console bool) zerolog.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	l := newLogger(os.Stderr, level, console)
	logger = &l
	return *logger
}

func newLogger(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "backoffice").Logger()
}
