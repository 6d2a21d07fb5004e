// Package monitoring - logger.go configures the global zerolog logger.
package monitoring

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// InitLogger sets the global log level and output. Output goes to stderr as
// JSON, or through a ConsoleWriter when pretty is set or stderr is a terminal.
// Unknown levels fall back to info.
func InitLogger(level string, pretty bool) {
	var w io.Writer = os.Stderr
	if pretty || term.IsTerminal(int(os.Stderr.Fd())) {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	SetupLogger(w, level)
}

// SetupLogger points the global logger at w with the given level.
func SetupLogger(w io.Writer, level string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
