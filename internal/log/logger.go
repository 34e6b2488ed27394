package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats selectable through the server config.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New builds a zerolog logger. format picks human-readable console output
// or raw JSON lines; anything unrecognized falls back to console.
func New(level, format string) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var out io.Writer = os.Stdout
	if !strings.EqualFold(format, FormatJSON) {
		out = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Logger()
	return &logger
}

func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
