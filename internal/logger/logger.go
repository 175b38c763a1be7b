package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Options mirrors the log section of the config file.
type Options struct {
	// Level is a zerolog level name; empty or unknown means info.
	Level string
	// Format is "pretty", "json" or "auto" (the default), which picks pretty
	// output only when writing to a terminal.
	Format string
	// Output defaults to stdout.
	Output io.Writer
}

// New builds the service logger. Every line carries the service name so logs
// from several processes can be told apart.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if pretty(opts.Format, out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	unknown := err != nil
	if unknown || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	log := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "exam-session-service").
		Logger()
	if unknown {
		log.Warn().Str("configured_level", opts.Level).Msg("unknown log level, using info")
	}
	return log
}

func pretty(format string, out io.Writer) bool {
	switch strings.ToLower(format) {
	case "pretty", "console":
		return true
	case "json":
		return false
	}
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
