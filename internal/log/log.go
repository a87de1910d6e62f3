package log

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/e-XpertSolutions/go-edb/internal/config"
)

type Logger = zerolog.Logger

// NewLogger builds the command logger. Logs go to stderr so they never mix
// with command output.
func NewLogger(cfg config.Config) Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.Config, w io.Writer) Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if cfg.Logging.Pretty {
		w = zerolog.ConsoleWriter{Out: w}
	}
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
