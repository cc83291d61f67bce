// Package logging sets up the process-wide structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the logger's level and output format.
type Config struct {
	Level  string // debug, info, warn, error, fatal
	Format string // json or pretty
}

// New builds a zerolog.Logger per Config. Unknown levels fall back to
// info; any format other than "pretty" produces JSON.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer = os.Stdout
	if cfg.Format == "pretty" {
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "swec").
		Logger()
}
