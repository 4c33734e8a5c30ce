// Package logging builds the zerolog loggers used by the daemon.
//
// Every component logs through one of two named channels derived from the
// root logger: Finding for discovery and scheduling, Refreshing for the
// worker pool and view refreshes.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Channel names
const (
	Finding    = "finding"
	Refreshing = "refreshing"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string // console or json
	Out    io.Writer
}

// New constructs the root logger.
func New(opts Options) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if opts.Level != "" {
		parsed, err := zerolog.ParseLevel(opts.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	switch opts.Format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// Channel returns a child logger tagged with the channel name.
func Channel(root zerolog.Logger, name string) zerolog.Logger {
	return root.With().Str("logger", name).Logger()
}
