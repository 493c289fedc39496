// Package logging configures the global zerolog logger for the dhcpfp tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects level, format and destination of the global logger.
type Options struct {
	Level  string // trace, debug, info, warn, error; empty means info
	Format string // text or json
	File   string // appended to when set
	Out    io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ConfigureGlobalLogging replaces log.Logger according to opts. Text output
// goes through a zerolog.ConsoleWriter. The returned Closer releases the log
// file, if any.
func ConfigureGlobalLogging(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out, closer = f, f
	}

	var w io.Writer
	switch strings.ToLower(opts.Format) {
	case "", "text":
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    opts.File != "",
		}
	case "json":
		w = out
	default:
		closer.Close()
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}

	zerolog.SetGlobalLevel(level)
	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}
	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	return closer, nil
}

// ParseLevel converts a level name to a zerolog.Level. The empty string is info.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}
