// Package logging builds the slog logger shared by every command. Operator
// logs always go to stderr (and optionally a file); stdout stays reserved for
// machine-readable output such as the run result line.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"warc-ops/internal/runstore"
)

type Options struct {
	Level  string
	Format string
	File   string
	Output io.Writer
}

// Logger wraps slog.Logger and owns the optional log file.
type Logger struct {
	*slog.Logger
	closer io.Closer
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", raw)
	}
}

func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := runstore.OpenAppend(path)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(out, f)
		closer = f
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		if closer != nil {
			_ = closer.Close()
		}
		return nil, fmt.Errorf("invalid log format %q (expected text or json)", opts.Format)
	}

	return &Logger{Logger: slog.New(handler), closer: closer}, nil
}

// Discard is used by tests and by callers that have not configured logging.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
