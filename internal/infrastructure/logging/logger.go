// Package logging builds the structured loggers shared by the daemon
// and the CLI. Everything is log/slog underneath; this package fixes
// the handler choice, the level parsing and the default fields so all
// subsystems log the same shape.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/icesealed/wyvern/internal/infrastructure/config"
)

// Logger is a slog.Logger carrying the process-wide default fields
// (service, version). Construct with New or Default; safe for
// concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a logger from the logging section of the configuration:
// format json or text, output stdout or stderr, level debug through
// error.
func New(cfg config.LoggingConfig, version string) *Logger {
	return build(cfg, version, writerFor(cfg.Output))
}

// Default is the bootstrap logger used before the configuration file
// has been read: JSON to stdout at info.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// With returns a child logger with extra default attributes, typically
// a component name:
//
//	eng := engine.New(tr, log.With("component", "engine"))
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func build(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	h = h.WithAttrs([]slog.Attr{
		slog.String("service", "wyvernd"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(h)}
}

func writerFor(output string) io.Writer {
	if strings.EqualFold(output, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

// parseLevel maps a configuration string to a slog level. Unknown
// strings fall back to info rather than erroring.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
