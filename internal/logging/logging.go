/*
Package logging configures structured logging with file rotation.

seekpipe sits in the middle of other people's pipelines, so it says
nothing on stderr unless asked to: verbose mode adds a text handler on
stderr, and a log directory adds a rotated JSON log file (for post-hoc
analysis of which runs buffered what). The file logger uses lumberjack
for size-based rotation. With neither, records are discarded.
*/
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file's name inside LogDir.
const FileName = "seekpipe.log"

// Config holds logging configuration.
type Config struct {
	// Prog is attached to every record as the "prog" attribute.
	Prog string
	// LogDir is the directory for log files. If empty, file logging is disabled.
	LogDir string
	// Verbose enables DEBUG-level logging on stderr.
	Verbose bool
	// Stderr overrides os.Stderr, for tests.
	Stderr io.Writer
}

// Setup creates a logger that writes to stderr when verbose and optionally
// to a rotated log file. Returns the logger and a cleanup function to close
// the file.
func Setup(cfg Config) (logger *slog.Logger, cleanup func()) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	var handlers []slog.Handler
	if cfg.Verbose {
		handlers = append(handlers, slog.NewTextHandler(stderr, &slog.HandlerOptions{
			Level: level,
		}))
	}

	cleanup = func() {}
	if cfg.LogDir != "" {
		// Ensure log directory exists.
		if err := os.MkdirAll(cfg.LogDir, 0o750); err != nil { //nolint:gosec // log directory
			// Fall back to stderr-only if we can't create the directory.
			slog.New(slog.NewTextHandler(stderr, nil)).Warn("failed to create log directory, file logging disabled",
				"dir", cfg.LogDir,
				"error", err,
			)
		} else {
			lj := &lumberjack.Logger{
				Filename:   filepath.Join(cfg.LogDir, FileName),
				MaxSize:    5,  // MB per file
				MaxBackups: 3,  // keep 3 old files
				MaxAge:     14, // days to retain
				Compress:   true,
			}
			handlers = append(handlers, slog.NewJSONHandler(lj, &slog.HandlerOptions{
				Level: level,
			}))
			cleanup = func() {
				_ = lj.Close()
			}
		}
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.DiscardHandler
	case 1:
		h = handlers[0]
	default:
		h = &multiHandler{handlers: handlers}
	}

	logger = slog.New(h)
	if cfg.Prog != "" {
		logger = logger.With("prog", cfg.Prog)
	}
	return logger, cleanup
}

// multiHandler fans out log records to multiple slog.Handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}
