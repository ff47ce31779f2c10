package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelBasedMuxHandler sends every record at or above the console level to a text handler and
// copies warnings and errors to a JSON handler, usually backed by a file.
type LevelBasedMuxHandler struct {
	console slog.Handler
	errors  slog.Handler
}

func NewLevelBasedMuxHandler(console, errorSink io.Writer, level slog.Level) *LevelBasedMuxHandler {
	return &LevelBasedMuxHandler{
		console: slog.NewTextHandler(console, &slog.HandlerOptions{Level: level}),
		errors:  slog.NewJSONHandler(errorSink, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
}

func (h *LevelBasedMuxHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.console.Enabled(ctx, level) || h.errors.Enabled(ctx, level)
}

func (h *LevelBasedMuxHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.errors.Enabled(ctx, r.Level) {
		if err := h.errors.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	if !h.console.Enabled(ctx, r.Level) {
		return nil
	}
	return h.console.Handle(ctx, r)
}

func (h *LevelBasedMuxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LevelBasedMuxHandler{console: h.console.WithAttrs(attrs), errors: h.errors.WithAttrs(attrs)}
}

func (h *LevelBasedMuxHandler) WithGroup(name string) slog.Handler {
	return &LevelBasedMuxHandler{console: h.console.WithGroup(name), errors: h.errors.WithGroup(name)}
}

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("logger: unknown level %q", s)
	}
	return level, nil
}

// NewLogger appends warnings and errors to errorFile. Close the returned file on shutdown.
func NewLogger(errorFile, level string) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(errorFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open %s: %w", errorFile, err)
	}
	return slog.New(NewLevelBasedMuxHandler(os.Stdout, f, lvl)), f, nil
}
