// Package logging configures this program's single slog.Logger: colourized
// tint output on a terminal, plain text or JSON otherwise, with every line
// tagged with the run's correlation id.
//
// Grounded on SatyamHitman-go-ofscraper's internal/logging/stdout.go, which
// wires tint the same way (color && isTerminal(w), falling back to
// slog.NewTextHandler).
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// Level names accepted by -log-level, including "off" (nothing is logged)
// and "trace" (a level below slog's standard Debug).
const (
	LevelTrace = slog.LevelDebug - 4
	LevelOff   = slog.Level(1 << 20)
)

// ParseLevel maps the CLI's -log-level string onto an slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "off":
		return LevelOff, nil
	case "error":
		return slog.LevelError, nil
	case "warn":
		return slog.LevelWarn, nil
	case "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q (want off|error|warn|info|debug|trace)", s)
	}
}

// Format is the CLI's -log-format choice.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// New builds the run's logger, writing to w at the given level/format, and
// attaches runID to every line. A zero-value runID argument generates a
// fresh one.
func New(w io.Writer, level slog.Level, format Format, runID string) (*slog.Logger, string) {
	if runID == "" {
		runID = uuid.NewString()
	}

	handler := newHandler(w, level, format)
	logger := slog.New(handler).With("run_id", runID)
	return logger, runID
}

func newHandler(w io.Writer, level slog.Level, format Format) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}

	if isTerminal(w) {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
		})
	}

	return slog.NewTextHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
