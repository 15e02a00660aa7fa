package logging

import (
	"io"
	"log/slog"
	"os"
)

// Init installs a JSON slog handler as the process-wide default logger.
func Init(level slog.Level) *slog.Logger {
	return InitWriter(os.Stderr, level)
}

func InitWriter(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Module returns a child logger tagged with the component name, falling back
// to the default logger when l is nil.
func Module(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("module", name)
}

// Discard is a logger for tests that don't assert on log output.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel accepts debug, info, warn and error; anything else is info.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
