package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
)

// New builds the server logger for a configured format ("json" or "text")
// and level name (debug, info, warn, error). An empty level means info.
func New(w io.Writer, format, level string) (Logger, error) {
	if level == "" {
		level = "info"
	}
	zl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	switch format {
	case "", "json":
		return NewZerologLogger(w, zl), nil
	case "text":
		return NewTextLogger(w, slogLevel(zl)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

func slogLevel(l zerolog.Level) slog.Level {
	switch {
	case l <= zerolog.DebugLevel:
		return slog.LevelDebug
	case l == zerolog.InfoLevel:
		return slog.LevelInfo
	case l == zerolog.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
