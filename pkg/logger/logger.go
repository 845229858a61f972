package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

type Loggers struct {
	InfoLogger  *slog.Logger
	DebugLogger *slog.Logger
	ErrorLogger *slog.Logger
}

// SetupLogger builds the shared slog loggers for the given level string.
func SetupLogger(levelStr string) (*Loggers, error) {
	level, err := parseLevel(levelStr)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	log := slog.New(handler)

	return &Loggers{
		InfoLogger:  log,
		DebugLogger: log,
		ErrorLogger: log,
	}, nil
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", levelStr)
	}
}
