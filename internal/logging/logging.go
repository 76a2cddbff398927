package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/pion/logging"
)

// ParseLevel maps a level name to a slog level. Unknown names fall back to def.
func ParseLevel(name string, def slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	default:
		return def
	}
}

// Init installs the default slog logger on stderr. LOG_LEVEL, when set,
// takes precedence over configured.
func Init(configured string) *slog.Logger {
	return InitWriter(os.Stderr, configured)
}

func InitWriter(w io.Writer, configured string) *slog.Logger {
	level := ParseLevel(configured, slog.LevelInfo)

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, level)
	}

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

// PionLoggerFactory returns a logger factory for pion that writes to w at
// the pion level matching the slog level currently enabled on logger.
func PionLoggerFactory(w io.Writer, logger *slog.Logger) logging.LoggerFactory {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = w
	f.DefaultLogLevel = pionLevel(logger)
	return f
}

func pionLevel(logger *slog.Logger) logging.LogLevel {
	ctx := context.Background()
	switch {
	case logger.Enabled(ctx, slog.LevelDebug):
		return logging.LogLevelDebug
	case logger.Enabled(ctx, slog.LevelInfo):
		return logging.LogLevelInfo
	case logger.Enabled(ctx, slog.LevelWarn):
		return logging.LogLevelWarn
	default:
		return logging.LogLevelError
	}
}
