package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// FilePath is the log file. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size in MB that triggers rotation.
	MaxSizeMB int
	// MaxFiles is how many rotated files are kept.
	MaxFiles int
	// WriteToStderr mirrors every record to stderr.
	WriteToStderr bool
}

// DefaultConfig returns defaults for file logging.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig returns configuration for debug mode.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON logger from cfg and returns it with a cleanup
// function that flushes and closes the log file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		outputs []io.Writer
		writer  *RotatingWriter
	)

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writer = w
		outputs = append(outputs, w)
	}
	if cfg.WriteToStderr || len(outputs) == 0 {
		outputs = append(outputs, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(outputs...), &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		if writer != nil {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	return slog.New(handler), cleanup, nil
}

// SetupDefault installs a logger built from cfg as the slog default.
func SetupDefault(cfg Config) (func(), error) {
	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

// Component returns a child logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", name))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
