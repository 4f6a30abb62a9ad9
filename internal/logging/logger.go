package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filesort/internal/config"
)

// LogFilePattern matches the per-invocation JSON logs kept under paths.log_dir.
const LogFilePattern = "filesort-*.log"

// LogFileName names the JSON log for an invocation started at t.
func LogFileName(t time.Time) string {
	return "filesort-" + t.UTC().Format("20060102T150405") + ".log"
}

// Options controls how New builds a logger.
type Options struct {
	Level  string
	Format string
	// Writer receives console or JSON lines; nil means stderr.
	Writer io.Writer
	// FilePath, when set, also receives every record as JSON regardless of Format.
	FilePath string
}

// New builds a logger writing Format lines to Writer, mirrored as JSON into
// FilePath when one is given.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))
	withSource := level.Level() <= slog.LevelDebug

	out := opts.Writer
	if out == nil {
		out = os.Stderr
	}

	var handler slog.Handler
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		handler = newConsoleHandler(out, level, withSource)
	case "json":
		handler = newJSONHandler(out, level, withSource)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	if path := strings.TrimSpace(opts.FilePath); path != "" {
		file, err := openLogFile(path)
		if err != nil {
			return nil, err
		}
		handler = newFanoutHandler(handler, newJSONHandler(file, level, withSource))
	}
	return slog.New(handler), nil
}

// NewFromConfig builds the logger described by cfg. Each call opens a new
// JSON file under paths.log_dir named by LogFileName.
func NewFromConfig(cfg *config.Config) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if dir := strings.TrimSpace(cfg.Paths.LogDir); dir != "" {
		opts.FilePath = filepath.Join(dir, LogFileName(time.Now()))
	}
	return New(opts)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// openLogFile appends to path, creating its directory. The file stays open
// for the life of the process.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
