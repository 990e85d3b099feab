package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	id "campaignhub/internal/utils/id"
)

// Logger is the structured process logger. Every line carries the service
// name and, once WithContext is used, the request log id and campaign id.
type Logger struct {
	logger *slog.Logger
}

// LogConfig configures the logger.
type LogConfig struct {
	Level       string // debug, info, warn, error
	Format      string // text, json
	Service     string
	Environment string
	Output      io.Writer
}

// ParseLevel maps a configured level name to a slog level. An empty name is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// NewLogger builds a logger. Unknown levels fall back to info; config
// validation rejects them before this point.
func NewLogger(config LogConfig) *Logger {
	level, _ := ParseLevel(config.Level)
	output := config.Output
	if output == nil {
		output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(config.Format, "json") {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	logger := slog.New(handler)
	if config.Service != "" {
		logger = logger.With("service", config.Service)
	}
	if config.Environment != "" {
		logger = logger.With("env", config.Environment)
	}
	return &Logger{logger: logger}
}

// WithContext adds the request log id and campaign id found on ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var args []any
	if logID := id.LogIDFromContext(ctx); logID != "" {
		args = append(args, "log_id", logID)
	}
	if campaignID := id.CampaignIDFromContext(ctx); campaignID != "" {
		args = append(args, "campaign_id", campaignID)
	}
	if len(args) == 0 {
		return l
	}
	return l.With(args...)
}

// With returns a logger that adds args to every line.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{logger: l.logger.With(args...)}
}

func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Slog exposes the underlying slog logger for libraries that accept one.
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}
