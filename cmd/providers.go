package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nimblechat/presence-delivery-service/config"
)

// ProvideLogger builds the process-wide slog logger.
// Output goes to stdout and, when a file is configured, to a rotating log file.
func ProvideLogger(cfg *config.Config) *slog.Logger {
	var out io.Writer = os.Stdout

	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.Log.LevelVar(),
	})

	logger := slog.New(handler).With(
		slog.String("service", ServiceName),
		slog.String("version", version),
	)
	slog.SetDefault(logger)

	return logger
}

// ProvideWatermillLogger bridges the AMQP router logging into slog.
func ProvideWatermillLogger(logger *slog.Logger) watermill.LoggerAdapter {
	return watermill.NewSlogLogger(logger.With(slog.String("component", "watermill")))
}
