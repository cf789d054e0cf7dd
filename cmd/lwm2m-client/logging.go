package main

import (
	"io"
	"log/slog"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mash-protocol/lwm2m-go/pkg/config"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

// newConsoleLogger returns the zerolog logger for console output.
func newConsoleLogger(w io.Writer, cfg config.LogConfig, level zerolog.Level) zerolog.Logger {
	if !cfg.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// newProtocolLogger assembles the protocol event sinks: the console at
// debug level and, when configured, a rotating CBOR capture file. The
// returned closer flushes the file.
func newProtocolLogger(console zerolog.Logger, cfg config.LogConfig) (log.Logger, io.Closer) {
	loggers := []log.Logger{log.NewZerologAdapter(console)}
	var closer io.Closer = nopCloser{}
	if cfg.ProtocolFile != "" {
		file := log.NewWriterLogger(&lumberjack.Logger{
			Filename:   cfg.ProtocolFile,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		loggers = append(loggers, file)
		closer = file
	}
	return log.NewMultiLogger(loggers...), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSlogLogger routes the engines' operational logs into the console
// logger. Records below the console level are dropped before they are
// built.
func newSlogLogger(logger zerolog.Logger) *slog.Logger {
	return slog.New(slogzerolog.Option{
		Level:  slogLevel(logger.GetLevel()),
		Logger: &logger,
	}.NewZerologHandler())
}

// slogLevel returns the slog level enabling the records zerolog level l
// lets through.
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
