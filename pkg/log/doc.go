// Package log provides structured protocol logging for the LwM2M client.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events: messages exchanged with Servers, observation and
// registration state changes, and errors. It is separate from operational
// logging (slog) - protocol capture provides a complete machine-readable
// event trace for debugging and analysis.
//
// # Basic Usage
//
//	// For development: log to console via slog or zerolog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//	cfg.ProtocolLogger = log.NewZerologAdapter(zlog)
//
//	// For production: write CBOR to a file, or any io.WriteCloser such as a
//	// rotating writer
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/lwm2m/client.llog")
//	cfg.ProtocolLogger = log.NewWriterLogger(&lumberjack.Logger{Filename: "client.llog"})
//
//	// Several at once
//	cfg.ProtocolLogger = log.NewMultiLogger(a, b)
//
// # File Format
//
// Log files are a sequence of CBOR-encoded Events with integer keys. Reader
// iterates over them with optional filtering.
package log
