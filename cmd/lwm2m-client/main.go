// Command lwm2m-client is an interactive LwM2M client console.
//
// The console hosts the device-management core with the Device Object and
// an IPSO Temperature Object, and plays the part of the LwM2M Server over
// a loopback transport: console commands become requests and every
// response and notification the client sends is printed.
//
// Usage:
//
//	lwm2m-client [flags]
//
// Flags:
//
//	-config string      Configuration file path
//	-log-level string   Log level: debug, info, warn, error (overrides config)
//	-protocol-log string CBOR protocol capture file (overrides config)
//
// Examples:
//
//	# Start with the built-in configuration
//	lwm2m-client
//
//	# Start from a file with protocol tracing on the console
//	lwm2m-client -config client.yaml -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mash-protocol/lwm2m-go/cmd/lwm2m-client/interactive"
	"github.com/mash-protocol/lwm2m-go/pkg/config"
)

var (
	configFile  string
	logLevel    string
	protocolLog string
)

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.StringVar(&protocolLog, "protocol-log", "", "CBOR protocol capture file (overrides config)")
}

func main() {
	flag.Parse()
	zerolog.DurationFieldUnit = time.Millisecond

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	level, err := cfg.LogLevel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	lb := interactive.NewLoopback(os.Stdout)
	out := &redirectWriter{w: os.Stdout}
	console := newConsoleLogger(out, cfg.Log, level)
	protocol, closer := newProtocolLogger(console, cfg.Log)
	defer closer.Close()

	s, err := build(cfg, lb, newSlogLogger(console), protocol)
	if err != nil {
		console.Fatal().Err(err).Msg("failed to start client")
	}
	console.Info().
		Str("session", s.client.SessionID()).
		Int("servers", len(cfg.Servers)).
		Msg("LwM2M client console")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	con := interactive.New(s.client, lb, s.objects, s.server, nil)
	if err := con.Attach(); err != nil {
		console.Fatal().Err(err).Msg("failed to start console")
	}
	// Redirect log output through readline to avoid interfering with input
	out.set(con.Stdout())

	go func() {
		if err := s.client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			console.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			console.Info().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	con.Run(ctx, cancel)
	console.Info().Msg("Goodbye!")
}

// loadConfig reads the configuration file, or the defaults without one,
// and applies the command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if protocolLog != "" {
		cfg.Log.ProtocolFile = protocolLog
	}
	return cfg, cfg.Validate()
}
