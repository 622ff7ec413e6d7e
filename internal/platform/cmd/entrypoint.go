// Package cmd carries the startup plumbing shared by the service
// commands: env-then-flags config parsing and the telemetry-wrapped
// run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/config"
	"github.com/atelier-erp/atelier/internal/platform/otel"
)

// otelShutdownTimeout bounds the trace flush after the run loop ends.
const otelShutdownTimeout = 5 * time.Second

// Service names used for startup telemetry.
const (
	ServiceServer = "server"
	ServiceBot    = "bot"
	ServiceMCP    = "mcp"
)

// ParseConfig loads environment defaults into cfg. Flag registration
// happens after this call so flags override env values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for the named service, executes the
// run loop, and flushes pending spans afterwards.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()

	return run(ctx)
}
