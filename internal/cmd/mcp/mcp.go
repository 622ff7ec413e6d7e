// Package mcp parses MCP command flags and launches the MCP bridge on
// stdio or HTTP.
package mcp

import (
	"context"
	"flag"

	mcpservice "github.com/atelier-erp/atelier/internal/mcp/service"
	entrypoint "github.com/atelier-erp/atelier/internal/platform/cmd"
)

// Config holds MCP command configuration.
type Config struct {
	APIBaseURL   string `env:"ATELIER_API_URL" envDefault:"http://127.0.0.1:8080"`
	ServiceToken string `env:"ATELIER_SERVICE_TOKEN"`
	Transport    string `env:"ATELIER_MCP_TRANSPORT" envDefault:"stdio"`
	HTTPAddr     string `env:"ATELIER_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Back-office API base URL")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Listen address for the http transport")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP bridge.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(runCtx context.Context) error {
		return mcpservice.Run(runCtx, mcpservice.Config{
			APIBaseURL:   cfg.APIBaseURL,
			ServiceToken: cfg.ServiceToken,
			Transport:    mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:     cfg.HTTPAddr,
		})
	})
}
