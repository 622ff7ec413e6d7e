// Package server parses back-office server flags and starts the API
// process.
package server

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/atelier-erp/atelier/internal/platform/cmd"
	app "github.com/atelier-erp/atelier/internal/services/backoffice/app"
)

// Config holds server command configuration.
type Config struct {
	Port                 int           `env:"ATELIER_SERVER_PORT" envDefault:"8080"`
	Addr                 string        `env:"ATELIER_SERVER_ADDR"`
	DBPath               string        `env:"ATELIER_DB_PATH"`
	MediaRoot            string        `env:"ATELIER_MEDIA_ROOT"`
	JWTSecret            string        `env:"ATELIER_JWT_SECRET"`
	ServiceToken         string        `env:"ATELIER_SERVICE_TOKEN"`
	CourierTrackURL      string        `env:"ATELIER_COURIER_TRACK_URL"`
	PricingRulePath      string        `env:"ATELIER_PRICING_RULE_PATH"`
	ShipmentCheckEvery   time.Duration `env:"ATELIER_SHIPMENT_CHECK_EVERY"`
	ShipmentPollInterval time.Duration `env:"ATELIER_SHIPMENT_POLL_INTERVAL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The API server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The API server listen address (overrides -port)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the SQLite database file")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) appConfig() app.Config {
	addr := c.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", c.Port)
	}
	return app.Config{
		Addr:                 addr,
		DBPath:               c.DBPath,
		MediaRoot:            c.MediaRoot,
		JWTSecret:            c.JWTSecret,
		ServiceToken:         c.ServiceToken,
		CourierTrackURL:      c.CourierTrackURL,
		PricingRulePath:      c.PricingRulePath,
		ShipmentCheckEvery:   c.ShipmentCheckEvery,
		ShipmentPollInterval: c.ShipmentPollInterval,
	}
}

// Run starts the back-office API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(runCtx context.Context) error {
		return app.Run(runCtx, cfg.appConfig())
	})
}
