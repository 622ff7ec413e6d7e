// Package bot parses bot command flags and launches the Telegram bot
// runtime.
package bot

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/atelier-erp/atelier/internal/platform/cmd"
	botapp "github.com/atelier-erp/atelier/internal/services/telegram/app"
)

// Config holds bot command configuration.
type Config struct {
	Token         string        `env:"ATELIER_TG_TOKEN"`
	APIBaseURL    string        `env:"ATELIER_API_URL" envDefault:"http://127.0.0.1:8080"`
	ServiceToken  string        `env:"ATELIER_SERVICE_TOKEN"`
	NotifyChatID  int64         `env:"ATELIER_TG_NOTIFY_CHAT"`
	RedisAddr     string        `env:"ATELIER_REDIS_ADDR"`
	Currency      string        `env:"ATELIER_CURRENCY" envDefault:"RUB"`
	Consumer      string        `env:"ATELIER_BOT_CONSUMER" envDefault:"telegram-bot"`
	PollInterval  time.Duration `env:"ATELIER_BOT_POLL_INTERVAL" envDefault:"5s"`
	LeaseTTL      time.Duration `env:"ATELIER_BOT_LEASE_TTL" envDefault:"1m"`
	BatchSize     int           `env:"ATELIER_BOT_BATCH_SIZE" envDefault:"20"`
	MaxAttempts   int           `env:"ATELIER_BOT_MAX_ATTEMPTS" envDefault:"8"`
	RetryBackoff  time.Duration `env:"ATELIER_BOT_RETRY_BACKOFF" envDefault:"30s"`
	RetryMaxDelay time.Duration `env:"ATELIER_BOT_RETRY_MAX_DELAY" envDefault:"15m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Token, "token", cfg.Token, "Telegram bot token")
	fs.StringVar(&cfg.APIBaseURL, "api-url", cfg.APIBaseURL, "Back-office API base URL")
	fs.Int64Var(&cfg.NotifyChatID, "notify-chat", cfg.NotifyChatID, "Staff channel chat id for outbox notifications")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the session store")
	fs.StringVar(&cfg.Consumer, "consumer", cfg.Consumer, "Notification outbox consumer name")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Notification outbox poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Notification outbox lease duration")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Notification outbox lease batch size")
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "Delivery attempts before dead-letter")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base retry backoff delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum retry delay")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the bot runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBot, func(runCtx context.Context) error {
		return botapp.Run(runCtx, botapp.RuntimeConfig{
			Token:         cfg.Token,
			APIBaseURL:    cfg.APIBaseURL,
			ServiceToken:  cfg.ServiceToken,
			NotifyChatID:  cfg.NotifyChatID,
			RedisAddr:     cfg.RedisAddr,
			Currency:      cfg.Currency,
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		})
	})
}
