// Package app wires the bot process: the Telegram Bot API connection,
// the back-office API client, the session store, and the notification
// dispatcher, all driven until the context ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
	"github.com/atelier-erp/atelier/internal/services/telegram"
	"github.com/atelier-erp/atelier/internal/services/telegram/session"
)

const redisPingTimeout = 5 * time.Second

// RuntimeConfig controls bot startup and loop behavior.
type RuntimeConfig struct {
	Token        string
	APIBaseURL   string
	ServiceToken string
	// NotifyChatID is the staff channel for outbox events. Zero
	// disables the dispatch loop.
	NotifyChatID int64
	// RedisAddr selects the session backend. Empty falls back to an
	// in-process store.
	RedisAddr     string
	Currency      string
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

func (cfg RuntimeConfig) validate() error {
	if strings.TrimSpace(cfg.Token) == "" {
		return errors.New("telegram bot token is required")
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return errors.New("back-office api url is required")
	}
	if strings.TrimSpace(cfg.ServiceToken) == "" {
		return errors.New("service token is required")
	}
	return nil
}

// Run connects the bot's dependencies and drives the update loop and
// the outbox dispatcher until the context ends.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return fmt.Errorf("connect telegram bot api: %w", err)
	}
	log.Printf("telegram bot authorized as @%s", api.Self.UserName)

	backoffice, err := client.New(client.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.ServiceToken,
	})
	if err != nil {
		return fmt.Errorf("new back-office client: %w", err)
	}

	sessions, closeSessions, err := newSessionStore(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer closeSessions()

	bot, err := telegram.New(telegram.Config{
		API:        api,
		Backoffice: backoffice,
		Sessions:   sessions,
		Currency:   cfg.Currency,
		Logf:       log.Printf,
	})
	if err != nil {
		return fmt.Errorf("new bot: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return bot.Run(groupCtx)
	})
	if cfg.NotifyChatID != 0 {
		dispatcher, err := telegram.NewDispatcher(bot, telegram.DispatcherConfig{
			NotifyChatID:  cfg.NotifyChatID,
			Consumer:      cfg.Consumer,
			PollInterval:  cfg.PollInterval,
			LeaseTTL:      cfg.LeaseTTL,
			BatchSize:     cfg.BatchSize,
			MaxAttempts:   cfg.MaxAttempts,
			RetryBackoff:  cfg.RetryBackoff,
			RetryMaxDelay: cfg.RetryMaxDelay,
		})
		if err != nil {
			return fmt.Errorf("new dispatcher: %w", err)
		}
		group.Go(func() error {
			return dispatcher.Run(groupCtx)
		})
	} else {
		log.Printf("outbox dispatch disabled, no notify chat configured")
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newSessionStore picks redis when an address is configured, otherwise
// an in-process store that loses pending photos on restart.
func newSessionStore(ctx context.Context, addr string) (session.Store, func(), error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		log.Printf("session store: in-memory")
		return session.NewMemory(nil), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	store, err := session.NewRedis(rdb)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	log.Printf("session store: redis at %s", addr)
	closeStore := func() {
		if err := rdb.Close(); err != nil {
			log.Printf("close redis client: %v", err)
		}
	}
	return store, closeStore, nil
}
