package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// DispatcherConfig controls the outbox delivery loop.
type DispatcherConfig struct {
	// NotifyChatID is the staff channel events are announced in.
	NotifyChatID int64
	// Consumer names this loop on lease and ack calls.
	Consumer      string
	PollInterval  time.Duration
	LeaseTTL      time.Duration
	BatchSize     int
	MaxAttempts   int
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
}

const (
	defaultConsumer      = "telegram-bot"
	defaultPollInterval  = 5 * time.Second
	defaultLeaseTTL      = time.Minute
	defaultBatchSize     = 20
	defaultMaxAttempts   = 8
	defaultRetryBackoff  = 30 * time.Second
	defaultRetryMaxDelay = 15 * time.Minute
)

func (c DispatcherConfig) normalized() DispatcherConfig {
	if strings.TrimSpace(c.Consumer) == "" {
		c.Consumer = defaultConsumer
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = defaultLeaseTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay < c.RetryBackoff {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	return c
}

// Dispatcher drains the notification outbox through the back-office
// API and announces each event in the staff channel.
type Dispatcher struct {
	bot   *Bot
	cfg   DispatcherConfig
	retry *backoff.Backoff
}

// NewDispatcher builds a Dispatcher on top of a running bot's
// dependencies.
func NewDispatcher(bot *Bot, cfg DispatcherConfig) (*Dispatcher, error) {
	if bot == nil {
		return nil, errors.New("bot is required")
	}
	if cfg.NotifyChatID == 0 {
		return nil, errors.New("notify chat id is required")
	}
	cfg = cfg.normalized()
	return &Dispatcher{
		bot: bot,
		cfg: cfg,
		retry: &backoff.Backoff{
			Min:    cfg.RetryBackoff,
			Max:    cfg.RetryMaxDelay,
			Factor: 2,
		},
	}, nil
}

// Run polls for due events until the context ends. The first pass runs
// immediately so a restart drains backlog without waiting a tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.bot.logf("dispatcher: delivering to chat %d as %s", d.cfg.NotifyChatID, d.cfg.Consumer)
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := d.dispatchDue(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.bot.logf("dispatcher: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// dispatchDue leases and delivers batches until the outbox has no more
// due events.
func (d *Dispatcher) dispatchDue(ctx context.Context) error {
	for {
		leased, err := d.bot.backoffice.LeaseOutbox(ctx, apitypes.LeaseOutboxRequest{
			Consumer:        d.cfg.Consumer,
			Limit:           d.cfg.BatchSize,
			LeaseTTLSeconds: int64(d.cfg.LeaseTTL / time.Second),
		})
		if err != nil {
			return fmt.Errorf("lease outbox: %w", err)
		}
		if len(leased.Events) == 0 {
			return nil
		}
		for _, event := range leased.Events {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.deliver(ctx, event)
		}
		if len(leased.Events) < d.cfg.BatchSize {
			return nil
		}
	}
}

// deliver sends one event to the staff channel and acks the outcome.
// AttemptCount on a leased event counts completed failed attempts, so
// this delivery is attempt AttemptCount+1.
func (d *Dispatcher) deliver(ctx context.Context, event apitypes.OutboxEvent) {
	text := d.bot.renderEvent(event)
	if _, err := d.bot.api.Send(tgbotapi.NewMessage(d.cfg.NotifyChatID, text)); err != nil {
		failures := event.AttemptCount + 1
		if failures >= d.cfg.MaxAttempts {
			d.bot.logf("dispatcher: event %s dead after %d attempts: %v", event.ID, failures, err)
			d.ack(ctx, event.ID, apitypes.AckOutboxRequest{
				Outcome: apitypes.AckOutcomeDead,
				Error:   err.Error(),
			})
			return
		}
		delay := d.retry.ForAttempt(float64(event.AttemptCount))
		d.bot.logf("dispatcher: event %s attempt %d failed, retry in %s: %v", event.ID, failures, delay, err)
		d.ack(ctx, event.ID, apitypes.AckOutboxRequest{
			Outcome:        apitypes.AckOutcomeRetry,
			RetryInSeconds: int64(delay / time.Second),
			Error:          err.Error(),
		})
		return
	}
	d.ack(ctx, event.ID, apitypes.AckOutboxRequest{Outcome: apitypes.AckOutcomeSucceeded})
}

// ack reports one delivery outcome. A lost ack re-delivers after lease
// expiry, which the channel tolerates.
func (d *Dispatcher) ack(ctx context.Context, eventID string, req apitypes.AckOutboxRequest) {
	req.Consumer = d.cfg.Consumer
	if err := d.bot.backoffice.AckOutbox(ctx, eventID, req); err != nil {
		d.bot.logf("dispatcher: ack %s: %v", eventID, err)
	}
}
