// Package telegram runs the staff bot. It answers sale, repair, and
// client lookups in chat, files photo submissions into the sale
// archive through the back-office API, and pushes outbox notifications
// to the staff channel.
//
// The bot holds the shared service token. Staff link their chats with
// /start <username>; every other interaction first resolves the chat
// back to a staff account, so an unlinked chat can only ever see the
// linking instructions.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
	"github.com/atelier-erp/atelier/internal/services/telegram/session"
)

const defaultCaptionTTL = 10 * time.Minute

// API is the slice of the Telegram Bot API the service drives.
// *tgbotapi.BotAPI implements it.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetFileDirectURL(fileID string) (string, error)
	StopReceivingUpdates()
}

// Config assembles the bot's dependencies.
type Config struct {
	API        API
	Backoffice *client.Client
	// Sessions holds pending photo state. Nil falls back to an
	// in-process store, losing pending photos on restart.
	Sessions session.Store
	// Currency is the ISO 4217 code amounts render in. Empty means RUB.
	Currency string
	// CaptionTTL bounds how long a photo waits for its sale number.
	// Zero means ten minutes.
	CaptionTTL time.Duration
	// HTTPClient downloads photo files from Telegram. Nil gets a
	// client with the Telegram call timeout.
	HTTPClient *http.Client
	Now        func() time.Time
	Logf       func(format string, args ...any)
}

// Bot is the running Telegram front-end.
type Bot struct {
	api        API
	backoffice *client.Client
	sessions   session.Store
	format     *money.Formatter
	captionTTL time.Duration
	httpc      *http.Client
	now        func() time.Time
	logf       func(format string, args ...any)
}

// New builds a Bot from its dependencies.
func New(cfg Config) (*Bot, error) {
	if cfg.API == nil {
		return nil, errors.New("telegram api is required")
	}
	if cfg.Backoffice == nil {
		return nil, errors.New("backoffice client is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewMemory(cfg.Now)
	}
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	format, err := money.NewFormatter(cfg.Currency)
	if err != nil {
		return nil, err
	}
	if cfg.CaptionTTL <= 0 {
		cfg.CaptionTTL = defaultCaptionTTL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: timeouts.TelegramCall}
	}
	if cfg.Logf == nil {
		cfg.Logf = func(string, ...any) {}
	}
	return &Bot{
		api:        cfg.API,
		backoffice: cfg.Backoffice,
		sessions:   cfg.Sessions,
		format:     format,
		captionTTL: cfg.CaptionTTL,
		httpc:      cfg.HTTPClient,
		now:        cfg.Now,
		logf:       cfg.Logf,
	}, nil
}

// Run consumes updates until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := b.api.GetUpdatesChan(updateCfg)
	b.logf("bot: receiving updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate routes one update. Each message gets its own call
// budget so one slow back-office round trip cannot wedge the loop past
// the Telegram long-poll window.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, timeouts.TelegramCall)
	defer cancel()

	switch {
	case msg.IsCommand():
		b.handleCommand(callCtx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(callCtx, msg)
	default:
		b.handleText(callCtx, msg)
	}
}

// reply sends plain text to a chat. Send failures are logged, not
// propagated; the update loop must keep draining.
func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logf("bot: send to chat %d: %v", chatID, err)
	}
}
