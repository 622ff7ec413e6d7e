package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

const helpText = `Commands:
/sale S-000123 - sale card
/sales [YYYY-MM-DD] - day summary
/client <name or phone> - client search with balance
/repair R-000042 - repair card
/track <code> - courier status check
Send a photo with the sale number in the caption to file it.`

const (
	notLinkedText  = "This chat is not linked to a staff account. Send /start <username> to link it."
	apiDownText    = "The back office is not answering right now. Try again in a minute."
	dateLayout     = "2006-01-02"
	clientPageSize = 5
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chatID, args)
	case "help":
		b.reply(chatID, helpText)
	case "sale":
		b.handleSale(ctx, chatID, args)
	case "sales":
		b.handleSales(ctx, chatID, args)
	case "client":
		b.handleClient(ctx, chatID, args)
	case "track":
		b.handleTrack(ctx, chatID, args)
	case "repair":
		b.handleRepair(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Try /help.")
	}
}

// staffFor resolves the chat to its staff account. An unlinked or
// failing chat gets an explanatory reply and ok false; callers just
// return.
func (b *Bot) staffFor(ctx context.Context, chatID int64) (apitypes.StaffUser, bool) {
	staff, err := b.backoffice.StaffByTelegramChat(ctx, chatID)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			b.reply(chatID, notLinkedText)
			return apitypes.StaffUser{}, false
		}
		b.logf("bot: resolve chat %d: %v", chatID, err)
		b.reply(chatID, apiDownText)
		return apitypes.StaffUser{}, false
	}
	return staff, true
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, args string) {
	username := strings.ToLower(args)
	if username == "" {
		staff, err := b.backoffice.StaffByTelegramChat(ctx, chatID)
		if err == nil {
			b.reply(chatID, "This chat is linked to "+staff.Username+". Try /help.")
			return
		}
		b.reply(chatID, "Link this chat with /start <username>.")
		return
	}

	staff, err := b.backoffice.BindTelegram(ctx, username, chatID)
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeNotFound):
			b.reply(chatID, "No staff account named "+username+".")
		case apperrors.IsCode(err, apperrors.CodeStaffInactive):
			b.reply(chatID, "That account is deactivated. Ask an admin to reactivate it first.")
		default:
			b.logf("bot: bind chat %d to %s: %v", chatID, username, err)
			b.reply(chatID, apiDownText)
		}
		return
	}
	b.reply(chatID, "Linked this chat to "+staff.Username+". Try /help.")
}

func (b *Bot) handleSale(ctx context.Context, chatID int64, args string) {
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	number := strings.ToUpper(args)
	if number == "" {
		b.reply(chatID, "Usage: /sale S-000123")
		return
	}

	sale, err := b.backoffice.GetSaleByNumber(ctx, number)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			b.reply(chatID, "No sale "+number+".")
			return
		}
		b.logf("bot: sale %s: %v", number, err)
		b.reply(chatID, apiDownText)
		return
	}
	b.reply(chatID, b.renderSale(sale, b.clientName(ctx, sale.ClientID)))
}

func (b *Bot) handleSales(ctx context.Context, chatID int64, args string) {
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	day := b.now()
	if args != "" {
		parsed, err := time.Parse(dateLayout, args)
		if err != nil {
			b.reply(chatID, "Usage: /sales or /sales 2026-04-01")
			return
		}
		day = parsed
	}

	summary, err := b.backoffice.SaleSummary(ctx, day)
	if err != nil {
		b.logf("bot: sales summary %s: %v", day.Format(dateLayout), err)
		b.reply(chatID, apiDownText)
		return
	}
	b.reply(chatID, b.renderDaySummary(summary))
}

func (b *Bot) handleClient(ctx context.Context, chatID int64, args string) {
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	if args == "" {
		b.reply(chatID, "Usage: /client <name or phone>")
		return
	}

	page, err := b.backoffice.ListClients(ctx, args, client.PageParams{PageSize: clientPageSize})
	if err != nil {
		b.logf("bot: client search %q: %v", args, err)
		b.reply(chatID, apiDownText)
		return
	}
	if len(page.Clients) == 0 {
		b.reply(chatID, "No clients match "+args+".")
		return
	}

	// The balance is only fetched for the best match; the rest are
	// listed so a narrower query can be retried.
	first := page.Clients[0]
	balance, err := b.backoffice.ClientBalance(ctx, first.ID)
	if err != nil {
		b.logf("bot: client balance %s: %v", first.ID, err)
		b.reply(chatID, apiDownText)
		return
	}
	b.reply(chatID, b.renderClientMatches(page.Clients, balance))
}

func (b *Bot) handleTrack(ctx context.Context, chatID int64, args string) {
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	if args == "" {
		b.reply(chatID, "Usage: /track <tracking code>")
		return
	}

	result, err := b.backoffice.Track(ctx, args)
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeTrackingNotFound):
			b.reply(chatID, "The courier has no record of "+args+".")
		case apperrors.IsCode(err, apperrors.CodeTrackerNotConfigured):
			b.reply(chatID, "Courier tracking is not configured on the server.")
		case apperrors.IsCode(err, apperrors.CodeCourierUnavailable),
			apperrors.IsCode(err, apperrors.CodeCourierMarkupChanged):
			b.reply(chatID, "The courier site is not answering. Try again later.")
		default:
			b.logf("bot: track %s: %v", args, err)
			b.reply(chatID, apiDownText)
		}
		return
	}
	b.reply(chatID, b.renderTrack(result))
}

func (b *Bot) handleRepair(ctx context.Context, chatID int64, args string) {
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	number := strings.ToUpper(args)
	if number == "" {
		b.reply(chatID, "Usage: /repair R-000042")
		return
	}

	repair, err := b.backoffice.GetRepairByNumber(ctx, number)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			b.reply(chatID, "No repair "+number+".")
			return
		}
		b.logf("bot: repair %s: %v", number, err)
		b.reply(chatID, apiDownText)
		return
	}
	b.reply(chatID, b.renderRepair(repair, b.clientName(ctx, repair.ClientID)))
}

// handleText only matters while a photo waits for its sale number.
// Anything else in a linked chat is left alone so the bot stays quiet
// in ordinary conversation.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	state, found, err := b.sessions.Get(ctx, chatID)
	if err != nil {
		b.logf("bot: read session %d: %v", chatID, err)
		return
	}
	if !found || state.PendingPhotoFileID == "" {
		return
	}
	b.resolvePendingPhoto(ctx, chatID, state.PendingPhotoFileID, msg.Text)
}

// clientName fetches a display name for cards. Lookups are best
// effort; a missing or failing client leaves the card nameless.
func (b *Bot) clientName(ctx context.Context, clientID string) string {
	if clientID == "" {
		return ""
	}
	record, err := b.backoffice.GetClient(ctx, clientID)
	if err != nil {
		b.logf("bot: client %s: %v", clientID, err)
		return ""
	}
	return record.FullName
}
