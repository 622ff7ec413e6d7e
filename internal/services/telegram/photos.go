package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
	"github.com/atelier-erp/atelier/internal/services/telegram/session"
)

// maxPhotoDownloadBytes matches the archive's upload cap so oversized
// files fail here instead of after the upload round trip.
const maxPhotoDownloadBytes = 10 << 20

var (
	saleNumberRe     = regexp.MustCompile(`S-\d{6,}`)
	errPhotoTooLarge = errors.New("photo exceeds the archive size cap")
)

// extractSaleNumber pulls the first sale number out of free text.
func extractSaleNumber(text string) string {
	return saleNumberRe.FindString(strings.ToUpper(text))
}

// largestPhoto picks the biggest rendition Telegram offers. Updates
// carry several downscaled sizes of the same file.
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	var best tgbotapi.PhotoSize
	bestArea := 0
	for _, size := range sizes {
		if area := size.Width * size.Height; area > bestArea {
			best, bestArea = size, area
		}
	}
	return best
}

// handlePhoto files a captioned photo straight away. Without a sale
// number in the caption the file id is parked in the session store and
// the sender is asked for the number.
func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if _, ok := b.staffFor(ctx, chatID); !ok {
		return
	}
	photo := largestPhoto(msg.Photo)
	if photo.FileID == "" {
		return
	}

	number := extractSaleNumber(msg.Caption)
	if number == "" {
		b.holdPhoto(ctx, chatID, photo.FileID, "Which sale is this photo for? Reply with the number, e.g. S-000123.")
		return
	}
	b.filePhoto(ctx, chatID, photo.FileID, number, msg.Caption)
}

// resolvePendingPhoto consumes the follow-up message for a parked
// photo. The original caption was empty, so none is stored.
func (b *Bot) resolvePendingPhoto(ctx context.Context, chatID int64, fileID, text string) {
	number := extractSaleNumber(text)
	if number == "" {
		b.reply(chatID, "Still need the sale number, e.g. S-000123.")
		return
	}
	b.filePhoto(ctx, chatID, fileID, number, "")
}

// filePhoto resolves the sale, downloads the photo from Telegram, and
// uploads it to the archive. Recoverable failures park the file id
// again so the sender can retry with just a text message.
func (b *Bot) filePhoto(ctx context.Context, chatID int64, fileID, number, caption string) {
	sale, err := b.backoffice.GetSaleByNumber(ctx, number)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			b.holdPhoto(ctx, chatID, fileID, "No sale "+number+". Reply with the right number.")
			return
		}
		b.logf("bot: photo sale lookup %s: %v", number, err)
		b.holdPhoto(ctx, chatID, fileID, apiDownText)
		return
	}

	data, err := b.downloadPhoto(ctx, fileID)
	if err != nil {
		b.logf("bot: download photo %s: %v", fileID, err)
		b.clearPending(ctx, chatID)
		if errors.Is(err, errPhotoTooLarge) {
			b.reply(chatID, "That photo is larger than the archive accepts.")
			return
		}
		b.reply(chatID, "Could not fetch the photo from Telegram. Send it again.")
		return
	}

	_, err = b.backoffice.UploadSalePhoto(ctx, sale.ID, client.UploadSalePhotoInput{
		FileName:       fileID + ".jpg",
		Data:           bytes.NewReader(data),
		Caption:        caption,
		SubmittedVia:   "telegram",
		TelegramFileID: fileID,
	})
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeSalePhotoTooLarge):
			b.clearPending(ctx, chatID)
			b.reply(chatID, "That photo is larger than the archive accepts.")
		case apperrors.IsCode(err, apperrors.CodeSalePhotoBadImageType):
			b.clearPending(ctx, chatID)
			b.reply(chatID, "That file is not a JPEG or PNG image.")
		default:
			b.logf("bot: upload photo to sale %s: %v", sale.ID, err)
			b.holdPhoto(ctx, chatID, fileID, apiDownText)
		}
		return
	}

	b.clearPending(ctx, chatID)
	b.reply(chatID, "Filed the photo to sale "+sale.Number+".")
}

// holdPhoto parks a file id for the caption TTL and prompts the sender.
func (b *Bot) holdPhoto(ctx context.Context, chatID int64, fileID, prompt string) {
	if err := b.sessions.Put(ctx, chatID, session.State{PendingPhotoFileID: fileID}, b.captionTTL); err != nil {
		b.logf("bot: hold photo for chat %d: %v", chatID, err)
		b.reply(chatID, apiDownText)
		return
	}
	b.reply(chatID, prompt)
}

func (b *Bot) clearPending(ctx context.Context, chatID int64) {
	if err := b.sessions.Delete(ctx, chatID); err != nil {
		b.logf("bot: clear session %d: %v", chatID, err)
	}
}

// downloadPhoto fetches the full-size file from Telegram's file API.
func (b *Bot) downloadPhoto(ctx context.Context, fileID string) ([]byte, error) {
	fileURL, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > maxPhotoDownloadBytes {
		return nil, errPhotoTooLarge
	}
	return data, nil
}
