package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
)

var (
	// ErrPhotoEmpty indicates an upload without image bytes.
	ErrPhotoEmpty = apperrors.New(apperrors.CodeSalePhotoEmpty, "photo upload is empty")
	// ErrPhotoTooLarge indicates an upload beyond the size cap.
	ErrPhotoTooLarge = apperrors.New(apperrors.CodeSalePhotoTooLarge, "photo upload exceeds the size limit")
	// ErrPhotoBadImageType indicates an upload outside the accepted types.
	ErrPhotoBadImageType = apperrors.New(apperrors.CodeSalePhotoBadImageType, "photo must be a jpeg, png, or webp image")
)

// MaxPhotoBytes caps one sale photo upload.
const MaxPhotoBytes = 10 << 20

// PhotoSource identifies which front-end submitted a photo.
type PhotoSource int

const (
	// PhotoSourceUnspecified represents an invalid source value.
	PhotoSourceUnspecified PhotoSource = iota
	// PhotoSourceAPI is a direct API upload.
	PhotoSourceAPI
	// PhotoSourceTelegram is a photo relayed by the Telegram bot.
	PhotoSourceTelegram
)

// String returns the stable text form used in storage and over the API.
func (s PhotoSource) String() string {
	switch s {
	case PhotoSourceAPI:
		return "api"
	case PhotoSourceTelegram:
		return "telegram"
	default:
		return "unspecified"
	}
}

// ParsePhotoSource converts a text form back to a PhotoSource.
func ParsePhotoSource(raw string) (PhotoSource, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "api":
		return PhotoSourceAPI, nil
	case "telegram":
		return PhotoSourceTelegram, nil
	default:
		return PhotoSourceUnspecified, fmt.Errorf("unknown photo source %q", raw)
	}
}

// SalePhoto records one image attached to a sale. Bytes live on disk
// under the media root; the record stores the relative path.
type SalePhoto struct {
	ID             string
	SaleID         string
	FilePath       string
	Caption        string
	SubmittedBy    string
	SubmittedVia   PhotoSource
	TelegramFileID string
	CreatedAt      time.Time
}

// CreateSalePhotoInput describes the data needed to attach a photo.
type CreateSalePhotoInput struct {
	SaleID         string
	FilePath       string
	Caption        string
	SubmittedBy    string
	SubmittedVia   PhotoSource
	TelegramFileID string
}

// CreateSalePhoto creates a photo record with a generated ID.
func CreateSalePhoto(input CreateSalePhotoInput, now func() time.Time, idGenerator func() (string, error)) (SalePhoto, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SaleID = strings.TrimSpace(input.SaleID)
	if input.SaleID == "" {
		return SalePhoto{}, ErrPaymentTargetMissing
	}
	input.FilePath = strings.TrimSpace(input.FilePath)
	if input.FilePath == "" {
		return SalePhoto{}, ErrPhotoEmpty
	}
	if input.SubmittedVia == PhotoSourceUnspecified {
		input.SubmittedVia = PhotoSourceAPI
	}

	photoID, err := idGenerator()
	if err != nil {
		return SalePhoto{}, fmt.Errorf("generate photo id: %w", err)
	}

	return SalePhoto{
		ID:             photoID,
		SaleID:         input.SaleID,
		FilePath:       input.FilePath,
		Caption:        strings.TrimSpace(input.Caption),
		SubmittedBy:    strings.TrimSpace(input.SubmittedBy),
		SubmittedVia:   input.SubmittedVia,
		TelegramFileID: strings.TrimSpace(input.TelegramFileID),
		CreatedAt:      now().UTC(),
	}, nil
}

// SniffImageExtension maps the magic bytes of an upload to a file
// extension, rejecting non-image payloads.
func SniffImageExtension(head []byte) (string, error) {
	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return ".jpg", nil
	case len(head) >= 8 && string(head[:8]) == "\x89PNG\r\n\x1a\n":
		return ".png", nil
	case len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WEBP":
		return ".webp", nil
	default:
		return "", ErrPhotoBadImageType
	}
}
