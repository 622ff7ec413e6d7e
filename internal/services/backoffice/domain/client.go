package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
)

var (
	// ErrClientNameEmpty indicates a missing client name.
	ErrClientNameEmpty = apperrors.New(apperrors.CodeClientNameEmpty, "client name is required")
	// ErrClientDiscountRange indicates a discount outside the allowed range.
	ErrClientDiscountRange = apperrors.New(apperrors.CodeClientDiscountRange, "client discount must be between 0 and 50 percent")
	// ErrClientPhoneInvalid indicates a phone number that cannot be normalized.
	ErrClientPhoneInvalid = apperrors.New(apperrors.CodeClientPhoneInvalid, "client phone number is not valid")
)

// MaxClientDiscountPercent caps the standing discount stored on a client.
const MaxClientDiscountPercent = 50

// Client represents one customer of the store.
type Client struct {
	ID               string
	FullName         string
	Phone            string
	Email            string
	TelegramUsername string
	DiscountPercent  int64
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CreateClientInput describes the data needed to register a client.
type CreateClientInput struct {
	FullName         string
	Phone            string
	Email            string
	TelegramUsername string
	DiscountPercent  int64
	Notes            string
}

// CreateClient creates a new client with a generated ID and timestamps.
func CreateClient(input CreateClientInput, now func() time.Time, idGenerator func() (string, error)) (Client, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateClientInput(input)
	if err != nil {
		return Client{}, err
	}

	clientID, err := idGenerator()
	if err != nil {
		return Client{}, fmt.Errorf("generate client id: %w", err)
	}

	createdAt := now().UTC()
	return Client{
		ID:               clientID,
		FullName:         normalized.FullName,
		Phone:            normalized.Phone,
		Email:            normalized.Email,
		TelegramUsername: normalized.TelegramUsername,
		DiscountPercent:  normalized.DiscountPercent,
		Notes:            normalized.Notes,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}, nil
}

// NormalizeCreateClientInput trims and validates client input.
func NormalizeCreateClientInput(input CreateClientInput) (CreateClientInput, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	if input.FullName == "" {
		return CreateClientInput{}, ErrClientNameEmpty
	}
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return CreateClientInput{}, err
	}
	input.Phone = phone
	input.Email = strings.TrimSpace(input.Email)
	input.TelegramUsername = strings.TrimPrefix(strings.TrimSpace(input.TelegramUsername), "@")
	if err := ValidateDiscountPercent(input.DiscountPercent, MaxClientDiscountPercent); err != nil {
		return CreateClientInput{}, ErrClientDiscountRange
	}
	input.Notes = strings.TrimSpace(input.Notes)
	return input, nil
}

// NormalizePhone strips formatting characters and validates the result.
// Empty input stays empty; otherwise the normalized form is digits with an
// optional leading plus.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}

	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// formatting noise
		default:
			return "", ErrClientPhoneInvalid
		}
	}

	digits := strings.TrimPrefix(b.String(), "+")
	if len(digits) < 5 || len(digits) > 15 {
		return "", ErrClientPhoneInvalid
	}
	return b.String(), nil
}

// ValidateDiscountPercent checks a whole-percent discount against [0, max].
func ValidateDiscountPercent(pct, max int64) error {
	if pct < 0 || pct > max {
		return apperrors.Newf(apperrors.CodeSaleDiscountRange, "discount percent %d is outside 0..%d", pct, max)
	}
	return nil
}
