package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/platform/money"
)

var (
	// ErrDepositNotPositive indicates a zero or negative deposit amount.
	ErrDepositNotPositive = apperrors.New(apperrors.CodeDepositNotPositive, "deposit amount must be positive")
	// ErrDepositNotHeld indicates an apply or refund on a settled deposit.
	ErrDepositNotHeld = apperrors.New(apperrors.CodeDepositNotHeld, "deposit is no longer held")
	// ErrDepositClientEmpty indicates a deposit without a client.
	ErrDepositClientEmpty = apperrors.New(apperrors.CodeDepositClientEmpty, "deposit client is required")
)

// DepositStatus tracks client money held on account.
type DepositStatus int

const (
	// DepositStatusUnspecified represents an invalid status value.
	DepositStatusUnspecified DepositStatus = iota
	// DepositStatusHeld is money on account awaiting use.
	DepositStatusHeld
	// DepositStatusApplied is a deposit consumed by a sale payment.
	DepositStatusApplied
	// DepositStatusRefunded is a deposit returned to the client.
	DepositStatusRefunded
)

// String returns the stable text form used in storage and over the API.
func (s DepositStatus) String() string {
	switch s {
	case DepositStatusHeld:
		return "held"
	case DepositStatusApplied:
		return "applied"
	case DepositStatusRefunded:
		return "refunded"
	default:
		return "unspecified"
	}
}

// ParseDepositStatus converts a text form back to a DepositStatus.
func ParseDepositStatus(raw string) (DepositStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "held":
		return DepositStatusHeld, nil
	case "applied":
		return DepositStatusApplied, nil
	case "refunded":
		return DepositStatusRefunded, nil
	default:
		return DepositStatusUnspecified, fmt.Errorf("unknown deposit status %q", raw)
	}
}

// Deposit represents client money held on account, typically taken
// against a custom order before the sale exists.
type Deposit struct {
	ID            string
	ClientID      string
	Amount        money.Amount
	Status        DepositStatus
	Note          string
	AppliedSaleID string
	TakenAt       time.Time
	SettledAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateDepositInput describes the data needed to take a deposit.
type CreateDepositInput struct {
	ClientID string
	Amount   money.Amount
	Note     string
	TakenAt  time.Time
}

// CreateDeposit creates a held deposit with a generated ID and timestamps.
func CreateDeposit(input CreateDepositInput, now func() time.Time, idGenerator func() (string, error)) (Deposit, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateDepositInput(input)
	if err != nil {
		return Deposit{}, err
	}

	depositID, err := idGenerator()
	if err != nil {
		return Deposit{}, fmt.Errorf("generate deposit id: %w", err)
	}

	createdAt := now().UTC()
	takenAt := normalized.TakenAt
	if takenAt.IsZero() {
		takenAt = createdAt
	}

	return Deposit{
		ID:        depositID,
		ClientID:  normalized.ClientID,
		Amount:    normalized.Amount,
		Status:    DepositStatusHeld,
		Note:      normalized.Note,
		TakenAt:   takenAt.UTC(),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// NormalizeCreateDepositInput trims and validates deposit input.
func NormalizeCreateDepositInput(input CreateDepositInput) (CreateDepositInput, error) {
	input.ClientID = strings.TrimSpace(input.ClientID)
	if input.ClientID == "" {
		return CreateDepositInput{}, ErrDepositClientEmpty
	}
	if input.Amount <= 0 {
		return CreateDepositInput{}, ErrDepositNotPositive
	}
	input.Note = strings.TrimSpace(input.Note)
	return input, nil
}

// ApplyDeposit consumes a held deposit against a sale. The caller records
// the matching deposit-method payment inside the same transaction.
func ApplyDeposit(d Deposit, saleID string, at time.Time) (Deposit, error) {
	if d.Status != DepositStatusHeld {
		return Deposit{}, ErrDepositNotHeld
	}
	saleID = strings.TrimSpace(saleID)
	if saleID == "" {
		return Deposit{}, ErrPaymentTargetMissing
	}
	now := at.UTC()
	d.Status = DepositStatusApplied
	d.AppliedSaleID = saleID
	d.SettledAt = &now
	d.UpdatedAt = now
	return d, nil
}

// RefundDeposit returns a held deposit to the client.
func RefundDeposit(d Deposit, at time.Time) (Deposit, error) {
	if d.Status != DepositStatusHeld {
		return Deposit{}, ErrDepositNotHeld
	}
	now := at.UTC()
	d.Status = DepositStatusRefunded
	d.SettledAt = &now
	d.UpdatedAt = now
	return d, nil
}
