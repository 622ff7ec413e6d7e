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
	// ErrPaymentNotPositive indicates a zero or negative payment amount.
	ErrPaymentNotPositive = apperrors.New(apperrors.CodePaymentNotPositive, "payment amount must be positive")
	// ErrPaymentInvalidMethod indicates an unknown payment method.
	ErrPaymentInvalidMethod = apperrors.New(apperrors.CodePaymentInvalidMethod, "payment method is not valid")
	// ErrPaymentTargetMissing indicates a payment with no sale or repair.
	ErrPaymentTargetMissing = apperrors.New(apperrors.CodePaymentTargetMissing, "payment requires a sale or repair target")
)

// PaymentMethod identifies how money arrived.
type PaymentMethod int

const (
	// PaymentMethodUnspecified represents an invalid method value.
	PaymentMethodUnspecified PaymentMethod = iota
	// PaymentMethodCash is physical cash.
	PaymentMethodCash
	// PaymentMethodCard is a card terminal payment.
	PaymentMethodCard
	// PaymentMethodTransfer is a bank transfer.
	PaymentMethodTransfer
	// PaymentMethodDeposit is a client deposit applied to a document.
	PaymentMethodDeposit
)

// String returns the stable text form used in storage and over the API.
func (m PaymentMethod) String() string {
	switch m {
	case PaymentMethodCash:
		return "cash"
	case PaymentMethodCard:
		return "card"
	case PaymentMethodTransfer:
		return "transfer"
	case PaymentMethodDeposit:
		return "deposit"
	default:
		return "unspecified"
	}
}

// ParsePaymentMethod converts a text form back to a PaymentMethod.
func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cash":
		return PaymentMethodCash, nil
	case "card":
		return PaymentMethodCard, nil
	case "transfer":
		return PaymentMethodTransfer, nil
	case "deposit":
		return PaymentMethodDeposit, nil
	default:
		return PaymentMethodUnspecified, ErrPaymentInvalidMethod
	}
}

// Payment records money received against a sale or a repair. Exactly one
// of SaleID and RepairID is set.
type Payment struct {
	ID         string
	SaleID     string
	RepairID   string
	Amount     money.Amount
	Method     PaymentMethod
	Note       string
	RecordedBy string
	PaidAt     time.Time
	CreatedAt  time.Time
}

// CreatePaymentInput describes the data needed to record a payment.
type CreatePaymentInput struct {
	SaleID     string
	RepairID   string
	Amount     money.Amount
	Method     PaymentMethod
	Note       string
	RecordedBy string
	PaidAt     time.Time
}

// CreatePayment creates a payment with a generated ID and timestamps.
func CreatePayment(input CreatePaymentInput, now func() time.Time, idGenerator func() (string, error)) (Payment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreatePaymentInput(input)
	if err != nil {
		return Payment{}, err
	}

	paymentID, err := idGenerator()
	if err != nil {
		return Payment{}, fmt.Errorf("generate payment id: %w", err)
	}

	createdAt := now().UTC()
	paidAt := normalized.PaidAt
	if paidAt.IsZero() {
		paidAt = createdAt
	}

	return Payment{
		ID:         paymentID,
		SaleID:     normalized.SaleID,
		RepairID:   normalized.RepairID,
		Amount:     normalized.Amount,
		Method:     normalized.Method,
		Note:       normalized.Note,
		RecordedBy: normalized.RecordedBy,
		PaidAt:     paidAt.UTC(),
		CreatedAt:  createdAt,
	}, nil
}

// NormalizeCreatePaymentInput trims and validates payment input.
func NormalizeCreatePaymentInput(input CreatePaymentInput) (CreatePaymentInput, error) {
	input.SaleID = strings.TrimSpace(input.SaleID)
	input.RepairID = strings.TrimSpace(input.RepairID)
	if (input.SaleID == "") == (input.RepairID == "") {
		return CreatePaymentInput{}, ErrPaymentTargetMissing
	}
	if input.Amount <= 0 {
		return CreatePaymentInput{}, ErrPaymentNotPositive
	}
	if input.Method == PaymentMethodUnspecified {
		return CreatePaymentInput{}, ErrPaymentInvalidMethod
	}
	input.Note = strings.TrimSpace(input.Note)
	input.RecordedBy = strings.TrimSpace(input.RecordedBy)
	return input, nil
}

// SumPayments totals a set of payments.
func SumPayments(payments []Payment) money.Amount {
	var total money.Amount
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}
