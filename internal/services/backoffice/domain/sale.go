package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/platform/money"
)

var (
	// ErrSaleNoLines indicates a sale without lines.
	ErrSaleNoLines = apperrors.New(apperrors.CodeSaleNoLines, "sale requires at least one line")
	// ErrSaleCancelled indicates an operation on a cancelled sale.
	ErrSaleCancelled = apperrors.New(apperrors.CodeSaleCancelled, "sale is cancelled")
	// ErrSaleHasPayments indicates a cancel attempt on a sale with payments.
	ErrSaleHasPayments = apperrors.New(apperrors.CodeSaleHasPayments, "sale has recorded payments")
	// ErrSaleNumberInvalid indicates a document number that does not parse.
	ErrSaleNumberInvalid = apperrors.New(apperrors.CodeSaleNumberInvalid, "document number is not valid")
)

// MaxSaleDiscountPercent caps the discount applied to a whole sale.
const MaxSaleDiscountPercent = 100

// SaleStatus tracks a sale through the payment lifecycle.
type SaleStatus int

const (
	// SaleStatusUnspecified represents an invalid status value.
	SaleStatusUnspecified SaleStatus = iota
	// SaleStatusPending is a sale with no payments yet.
	SaleStatusPending
	// SaleStatusPartiallyPaid is a sale with payments below the total.
	SaleStatusPartiallyPaid
	// SaleStatusPaid is a sale whose payments cover the total.
	SaleStatusPaid
	// SaleStatusCancelled is an abandoned sale whose stock was restored.
	SaleStatusCancelled
)

// String returns the stable text form used in storage and over the API.
func (s SaleStatus) String() string {
	switch s {
	case SaleStatusPending:
		return "pending"
	case SaleStatusPartiallyPaid:
		return "partially-paid"
	case SaleStatusPaid:
		return "paid"
	case SaleStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParseSaleStatus converts a text form back to a SaleStatus.
func ParseSaleStatus(raw string) (SaleStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return SaleStatusPending, nil
	case "partially-paid":
		return SaleStatusPartiallyPaid, nil
	case "paid":
		return SaleStatusPaid, nil
	case "cancelled":
		return SaleStatusCancelled, nil
	default:
		return SaleStatusUnspecified, fmt.Errorf("unknown sale status %q", raw)
	}
}

// SaleLine is one product position on a sale.
type SaleLine struct {
	ID        string
	ProductID string
	Qty       int64
	UnitPrice money.Amount
}

// Sale represents one sale document.
type Sale struct {
	ID              string
	Number          string
	ClientID        string
	Status          SaleStatus
	DiscountPercent int64
	Lines           []SaleLine
	SoldAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SaleTotals carries the derived money figures of a sale.
type SaleTotals struct {
	Subtotal money.Amount
	Discount money.Amount
	Total    money.Amount
}

// Totals computes subtotal, discount, and total for the sale lines.
func (s Sale) Totals() SaleTotals {
	return ComputeSaleTotals(s.Lines, s.DiscountPercent)
}

// ComputeSaleTotals derives the money figures for a set of lines with a
// whole-percent discount applied to the subtotal.
func ComputeSaleTotals(lines []SaleLine, discountPercent int64) SaleTotals {
	var subtotal money.Amount
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.MulQty(line.Qty))
	}
	discount := subtotal.PercentOf(discountPercent)
	return SaleTotals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
	}
}

// SaleStatusForPayments derives the payment-driven sale status. A sale
// with a zero total needs no payment and counts as paid.
func SaleStatusForPayments(total, paid money.Amount) SaleStatus {
	switch {
	case total <= 0:
		return SaleStatusPaid
	case paid <= 0:
		return SaleStatusPending
	case paid < total:
		return SaleStatusPartiallyPaid
	default:
		return SaleStatusPaid
	}
}

// CreateSaleInput describes the data needed to record a sale.
type CreateSaleInput struct {
	ClientID        string
	DiscountPercent int64
	SoldAt          time.Time
	Lines           []SaleLineInput
}

// SaleLineInput is one requested line on a new sale.
type SaleLineInput struct {
	ProductID string
	Qty       int64
	UnitPrice money.Amount
}

// CreateSale creates a pending sale with generated IDs and timestamps.
// The document number is assigned by storage when the sale is persisted.
func CreateSale(input CreateSaleInput, now func() time.Time, idGenerator func() (string, error)) (Sale, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSaleInput(input)
	if err != nil {
		return Sale{}, err
	}

	saleID, err := idGenerator()
	if err != nil {
		return Sale{}, fmt.Errorf("generate sale id: %w", err)
	}

	lines := make([]SaleLine, 0, len(normalized.Lines))
	for _, line := range normalized.Lines {
		lineID, err := idGenerator()
		if err != nil {
			return Sale{}, fmt.Errorf("generate sale line id: %w", err)
		}
		lines = append(lines, SaleLine{
			ID:        lineID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: line.UnitPrice,
		})
	}

	createdAt := now().UTC()
	soldAt := normalized.SoldAt
	if soldAt.IsZero() {
		soldAt = createdAt
	}

	sale := Sale{
		ID:              saleID,
		ClientID:        normalized.ClientID,
		DiscountPercent: normalized.DiscountPercent,
		Lines:           lines,
		SoldAt:          soldAt.UTC(),
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	sale.Status = SaleStatusForPayments(sale.Totals().Total, 0)
	return sale, nil
}

// NormalizeCreateSaleInput trims and validates sale input.
func NormalizeCreateSaleInput(input CreateSaleInput) (CreateSaleInput, error) {
	input.ClientID = strings.TrimSpace(input.ClientID)
	if err := ValidateDiscountPercent(input.DiscountPercent, MaxSaleDiscountPercent); err != nil {
		return CreateSaleInput{}, err
	}
	if len(input.Lines) == 0 {
		return CreateSaleInput{}, ErrSaleNoLines
	}
	for i, line := range input.Lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" {
			return CreateSaleInput{}, apperrors.Newf(apperrors.CodeSaleInvalidLine, "sale line %d is missing a product", i+1)
		}
		if line.Qty < 1 {
			return CreateSaleInput{}, apperrors.Newf(apperrors.CodeSaleInvalidLine, "sale line %d quantity must be at least 1", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return CreateSaleInput{}, apperrors.Newf(apperrors.CodeSaleInvalidLine, "sale line %d unit price must not be negative", i+1)
		}
		input.Lines[i] = line
	}
	return input, nil
}

// CancelSale transitions a sale to cancelled. Sales with recorded
// payments cannot be cancelled; the payments must be reversed first.
func CancelSale(s Sale, paid money.Amount, at time.Time) (Sale, error) {
	if s.Status == SaleStatusCancelled {
		return Sale{}, ErrSaleCancelled
	}
	if paid > 0 {
		return Sale{}, ErrSaleHasPayments
	}
	s.Status = SaleStatusCancelled
	s.UpdatedAt = at.UTC()
	return s, nil
}

const documentSeqDigits = 6

var documentNumberPattern = regexp.MustCompile(`^([A-Z])-(\d{6,})$`)

// FormatDocumentNumber renders a document number such as S-000123 from a
// one-letter prefix and a positive sequence value.
func FormatDocumentNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, documentSeqDigits, seq)
}

// ParseDocumentNumber splits a document number into prefix and sequence.
func ParseDocumentNumber(raw string) (prefix string, seq int64, err error) {
	matches := documentNumberPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(raw)))
	if matches == nil {
		return "", 0, ErrSaleNumberInvalid
	}
	seq, err = strconv.ParseInt(matches[2], 10, 64)
	if err != nil || seq < 1 {
		return "", 0, ErrSaleNumberInvalid
	}
	return matches[1], seq, nil
}

// SaleNumberPrefix and RepairNumberPrefix identify document families.
const (
	SaleNumberPrefix   = "S"
	RepairNumberPrefix = "R"
)
