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
	// ErrPurchaseSupplierEmpty indicates a missing supplier reference.
	ErrPurchaseSupplierEmpty = apperrors.New(apperrors.CodePurchaseSupplierEmpty, "purchase supplier is required")
	// ErrPurchaseNoLines indicates a purchase without lines.
	ErrPurchaseNoLines = apperrors.New(apperrors.CodePurchaseNoLines, "purchase requires at least one line")
	// ErrPurchaseNotDraft indicates a lifecycle operation on a non-draft purchase.
	ErrPurchaseNotDraft = apperrors.New(apperrors.CodePurchaseNotDraft, "purchase is no longer a draft")
)

// PurchaseStatus tracks an intake batch through its lifecycle.
type PurchaseStatus int

const (
	// PurchaseStatusUnspecified represents an invalid status value.
	PurchaseStatusUnspecified PurchaseStatus = iota
	// PurchaseStatusDraft is an intake batch still being edited.
	PurchaseStatusDraft
	// PurchaseStatusReceived is a posted batch whose stock has landed.
	PurchaseStatusReceived
	// PurchaseStatusCancelled is an abandoned draft.
	PurchaseStatusCancelled
)

// String returns the stable text form used in storage and over the API.
func (s PurchaseStatus) String() string {
	switch s {
	case PurchaseStatusDraft:
		return "draft"
	case PurchaseStatusReceived:
		return "received"
	case PurchaseStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParsePurchaseStatus converts a text form back to a PurchaseStatus.
func ParsePurchaseStatus(raw string) (PurchaseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return PurchaseStatusDraft, nil
	case "received":
		return PurchaseStatusReceived, nil
	case "cancelled":
		return PurchaseStatusCancelled, nil
	default:
		return PurchaseStatusUnspecified, fmt.Errorf("unknown purchase status %q", raw)
	}
}

// PurchaseLine is one product position on an intake batch.
type PurchaseLine struct {
	ID        string
	ProductID string
	Qty       int64
	UnitCost  money.Amount
}

// Purchase represents one supplier intake batch. Receiving it posts the
// line quantities into product stock and updates product costs.
type Purchase struct {
	ID         string
	SupplierID string
	Reference  string
	Status     PurchaseStatus
	Lines      []PurchaseLine
	ReceivedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TotalCost sums qty times unit cost across all lines.
func (p Purchase) TotalCost() money.Amount {
	var total money.Amount
	for _, line := range p.Lines {
		total = total.Add(line.UnitCost.MulQty(line.Qty))
	}
	return total
}

// CreatePurchaseInput describes the data needed to open an intake batch.
type CreatePurchaseInput struct {
	SupplierID string
	Reference  string
	Lines      []PurchaseLineInput
}

// PurchaseLineInput is one requested line on a new purchase.
type PurchaseLineInput struct {
	ProductID string
	Qty       int64
	UnitCost  money.Amount
}

// CreatePurchase creates a draft purchase with generated IDs and timestamps.
func CreatePurchase(input CreatePurchaseInput, now func() time.Time, idGenerator func() (string, error)) (Purchase, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreatePurchaseInput(input)
	if err != nil {
		return Purchase{}, err
	}

	purchaseID, err := idGenerator()
	if err != nil {
		return Purchase{}, fmt.Errorf("generate purchase id: %w", err)
	}

	lines := make([]PurchaseLine, 0, len(normalized.Lines))
	for _, line := range normalized.Lines {
		lineID, err := idGenerator()
		if err != nil {
			return Purchase{}, fmt.Errorf("generate purchase line id: %w", err)
		}
		lines = append(lines, PurchaseLine{
			ID:        lineID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitCost:  line.UnitCost,
		})
	}

	createdAt := now().UTC()
	return Purchase{
		ID:         purchaseID,
		SupplierID: normalized.SupplierID,
		Reference:  normalized.Reference,
		Status:     PurchaseStatusDraft,
		Lines:      lines,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}

// NormalizeCreatePurchaseInput trims and validates purchase input.
func NormalizeCreatePurchaseInput(input CreatePurchaseInput) (CreatePurchaseInput, error) {
	input.SupplierID = strings.TrimSpace(input.SupplierID)
	if input.SupplierID == "" {
		return CreatePurchaseInput{}, ErrPurchaseSupplierEmpty
	}
	if len(input.Lines) == 0 {
		return CreatePurchaseInput{}, ErrPurchaseNoLines
	}
	for i, line := range input.Lines {
		line.ProductID = strings.TrimSpace(line.ProductID)
		if line.ProductID == "" {
			return CreatePurchaseInput{}, apperrors.Newf(apperrors.CodePurchaseInvalidLine, "purchase line %d is missing a product", i+1)
		}
		if line.Qty < 1 {
			return CreatePurchaseInput{}, apperrors.Newf(apperrors.CodePurchaseInvalidLine, "purchase line %d quantity must be at least 1", i+1)
		}
		if line.UnitCost.IsNegative() {
			return CreatePurchaseInput{}, apperrors.Newf(apperrors.CodePurchaseInvalidLine, "purchase line %d unit cost must not be negative", i+1)
		}
		input.Lines[i] = line
	}
	input.Reference = strings.TrimSpace(input.Reference)
	return input, nil
}

// ReceivePurchase transitions a draft purchase to received at the given
// time. The caller posts stock inside the same transaction.
func ReceivePurchase(p Purchase, at time.Time) (Purchase, error) {
	if p.Status != PurchaseStatusDraft {
		return Purchase{}, ErrPurchaseNotDraft
	}
	receivedAt := at.UTC()
	p.Status = PurchaseStatusReceived
	p.ReceivedAt = &receivedAt
	p.UpdatedAt = receivedAt
	return p, nil
}

// CancelPurchase abandons a draft purchase.
func CancelPurchase(p Purchase, at time.Time) (Purchase, error) {
	if p.Status != PurchaseStatusDraft {
		return Purchase{}, ErrPurchaseNotDraft
	}
	p.Status = PurchaseStatusCancelled
	p.UpdatedAt = at.UTC()
	return p, nil
}
