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
	// ErrRepairClientEmpty indicates a repair without a client.
	ErrRepairClientEmpty = apperrors.New(apperrors.CodeRepairClientEmpty, "repair client is required")
	// ErrRepairItemEmpty indicates a repair without an item description.
	ErrRepairItemEmpty = apperrors.New(apperrors.CodeRepairItemEmpty, "repair item description is required")
	// ErrRepairPriceUnset indicates delivery without an agreed final price.
	ErrRepairPriceUnset = apperrors.New(apperrors.CodeRepairPriceUnset, "repair final price is not set")
)

// RepairStatus tracks a repair order through the workshop.
type RepairStatus int

const (
	// RepairStatusUnspecified represents an invalid status value.
	RepairStatusUnspecified RepairStatus = iota
	// RepairStatusReceived is an item accepted from the client.
	RepairStatusReceived
	// RepairStatusInProgress is an item on the bench.
	RepairStatusInProgress
	// RepairStatusReady is a finished item awaiting pickup.
	RepairStatusReady
	// RepairStatusDelivered is an item returned to the client.
	RepairStatusDelivered
	// RepairStatusCancelled is an abandoned repair order.
	RepairStatusCancelled
)

// String returns the stable text form used in storage and over the API.
func (s RepairStatus) String() string {
	switch s {
	case RepairStatusReceived:
		return "received"
	case RepairStatusInProgress:
		return "in-progress"
	case RepairStatusReady:
		return "ready"
	case RepairStatusDelivered:
		return "delivered"
	case RepairStatusCancelled:
		return "cancelled"
	default:
		return "unspecified"
	}
}

// ParseRepairStatus converts a text form back to a RepairStatus.
func ParseRepairStatus(raw string) (RepairStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "received":
		return RepairStatusReceived, nil
	case "in-progress":
		return RepairStatusInProgress, nil
	case "ready":
		return RepairStatusReady, nil
	case "delivered":
		return RepairStatusDelivered, nil
	case "cancelled":
		return RepairStatusCancelled, nil
	default:
		return RepairStatusUnspecified, fmt.Errorf("unknown repair status %q", raw)
	}
}

// Repair represents one workshop repair order.
type Repair struct {
	ID              string
	Number          string
	ClientID        string
	ItemDescription string
	Issue           string
	Status          RepairStatus
	EstimatedPrice  money.Amount
	FinalPrice      money.Amount
	ReceivedAt      time.Time
	PromisedAt      *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateRepairInput describes the data needed to accept a repair.
type CreateRepairInput struct {
	ClientID        string
	ItemDescription string
	Issue           string
	EstimatedPrice  money.Amount
	PromisedAt      *time.Time
}

// CreateRepair creates a received repair with a generated ID and
// timestamps. The document number is assigned by storage on persist.
func CreateRepair(input CreateRepairInput, now func() time.Time, idGenerator func() (string, error)) (Repair, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateRepairInput(input)
	if err != nil {
		return Repair{}, err
	}

	repairID, err := idGenerator()
	if err != nil {
		return Repair{}, fmt.Errorf("generate repair id: %w", err)
	}

	createdAt := now().UTC()
	return Repair{
		ID:              repairID,
		ClientID:        normalized.ClientID,
		ItemDescription: normalized.ItemDescription,
		Issue:           normalized.Issue,
		Status:          RepairStatusReceived,
		EstimatedPrice:  normalized.EstimatedPrice,
		ReceivedAt:      createdAt,
		PromisedAt:      normalized.PromisedAt,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}, nil
}

// NormalizeCreateRepairInput trims and validates repair input.
func NormalizeCreateRepairInput(input CreateRepairInput) (CreateRepairInput, error) {
	input.ClientID = strings.TrimSpace(input.ClientID)
	if input.ClientID == "" {
		return CreateRepairInput{}, ErrRepairClientEmpty
	}
	input.ItemDescription = strings.TrimSpace(input.ItemDescription)
	if input.ItemDescription == "" {
		return CreateRepairInput{}, ErrRepairItemEmpty
	}
	if input.EstimatedPrice.IsNegative() {
		return CreateRepairInput{}, apperrors.New(apperrors.CodeProductNegativeAmount, "repair estimate must not be negative")
	}
	input.Issue = strings.TrimSpace(input.Issue)
	if input.PromisedAt != nil {
		promised := input.PromisedAt.UTC()
		input.PromisedAt = &promised
	}
	return input, nil
}

// repairTransitions lists the legal status moves.
var repairTransitions = map[RepairStatus][]RepairStatus{
	RepairStatusReceived:   {RepairStatusInProgress, RepairStatusCancelled},
	RepairStatusInProgress: {RepairStatusReady, RepairStatusCancelled},
	RepairStatusReady:      {RepairStatusDelivered, RepairStatusCancelled},
}

// CanTransitionRepair reports whether a repair may move between statuses.
func CanTransitionRepair(from, to RepairStatus) bool {
	for _, allowed := range repairTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionRepair applies a status change, enforcing the transition
// table and the payment gate on delivery: an item leaves the store only
// when the agreed price is set and fully covered by payments.
func TransitionRepair(r Repair, to RepairStatus, paid money.Amount, at time.Time) (Repair, error) {
	if !CanTransitionRepair(r.Status, to) {
		return Repair{}, apperrors.Newf(apperrors.CodeRepairInvalidTransition, "repair cannot move from %s to %s", r.Status, to)
	}
	if to == RepairStatusDelivered {
		if r.FinalPrice <= 0 {
			return Repair{}, ErrRepairPriceUnset
		}
		if paid < r.FinalPrice {
			return Repair{}, apperrors.Newf(apperrors.CodeRepairUnpaid, "repair %s has %d of %d paid", r.Number, paid, r.FinalPrice)
		}
	}

	now := at.UTC()
	r.Status = to
	if to == RepairStatusDelivered {
		r.DeliveredAt = &now
	}
	r.UpdatedAt = now
	return r, nil
}
