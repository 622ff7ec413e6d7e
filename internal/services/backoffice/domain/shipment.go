package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
)

var (
	// ErrShipmentTrackingEmpty indicates a missing tracking code.
	ErrShipmentTrackingEmpty = apperrors.New(apperrors.CodeShipmentTrackingEmpty, "shipment tracking code is required")
	// ErrShipmentTerminal indicates a check on a delivered or returned shipment.
	ErrShipmentTerminal = apperrors.New(apperrors.CodeShipmentTerminal, "shipment already reached a terminal status")
)

// ShipmentStatus tracks a courier delivery.
type ShipmentStatus int

const (
	// ShipmentStatusUnspecified represents an invalid status value.
	ShipmentStatusUnspecified ShipmentStatus = iota
	// ShipmentStatusCreated is a shipment registered locally only.
	ShipmentStatusCreated
	// ShipmentStatusRegistered is a shipment the courier has accepted.
	ShipmentStatusRegistered
	// ShipmentStatusInTransit is a shipment moving through the network.
	ShipmentStatusInTransit
	// ShipmentStatusArrived is a shipment at the destination point.
	ShipmentStatusArrived
	// ShipmentStatusDelivered is a shipment handed to the recipient.
	ShipmentStatusDelivered
	// ShipmentStatusReturned is a shipment sent back to the store.
	ShipmentStatusReturned
)

// String returns the stable text form used in storage and over the API.
func (s ShipmentStatus) String() string {
	switch s {
	case ShipmentStatusCreated:
		return "created"
	case ShipmentStatusRegistered:
		return "registered"
	case ShipmentStatusInTransit:
		return "in-transit"
	case ShipmentStatusArrived:
		return "arrived"
	case ShipmentStatusDelivered:
		return "delivered"
	case ShipmentStatusReturned:
		return "returned"
	default:
		return "unspecified"
	}
}

// ParseShipmentStatus converts a text form back to a ShipmentStatus.
func ParseShipmentStatus(raw string) (ShipmentStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "created":
		return ShipmentStatusCreated, nil
	case "registered":
		return ShipmentStatusRegistered, nil
	case "in-transit":
		return ShipmentStatusInTransit, nil
	case "arrived":
		return ShipmentStatusArrived, nil
	case "delivered":
		return ShipmentStatusDelivered, nil
	case "returned":
		return ShipmentStatusReturned, nil
	default:
		return ShipmentStatusUnspecified, fmt.Errorf("unknown shipment status %q", raw)
	}
}

// Terminal reports whether the status ends the delivery lifecycle.
func (s ShipmentStatus) Terminal() bool {
	return s == ShipmentStatusDelivered || s == ShipmentStatusReturned
}

// Shipment represents one courier delivery attached to a sale.
type Shipment struct {
	ID            string
	SaleID        string
	Courier       string
	TrackingCode  string
	Status        ShipmentStatus
	LastCheckedAt *time.Time
	NextCheckAt   time.Time
	CheckAttempts int64
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ShipmentEvent is one timeline entry scraped from the courier page.
type ShipmentEvent struct {
	ID          string
	ShipmentID  string
	OccurredAt  time.Time
	Status      ShipmentStatus
	Location    string
	Description string
	CreatedAt   time.Time
}

// DedupeKey identifies an event within its shipment timeline. Courier
// pages repeat history on every fetch; the key keeps appends idempotent.
func (e ShipmentEvent) DedupeKey() string {
	return fmt.Sprintf("%d|%s", e.OccurredAt.UTC().UnixMilli(), e.Description)
}

// CreateShipmentInput describes the data needed to register a shipment.
type CreateShipmentInput struct {
	SaleID       string
	Courier      string
	TrackingCode string
}

// CreateShipment creates a shipment with a generated ID and timestamps.
// The first courier check is due immediately.
func CreateShipment(input CreateShipmentInput, now func() time.Time, idGenerator func() (string, error)) (Shipment, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.SaleID = strings.TrimSpace(input.SaleID)
	if input.SaleID == "" {
		return Shipment{}, ErrPaymentTargetMissing
	}
	input.TrackingCode = strings.TrimSpace(input.TrackingCode)
	if input.TrackingCode == "" {
		return Shipment{}, ErrShipmentTrackingEmpty
	}
	input.Courier = strings.TrimSpace(input.Courier)

	shipmentID, err := idGenerator()
	if err != nil {
		return Shipment{}, fmt.Errorf("generate shipment id: %w", err)
	}

	createdAt := now().UTC()
	return Shipment{
		ID:           shipmentID,
		SaleID:       input.SaleID,
		Courier:      input.Courier,
		TrackingCode: input.TrackingCode,
		Status:       ShipmentStatusCreated,
		NextCheckAt:  createdAt,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// MergeShipmentEvents returns the parsed events not yet present on the
// timeline, ordered oldest first. Existing events are matched by dedupe
// key.
func MergeShipmentEvents(existing, parsed []ShipmentEvent) []ShipmentEvent {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e.DedupeKey()] = true
	}

	var fresh []ShipmentEvent
	for _, e := range parsed {
		key := e.DedupeKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		fresh = append(fresh, e)
	}
	return fresh
}

// AdvanceShipmentStatus returns the status the shipment should carry
// after observing the given timeline. Terminal statuses never regress.
func AdvanceShipmentStatus(current ShipmentStatus, events []ShipmentEvent) ShipmentStatus {
	if current.Terminal() || len(events) == 0 {
		return current
	}
	latest := events[len(events)-1].Status
	if latest == ShipmentStatusUnspecified {
		return current
	}
	return latest
}
