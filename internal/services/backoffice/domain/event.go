package domain

import (
	"encoding/json"
	"fmt"

	"github.com/atelier-erp/atelier/internal/platform/money"
)

// Notification event types dispatched through the outbox to the staff
// channel. The names are stable wire identifiers.
const (
	// EventSaleCreated fires when a sale is recorded.
	EventSaleCreated = "sale.created"
	// EventSalePaid fires when payments first cover a sale total.
	EventSalePaid = "sale.paid"
	// EventRepairReady fires when a repair is finished and awaits pickup.
	EventRepairReady = "repair.ready"
	// EventShipmentDelivered fires when the courier confirms delivery.
	EventShipmentDelivered = "shipment.delivered"
	// EventShipmentReturned fires when the courier returns a shipment.
	EventShipmentReturned = "shipment.returned"
)

// SaleEventPayload is the outbox payload for sale lifecycle events.
type SaleEventPayload struct {
	SaleID     string       `json:"sale_id"`
	Number     string       `json:"number"`
	ClientName string       `json:"client_name,omitempty"`
	Total      money.Amount `json:"total"`
	Paid       money.Amount `json:"paid"`
}

// RepairEventPayload is the outbox payload for repair lifecycle events.
type RepairEventPayload struct {
	RepairID   string       `json:"repair_id"`
	Number     string       `json:"number"`
	ClientName string       `json:"client_name,omitempty"`
	Item       string       `json:"item"`
	FinalPrice money.Amount `json:"final_price"`
}

// ShipmentEventPayload is the outbox payload for shipment lifecycle events.
type ShipmentEventPayload struct {
	ShipmentID   string `json:"shipment_id"`
	SaleNumber   string `json:"sale_number"`
	TrackingCode string `json:"tracking_code"`
	Status       string `json:"status"`
	Location     string `json:"location,omitempty"`
}

// MarshalEventPayload renders an outbox payload as canonical JSON.
func MarshalEventPayload(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}
	return string(raw), nil
}

// EventDedupeKey builds the outbox dedupe key for an event about one
// entity, so repeated triggers collapse to a single notification.
func EventDedupeKey(eventType, entityID string) string {
	return eventType + ":" + entityID
}
