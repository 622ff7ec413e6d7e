package telegram

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

func (b *Bot) renderSale(sale apitypes.Sale, clientName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sale %s (%s)\n", sale.Number, sale.Status)
	if clientName != "" {
		fmt.Fprintf(&sb, "Client: %s\n", clientName)
	}
	fmt.Fprintf(&sb, "Total: %s\n", b.format.Format(money.Amount(sale.Total)))
	fmt.Fprintf(&sb, "Paid: %s\n", b.format.Format(money.Amount(sale.AmountPaid)))
	fmt.Fprintf(&sb, "Due: %s\n", b.format.Format(money.Amount(sale.AmountDue)))
	fmt.Fprintf(&sb, "Sold: %s", sale.SoldAt.Format(dateLayout))
	return sb.String()
}

func (b *Bot) renderDaySummary(summary apitypes.SaleSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Sales for %s\n", summary.Date)
	fmt.Fprintf(&sb, "Count: %d\n", summary.SaleCount)
	if summary.Discount > 0 {
		fmt.Fprintf(&sb, "Discounts: %s\n", b.format.Format(money.Amount(summary.Discount)))
	}
	fmt.Fprintf(&sb, "Total: %s\n", b.format.Format(money.Amount(summary.Total)))
	fmt.Fprintf(&sb, "Paid: %s", b.format.Format(money.Amount(summary.Paid)))
	for _, method := range summary.ByMethod {
		fmt.Fprintf(&sb, "\n  %s: %s", method.Method, b.format.Format(money.Amount(method.Total)))
	}
	return sb.String()
}

func (b *Bot) renderClientMatches(clients []apitypes.Client, balance apitypes.ClientBalance) string {
	first := clients[0]
	var sb strings.Builder
	sb.WriteString(first.FullName)
	if first.Phone != "" {
		fmt.Fprintf(&sb, "\nPhone: %s", first.Phone)
	}
	if first.DiscountPercent > 0 {
		fmt.Fprintf(&sb, "\nDiscount: %d%%", first.DiscountPercent)
	}
	fmt.Fprintf(&sb, "\nBalance: %s", b.format.Format(money.Amount(balance.Balance)))
	if balance.Balance < 0 {
		fmt.Fprintf(&sb, " (owes %s)", b.format.Format(money.Amount(-balance.Balance)))
	}
	if balance.HeldDeposits > 0 {
		fmt.Fprintf(&sb, "\nHeld deposits: %s", b.format.Format(money.Amount(balance.HeldDeposits)))
	}
	if len(clients) > 1 {
		sb.WriteString("\nAlso matched:")
		for _, other := range clients[1:] {
			fmt.Fprintf(&sb, "\n  %s", other.FullName)
		}
	}
	return sb.String()
}

func (b *Bot) renderRepair(repair apitypes.Repair, clientName string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repair %s (%s)\n", repair.Number, repair.Status)
	if clientName != "" {
		fmt.Fprintf(&sb, "Client: %s\n", clientName)
	}
	fmt.Fprintf(&sb, "Item: %s\n", repair.ItemDescription)
	if repair.Issue != "" {
		fmt.Fprintf(&sb, "Issue: %s\n", repair.Issue)
	}
	switch {
	case repair.FinalPrice > 0:
		fmt.Fprintf(&sb, "Price: %s\n", b.format.Format(money.Amount(repair.FinalPrice)))
	case repair.EstimatedPrice > 0:
		fmt.Fprintf(&sb, "Estimate: %s\n", b.format.Format(money.Amount(repair.EstimatedPrice)))
	}
	if repair.AmountPaid > 0 {
		fmt.Fprintf(&sb, "Paid: %s\n", b.format.Format(money.Amount(repair.AmountPaid)))
	}
	if repair.PromisedAt != nil {
		fmt.Fprintf(&sb, "Promised: %s\n", repair.PromisedAt.Format(dateLayout))
	}
	fmt.Fprintf(&sb, "Received: %s", repair.ReceivedAt.Format(dateLayout))
	return sb.String()
}

// renderTrack shows the latest courier status with the tail of the
// timeline, newest entry last.
func (b *Bot) renderTrack(result apitypes.TrackResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", result.TrackingCode, result.LatestStatus)
	events := result.Events
	if len(events) > 5 {
		events = events[len(events)-5:]
	}
	for _, event := range events {
		fmt.Fprintf(&sb, "\n%s  %s", event.OccurredAt.Format("02 Jan 15:04"), event.Description)
		if event.Location != "" {
			fmt.Fprintf(&sb, " (%s)", event.Location)
		}
	}
	return sb.String()
}

// Outbox event types and payload shapes mirror the back-office wire
// constants. The bot keeps its own copies so the channel copy only
// depends on the published JSON.
const (
	eventSaleCreated       = "sale.created"
	eventSalePaid          = "sale.paid"
	eventRepairReady       = "repair.ready"
	eventShipmentDelivered = "shipment.delivered"
	eventShipmentReturned  = "shipment.returned"
)

type saleEventPayload struct {
	Number     string `json:"number"`
	ClientName string `json:"client_name"`
	Total      int64  `json:"total"`
	Paid       int64  `json:"paid"`
}

type repairEventPayload struct {
	Number     string `json:"number"`
	ClientName string `json:"client_name"`
	Item       string `json:"item"`
	FinalPrice int64  `json:"final_price"`
}

type shipmentEventPayload struct {
	SaleNumber   string `json:"sale_number"`
	TrackingCode string `json:"tracking_code"`
	Location     string `json:"location"`
}

// renderEvent turns one leased outbox event into staff-channel copy.
// Unknown types and undecodable payloads still produce a line so
// nothing leased goes silent.
func (b *Bot) renderEvent(event apitypes.OutboxEvent) string {
	switch event.EventType {
	case eventSaleCreated:
		var payload saleEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			break
		}
		text := fmt.Sprintf("New sale %s: %s", payload.Number, b.format.Format(money.Amount(payload.Total)))
		if payload.ClientName != "" {
			text += " for " + payload.ClientName
		}
		if payload.Paid > 0 {
			text += fmt.Sprintf(", paid %s", b.format.Format(money.Amount(payload.Paid)))
		}
		return text + "."
	case eventSalePaid:
		var payload saleEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			break
		}
		text := fmt.Sprintf("Sale %s fully paid: %s", payload.Number, b.format.Format(money.Amount(payload.Total)))
		if payload.ClientName != "" {
			text += " (" + payload.ClientName + ")"
		}
		return text + "."
	case eventRepairReady:
		var payload repairEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			break
		}
		text := fmt.Sprintf("Repair %s ready for pickup: %s", payload.Number, payload.Item)
		if payload.ClientName != "" {
			text += " for " + payload.ClientName
		}
		return text + fmt.Sprintf(", %s.", b.format.Format(money.Amount(payload.FinalPrice)))
	case eventShipmentDelivered:
		var payload shipmentEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			break
		}
		text := fmt.Sprintf("Shipment %s for sale %s delivered", payload.TrackingCode, payload.SaleNumber)
		if payload.Location != "" {
			text += " in " + payload.Location
		}
		return text + "."
	case eventShipmentReturned:
		var payload shipmentEventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			break
		}
		return fmt.Sprintf("Shipment %s for sale %s returned to sender.", payload.TrackingCode, payload.SaleNumber)
	}
	return "Notification: " + event.EventType + "."
}
