package rest

import (
	"encoding/json"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func toClient(client domain.Client) apitypes.Client {
	return apitypes.Client{
		ID:               client.ID,
		FullName:         client.FullName,
		Phone:            client.Phone,
		Email:            client.Email,
		TelegramUsername: client.TelegramUsername,
		DiscountPercent:  client.DiscountPercent,
		Notes:            client.Notes,
		CreatedAt:        client.CreatedAt,
		UpdatedAt:        client.UpdatedAt,
	}
}

func toClientBalance(balance domain.ClientBalance) apitypes.ClientBalance {
	return apitypes.ClientBalance{
		ClientID:     balance.ClientID,
		Obligations:  int64(balance.Obligations),
		Paid:         int64(balance.Paid),
		HeldDeposits: int64(balance.HeldDeposits),
		Balance:      int64(balance.Balance()),
	}
}

func toSupplier(supplier domain.Supplier) apitypes.Supplier {
	return apitypes.Supplier{
		ID:          supplier.ID,
		Name:        supplier.Name,
		ContactName: supplier.ContactName,
		Phone:       supplier.Phone,
		Email:       supplier.Email,
		Notes:       supplier.Notes,
		CreatedAt:   supplier.CreatedAt,
		UpdatedAt:   supplier.UpdatedAt,
	}
}

func toProduct(product domain.Product) apitypes.Product {
	out := apitypes.Product{
		ID:         product.ID,
		SKU:        product.SKU,
		Name:       product.Name,
		Category:   product.Category.String(),
		Metal:      product.Metal.String(),
		WeightMg:   product.WeightMg,
		Size:       product.Size,
		SupplierID: product.SupplierID,
		Cost:       int64(product.Cost),
		Price:      int64(product.Price),
		StockQty:   product.StockQty,
		Status:     product.Status.String(),
		Notes:      product.Notes,
		CreatedAt:  product.CreatedAt,
		UpdatedAt:  product.UpdatedAt,
	}
	if margin, ok := product.Margin(); ok {
		out.MarginPercent = &margin
	}
	return out
}

func toPurchase(purchase domain.Purchase) apitypes.Purchase {
	out := apitypes.Purchase{
		ID:         purchase.ID,
		SupplierID: purchase.SupplierID,
		Reference:  purchase.Reference,
		Status:     purchase.Status.String(),
		Lines:      make([]apitypes.PurchaseLine, 0, len(purchase.Lines)),
		TotalCost:  int64(purchase.TotalCost()),
		ReceivedAt: purchase.ReceivedAt,
		CreatedAt:  purchase.CreatedAt,
		UpdatedAt:  purchase.UpdatedAt,
	}
	for _, line := range purchase.Lines {
		out.Lines = append(out.Lines, apitypes.PurchaseLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitCost:  int64(line.UnitCost),
		})
	}
	return out
}

func toSale(record storage.SaleRecord) apitypes.Sale {
	sale := record.Sale
	totals := sale.Totals()
	out := apitypes.Sale{
		ID:              sale.ID,
		Number:          sale.Number,
		ClientID:        sale.ClientID,
		Status:          sale.Status.String(),
		DiscountPercent: sale.DiscountPercent,
		Lines:           make([]apitypes.SaleLine, 0, len(sale.Lines)),
		Subtotal:        int64(totals.Subtotal),
		Discount:        int64(totals.Discount),
		Total:           int64(totals.Total),
		AmountPaid:      int64(record.AmountPaid),
		AmountDue:       int64(totals.Total.Sub(record.AmountPaid)),
		SoldAt:          sale.SoldAt,
		CreatedAt:       sale.CreatedAt,
		UpdatedAt:       sale.UpdatedAt,
	}
	if out.AmountDue < 0 {
		out.AmountDue = 0
	}
	for _, line := range sale.Lines {
		out.Lines = append(out.Lines, apitypes.SaleLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitPrice: int64(line.UnitPrice),
		})
	}
	return out
}

func toSaleSummary(summary storage.SaleSummary) apitypes.SaleSummary {
	out := apitypes.SaleSummary{
		Date:      summary.Day.Format("2006-01-02"),
		SaleCount: summary.SaleCount,
		Subtotal:  int64(summary.Subtotal),
		Discount:  int64(summary.Discount),
		Total:     int64(summary.Total),
		Paid:      int64(summary.Paid),
		ByMethod:  make([]apitypes.MethodTotal, 0, len(summary.ByMethod)),
	}
	for _, method := range summary.ByMethod {
		out.ByMethod = append(out.ByMethod, apitypes.MethodTotal{
			Method: method.Method.String(),
			Total:  int64(method.Total),
		})
	}
	return out
}

func toPayment(payment domain.Payment) apitypes.Payment {
	return apitypes.Payment{
		ID:         payment.ID,
		SaleID:     payment.SaleID,
		RepairID:   payment.RepairID,
		Amount:     int64(payment.Amount),
		Method:     payment.Method.String(),
		Note:       payment.Note,
		RecordedBy: payment.RecordedBy,
		PaidAt:     payment.PaidAt,
		CreatedAt:  payment.CreatedAt,
	}
}

func toSalePhoto(photo domain.SalePhoto) apitypes.SalePhoto {
	return apitypes.SalePhoto{
		ID:             photo.ID,
		SaleID:         photo.SaleID,
		FilePath:       photo.FilePath,
		Caption:        photo.Caption,
		SubmittedBy:    photo.SubmittedBy,
		SubmittedVia:   photo.SubmittedVia.String(),
		TelegramFileID: photo.TelegramFileID,
		CreatedAt:      photo.CreatedAt,
	}
}

func toRepair(record storage.RepairRecord) apitypes.Repair {
	repair := record.Repair
	out := apitypes.Repair{
		ID:              repair.ID,
		Number:          repair.Number,
		ClientID:        repair.ClientID,
		ItemDescription: repair.ItemDescription,
		Issue:           repair.Issue,
		Status:          repair.Status.String(),
		EstimatedPrice:  int64(repair.EstimatedPrice),
		FinalPrice:      int64(repair.FinalPrice),
		AmountPaid:      int64(record.AmountPaid),
		ReceivedAt:      repair.ReceivedAt,
		PromisedAt:      repair.PromisedAt,
		DeliveredAt:     repair.DeliveredAt,
		CreatedAt:       repair.CreatedAt,
		UpdatedAt:       repair.UpdatedAt,
	}
	if due := repair.FinalPrice.Sub(record.AmountPaid); due > 0 {
		out.AmountDue = int64(due)
	}
	return out
}

func toDeposit(deposit domain.Deposit) apitypes.Deposit {
	return apitypes.Deposit{
		ID:            deposit.ID,
		ClientID:      deposit.ClientID,
		Amount:        int64(deposit.Amount),
		Status:        deposit.Status.String(),
		Note:          deposit.Note,
		AppliedSaleID: deposit.AppliedSaleID,
		TakenAt:       deposit.TakenAt,
		SettledAt:     deposit.SettledAt,
		CreatedAt:     deposit.CreatedAt,
		UpdatedAt:     deposit.UpdatedAt,
	}
}

func toShipment(shipment domain.Shipment) apitypes.Shipment {
	return apitypes.Shipment{
		ID:            shipment.ID,
		SaleID:        shipment.SaleID,
		Courier:       shipment.Courier,
		TrackingCode:  shipment.TrackingCode,
		Status:        shipment.Status.String(),
		LastCheckedAt: shipment.LastCheckedAt,
		NextCheckAt:   shipment.NextCheckAt,
		CheckAttempts: shipment.CheckAttempts,
		LastError:     shipment.LastError,
		CreatedAt:     shipment.CreatedAt,
		UpdatedAt:     shipment.UpdatedAt,
	}
}

func toShipmentEvents(events []domain.ShipmentEvent) []apitypes.ShipmentEvent {
	out := make([]apitypes.ShipmentEvent, 0, len(events))
	for _, event := range events {
		out = append(out, apitypes.ShipmentEvent{
			OccurredAt:  event.OccurredAt,
			Status:      event.Status.String(),
			Location:    event.Location,
			Description: event.Description,
		})
	}
	return out
}

func toStaffUser(user domain.StaffUser) apitypes.StaffUser {
	return apitypes.StaffUser{
		ID:             user.ID,
		Username:       user.Username,
		DisplayName:    user.DisplayName,
		Role:           user.Role.String(),
		TelegramChatID: user.TelegramChatID,
		Active:         user.Active,
		CreatedAt:      user.CreatedAt,
	}
}

func toPricingRule(rule storage.PricingRule) apitypes.PricingRule {
	return apitypes.PricingRule{
		ID:        rule.ID,
		Name:      rule.Name,
		Source:    rule.Source,
		Active:    rule.Active,
		CreatedAt: rule.CreatedAt,
		UpdatedAt: rule.UpdatedAt,
	}
}

func toOutboxEvent(event storage.OutboxEvent) apitypes.OutboxEvent {
	return apitypes.OutboxEvent{
		ID:           event.ID,
		EventType:    event.EventType,
		Payload:      json.RawMessage(event.PayloadJSON),
		AttemptCount: event.AttemptCount,
		CreatedAt:    event.CreatedAt,
	}
}
