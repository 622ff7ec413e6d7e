package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// recentSalesPageSize bounds the sales://recent resource payload.
const recentSalesPageSize = 10

// SaleSummaryInput represents the MCP tool input for a day summary.
type SaleSummaryInput struct {
	Date string `json:"date,omitempty" jsonschema:"calendar day as YYYY-MM-DD, empty means today"`
}

// SaleSummaryResult represents the MCP tool output for a day summary.
// All amounts are minor currency units.
type SaleSummaryResult struct {
	Date      string        `json:"date" jsonschema:"summarized calendar day"`
	SaleCount int64         `json:"sale_count" jsonschema:"number of sales recorded that day"`
	Subtotal  int64         `json:"subtotal" jsonschema:"line totals before discount"`
	Discount  int64         `json:"discount" jsonschema:"discount granted"`
	Total     int64         `json:"total" jsonschema:"revenue after discount"`
	Paid      int64         `json:"paid" jsonschema:"money actually received"`
	ByMethod  []MethodEntry `json:"by_method" jsonschema:"received money split by payment method"`
}

// MethodEntry is one payment-method subtotal in a summary payload.
type MethodEntry struct {
	Method string `json:"method"`
	Total  int64  `json:"total"`
}

// RecordSaleInput represents the MCP tool input for recording a sale.
type RecordSaleInput struct {
	ClientID        string           `json:"client_id,omitempty" jsonschema:"buying client identifier, empty for a walk-in"`
	DiscountPercent *int64           `json:"discount_percent,omitempty" jsonschema:"whole-percent discount; omitted falls back to the client's standing discount"`
	Lines           []RecordSaleLine `json:"lines" jsonschema:"items being sold"`
}

// RecordSaleLine is one requested line on a new sale.
type RecordSaleLine struct {
	ProductID string `json:"product_id" jsonschema:"catalog product identifier"`
	Qty       int64  `json:"qty" jsonschema:"units sold"`
	UnitPrice *int64 `json:"unit_price,omitempty" jsonschema:"minor-unit price override; omitted sells at the catalog price"`
}

// RecordSaleResult represents the MCP tool output for recording a sale.
// All amounts are minor currency units.
type RecordSaleResult struct {
	ID         string `json:"id" jsonschema:"sale identifier"`
	Number     string `json:"number" jsonschema:"document number, e.g. S-000123"`
	Status     string `json:"status" jsonschema:"payment status"`
	Subtotal   int64  `json:"subtotal" jsonschema:"line totals before discount"`
	Discount   int64  `json:"discount" jsonschema:"discount granted"`
	Total      int64  `json:"total" jsonschema:"amount owed after discount"`
	AmountPaid int64  `json:"amount_paid" jsonschema:"money received so far"`
	AmountDue  int64  `json:"amount_due" jsonschema:"money outstanding"`
	SoldAt     string `json:"sold_at" jsonschema:"sale timestamp, RFC 3339"`
}

// RecentSaleEntry is one sale in the recent-sales resource payload.
type RecentSaleEntry struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	ClientID   string `json:"client_id,omitempty"`
	Status     string `json:"status"`
	Total      int64  `json:"total"`
	AmountPaid int64  `json:"amount_paid"`
	AmountDue  int64  `json:"amount_due"`
	SoldAt     string `json:"sold_at"`
}

// RecentSalesPayload represents the MCP resource payload for the
// recent-sales listing. Amounts are minor currency units.
type RecentSalesPayload struct {
	Sales []RecentSaleEntry `json:"sales"`
}

// SaleSummaryTool defines the MCP tool schema for a day summary.
func SaleSummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "sale_summary",
		Description: "Aggregates one calendar day of sales: count, revenue, discount, and payment methods",
	}
}

// RecordSaleTool defines the MCP tool schema for recording a sale.
func RecordSaleTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "record_sale",
		Description: "Records a sale, decrementing stock for its lines. Prices are minor currency units.",
	}
}

// RecentSalesResource defines the MCP resource for the recent-sales listing.
func RecentSalesResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "recent_sales",
		Title:       "Recent sales",
		Description: "The most recently recorded sales with their payment state",
		MIMEType:    "application/json",
		URI:         "sales://recent",
	}
}

// SaleSummaryHandler executes a day summary request.
func SaleSummaryHandler(backoffice *client.Client) mcp.ToolHandlerFor[SaleSummaryInput, SaleSummaryResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input SaleSummaryInput) (*mcp.CallToolResult, SaleSummaryResult, error) {
		day, err := parseDay(input.Date)
		if err != nil {
			return nil, SaleSummaryResult{}, err
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		summary, err := backoffice.SaleSummary(runCtx, day)
		if err != nil {
			return nil, SaleSummaryResult{}, fmt.Errorf("sale summary failed: %w", err)
		}

		result := SaleSummaryResult{
			Date:      summary.Date,
			SaleCount: summary.SaleCount,
			Subtotal:  summary.Subtotal,
			Discount:  summary.Discount,
			Total:     summary.Total,
			Paid:      summary.Paid,
		}
		for _, method := range summary.ByMethod {
			result.ByMethod = append(result.ByMethod, MethodEntry{Method: method.Method, Total: method.Total})
		}
		return nil, result, nil
	}
}

// RecordSaleHandler executes a sale recording request.
func RecordSaleHandler(backoffice *client.Client) mcp.ToolHandlerFor[RecordSaleInput, RecordSaleResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input RecordSaleInput) (*mcp.CallToolResult, RecordSaleResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		req := apitypes.CreateSaleRequest{
			ClientID:        input.ClientID,
			DiscountPercent: input.DiscountPercent,
		}
		for _, line := range input.Lines {
			req.Lines = append(req.Lines, apitypes.SaleLineRequest{
				ProductID: line.ProductID,
				Qty:       line.Qty,
				UnitPrice: line.UnitPrice,
			})
		}

		sale, err := backoffice.CreateSale(runCtx, req)
		if err != nil {
			return nil, RecordSaleResult{}, fmt.Errorf("record sale failed: %w", err)
		}

		return nil, RecordSaleResult{
			ID:         sale.ID,
			Number:     sale.Number,
			Status:     sale.Status,
			Subtotal:   sale.Subtotal,
			Discount:   sale.Discount,
			Total:      sale.Total,
			AmountPaid: sale.AmountPaid,
			AmountDue:  sale.AmountDue,
			SoldAt:     formatTime(sale.SoldAt),
		}, nil
	}
}

// RecentSalesResourceHandler returns a readable recent-sales resource.
func RecentSalesResourceHandler(backoffice *client.Client) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if backoffice == nil {
			return nil, fmt.Errorf("back office client is not configured")
		}

		uri := RecentSalesResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		page, err := backoffice.ListSales(runCtx, client.SaleFilter{}, client.PageParams{PageSize: recentSalesPageSize})
		if err != nil {
			return nil, fmt.Errorf("recent sales listing failed: %w", err)
		}

		payload := RecentSalesPayload{}
		for _, sale := range page.Sales {
			payload.Sales = append(payload.Sales, RecentSaleEntry{
				ID:         sale.ID,
				Number:     sale.Number,
				ClientID:   sale.ClientID,
				Status:     sale.Status,
				Total:      sale.Total,
				AmountPaid: sale.AmountPaid,
				AmountDue:  sale.AmountDue,
				SoldAt:     formatTime(sale.SoldAt),
			})
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal recent sales listing: %w", err)
		}

		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(data),
				},
			},
		}, nil
	}
}

// parseDay interprets an optional YYYY-MM-DD tool argument. An empty
// value means the current day.
func parseDay(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Now(), nil
	}
	day, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q is not YYYY-MM-DD", value)
	}
	return day, nil
}

// formatTime returns an RFC 3339 timestamp or empty string for the zero
// time.
func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Format(time.RFC3339)
}
