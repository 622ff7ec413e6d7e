package domain

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// ClientLookupInput represents the MCP tool input for client search.
type ClientLookupInput struct {
	Query string `json:"query" jsonschema:"name, phone, or telegram username fragment"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum rows to return, server default when zero"`
}

// ClientLookupResult represents the MCP tool output for client search.
type ClientLookupResult struct {
	Clients       []ClientEntry `json:"clients" jsonschema:"matching client records"`
	NextPageToken string        `json:"next_page_token,omitempty" jsonschema:"opaque token for the next page"`
}

// ClientEntry is one client record in a tool payload.
type ClientEntry struct {
	ID               string `json:"id"`
	FullName         string `json:"full_name"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	DiscountPercent  int64  `json:"discount_percent"`
}

// ClientBalanceInput represents the MCP tool input for a balance check.
type ClientBalanceInput struct {
	ClientID string `json:"client_id" jsonschema:"client identifier from client_lookup"`
}

// ClientBalanceResult represents the MCP tool output for a balance check.
// All amounts are minor currency units.
type ClientBalanceResult struct {
	ClientID     string `json:"client_id" jsonschema:"client identifier"`
	Obligations  int64  `json:"obligations" jsonschema:"total owed across sales and repairs"`
	Paid         int64  `json:"paid" jsonschema:"total paid across sales and repairs"`
	HeldDeposits int64  `json:"held_deposits" jsonschema:"deposits held on account"`
	Balance      int64  `json:"balance" jsonschema:"paid plus held deposits minus obligations; negative means the client owes"`
}

// ClientLookupTool defines the MCP tool schema for client search.
func ClientLookupTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "client_lookup",
		Description: "Finds client records by name, phone, or telegram username",
	}
}

// ClientBalanceTool defines the MCP tool schema for a balance check.
func ClientBalanceTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "client_balance",
		Description: "Reports the net money position of one client in minor currency units",
	}
}

// ClientLookupHandler executes a client search request.
func ClientLookupHandler(backoffice *client.Client) mcp.ToolHandlerFor[ClientLookupInput, ClientLookupResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ClientLookupInput) (*mcp.CallToolResult, ClientLookupResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		page, err := backoffice.ListClients(runCtx, input.Query, client.PageParams{PageSize: input.Limit})
		if err != nil {
			return nil, ClientLookupResult{}, fmt.Errorf("client lookup failed: %w", err)
		}

		result := ClientLookupResult{NextPageToken: page.NextPageToken}
		for _, record := range page.Clients {
			result.Clients = append(result.Clients, ClientEntry{
				ID:               record.ID,
				FullName:         record.FullName,
				Phone:            record.Phone,
				Email:            record.Email,
				TelegramUsername: record.TelegramUsername,
				DiscountPercent:  record.DiscountPercent,
			})
		}
		return nil, result, nil
	}
}

// ClientBalanceHandler executes a balance check request.
func ClientBalanceHandler(backoffice *client.Client) mcp.ToolHandlerFor[ClientBalanceInput, ClientBalanceResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ClientBalanceInput) (*mcp.CallToolResult, ClientBalanceResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		balance, err := backoffice.ClientBalance(runCtx, input.ClientID)
		if err != nil {
			return nil, ClientBalanceResult{}, fmt.Errorf("client balance failed: %w", err)
		}

		return nil, ClientBalanceResult{
			ClientID:     balance.ClientID,
			Obligations:  balance.Obligations,
			Paid:         balance.Paid,
			HeldDeposits: balance.HeldDeposits,
			Balance:      balance.Balance,
		}, nil
	}
}
