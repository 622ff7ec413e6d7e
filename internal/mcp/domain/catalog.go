package domain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// lowStockThreshold is the stock ceiling for the low-stock resource.
const lowStockThreshold int64 = 2

// ProductSearchInput represents the MCP tool input for catalog search.
type ProductSearchInput struct {
	Query    string `json:"query,omitempty" jsonschema:"free text matched against sku and name"`
	Category string `json:"category,omitempty" jsonschema:"product category, e.g. ring, necklace, earrings"`
	Metal    string `json:"metal,omitempty" jsonschema:"metal kind, e.g. gold-585, silver-925"`
	Status   string `json:"status,omitempty" jsonschema:"lifecycle status: draft, in-stock, sold, archived"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum rows to return, server default when zero"`
}

// ProductSearchResult represents the MCP tool output for catalog search.
type ProductSearchResult struct {
	Products      []ProductEntry `json:"products" jsonschema:"matching catalog items"`
	NextPageToken string         `json:"next_page_token,omitempty" jsonschema:"opaque token for the next page"`
}

// ProductEntry is one catalog item in a tool or resource payload.
type ProductEntry struct {
	ID       string `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Metal    string `json:"metal"`
	Price    int64  `json:"price"`
	StockQty int64  `json:"stock_qty"`
	Status   string `json:"status"`
}

// LowStockPayload represents the MCP resource payload for the low-stock
// listing. Prices are minor currency units.
type LowStockPayload struct {
	Threshold int64          `json:"threshold"`
	Products  []ProductEntry `json:"products"`
}

// ProductSearchTool defines the MCP tool schema for catalog search.
func ProductSearchTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "product_search",
		Description: "Searches the jewelry catalog by text, category, metal, and status. Prices are minor currency units.",
	}
}

// LowStockResource defines the MCP resource for the low-stock listing.
func LowStockResource() *mcp.Resource {
	return &mcp.Resource{
		Name:        "low_stock",
		Title:       "Low stock",
		Description: "Sellable products whose stock is at or below the reorder threshold",
		MIMEType:    "application/json",
		URI:         "products://low-stock",
	}
}

// ProductSearchHandler executes a catalog search request.
func ProductSearchHandler(backoffice *client.Client) mcp.ToolHandlerFor[ProductSearchInput, ProductSearchResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ProductSearchInput) (*mcp.CallToolResult, ProductSearchResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		page, err := backoffice.ListProducts(runCtx, client.ProductFilter{
			Query:    input.Query,
			Category: input.Category,
			Metal:    input.Metal,
			Status:   input.Status,
		}, client.PageParams{PageSize: input.Limit})
		if err != nil {
			return nil, ProductSearchResult{}, fmt.Errorf("product search failed: %w", err)
		}

		result := ProductSearchResult{NextPageToken: page.NextPageToken}
		for _, product := range page.Products {
			result.Products = append(result.Products, ProductEntry{
				ID:       product.ID,
				SKU:      product.SKU,
				Name:     product.Name,
				Category: product.Category,
				Metal:    product.Metal,
				Price:    product.Price,
				StockQty: product.StockQty,
				Status:   product.Status,
			})
		}
		return nil, result, nil
	}
}

// LowStockResourceHandler returns a readable low-stock listing resource.
func LowStockResourceHandler(backoffice *client.Client) mcp.ResourceHandler {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		if backoffice == nil {
			return nil, fmt.Errorf("back office client is not configured")
		}

		uri := LowStockResource().URI
		if req != nil && req.Params != nil && req.Params.URI != "" {
			uri = req.Params.URI
		}

		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest)
		defer cancel()

		threshold := lowStockThreshold
		page, err := backoffice.ListProducts(runCtx, client.ProductFilter{
			Status:   "in-stock",
			MaxStock: &threshold,
		}, client.PageParams{})
		if err != nil {
			return nil, fmt.Errorf("low stock listing failed: %w", err)
		}

		payload := LowStockPayload{Threshold: threshold}
		for _, product := range page.Products {
			payload.Products = append(payload.Products, ProductEntry{
				ID:       product.ID,
				SKU:      product.SKU,
				Name:     product.Name,
				Category: product.Category,
				Metal:    product.Metal,
				Price:    product.Price,
				StockQty: product.StockQty,
				Status:   product.Status,
			})
		}

		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal low stock listing: %w", err)
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
