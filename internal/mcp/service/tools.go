package service

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/mcp/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

func registerCatalogTools(mcpServer *mcp.Server, backoffice *client.Client) {
	mcp.AddTool(mcpServer, domain.ProductSearchTool(), domain.ProductSearchHandler(backoffice))
	mcp.AddTool(mcpServer, domain.ClientLookupTool(), domain.ClientLookupHandler(backoffice))
	mcp.AddTool(mcpServer, domain.ClientBalanceTool(), domain.ClientBalanceHandler(backoffice))
}

func registerSaleTools(mcpServer *mcp.Server, backoffice *client.Client) {
	mcp.AddTool(mcpServer, domain.SaleSummaryTool(), domain.SaleSummaryHandler(backoffice))
	mcp.AddTool(mcpServer, domain.RecordSaleTool(), domain.RecordSaleHandler(backoffice))
}

func registerShippingTools(mcpServer *mcp.Server, backoffice *client.Client) {
	mcp.AddTool(mcpServer, domain.ShipmentTrackTool(), domain.ShipmentTrackHandler(backoffice))
}

// registerResources registers the readable ERP listings.
func registerResources(mcpServer *mcp.Server, backoffice *client.Client) {
	mcpServer.AddResource(domain.LowStockResource(), domain.LowStockResourceHandler(backoffice))
	mcpServer.AddResource(domain.RecentSalesResource(), domain.RecentSalesResourceHandler(backoffice))
}
