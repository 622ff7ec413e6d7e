package domain

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// ShipmentTrackInput represents the MCP tool input for courier tracking.
type ShipmentTrackInput struct {
	TrackingCode string `json:"tracking_code" jsonschema:"courier tracking code, e.g. RA644000001RU"`
}

// ShipmentTrackResult represents the MCP tool output for courier tracking.
type ShipmentTrackResult struct {
	TrackingCode string       `json:"tracking_code" jsonschema:"courier tracking code"`
	LatestStatus string       `json:"latest_status" jsonschema:"most recent courier status"`
	Events       []TrackEvent `json:"events" jsonschema:"courier scan history, oldest first"`
}

// TrackEvent is one courier scan in a tracking payload.
type TrackEvent struct {
	OccurredAt  string `json:"occurred_at"`
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// ShipmentTrackTool defines the MCP tool schema for courier tracking.
func ShipmentTrackTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "shipment_track",
		Description: "Fetches the courier scan history for a tracking code through the back office",
	}
}

// ShipmentTrackHandler executes a courier tracking request. The back
// office scrapes the courier site on demand, so this tool can run close
// to its timeout when the courier is slow.
func ShipmentTrackHandler(backoffice *client.Client) mcp.ToolHandlerFor[ShipmentTrackInput, ShipmentTrackResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input ShipmentTrackInput) (*mcp.CallToolResult, ShipmentTrackResult, error) {
		runCtx, cancel := context.WithTimeout(ctx, timeouts.APIRequest+timeouts.CourierFetch)
		defer cancel()

		track, err := backoffice.Track(runCtx, input.TrackingCode)
		if err != nil {
			return nil, ShipmentTrackResult{}, fmt.Errorf("shipment track failed: %w", err)
		}

		result := ShipmentTrackResult{
			TrackingCode: track.TrackingCode,
			LatestStatus: track.LatestStatus,
		}
		for _, event := range track.Events {
			result.Events = append(result.Events, TrackEvent{
				OccurredAt:  formatTime(event.OccurredAt),
				Status:      event.Status,
				Location:    event.Location,
				Description: event.Description,
			})
		}
		return nil, result, nil
	}
}
