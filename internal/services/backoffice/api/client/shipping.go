package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// CreateShipment opens courier tracking for a sale.
func (c *Client) CreateShipment(ctx context.Context, saleID string, req apitypes.CreateShipmentRequest) (apitypes.Shipment, error) {
	var out apitypes.Shipment
	err := c.do(ctx, http.MethodPost, "/v1/sales/"+url.PathEscape(saleID)+"/shipment", nil, req, &out)
	return out, err
}

// GetSaleShipment loads the shipment attached to a sale.
func (c *Client) GetSaleShipment(ctx context.Context, saleID string) (apitypes.Shipment, error) {
	var out apitypes.Shipment
	err := c.do(ctx, http.MethodGet, "/v1/sales/"+url.PathEscape(saleID)+"/shipment", nil, nil, &out)
	return out, err
}

// GetShipment loads one shipment with its event timeline.
func (c *Client) GetShipment(ctx context.Context, shipmentID string) (apitypes.ShipmentDetail, error) {
	var out apitypes.ShipmentDetail
	err := c.do(ctx, http.MethodGet, "/v1/shipments/"+url.PathEscape(shipmentID), nil, nil, &out)
	return out, err
}

// ListShipments pages through shipments, optionally by status.
func (c *Client) ListShipments(ctx context.Context, status string, page PageParams) (apitypes.ShipmentPage, error) {
	values := url.Values{}
	if status != "" {
		values.Set("status", status)
	}
	var out apitypes.ShipmentPage
	err := c.do(ctx, http.MethodGet, "/v1/shipments", page.apply(values), nil, &out)
	return out, err
}

// CheckShipment runs an immediate courier check instead of waiting for
// the next poll.
func (c *Client) CheckShipment(ctx context.Context, shipmentID string) (apitypes.ShipmentDetail, error) {
	var out apitypes.ShipmentDetail
	err := c.do(ctx, http.MethodPost, "/v1/shipments/"+url.PathEscape(shipmentID)+"/check", nil, nil, &out)
	return out, err
}

// Track looks up a tracking code directly with the courier without
// creating a shipment.
func (c *Client) Track(ctx context.Context, trackingCode string) (apitypes.TrackResponse, error) {
	var out apitypes.TrackResponse
	req := apitypes.TrackRequest{TrackingCode: trackingCode}
	err := c.do(ctx, http.MethodPost, "/v1/track", nil, req, &out)
	return out, err
}
