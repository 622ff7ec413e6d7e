package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// RepairFilter narrows a repair listing.
type RepairFilter struct {
	ClientID string
	Status   string
}

// CreateRepair opens a repair order.
func (c *Client) CreateRepair(ctx context.Context, req apitypes.CreateRepairRequest) (apitypes.Repair, error) {
	var out apitypes.Repair
	err := c.do(ctx, http.MethodPost, "/v1/repairs", nil, req, &out)
	return out, err
}

// GetRepair loads one repair by ID.
func (c *Client) GetRepair(ctx context.Context, repairID string) (apitypes.Repair, error) {
	var out apitypes.Repair
	err := c.do(ctx, http.MethodGet, "/v1/repairs/"+url.PathEscape(repairID), nil, nil, &out)
	return out, err
}

// GetRepairByNumber loads one repair by its document number, e.g. R-000007.
func (c *Client) GetRepairByNumber(ctx context.Context, number string) (apitypes.Repair, error) {
	var out apitypes.Repair
	err := c.do(ctx, http.MethodGet, "/v1/repairs/number/"+url.PathEscape(number), nil, nil, &out)
	return out, err
}

// UpdateRepair patches an open repair.
func (c *Client) UpdateRepair(ctx context.Context, repairID string, req apitypes.UpdateRepairRequest) (apitypes.Repair, error) {
	var out apitypes.Repair
	err := c.do(ctx, http.MethodPatch, "/v1/repairs/"+url.PathEscape(repairID), nil, req, &out)
	return out, err
}

// TransitionRepair moves a repair along its lifecycle.
func (c *Client) TransitionRepair(ctx context.Context, repairID, status string) (apitypes.Repair, error) {
	var out apitypes.Repair
	req := apitypes.TransitionRepairRequest{Status: status}
	err := c.do(ctx, http.MethodPost, "/v1/repairs/"+url.PathEscape(repairID)+"/status", nil, req, &out)
	return out, err
}

// RecordRepairPayment applies a payment against a repair.
func (c *Client) RecordRepairPayment(ctx context.Context, repairID string, req apitypes.RecordPaymentRequest) (apitypes.Repair, error) {
	var out apitypes.Repair
	err := c.do(ctx, http.MethodPost, "/v1/repairs/"+url.PathEscape(repairID)+"/payments", nil, req, &out)
	return out, err
}

// ListRepairPayments returns the payment ledger of a repair.
func (c *Client) ListRepairPayments(ctx context.Context, repairID string) (apitypes.PaymentList, error) {
	var out apitypes.PaymentList
	err := c.do(ctx, http.MethodGet, "/v1/repairs/"+url.PathEscape(repairID)+"/payments", nil, nil, &out)
	return out, err
}

// ListRepairs pages through repairs, newest numbers first.
func (c *Client) ListRepairs(ctx context.Context, filter RepairFilter, page PageParams) (apitypes.RepairPage, error) {
	values := url.Values{}
	if filter.ClientID != "" {
		values.Set("client_id", filter.ClientID)
	}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	var out apitypes.RepairPage
	err := c.do(ctx, http.MethodGet, "/v1/repairs", page.apply(values), nil, &out)
	return out, err
}

// DepositFilter narrows a deposit listing.
type DepositFilter struct {
	ClientID string
	Status   string
}

// CreateDeposit takes money on hold for a client.
func (c *Client) CreateDeposit(ctx context.Context, req apitypes.CreateDepositRequest) (apitypes.Deposit, error) {
	var out apitypes.Deposit
	err := c.do(ctx, http.MethodPost, "/v1/deposits", nil, req, &out)
	return out, err
}

// GetDeposit loads one deposit by ID.
func (c *Client) GetDeposit(ctx context.Context, depositID string) (apitypes.Deposit, error) {
	var out apitypes.Deposit
	err := c.do(ctx, http.MethodGet, "/v1/deposits/"+url.PathEscape(depositID), nil, nil, &out)
	return out, err
}

// ApplyDeposit settles a held deposit against a sale.
func (c *Client) ApplyDeposit(ctx context.Context, depositID, saleID string) (apitypes.Deposit, error) {
	var out apitypes.Deposit
	req := apitypes.ApplyDepositRequest{SaleID: saleID}
	err := c.do(ctx, http.MethodPost, "/v1/deposits/"+url.PathEscape(depositID)+"/apply", nil, req, &out)
	return out, err
}

// RefundDeposit returns a held deposit to the client.
func (c *Client) RefundDeposit(ctx context.Context, depositID string) (apitypes.Deposit, error) {
	var out apitypes.Deposit
	err := c.do(ctx, http.MethodPost, "/v1/deposits/"+url.PathEscape(depositID)+"/refund", nil, nil, &out)
	return out, err
}

// ListDeposits pages through deposits.
func (c *Client) ListDeposits(ctx context.Context, filter DepositFilter, page PageParams) (apitypes.DepositPage, error) {
	values := url.Values{}
	if filter.ClientID != "" {
		values.Set("client_id", filter.ClientID)
	}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	var out apitypes.DepositPage
	err := c.do(ctx, http.MethodGet, "/v1/deposits", page.apply(values), nil, &out)
	return out, err
}
