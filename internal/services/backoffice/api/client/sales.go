package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// SaleFilter narrows a sale listing.
type SaleFilter struct {
	ClientID string
	Status   string
}

// CreateSale records a sale and decrements stock for its lines.
func (c *Client) CreateSale(ctx context.Context, req apitypes.CreateSaleRequest) (apitypes.Sale, error) {
	var out apitypes.Sale
	err := c.do(ctx, http.MethodPost, "/v1/sales", nil, req, &out)
	return out, err
}

// GetSale loads one sale by ID.
func (c *Client) GetSale(ctx context.Context, saleID string) (apitypes.Sale, error) {
	var out apitypes.Sale
	err := c.do(ctx, http.MethodGet, "/v1/sales/"+url.PathEscape(saleID), nil, nil, &out)
	return out, err
}

// GetSaleByNumber loads one sale by its document number, e.g. S-000042.
func (c *Client) GetSaleByNumber(ctx context.Context, number string) (apitypes.Sale, error) {
	var out apitypes.Sale
	err := c.do(ctx, http.MethodGet, "/v1/sales/number/"+url.PathEscape(number), nil, nil, &out)
	return out, err
}

// ListSales pages through sales.
func (c *Client) ListSales(ctx context.Context, filter SaleFilter, page PageParams) (apitypes.SalePage, error) {
	values := url.Values{}
	if filter.ClientID != "" {
		values.Set("client_id", filter.ClientID)
	}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	var out apitypes.SalePage
	err := c.do(ctx, http.MethodGet, "/v1/sales", page.apply(values), nil, &out)
	return out, err
}

// CancelSale voids an unpaid sale and restores its stock.
func (c *Client) CancelSale(ctx context.Context, saleID string) (apitypes.Sale, error) {
	var out apitypes.Sale
	err := c.do(ctx, http.MethodPost, "/v1/sales/"+url.PathEscape(saleID)+"/cancel", nil, nil, &out)
	return out, err
}

// RecordSalePayment applies a payment against a sale.
func (c *Client) RecordSalePayment(ctx context.Context, saleID string, req apitypes.RecordPaymentRequest) (apitypes.Sale, error) {
	var out apitypes.Sale
	err := c.do(ctx, http.MethodPost, "/v1/sales/"+url.PathEscape(saleID)+"/payments", nil, req, &out)
	return out, err
}

// ListSalePayments returns the payment ledger of a sale.
func (c *Client) ListSalePayments(ctx context.Context, saleID string) (apitypes.PaymentList, error) {
	var out apitypes.PaymentList
	err := c.do(ctx, http.MethodGet, "/v1/sales/"+url.PathEscape(saleID)+"/payments", nil, nil, &out)
	return out, err
}

// SaleSummary reports totals for one local calendar day.
func (c *Client) SaleSummary(ctx context.Context, day time.Time) (apitypes.SaleSummary, error) {
	values := url.Values{}
	values.Set("date", day.Format("2006-01-02"))
	var out apitypes.SaleSummary
	err := c.do(ctx, http.MethodGet, "/v1/sales/summary", values, nil, &out)
	return out, err
}

// UploadSalePhotoInput carries one photo upload. Data is read fully
// into the multipart body before the request is sent.
type UploadSalePhotoInput struct {
	FileName       string
	Data           io.Reader
	Caption        string
	SubmittedVia   string
	TelegramFileID string
}

// UploadSalePhoto attaches a photo to a sale.
func (c *Client) UploadSalePhoto(ctx context.Context, saleID string, in UploadSalePhotoInput) (apitypes.SalePhoto, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	name := in.FileName
	if name == "" {
		name = "photo"
	}
	part, err := writer.CreateFormFile("photo", name)
	if err != nil {
		return apitypes.SalePhoto{}, fmt.Errorf("create photo part: %w", err)
	}
	if _, err := io.Copy(part, in.Data); err != nil {
		return apitypes.SalePhoto{}, fmt.Errorf("copy photo: %w", err)
	}
	fields := map[string]string{
		"caption":          in.Caption,
		"submitted_via":    in.SubmittedVia,
		"telegram_file_id": in.TelegramFileID,
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return apitypes.SalePhoto{}, fmt.Errorf("write %s field: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return apitypes.SalePhoto{}, fmt.Errorf("close multipart body: %w", err)
	}

	endpoint := c.baseURL + "/v1/sales/" + url.PathEscape(saleID) + "/photos"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return apitypes.SalePhoto{}, fmt.Errorf("build photo request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var out apitypes.SalePhoto
	if err := c.send(req, &out); err != nil {
		return apitypes.SalePhoto{}, err
	}
	return out, nil
}

// ListSalePhotos returns the photos attached to a sale.
func (c *Client) ListSalePhotos(ctx context.Context, saleID string) (apitypes.SalePhotoList, error) {
	var out apitypes.SalePhotoList
	err := c.do(ctx, http.MethodGet, "/v1/sales/"+url.PathEscape(saleID)+"/photos", nil, nil, &out)
	return out, err
}
