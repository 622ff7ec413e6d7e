package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// CreateClient registers a client record.
func (c *Client) CreateClient(ctx context.Context, req apitypes.CreateClientRequest) (apitypes.Client, error) {
	var out apitypes.Client
	err := c.do(ctx, http.MethodPost, "/v1/clients", nil, req, &out)
	return out, err
}

// GetClient loads one client by ID.
func (c *Client) GetClient(ctx context.Context, clientID string) (apitypes.Client, error) {
	var out apitypes.Client
	err := c.do(ctx, http.MethodGet, "/v1/clients/"+url.PathEscape(clientID), nil, nil, &out)
	return out, err
}

// UpdateClient patches a client record.
func (c *Client) UpdateClient(ctx context.Context, clientID string, req apitypes.UpdateClientRequest) (apitypes.Client, error) {
	var out apitypes.Client
	err := c.do(ctx, http.MethodPatch, "/v1/clients/"+url.PathEscape(clientID), nil, req, &out)
	return out, err
}

// ListClients pages through clients, optionally narrowed by a name,
// phone, or telegram search query.
func (c *Client) ListClients(ctx context.Context, query string, page PageParams) (apitypes.ClientPage, error) {
	values := url.Values{}
	if query != "" {
		values.Set("query", query)
	}
	var out apitypes.ClientPage
	err := c.do(ctx, http.MethodGet, "/v1/clients", page.apply(values), nil, &out)
	return out, err
}

// ClientBalance reports the net money position of a client.
func (c *Client) ClientBalance(ctx context.Context, clientID string) (apitypes.ClientBalance, error) {
	var out apitypes.ClientBalance
	err := c.do(ctx, http.MethodGet, "/v1/clients/"+url.PathEscape(clientID)+"/balance", nil, nil, &out)
	return out, err
}

// CreateSupplier registers a supplier.
func (c *Client) CreateSupplier(ctx context.Context, req apitypes.CreateSupplierRequest) (apitypes.Supplier, error) {
	var out apitypes.Supplier
	err := c.do(ctx, http.MethodPost, "/v1/suppliers", nil, req, &out)
	return out, err
}

// GetSupplier loads one supplier by ID.
func (c *Client) GetSupplier(ctx context.Context, supplierID string) (apitypes.Supplier, error) {
	var out apitypes.Supplier
	err := c.do(ctx, http.MethodGet, "/v1/suppliers/"+url.PathEscape(supplierID), nil, nil, &out)
	return out, err
}

// UpdateSupplier patches a supplier.
func (c *Client) UpdateSupplier(ctx context.Context, supplierID string, req apitypes.UpdateSupplierRequest) (apitypes.Supplier, error) {
	var out apitypes.Supplier
	err := c.do(ctx, http.MethodPatch, "/v1/suppliers/"+url.PathEscape(supplierID), nil, req, &out)
	return out, err
}

// ListSuppliers pages through suppliers.
func (c *Client) ListSuppliers(ctx context.Context, page PageParams) (apitypes.SupplierPage, error) {
	var out apitypes.SupplierPage
	err := c.do(ctx, http.MethodGet, "/v1/suppliers", page.apply(url.Values{}), nil, &out)
	return out, err
}

// ProductFilter narrows a product listing. Zero values are skipped; a
// nil MaxStock leaves the stock ceiling off.
type ProductFilter struct {
	Status   string
	Category string
	Metal    string
	Query    string
	MaxStock *int64
}

// CreateProduct registers a catalog item.
func (c *Client) CreateProduct(ctx context.Context, req apitypes.CreateProductRequest) (apitypes.Product, error) {
	var out apitypes.Product
	err := c.do(ctx, http.MethodPost, "/v1/products", nil, req, &out)
	return out, err
}

// GetProduct loads one product by ID.
func (c *Client) GetProduct(ctx context.Context, productID string) (apitypes.Product, error) {
	var out apitypes.Product
	err := c.do(ctx, http.MethodGet, "/v1/products/"+url.PathEscape(productID), nil, nil, &out)
	return out, err
}

// UpdateProduct patches a product.
func (c *Client) UpdateProduct(ctx context.Context, productID string, req apitypes.UpdateProductRequest) (apitypes.Product, error) {
	var out apitypes.Product
	err := c.do(ctx, http.MethodPatch, "/v1/products/"+url.PathEscape(productID), nil, req, &out)
	return out, err
}

// ListProducts pages through the catalog.
func (c *Client) ListProducts(ctx context.Context, filter ProductFilter, page PageParams) (apitypes.ProductPage, error) {
	values := url.Values{}
	if filter.Status != "" {
		values.Set("status", filter.Status)
	}
	if filter.Category != "" {
		values.Set("category", filter.Category)
	}
	if filter.Metal != "" {
		values.Set("metal", filter.Metal)
	}
	if filter.Query != "" {
		values.Set("query", filter.Query)
	}
	if filter.MaxStock != nil {
		values.Set("max_stock", fmt.Sprintf("%d", *filter.MaxStock))
	}
	var out apitypes.ProductPage
	err := c.do(ctx, http.MethodGet, "/v1/products", page.apply(values), nil, &out)
	return out, err
}

// SuggestPrice asks the pricing engine for a selling price.
func (c *Client) SuggestPrice(ctx context.Context, productID string) (apitypes.PriceSuggestion, error) {
	var out apitypes.PriceSuggestion
	err := c.do(ctx, http.MethodPost, "/v1/products/"+url.PathEscape(productID)+"/price-suggestion", nil, nil, &out)
	return out, err
}

// CreatePurchase opens a supplier intake batch.
func (c *Client) CreatePurchase(ctx context.Context, req apitypes.CreatePurchaseRequest) (apitypes.Purchase, error) {
	var out apitypes.Purchase
	err := c.do(ctx, http.MethodPost, "/v1/purchases", nil, req, &out)
	return out, err
}

// GetPurchase loads one purchase by ID.
func (c *Client) GetPurchase(ctx context.Context, purchaseID string) (apitypes.Purchase, error) {
	var out apitypes.Purchase
	err := c.do(ctx, http.MethodGet, "/v1/purchases/"+url.PathEscape(purchaseID), nil, nil, &out)
	return out, err
}

// ListPurchases pages through purchases, optionally for one supplier.
func (c *Client) ListPurchases(ctx context.Context, supplierID string, page PageParams) (apitypes.PurchasePage, error) {
	values := url.Values{}
	if supplierID != "" {
		values.Set("supplier_id", supplierID)
	}
	var out apitypes.PurchasePage
	err := c.do(ctx, http.MethodGet, "/v1/purchases", page.apply(values), nil, &out)
	return out, err
}

// ReceivePurchase posts a draft purchase, landing its stock.
func (c *Client) ReceivePurchase(ctx context.Context, purchaseID string) (apitypes.Purchase, error) {
	var out apitypes.Purchase
	err := c.do(ctx, http.MethodPost, "/v1/purchases/"+url.PathEscape(purchaseID)+"/receive", nil, nil, &out)
	return out, err
}

// CancelPurchase abandons a draft purchase.
func (c *Client) CancelPurchase(ctx context.Context, purchaseID string) (apitypes.Purchase, error) {
	var out apitypes.Purchase
	err := c.do(ctx, http.MethodPost, "/v1/purchases/"+url.PathEscape(purchaseID)+"/cancel", nil, nil, &out)
	return out, err
}

// PutPricingRule creates or replaces a pricing script. Admin only.
func (c *Client) PutPricingRule(ctx context.Context, req apitypes.PutPricingRuleRequest) (apitypes.PricingRule, error) {
	var out apitypes.PricingRule
	err := c.do(ctx, http.MethodPost, "/v1/pricing-rules", nil, req, &out)
	return out, err
}

// ListPricingRules lists all stored pricing scripts. Admin only.
func (c *Client) ListPricingRules(ctx context.Context) (apitypes.PricingRuleList, error) {
	var out apitypes.PricingRuleList
	err := c.do(ctx, http.MethodGet, "/v1/pricing-rules", nil, nil, &out)
	return out, err
}

// ActivatePricingRule makes one stored script the live rule. Admin only.
func (c *Client) ActivatePricingRule(ctx context.Context, ruleID string) (apitypes.PricingRule, error) {
	var out apitypes.PricingRule
	err := c.do(ctx, http.MethodPost, "/v1/pricing-rules/"+url.PathEscape(ruleID)+"/activate", nil, nil, &out)
	return out, err
}
