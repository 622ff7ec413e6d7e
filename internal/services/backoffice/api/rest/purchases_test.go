package rest

import (
	"net/http"
	"testing"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

func TestPurchaseReceiveLandsStockAndCost(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	supplier := env.createSupplier(t, token, "Zolotoy Dom")
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 1)

	rec := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		SupplierID: supplier.ID,
		Reference:  "invoice 77",
		Lines: []apitypes.PurchaseLineRequest{
			{ProductID: product.ID, Qty: 3, UnitCost: 55000},
		},
	})
	requireStatus(t, rec, http.StatusCreated)
	var purchase apitypes.Purchase
	decodeBody(t, rec, &purchase)
	if purchase.Status != "draft" {
		t.Fatalf("status = %q, want draft", purchase.Status)
	}
	if purchase.TotalCost != 165000 {
		t.Fatalf("total cost = %d, want 165000", purchase.TotalCost)
	}

	received := env.do(t, http.MethodPost, "/v1/purchases/"+purchase.ID+"/receive", token, nil)
	requireStatus(t, received, http.StatusOK)
	var posted apitypes.Purchase
	decodeBody(t, received, &posted)
	if posted.Status != "received" {
		t.Fatalf("status = %q, want received", posted.Status)
	}
	if posted.ReceivedAt == nil {
		t.Fatal("expected received_at to be set")
	}

	check := env.do(t, http.MethodGet, "/v1/products/"+product.ID, token, nil)
	requireStatus(t, check, http.StatusOK)
	var got apitypes.Product
	decodeBody(t, check, &got)
	if got.StockQty != 4 {
		t.Fatalf("stock = %d, want 4", got.StockQty)
	}
	if got.Cost != 55000 {
		t.Fatalf("cost = %d, want latest intake cost 55000", got.Cost)
	}
}

func TestReceivePurchaseTwiceRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	supplier := env.createSupplier(t, token, "Zolotoy Dom")
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 0)

	rec := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		SupplierID: supplier.ID,
		Lines:      []apitypes.PurchaseLineRequest{{ProductID: product.ID, Qty: 1, UnitCost: 50000}},
	})
	requireStatus(t, rec, http.StatusCreated)
	var purchase apitypes.Purchase
	decodeBody(t, rec, &purchase)

	first := env.do(t, http.MethodPost, "/v1/purchases/"+purchase.ID+"/receive", token, nil)
	requireStatus(t, first, http.StatusOK)

	second := env.do(t, http.MethodPost, "/v1/purchases/"+purchase.ID+"/receive", token, nil)
	requireStatus(t, second, http.StatusConflict)
	if code := errorCode(t, second); code != "PURCHASE_NOT_DRAFT" {
		t.Fatalf("error code = %q, want PURCHASE_NOT_DRAFT", code)
	}
}

func TestCreatePurchaseValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	supplier := env.createSupplier(t, token, "Zolotoy Dom")
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 0)

	noLines := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		SupplierID: supplier.ID,
	})
	requireStatus(t, noLines, http.StatusBadRequest)
	if code := errorCode(t, noLines); code != "PURCHASE_NO_LINES" {
		t.Fatalf("error code = %q, want PURCHASE_NO_LINES", code)
	}

	badLine := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		SupplierID: supplier.ID,
		Lines:      []apitypes.PurchaseLineRequest{{ProductID: product.ID, Qty: 0, UnitCost: 50000}},
	})
	requireStatus(t, badLine, http.StatusBadRequest)
	if code := errorCode(t, badLine); code != "PURCHASE_INVALID_LINE" {
		t.Fatalf("error code = %q, want PURCHASE_INVALID_LINE", code)
	}

	noSupplier := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		Lines: []apitypes.PurchaseLineRequest{{ProductID: product.ID, Qty: 1, UnitCost: 50000}},
	})
	requireStatus(t, noSupplier, http.StatusBadRequest)
	if code := errorCode(t, noSupplier); code != "PURCHASE_SUPPLIER_EMPTY" {
		t.Fatalf("error code = %q, want PURCHASE_SUPPLIER_EMPTY", code)
	}
}

func TestCancelPurchaseDraftOnly(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	supplier := env.createSupplier(t, token, "Zolotoy Dom")
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 0)

	rec := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
		SupplierID: supplier.ID,
		Lines:      []apitypes.PurchaseLineRequest{{ProductID: product.ID, Qty: 2, UnitCost: 50000}},
	})
	requireStatus(t, rec, http.StatusCreated)
	var purchase apitypes.Purchase
	decodeBody(t, rec, &purchase)

	cancelled := env.do(t, http.MethodPost, "/v1/purchases/"+purchase.ID+"/cancel", token, nil)
	requireStatus(t, cancelled, http.StatusOK)
	var got apitypes.Purchase
	decodeBody(t, cancelled, &got)
	if got.Status != "cancelled" {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}

	// Stock never moved for a cancelled draft.
	check := env.do(t, http.MethodGet, "/v1/products/"+product.ID, token, nil)
	requireStatus(t, check, http.StatusOK)
	var prod apitypes.Product
	decodeBody(t, check, &prod)
	if prod.StockQty != 0 {
		t.Fatalf("stock = %d, want 0", prod.StockQty)
	}

	receive := env.do(t, http.MethodPost, "/v1/purchases/"+purchase.ID+"/receive", token, nil)
	requireStatus(t, receive, http.StatusConflict)
}

func TestListPurchasesBySupplier(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	first := env.createSupplier(t, token, "Zolotoy Dom")
	second := env.createSupplier(t, token, "Serebro Trade")
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 0)

	for _, supplierID := range []string{first.ID, first.ID, second.ID} {
		rec := env.do(t, http.MethodPost, "/v1/purchases", token, apitypes.CreatePurchaseRequest{
			SupplierID: supplierID,
			Lines:      []apitypes.PurchaseLineRequest{{ProductID: product.ID, Qty: 1, UnitCost: 50000}},
		})
		requireStatus(t, rec, http.StatusCreated)
	}

	list := env.do(t, http.MethodGet, "/v1/purchases?supplier_id="+first.ID, token, nil)
	requireStatus(t, list, http.StatusOK)
	var page apitypes.PurchasePage
	decodeBody(t, list, &page)
	if len(page.Purchases) != 2 {
		t.Fatalf("purchases = %d, want 2", len(page.Purchases))
	}
}
