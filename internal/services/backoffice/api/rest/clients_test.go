package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

func TestCreateAndGetClient(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)

	created := env.createClient(t, token, "Anna Sokolova", "+7 915 123-45-67", 5)
	if created.Phone != "+79151234567" {
		t.Fatalf("phone = %q, want normalized %q", created.Phone, "+79151234567")
	}
	if created.DiscountPercent != 5 {
		t.Fatalf("discount = %d, want 5", created.DiscountPercent)
	}

	rec := env.do(t, http.MethodGet, "/v1/clients/"+created.ID, token, nil)
	requireStatus(t, rec, http.StatusOK)
	var got apitypes.Client
	decodeBody(t, rec, &got)
	if got.FullName != "Anna Sokolova" {
		t.Fatalf("full name = %q, want %q", got.FullName, "Anna Sokolova")
	}
}

func TestCreateClientValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)

	noName := env.do(t, http.MethodPost, "/v1/clients", token, apitypes.CreateClientRequest{Phone: "+79150000000"})
	requireStatus(t, noName, http.StatusBadRequest)
	if code := errorCode(t, noName); code != "CLIENT_NAME_EMPTY" {
		t.Fatalf("error code = %q, want CLIENT_NAME_EMPTY", code)
	}

	badDiscount := env.do(t, http.MethodPost, "/v1/clients", token, apitypes.CreateClientRequest{
		FullName:        "Greedy",
		DiscountPercent: 120,
	})
	requireStatus(t, badDiscount, http.StatusBadRequest)
	if code := errorCode(t, badDiscount); code != "CLIENT_DISCOUNT_RANGE" {
		t.Fatalf("error code = %q, want CLIENT_DISCOUNT_RANGE", code)
	}
}

func TestCreateClientRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/clients", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+env.clerkToken(t))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	requireStatus(t, rec, http.StatusBadRequest)
	if code := errorCode(t, rec); code != "BAD_REQUEST" {
		t.Fatalf("error code = %q, want BAD_REQUEST", code)
	}
}

func TestUpdateClientPatchesOnlySentFields(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	created := env.createClient(t, token, "Anna Sokolova", "+79151234567", 0)

	notes := "prefers silver"
	discount := int64(10)
	rec := env.do(t, http.MethodPatch, "/v1/clients/"+created.ID, token, apitypes.UpdateClientRequest{
		Notes:           &notes,
		DiscountPercent: &discount,
	})
	requireStatus(t, rec, http.StatusOK)
	var updated apitypes.Client
	decodeBody(t, rec, &updated)
	if updated.FullName != "Anna Sokolova" {
		t.Fatalf("full name = %q, want unchanged", updated.FullName)
	}
	if updated.Notes != notes {
		t.Fatalf("notes = %q, want %q", updated.Notes, notes)
	}
	if updated.DiscountPercent != 10 {
		t.Fatalf("discount = %d, want 10", updated.DiscountPercent)
	}
	if updated.Phone != "+79151234567" {
		t.Fatalf("phone = %q, want unchanged", updated.Phone)
	}
}

func TestUpdateClientRejectsInvalidPatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	created := env.createClient(t, token, "Anna Sokolova", "", 0)

	empty := ""
	rec := env.do(t, http.MethodPatch, "/v1/clients/"+created.ID, token, apitypes.UpdateClientRequest{
		FullName: &empty,
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestGetClientMissing(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/clients/none", env.clerkToken(t), nil)
	requireStatus(t, rec, http.StatusNotFound)
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want NOT_FOUND", code)
	}
}

func TestListClientsSearchAndPagination(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	env.createClient(t, token, "Anna Sokolova", "+79151111111", 0)
	env.createClient(t, token, "Boris Orlov", "+79152222222", 0)
	env.createClient(t, token, "Darya Sokolova", "+79153333333", 0)

	search := env.do(t, http.MethodGet, "/v1/clients?query=Sokolova", token, nil)
	requireStatus(t, search, http.StatusOK)
	var matches apitypes.ClientPage
	decodeBody(t, search, &matches)
	if len(matches.Clients) != 2 {
		t.Fatalf("search len = %d, want 2", len(matches.Clients))
	}

	pageOne := env.do(t, http.MethodGet, "/v1/clients?page_size=2", token, nil)
	requireStatus(t, pageOne, http.StatusOK)
	var first apitypes.ClientPage
	decodeBody(t, pageOne, &first)
	if len(first.Clients) != 2 {
		t.Fatalf("page one len = %d, want 2", len(first.Clients))
	}
	if first.NextPageToken == "" {
		t.Fatal("expected page one next token")
	}

	pageTwo := env.do(t, http.MethodGet, "/v1/clients?page_size=2&page_token="+first.NextPageToken, token, nil)
	requireStatus(t, pageTwo, http.StatusOK)
	var second apitypes.ClientPage
	decodeBody(t, pageTwo, &second)
	if len(second.Clients) != 1 {
		t.Fatalf("page two len = %d, want 1", len(second.Clients))
	}
	if second.NextPageToken != "" {
		t.Fatalf("page two next token = %q, want empty", second.NextPageToken)
	}
}

func TestClientBalanceEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	client := env.createClient(t, token, "Anna Sokolova", "+79151234567", 0)
	product := env.createProduct(t, token, "RING-001", 60000, 120000, 3)

	sale := env.createSale(t, token, client.ID, apitypes.SaleLineRequest{ProductID: product.ID, Qty: 1})
	env.recordSalePayment(t, token, sale.ID, 50000, "cash")

	rec := env.do(t, http.MethodGet, "/v1/clients/"+client.ID+"/balance", token, nil)
	requireStatus(t, rec, http.StatusOK)
	var balance apitypes.ClientBalance
	decodeBody(t, rec, &balance)
	if balance.Obligations != 120000 {
		t.Fatalf("obligations = %d, want 120000", balance.Obligations)
	}
	if balance.Paid != 50000 {
		t.Fatalf("paid = %d, want 50000", balance.Paid)
	}
	if balance.Balance != -70000 {
		t.Fatalf("balance = %d, want -70000", balance.Balance)
	}
}
