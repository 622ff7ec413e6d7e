package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage/sqlite"
	"github.com/atelier-erp/atelier/internal/services/backoffice/tracking"
)

const (
	testServiceToken  = "test-service-token"
	testAdminPassword = "admin-password"
	testClerkPassword = "clerk-password"
)

// testClock is a mutable clock shared with the server under test.
type testClock struct {
	mu sync.Mutex
	at time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}

type testEnv struct {
	handler   http.Handler
	store     *sqlite.Store
	clock     *testClock
	mediaRoot string
}

func sequenceIDs(prefix string) func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWith(t, nil)
}

// newTestEnvWith builds a server over a temp database, seeded with an
// admin ("vera") and a clerk ("dasha"). A non-nil courier also wires
// the on-demand shipment checker.
func newTestEnvWith(t *testing.T, courier tracking.TimelineSource) *testEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "backoffice.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})

	clock := &testClock{at: time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)}
	mediaRoot := t.TempDir()
	cfg := Config{
		Store:        store,
		JWTSecret:    []byte("0123456789abcdef0123456789abcdef"),
		ServiceToken: testServiceToken,
		MediaRoot:    mediaRoot,
		Now:          clock.Now,
		NewID:        sequenceIDs("api"),
		Logf:         t.Logf,
	}
	if courier != nil {
		cfg.Courier = courier
		cfg.Tracker = tracking.NewPoller(store, courier, tracking.Config{}, nil, clock.Now)
	}
	server, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	env := &testEnv{handler: server.Handler(), store: store, clock: clock, mediaRoot: mediaRoot}
	env.seedStaff(t, "vera", testAdminPassword, domain.StaffRoleAdmin)
	env.seedStaff(t, "dasha", testClerkPassword, domain.StaffRoleClerk)
	return env
}

func (e *testEnv) seedStaff(t *testing.T, username, password string, role domain.StaffRole) domain.StaffUser {
	t.Helper()

	user, err := domain.CreateStaffUser(domain.CreateStaffUserInput{
		Username: username,
		Password: password,
		Role:     role,
	}, e.clock.Now, nil)
	if err != nil {
		t.Fatalf("create staff %s: %v", username, err)
	}
	if err := e.store.PutStaffUser(context.Background(), user); err != nil {
		t.Fatalf("persist staff %s: %v", username, err)
	}
	return user
}

// do issues one request against the server. A nil body sends no
// payload; anything else is marshalled as JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var resp apitypes.ErrorResponse
	decodeBody(t, rec, &resp)
	return resp.Error.Code
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/auth/login", "", apitypes.LoginRequest{
		Username: username,
		Password: password,
	})
	requireStatus(t, rec, http.StatusOK)
	var resp apitypes.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.Token == "" {
		t.Fatal("expected a bearer token")
	}
	return resp.Token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.login(t, "vera", testAdminPassword)
}

func (e *testEnv) clerkToken(t *testing.T) string {
	t.Helper()
	return e.login(t, "dasha", testClerkPassword)
}

func (e *testEnv) createClient(t *testing.T, token, name, phone string, discount int64) apitypes.Client {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/clients", token, apitypes.CreateClientRequest{
		FullName:        name,
		Phone:           phone,
		DiscountPercent: discount,
	})
	requireStatus(t, rec, http.StatusCreated)
	var client apitypes.Client
	decodeBody(t, rec, &client)
	return client
}

func (e *testEnv) createProduct(t *testing.T, token, sku string, cost, price int64, qty int64) apitypes.Product {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/products", token, apitypes.CreateProductRequest{
		SKU:      sku,
		Name:     "Product " + sku,
		Category: "ring",
		Metal:    "gold-585",
		WeightMg: 3200,
		Cost:     cost,
		Price:    price,
		StockQty: qty,
	})
	requireStatus(t, rec, http.StatusCreated)
	var product apitypes.Product
	decodeBody(t, rec, &product)
	return product
}

func (e *testEnv) createSale(t *testing.T, token, clientID string, lines ...apitypes.SaleLineRequest) apitypes.Sale {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/sales", token, apitypes.CreateSaleRequest{
		ClientID: clientID,
		Lines:    lines,
	})
	requireStatus(t, rec, http.StatusCreated)
	var sale apitypes.Sale
	decodeBody(t, rec, &sale)
	return sale
}

func (e *testEnv) recordSalePayment(t *testing.T, token, saleID string, amount int64, method string) apitypes.Sale {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v1/sales/"+saleID+"/payments", token, apitypes.RecordPaymentRequest{
		Amount: amount,
		Method: method,
	})
	requireStatus(t, rec, http.StatusCreated)
	var sale apitypes.Sale
	decodeBody(t, rec, &sale)
	return sale
}
