// Package service tests the MCP bridge wiring.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/atelier-erp/atelier/internal/mcp/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/client"
)

// failingTransport returns a connection error for tests.
type failingTransport struct{}

// Connect returns the configured error for tests.
func (f failingTransport) Connect(context.Context) (mcp.Connection, error) {
	return nil, errors.New("transport failure")
}

func newBackofficeClient(t *testing.T, mux *http.ServeMux) *client.Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	backoffice, err := client.New(client.Config{BaseURL: srv.URL, Token: "svc-token", HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}
	return backoffice
}

func healthyClient(t *testing.T) *client.Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return newBackofficeClient(t, mux)
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func writeAPIError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	writeJSON(t, w, status, apitypes.ErrorResponse{Error: apitypes.ErrorBody{Code: code, Message: message}})
}

func TestNewRequiresClient(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestNewConfiguresServer(t *testing.T) {
	t.Parallel()

	server, err := New(healthyClient(t))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if server == nil || server.mcpServer == nil {
		t.Fatal("expected configured server")
	}
}

func TestServeRequiresConfiguredServer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		server *Server
	}{
		{name: "nil server", server: nil},
		{name: "missing mcp server", server: &Server{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.server.Serve(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunRequiresAPIBaseURL(t *testing.T) {
	t.Parallel()

	if err := Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for missing api base url")
	}
}

func TestRunRejectsUnknownTransport(t *testing.T) {
	t.Parallel()

	err := Run(context.Background(), Config{APIBaseURL: "http://127.0.0.1:1", Transport: "carrier-pigeon"})
	if err == nil || !strings.Contains(err.Error(), "not supported") {
		t.Fatalf("expected unsupported transport error, got %v", err)
	}
}

func TestServeStopsOnContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- runWithTransport(ctx, healthyClient(t), serverTransport)
	}()

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "v0.0.1"}, nil)
	clientCtx, clientCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer clientCancel()
	clientSession, err := mcpClient.Connect(clientCtx, clientTransport, nil)
	if err != nil {
		t.Fatalf("connect client: %v", err)
	}
	defer clientSession.Close()

	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestRunReturnsTransportError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := runWithTransport(ctx, healthyClient(t), failingTransport{}); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestWaitForHealthRetriesUntilHealthy(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	server := &Server{backoffice: newBackofficeClient(t, mux)}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := server.waitForHealth(ctx); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
	if got := calls.Load(); got < 3 {
		t.Fatalf("expected at least 3 probes, got %d", got)
	}
}

func TestWaitForHealthStopsOnContext(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	server := &Server{backoffice: newBackofficeClient(t, mux)}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	err := server.waitForHealth(ctx)
	if err == nil || !strings.Contains(err.Error(), "wait for back office health") {
		t.Fatalf("expected health wait error, got %v", err)
	}
}

func TestWaitForHealthMissingClient(t *testing.T) {
	t.Parallel()

	server := &Server{}
	if err := server.waitForHealth(context.Background()); err == nil {
		t.Fatal("expected error for missing client")
	}
}

func TestProductSearchHandlerMapsRequestAndResponse(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/products", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "emerald" || q.Get("category") != "ring" || q.Get("metal") != "gold-585" {
			t.Errorf("unexpected filter query %q", r.URL.RawQuery)
		}
		if q.Get("page_size") != "5" {
			t.Errorf("expected page_size 5, got %q", q.Get("page_size"))
		}
		writeJSON(t, w, http.StatusOK, apitypes.ProductPage{
			Products: []apitypes.Product{{
				ID:       "p1",
				SKU:      "R-EM-001",
				Name:     "Emerald ring",
				Category: "ring",
				Metal:    "gold-585",
				Price:    1250000,
				StockQty: 1,
				Status:   "in-stock",
			}},
			NextPageToken: "next",
		})
	})

	handler := domain.ProductSearchHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.ProductSearchInput{
		Query:    "emerald",
		Category: "ring",
		Metal:    "gold-585",
		Limit:    5,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if len(output.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(output.Products))
	}
	entry := output.Products[0]
	if entry.SKU != "R-EM-001" || entry.Price != 1250000 || entry.StockQty != 1 {
		t.Fatalf("unexpected product entry: %+v", entry)
	}
	if output.NextPageToken != "next" {
		t.Fatalf("expected next page token, got %q", output.NextPageToken)
	}
}

func TestProductSearchHandlerReturnsClientError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/products", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusInternalServerError, "INTERNAL", "boom")
	})

	handler := domain.ProductSearchHandler(newBackofficeClient(t, mux))
	result, _, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.ProductSearchInput{Query: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Fatal("expected nil result on error")
	}
}

func TestClientLookupHandlerMapsResults(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/clients", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "anna" {
			t.Errorf("expected query anna, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, apitypes.ClientPage{Clients: []apitypes.Client{
			{ID: "c1", FullName: "Anna Sokolova", Phone: "+7 900 000-00-01", DiscountPercent: 5},
			{ID: "c2", FullName: "Anna Petrova", TelegramUsername: "apetrova"},
		}})
	})

	handler := domain.ClientLookupHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.ClientLookupInput{Query: "anna"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if len(output.Clients) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(output.Clients))
	}
	if output.Clients[0].FullName != "Anna Sokolova" || output.Clients[0].DiscountPercent != 5 {
		t.Fatalf("unexpected first client: %+v", output.Clients[0])
	}
	if output.Clients[1].TelegramUsername != "apetrova" {
		t.Fatalf("unexpected second client: %+v", output.Clients[1])
	}
}

func TestClientBalanceHandlerMapsResponse(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/clients/{clientID}/balance", func(w http.ResponseWriter, r *http.Request) {
		if got := r.PathValue("clientID"); got != "c1" {
			t.Errorf("expected client c1, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, apitypes.ClientBalance{
			ClientID:     "c1",
			Obligations:  1500000,
			Paid:         1200000,
			HeldDeposits: 100000,
			Balance:      -200000,
		})
	})

	handler := domain.ClientBalanceHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.ClientBalanceInput{ClientID: "c1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if output.Balance != -200000 || output.HeldDeposits != 100000 {
		t.Fatalf("unexpected balance output: %+v", output)
	}
}

func TestSaleSummaryHandlerUsesDateArgument(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sales/summary", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("date"); got != "2026-04-01" {
			t.Errorf("expected date 2026-04-01, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, apitypes.SaleSummary{
			Date:      "2026-04-01",
			SaleCount: 3,
			Subtotal:  4300000,
			Discount:  180000,
			Total:     4120000,
			Paid:      2000000,
			ByMethod: []apitypes.MethodTotal{
				{Method: "cash", Total: 2000000},
			},
		})
	})

	handler := domain.SaleSummaryHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.SaleSummaryInput{Date: "2026-04-01"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if output.SaleCount != 3 || output.Total != 4120000 || output.Discount != 180000 {
		t.Fatalf("unexpected summary output: %+v", output)
	}
	if len(output.ByMethod) != 1 || output.ByMethod[0].Method != "cash" {
		t.Fatalf("unexpected method split: %+v", output.ByMethod)
	}
}

func TestSaleSummaryHandlerRejectsBadDate(t *testing.T) {
	t.Parallel()

	handler := domain.SaleSummaryHandler(healthyClient(t))
	result, _, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.SaleSummaryInput{Date: "yesterday"})
	if err == nil || !strings.Contains(err.Error(), "YYYY-MM-DD") {
		t.Fatalf("expected date format error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on error")
	}
}

func TestRecordSaleHandlerMapsRequestAndResponse(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sales", func(w http.ResponseWriter, r *http.Request) {
		var req apitypes.CreateSaleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode create sale request: %v", err)
		}
		if req.ClientID != "c1" {
			t.Errorf("expected client c1, got %q", req.ClientID)
		}
		if len(req.Lines) != 1 || req.Lines[0].ProductID != "p1" || req.Lines[0].Qty != 2 {
			t.Errorf("unexpected lines: %+v", req.Lines)
		}
		if req.Lines[0].UnitPrice == nil || *req.Lines[0].UnitPrice != 900000 {
			t.Errorf("expected unit price override 900000, got %v", req.Lines[0].UnitPrice)
		}
		writeJSON(t, w, http.StatusCreated, apitypes.Sale{
			ID:        "s1",
			Number:    "S-000123",
			ClientID:  "c1",
			Status:    "unpaid",
			Subtotal:  1800000,
			Total:     1800000,
			AmountDue: 1800000,
			SoldAt:    time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC),
		})
	})

	price := int64(900000)
	handler := domain.RecordSaleHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.RecordSaleInput{
		ClientID: "c1",
		Lines:    []domain.RecordSaleLine{{ProductID: "p1", Qty: 2, UnitPrice: &price}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if output.Number != "S-000123" || output.Status != "unpaid" || output.AmountDue != 1800000 {
		t.Fatalf("unexpected sale output: %+v", output)
	}
	if output.SoldAt != "2026-04-02T12:00:00Z" {
		t.Fatalf("unexpected sold_at %q", output.SoldAt)
	}
}

func TestRecordSaleHandlerReturnsClientError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/sales", func(w http.ResponseWriter, r *http.Request) {
		writeAPIError(t, w, http.StatusConflict, "PRODUCT_OUT_OF_STOCK", "not enough stock")
	})

	handler := domain.RecordSaleHandler(newBackofficeClient(t, mux))
	result, _, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.RecordSaleInput{
		Lines: []domain.RecordSaleLine{{ProductID: "p1", Qty: 99}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Fatal("expected nil result on error")
	}
}

func TestShipmentTrackHandlerMapsTimeline(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/track", func(w http.ResponseWriter, r *http.Request) {
		var req apitypes.TrackRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode track request: %v", err)
		}
		if req.TrackingCode != "RA644000001RU" {
			t.Errorf("unexpected tracking code %q", req.TrackingCode)
		}
		writeJSON(t, w, http.StatusOK, apitypes.TrackResponse{
			TrackingCode: "RA644000001RU",
			LatestStatus: "in_transit",
			Events: []apitypes.ShipmentEvent{
				{OccurredAt: time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC), Status: "accepted", Location: "Moscow", Description: "Accepted at branch"},
				{OccurredAt: time.Date(2026, 4, 2, 7, 0, 0, 0, time.UTC), Status: "in_transit", Location: "Tver", Description: "Left sorting center"},
			},
		})
	})

	handler := domain.ShipmentTrackHandler(newBackofficeClient(t, mux))
	result, output, err := handler(context.Background(), &mcp.CallToolRequest{}, domain.ShipmentTrackInput{TrackingCode: "RA644000001RU"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result != nil {
		t.Fatal("expected nil result on success")
	}
	if output.LatestStatus != "in_transit" {
		t.Fatalf("unexpected latest status %q", output.LatestStatus)
	}
	if len(output.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(output.Events))
	}
	if output.Events[0].OccurredAt != "2026-04-01T09:30:00Z" || output.Events[0].Location != "Moscow" {
		t.Fatalf("unexpected first event: %+v", output.Events[0])
	}
}

func TestLowStockResourceHandlerListsProducts(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/products", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("max_stock") != "2" || q.Get("status") != "in-stock" {
			t.Errorf("unexpected low stock query %q", r.URL.RawQuery)
		}
		writeJSON(t, w, http.StatusOK, apitypes.ProductPage{Products: []apitypes.Product{
			{ID: "p1", SKU: "R-EM-001", Name: "Emerald ring", StockQty: 1, Price: 1250000, Status: "in-stock"},
		}})
	})

	handler := domain.LowStockResourceHandler(newBackofficeClient(t, mux))
	result, err := handler(context.Background(), &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Contents))
	}
	content := result.Contents[0]
	if content.URI != "products://low-stock" || content.MIMEType != "application/json" {
		t.Fatalf("unexpected content envelope: %+v", content)
	}

	var payload domain.LowStockPayload
	if err := json.Unmarshal([]byte(content.Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Threshold != 2 {
		t.Fatalf("expected threshold 2, got %d", payload.Threshold)
	}
	if len(payload.Products) != 1 || payload.Products[0].SKU != "R-EM-001" {
		t.Fatalf("unexpected payload products: %+v", payload.Products)
	}
}

func TestRecentSalesResourceHandlerListsSales(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sales", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("page_size"); got != "10" {
			t.Errorf("expected page_size 10, got %q", got)
		}
		writeJSON(t, w, http.StatusOK, apitypes.SalePage{Sales: []apitypes.Sale{
			{ID: "s2", Number: "S-000124", Status: "completed", Total: 500000, AmountPaid: 500000, SoldAt: time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC)},
			{ID: "s1", Number: "S-000123", Status: "unpaid", Total: 1800000, AmountDue: 1800000, SoldAt: time.Date(2026, 4, 1, 16, 0, 0, 0, time.UTC)},
		}})
	})

	handler := domain.RecentSalesResourceHandler(newBackofficeClient(t, mux))
	result, err := handler(context.Background(), &mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatalf("read resource: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content item, got %d", len(result.Contents))
	}
	if result.Contents[0].URI != "sales://recent" {
		t.Fatalf("unexpected uri %q", result.Contents[0].URI)
	}

	var payload domain.RecentSalesPayload
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(payload.Sales) != 2 {
		t.Fatalf("expected 2 sales, got %d", len(payload.Sales))
	}
	if payload.Sales[0].Number != "S-000124" || payload.Sales[0].SoldAt != "2026-04-02T11:00:00Z" {
		t.Fatalf("unexpected first sale: %+v", payload.Sales[0])
	}
}
