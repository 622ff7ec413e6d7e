// Package rest serves the back-office JSON API.
//
// Every consumer goes through this surface: the Telegram bot, the MCP
// bridge, the maintenance tooling, and whatever front-end the store
// runs. Handlers validate input, call the domain constructors, and let
// storage enforce the transactional invariants. Wire shapes live in
// the sibling apitypes package.
package rest

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
	"github.com/atelier-erp/atelier/internal/services/backoffice/tracking"
)

const defaultTokenTTL = 24 * time.Hour

// ShipmentChecker runs an immediate courier check for one shipment.
// *tracking.Poller implements it.
type ShipmentChecker interface {
	CheckNow(ctx context.Context, shipmentID string) (storage.ShipmentCheckResult, error)
}

// Config assembles the dependencies of the REST API server.
type Config struct {
	Store storage.Store
	// JWTSecret signs staff bearer tokens.
	JWTSecret []byte
	// TokenTTL bounds staff token lifetime. Zero means 24 hours.
	TokenTTL time.Duration
	// ServiceToken authenticates sibling processes (bot, MCP bridge).
	// Empty disables service-token auth.
	ServiceToken string
	// MediaRoot is the directory sale photos are written under.
	MediaRoot string
	// Tracker serves on-demand shipment checks. Nil means the courier
	// integration is not configured.
	Tracker ShipmentChecker
	// Courier serves ad-hoc tracking lookups. Nil means not configured.
	Courier tracking.TimelineSource
	// PricingScript is a Lua rule loaded from disk. A rule stored as
	// active in the database takes precedence.
	PricingScript string
	Metrics       *Metrics
	Now           func() time.Time
	NewID         func() (string, error)
	Logf          func(format string, args ...any)
}

// Server handles the back-office HTTP API.
type Server struct {
	store         storage.Store
	jwtSecret     []byte
	tokenTTL      time.Duration
	serviceToken  string
	media         mediaStore
	tracker       ShipmentChecker
	courier       tracking.TimelineSource
	pricingScript string
	metrics       *Metrics
	now           func() time.Time
	newID         func() (string, error)
	logf          func(format string, args ...any)
}

// New builds a Server from its dependencies.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, apperrors.New(apperrors.CodeUnknown, "store is required")
	}
	if len(cfg.JWTSecret) == 0 {
		return nil, apperrors.New(apperrors.CodeUnknown, "jwt secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewID
	}
	if cfg.Logf == nil {
		cfg.Logf = log.Printf
	}
	return &Server{
		store:         cfg.Store,
		jwtSecret:     cfg.JWTSecret,
		tokenTTL:      cfg.TokenTTL,
		serviceToken:  cfg.ServiceToken,
		media:         mediaStore{root: cfg.MediaRoot},
		tracker:       cfg.Tracker,
		courier:       cfg.Courier,
		pricingScript: cfg.PricingScript,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
		newID:         cfg.NewID,
		logf:          cfg.Logf,
	}, nil
}

// Handler returns the routed HTTP handler with tracing and request
// metrics applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(http.MethodGet+" /healthz", s.handleHealthz)
	mux.HandleFunc(http.MethodPost+" /v1/auth/login", s.handleLogin)

	mux.HandleFunc(http.MethodGet+" /v1/clients", s.requireAuth(s.handleListClients))
	mux.HandleFunc(http.MethodPost+" /v1/clients", s.requireAuth(s.handleCreateClient))
	mux.HandleFunc(http.MethodGet+" /v1/clients/{clientID}", s.requireAuth(s.handleGetClient))
	mux.HandleFunc(http.MethodPatch+" /v1/clients/{clientID}", s.requireAuth(s.handleUpdateClient))
	mux.HandleFunc(http.MethodGet+" /v1/clients/{clientID}/balance", s.requireAuth(s.handleClientBalance))

	mux.HandleFunc(http.MethodGet+" /v1/suppliers", s.requireAuth(s.handleListSuppliers))
	mux.HandleFunc(http.MethodPost+" /v1/suppliers", s.requireAuth(s.handleCreateSupplier))
	mux.HandleFunc(http.MethodGet+" /v1/suppliers/{supplierID}", s.requireAuth(s.handleGetSupplier))
	mux.HandleFunc(http.MethodPatch+" /v1/suppliers/{supplierID}", s.requireAuth(s.handleUpdateSupplier))

	mux.HandleFunc(http.MethodGet+" /v1/products", s.requireAuth(s.handleListProducts))
	mux.HandleFunc(http.MethodPost+" /v1/products", s.requireAuth(s.handleCreateProduct))
	mux.HandleFunc(http.MethodGet+" /v1/products/{productID}", s.requireAuth(s.handleGetProduct))
	mux.HandleFunc(http.MethodPatch+" /v1/products/{productID}", s.requireAuth(s.handleUpdateProduct))
	mux.HandleFunc(http.MethodPost+" /v1/products/{productID}/price-suggestion", s.requireAuth(s.handlePriceSuggestion))

	mux.HandleFunc(http.MethodGet+" /v1/purchases", s.requireAuth(s.handleListPurchases))
	mux.HandleFunc(http.MethodPost+" /v1/purchases", s.requireAuth(s.handleCreatePurchase))
	mux.HandleFunc(http.MethodGet+" /v1/purchases/{purchaseID}", s.requireAuth(s.handleGetPurchase))
	mux.HandleFunc(http.MethodPost+" /v1/purchases/{purchaseID}/receive", s.requireAuth(s.handleReceivePurchase))
	mux.HandleFunc(http.MethodPost+" /v1/purchases/{purchaseID}/cancel", s.requireAuth(s.handleCancelPurchase))

	mux.HandleFunc(http.MethodGet+" /v1/sales", s.requireAuth(s.handleListSales))
	mux.HandleFunc(http.MethodPost+" /v1/sales", s.requireAuth(s.handleCreateSale))
	mux.HandleFunc(http.MethodGet+" /v1/sales/summary", s.requireAuth(s.handleSalesSummary))
	mux.HandleFunc(http.MethodGet+" /v1/sales/number/{number}", s.requireAuth(s.handleGetSaleByNumber))
	mux.HandleFunc(http.MethodGet+" /v1/sales/{saleID}", s.requireAuth(s.handleGetSale))
	mux.HandleFunc(http.MethodPost+" /v1/sales/{saleID}/cancel", s.requireAuth(s.handleCancelSale))
	mux.HandleFunc(http.MethodGet+" /v1/sales/{saleID}/payments", s.requireAuth(s.handleListSalePayments))
	mux.HandleFunc(http.MethodPost+" /v1/sales/{saleID}/payments", s.requireAuth(s.handleRecordSalePayment))
	mux.HandleFunc(http.MethodGet+" /v1/sales/{saleID}/photos", s.requireAuth(s.handleListSalePhotos))
	mux.HandleFunc(http.MethodPost+" /v1/sales/{saleID}/photos", s.requireAuth(s.handleUploadSalePhoto))
	mux.HandleFunc(http.MethodGet+" /v1/sales/{saleID}/shipment", s.requireAuth(s.handleGetSaleShipment))
	mux.HandleFunc(http.MethodPost+" /v1/sales/{saleID}/shipment", s.requireAuth(s.handleCreateShipment))

	mux.HandleFunc(http.MethodGet+" /v1/repairs", s.requireAuth(s.handleListRepairs))
	mux.HandleFunc(http.MethodPost+" /v1/repairs", s.requireAuth(s.handleCreateRepair))
	mux.HandleFunc(http.MethodGet+" /v1/repairs/number/{number}", s.requireAuth(s.handleGetRepairByNumber))
	mux.HandleFunc(http.MethodGet+" /v1/repairs/{repairID}", s.requireAuth(s.handleGetRepair))
	mux.HandleFunc(http.MethodPatch+" /v1/repairs/{repairID}", s.requireAuth(s.handleUpdateRepair))
	mux.HandleFunc(http.MethodPost+" /v1/repairs/{repairID}/status", s.requireAuth(s.handleTransitionRepair))
	mux.HandleFunc(http.MethodGet+" /v1/repairs/{repairID}/payments", s.requireAuth(s.handleListRepairPayments))
	mux.HandleFunc(http.MethodPost+" /v1/repairs/{repairID}/payments", s.requireAuth(s.handleRecordRepairPayment))

	mux.HandleFunc(http.MethodGet+" /v1/deposits", s.requireAuth(s.handleListDeposits))
	mux.HandleFunc(http.MethodPost+" /v1/deposits", s.requireAuth(s.handleCreateDeposit))
	mux.HandleFunc(http.MethodGet+" /v1/deposits/{depositID}", s.requireAuth(s.handleGetDeposit))
	mux.HandleFunc(http.MethodPost+" /v1/deposits/{depositID}/apply", s.requireAuth(s.handleApplyDeposit))
	mux.HandleFunc(http.MethodPost+" /v1/deposits/{depositID}/refund", s.requireAuth(s.handleRefundDeposit))

	mux.HandleFunc(http.MethodGet+" /v1/shipments", s.requireAuth(s.handleListShipments))
	mux.HandleFunc(http.MethodGet+" /v1/shipments/{shipmentID}", s.requireAuth(s.handleGetShipment))
	mux.HandleFunc(http.MethodPost+" /v1/shipments/{shipmentID}/check", s.requireAuth(s.handleCheckShipment))
	mux.HandleFunc(http.MethodPost+" /v1/track", s.requireAuth(s.handleTrack))

	mux.HandleFunc(http.MethodPost+" /v1/outbox/lease", s.requireService(s.handleLeaseOutbox))
	mux.HandleFunc(http.MethodPost+" /v1/outbox/{eventID}/ack", s.requireService(s.handleAckOutbox))
	mux.HandleFunc(http.MethodGet+" /v1/staff/telegram/{chatID}", s.requireService(s.handleStaffByTelegramChat))
	mux.HandleFunc(http.MethodPost+" /v1/staff/telegram-bind", s.requireService(s.handleBindTelegram))

	mux.HandleFunc(http.MethodGet+" /v1/staff", s.requireAdmin(s.handleListStaff))
	mux.HandleFunc(http.MethodPost+" /v1/staff", s.requireAdmin(s.handleCreateStaff))
	mux.HandleFunc(http.MethodGet+" /v1/pricing-rules", s.requireAdmin(s.handleListPricingRules))
	mux.HandleFunc(http.MethodPost+" /v1/pricing-rules", s.requireAdmin(s.handlePutPricingRule))
	mux.HandleFunc(http.MethodPost+" /v1/pricing-rules/{ruleID}/activate", s.requireAdmin(s.handleActivatePricingRule))

	return otelhttp.NewHandler(s.instrument(mux), "backoffice-api")
}

// handleHealthz reports liveness once storage answers.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.CountOutboxEvents(r.Context()); err != nil {
		s.writeError(w, apperrors.New(apperrors.CodeUnknown, "storage is not ready"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
