// Package apitypes defines the JSON wire types of the back-office REST
// API. The server and every consumer (bot, MCP bridge, tools) share
// these structs so the wire shape has exactly one definition.
//
// Money fields carry minor currency units (kopeks, cents) as integers.
// Enumerations travel as their stable text forms.
package apitypes

import (
	"encoding/json"
	"time"
)

// ErrorBody is the payload of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps every non-2xx response body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// LoginRequest authenticates a staff account.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a bearer token for subsequent calls.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Staff     StaffUser `json:"staff"`
}

// Client is one client record.
type Client struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Phone            string    `json:"phone,omitempty"`
	Email            string    `json:"email,omitempty"`
	TelegramUsername string    `json:"telegram_username,omitempty"`
	DiscountPercent  int64     `json:"discount_percent"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CreateClientRequest registers a client.
type CreateClientRequest struct {
	FullName         string `json:"full_name"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty"`
	TelegramUsername string `json:"telegram_username,omitempty"`
	DiscountPercent  int64  `json:"discount_percent,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// UpdateClientRequest patches a client. Nil fields stay unchanged.
type UpdateClientRequest struct {
	FullName         *string `json:"full_name,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Email            *string `json:"email,omitempty"`
	TelegramUsername *string `json:"telegram_username,omitempty"`
	DiscountPercent  *int64  `json:"discount_percent,omitempty"`
	Notes            *string `json:"notes,omitempty"`
}

// ClientPage is one page of clients.
type ClientPage struct {
	Clients       []Client `json:"clients"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// ClientBalance is the net money position of a client.
type ClientBalance struct {
	ClientID     string `json:"client_id"`
	Obligations  int64  `json:"obligations"`
	Paid         int64  `json:"paid"`
	HeldDeposits int64  `json:"held_deposits"`
	Balance      int64  `json:"balance"`
}

// Supplier is one supplier record.
type Supplier struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateSupplierRequest registers a supplier.
type CreateSupplierRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// UpdateSupplierRequest patches a supplier. Nil fields stay unchanged.
type UpdateSupplierRequest struct {
	Name        *string `json:"name,omitempty"`
	ContactName *string `json:"contact_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Email       *string `json:"email,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// SupplierPage is one page of suppliers.
type SupplierPage struct {
	Suppliers     []Supplier `json:"suppliers"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// Product is one catalog item.
type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Metal         string    `json:"metal"`
	WeightMg      int64     `json:"weight_mg,omitempty"`
	Size          string    `json:"size,omitempty"`
	SupplierID    string    `json:"supplier_id,omitempty"`
	Cost          int64     `json:"cost"`
	Price         int64     `json:"price"`
	MarginPercent *int64    `json:"margin_percent,omitempty"`
	StockQty      int64     `json:"stock_qty"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProductRequest registers a product.
type CreateProductRequest struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Metal      string `json:"metal"`
	WeightMg   int64  `json:"weight_mg,omitempty"`
	Size       string `json:"size,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
	Cost       int64  `json:"cost,omitempty"`
	Price      int64  `json:"price,omitempty"`
	StockQty   int64  `json:"stock_qty,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// UpdateProductRequest patches a product. Nil fields stay unchanged;
// the SKU is immutable.
type UpdateProductRequest struct {
	Name       *string `json:"name,omitempty"`
	Category   *string `json:"category,omitempty"`
	Metal      *string `json:"metal,omitempty"`
	WeightMg   *int64  `json:"weight_mg,omitempty"`
	Size       *string `json:"size,omitempty"`
	SupplierID *string `json:"supplier_id,omitempty"`
	Cost       *int64  `json:"cost,omitempty"`
	Price      *int64  `json:"price,omitempty"`
	StockQty   *int64  `json:"stock_qty,omitempty"`
	Status     *string `json:"status,omitempty"`
	Notes      *string `json:"notes,omitempty"`
}

// ProductPage is one page of products.
type ProductPage struct {
	Products      []Product `json:"products"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// PriceSuggestion is the pricing engine's answer for one product.
type PriceSuggestion struct {
	ProductID      string `json:"product_id"`
	SuggestedPrice int64  `json:"suggested_price"`
	RuleID         string `json:"rule_id,omitempty"`
	RuleName       string `json:"rule_name,omitempty"`
}

// PurchaseLine is one line of a supplier intake batch.
type PurchaseLine struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	UnitCost  int64  `json:"unit_cost"`
}

// Purchase is one supplier intake batch.
type Purchase struct {
	ID         string         `json:"id"`
	SupplierID string         `json:"supplier_id"`
	Reference  string         `json:"reference,omitempty"`
	Status     string         `json:"status"`
	Lines      []PurchaseLine `json:"lines"`
	TotalCost  int64          `json:"total_cost"`
	ReceivedAt *time.Time     `json:"received_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// PurchaseLineRequest is one requested line on a new purchase.
type PurchaseLineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	UnitCost  int64  `json:"unit_cost"`
}

// CreatePurchaseRequest opens a supplier intake batch.
type CreatePurchaseRequest struct {
	SupplierID string                `json:"supplier_id"`
	Reference  string                `json:"reference,omitempty"`
	Lines      []PurchaseLineRequest `json:"lines"`
}

// PurchasePage is one page of purchases.
type PurchasePage struct {
	Purchases     []Purchase `json:"purchases"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// SaleLine is one line of a sale document.
type SaleLine struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	UnitPrice int64  `json:"unit_price"`
}

// Sale is one sale document with its derived money figures.
type Sale struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	ClientID        string     `json:"client_id,omitempty"`
	Status          string     `json:"status"`
	DiscountPercent int64      `json:"discount_percent"`
	Lines           []SaleLine `json:"lines"`
	Subtotal        int64      `json:"subtotal"`
	Discount        int64      `json:"discount"`
	Total           int64      `json:"total"`
	AmountPaid      int64      `json:"amount_paid"`
	AmountDue       int64      `json:"amount_due"`
	SoldAt          time.Time  `json:"sold_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SaleLineRequest is one requested line on a new sale. A nil unit
// price sells at the current catalog price.
type SaleLineRequest struct {
	ProductID string `json:"product_id"`
	Qty       int64  `json:"qty"`
	UnitPrice *int64 `json:"unit_price,omitempty"`
}

// CreateSaleRequest records a sale. A nil discount falls back to the
// client's standing discount, or zero for walk-ins.
type CreateSaleRequest struct {
	ClientID        string            `json:"client_id,omitempty"`
	DiscountPercent *int64            `json:"discount_percent,omitempty"`
	SoldAt          *time.Time        `json:"sold_at,omitempty"`
	Lines           []SaleLineRequest `json:"lines"`
}

// SalePage is one page of sales.
type SalePage struct {
	Sales         []Sale `json:"sales"`
	NextPageToken string `json:"next_page_token,omitempty"`
}

// RecordPaymentRequest records money received against a document.
type RecordPaymentRequest struct {
	Amount int64      `json:"amount"`
	Method string     `json:"method"`
	Note   string     `json:"note,omitempty"`
	PaidAt *time.Time `json:"paid_at,omitempty"`
}

// Payment is one recorded payment.
type Payment struct {
	ID         string    `json:"id"`
	SaleID     string    `json:"sale_id,omitempty"`
	RepairID   string    `json:"repair_id,omitempty"`
	Amount     int64     `json:"amount"`
	Method     string    `json:"method"`
	Note       string    `json:"note,omitempty"`
	RecordedBy string    `json:"recorded_by,omitempty"`
	PaidAt     time.Time `json:"paid_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// PaymentList wraps the payments of one document.
type PaymentList struct {
	Payments []Payment `json:"payments"`
}

// MethodTotal is one payment-method subtotal in a day summary.
type MethodTotal struct {
	Method string `json:"method"`
	Total  int64  `json:"total"`
}

// SaleSummary aggregates the sales of one day.
type SaleSummary struct {
	Date      string        `json:"date"`
	SaleCount int64         `json:"sale_count"`
	Subtotal  int64         `json:"subtotal"`
	Discount  int64         `json:"discount"`
	Total     int64         `json:"total"`
	Paid      int64         `json:"paid"`
	ByMethod  []MethodTotal `json:"by_method"`
}

// SalePhoto is one image attached to a sale.
type SalePhoto struct {
	ID             string    `json:"id"`
	SaleID         string    `json:"sale_id"`
	FilePath       string    `json:"file_path"`
	Caption        string    `json:"caption,omitempty"`
	SubmittedBy    string    `json:"submitted_by,omitempty"`
	SubmittedVia   string    `json:"submitted_via"`
	TelegramFileID string    `json:"telegram_file_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SalePhotoList wraps the photos of one sale.
type SalePhotoList struct {
	Photos []SalePhoto `json:"photos"`
}

// Repair is one workshop repair order.
type Repair struct {
	ID              string     `json:"id"`
	Number          string     `json:"number"`
	ClientID        string     `json:"client_id"`
	ItemDescription string     `json:"item_description"`
	Issue           string     `json:"issue,omitempty"`
	Status          string     `json:"status"`
	EstimatedPrice  int64      `json:"estimated_price,omitempty"`
	FinalPrice      int64      `json:"final_price,omitempty"`
	AmountPaid      int64      `json:"amount_paid"`
	AmountDue       int64      `json:"amount_due"`
	ReceivedAt      time.Time  `json:"received_at"`
	PromisedAt      *time.Time `json:"promised_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CreateRepairRequest accepts an item into the workshop.
type CreateRepairRequest struct {
	ClientID        string     `json:"client_id"`
	ItemDescription string     `json:"item_description"`
	Issue           string     `json:"issue,omitempty"`
	EstimatedPrice  int64      `json:"estimated_price,omitempty"`
	PromisedAt      *time.Time `json:"promised_at,omitempty"`
}

// UpdateRepairRequest patches repair details. Nil fields stay
// unchanged.
type UpdateRepairRequest struct {
	ItemDescription *string    `json:"item_description,omitempty"`
	Issue           *string    `json:"issue,omitempty"`
	EstimatedPrice  *int64     `json:"estimated_price,omitempty"`
	FinalPrice      *int64     `json:"final_price,omitempty"`
	PromisedAt      *time.Time `json:"promised_at,omitempty"`
}

// TransitionRepairRequest moves a repair to a new status.
type TransitionRepairRequest struct {
	Status string `json:"status"`
}

// RepairPage is one page of repairs.
type RepairPage struct {
	Repairs       []Repair `json:"repairs"`
	NextPageToken string   `json:"next_page_token,omitempty"`
}

// Deposit is money held on a client's account.
type Deposit struct {
	ID            string     `json:"id"`
	ClientID      string     `json:"client_id"`
	Amount        int64      `json:"amount"`
	Status        string     `json:"status"`
	Note          string     `json:"note,omitempty"`
	AppliedSaleID string     `json:"applied_sale_id,omitempty"`
	TakenAt       time.Time  `json:"taken_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CreateDepositRequest takes a deposit from a client.
type CreateDepositRequest struct {
	ClientID string     `json:"client_id"`
	Amount   int64      `json:"amount"`
	Note     string     `json:"note,omitempty"`
	TakenAt  *time.Time `json:"taken_at,omitempty"`
}

// ApplyDepositRequest applies a held deposit to a sale.
type ApplyDepositRequest struct {
	SaleID string `json:"sale_id"`
}

// DepositPage is one page of deposits.
type DepositPage struct {
	Deposits      []Deposit `json:"deposits"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// Shipment is one courier delivery attached to a sale.
type Shipment struct {
	ID            string     `json:"id"`
	SaleID        string     `json:"sale_id"`
	Courier       string     `json:"courier,omitempty"`
	TrackingCode  string     `json:"tracking_code"`
	Status        string     `json:"status"`
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	NextCheckAt   time.Time  `json:"next_check_at"`
	CheckAttempts int64      `json:"check_attempts"`
	LastError     string     `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ShipmentEvent is one courier timeline entry.
type ShipmentEvent struct {
	OccurredAt  time.Time `json:"occurred_at"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description"`
}

// ShipmentDetail pairs a shipment with its timeline, oldest first.
type ShipmentDetail struct {
	Shipment Shipment        `json:"shipment"`
	Events   []ShipmentEvent `json:"events"`
}

// CreateShipmentRequest registers a courier delivery for a sale.
type CreateShipmentRequest struct {
	Courier      string `json:"courier,omitempty"`
	TrackingCode string `json:"tracking_code"`
}

// ShipmentPage is one page of shipments.
type ShipmentPage struct {
	Shipments     []Shipment `json:"shipments"`
	NextPageToken string     `json:"next_page_token,omitempty"`
}

// TrackRequest asks for an on-the-spot courier lookup of any tracking
// code, stored shipment or not.
type TrackRequest struct {
	TrackingCode string `json:"tracking_code"`
}

// TrackResponse is the courier timeline for an ad-hoc lookup.
type TrackResponse struct {
	TrackingCode string          `json:"tracking_code"`
	LatestStatus string          `json:"latest_status"`
	Events       []ShipmentEvent `json:"events"`
}

// StaffUser is one back-office account. Password hashes never travel.
type StaffUser struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	DisplayName    string    `json:"display_name,omitempty"`
	Role           string    `json:"role"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateStaffRequest opens a staff account.
type CreateStaffRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
}

// StaffPage is one page of staff accounts.
type StaffPage struct {
	Users         []StaffUser `json:"users"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// BindTelegramRequest attaches a Telegram chat to a staff account.
type BindTelegramRequest struct {
	Username string `json:"username"`
	ChatID   int64  `json:"chat_id"`
}

// PricingRule is one stored pricing script.
type PricingRule struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PutPricingRuleRequest creates or replaces a pricing script.
type PutPricingRuleRequest struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Source string `json:"source"`
}

// PricingRuleList wraps all stored pricing rules.
type PricingRuleList struct {
	Rules []PricingRule `json:"rules"`
}

// OutboxEvent is one leased notification for a consumer.
type OutboxEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	AttemptCount int             `json:"attempt_count"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LeaseOutboxRequest claims due notifications for a consumer.
type LeaseOutboxRequest struct {
	Consumer        string `json:"consumer"`
	Limit           int    `json:"limit"`
	LeaseTTLSeconds int64  `json:"lease_ttl_seconds"`
}

// LeaseOutboxResponse carries leased notifications.
type LeaseOutboxResponse struct {
	Events []OutboxEvent `json:"events"`
}

// Ack outcomes accepted by the outbox ack endpoint.
const (
	AckOutcomeSucceeded = "succeeded"
	AckOutcomeRetry     = "retry"
	AckOutcomeDead      = "dead"
)

// AckOutboxRequest reports the delivery outcome for a leased event.
type AckOutboxRequest struct {
	Consumer       string `json:"consumer"`
	Outcome        string `json:"outcome"`
	RetryInSeconds int64  `json:"retry_in_seconds,omitempty"`
	Error          string `json:"error,omitempty"`
}
