// Package storage defines the persistence contracts for the back-office
// service. Implementations live in subpackages such as sqlite.
package storage

import (
	"context"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")
	// ErrAlreadyExists indicates a write collided with a unique constraint.
	ErrAlreadyExists = apperrors.New(apperrors.CodeAlreadyExists, "record already exists")
	// ErrConflict indicates a write lost a concurrent update race.
	ErrConflict = apperrors.New(apperrors.CodeConflict, "record conflict")
)

// Store is the full persistence surface of the back-office service.
// The sqlite implementation satisfies it; consumers that need less
// should depend on the per-area interfaces instead.
type Store interface {
	ClientStore
	SupplierStore
	ProductStore
	PurchaseStore
	SaleStore
	RepairStore
	PaymentStore
	DepositStore
	ShipmentStore
	StaffStore
	PhotoStore
	PricingRuleStore
	OutboxStore
}

// ClientStore persists client records.
type ClientStore interface {
	PutClient(ctx context.Context, client domain.Client) error
	GetClient(ctx context.Context, clientID string) (domain.Client, error)
	GetClientByPhone(ctx context.Context, phone string) (domain.Client, error)
	ListClients(ctx context.Context, query string, pageSize int, pageToken string) (ClientPage, error)
	// GetClientBalance folds sales, delivered repairs, payments, and held
	// deposits into the client's net money position.
	GetClientBalance(ctx context.Context, clientID string) (domain.ClientBalance, error)
}

// ClientPage describes a page of client records.
type ClientPage struct {
	Clients       []domain.Client
	NextPageToken string
}

// SupplierStore persists supplier records.
type SupplierStore interface {
	PutSupplier(ctx context.Context, supplier domain.Supplier) error
	GetSupplier(ctx context.Context, supplierID string) (domain.Supplier, error)
	ListSuppliers(ctx context.Context, pageSize int, pageToken string) (SupplierPage, error)
}

// SupplierPage describes a page of supplier records.
type SupplierPage struct {
	Suppliers     []domain.Supplier
	NextPageToken string
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Status   domain.ProductStatus
	Category domain.Category
	Metal    domain.Metal
	// Query matches against SKU and name.
	Query string
	// MaxStock, when non-negative, keeps only products at or below the
	// given stock level. Negative means no stock filter.
	MaxStock int64
}

// ProductStore persists catalog records.
type ProductStore interface {
	PutProduct(ctx context.Context, product domain.Product) error
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	GetProductBySKU(ctx context.Context, sku string) (domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter, pageSize int, pageToken string) (ProductPage, error)
}

// ProductPage describes a page of product records.
type ProductPage struct {
	Products      []domain.Product
	NextPageToken string
}

// PurchaseStore persists supplier intake batches.
type PurchaseStore interface {
	CreatePurchase(ctx context.Context, purchase domain.Purchase) error
	GetPurchase(ctx context.Context, purchaseID string) (domain.Purchase, error)
	ListPurchases(ctx context.Context, supplierID string, pageSize int, pageToken string) (PurchasePage, error)
	// ReceivePurchase posts a draft batch: line quantities land in product
	// stock, product costs take the line unit cost, and drafts flip to
	// in-stock, all in one transaction.
	ReceivePurchase(ctx context.Context, purchaseID string, at time.Time) (domain.Purchase, error)
	CancelPurchase(ctx context.Context, purchaseID string, at time.Time) (domain.Purchase, error)
}

// PurchasePage describes a page of purchase records.
type PurchasePage struct {
	Purchases     []domain.Purchase
	NextPageToken string
}

// SaleRecord pairs a sale with the payment total tracked for it.
type SaleRecord struct {
	Sale       domain.Sale
	AmountPaid money.Amount
}

// SaleFilter narrows a sale listing.
type SaleFilter struct {
	ClientID string
	Status   domain.SaleStatus
	// From and To bound SoldAt when non-zero. To is exclusive.
	From time.Time
	To   time.Time
}

// MethodTotal is one payment-method subtotal in a summary.
type MethodTotal struct {
	Method domain.PaymentMethod
	Total  money.Amount
}

// SaleSummary aggregates the sales of one day.
type SaleSummary struct {
	Day       time.Time
	SaleCount int64
	Subtotal  money.Amount
	Discount  money.Amount
	Total     money.Amount
	Paid      money.Amount
	ByMethod  []MethodTotal
}

// SaleStore persists sale documents.
type SaleStore interface {
	// CreateSale persists a new sale in one transaction: the document
	// number is allocated, each line decrements product stock, and a
	// sale.created notification lands in the outbox.
	CreateSale(ctx context.Context, sale domain.Sale) (SaleRecord, error)
	GetSale(ctx context.Context, saleID string) (SaleRecord, error)
	GetSaleByNumber(ctx context.Context, number string) (SaleRecord, error)
	ListSales(ctx context.Context, filter SaleFilter, pageSize int, pageToken string) (SalePage, error)
	// CancelSale aborts an unpaid sale and restores the stock its lines
	// consumed. Sales with recorded payments are refused.
	CancelSale(ctx context.Context, saleID string, at time.Time) (SaleRecord, error)
	// SummarizeSalesForDay aggregates the sales whose SoldAt falls in the
	// UTC day containing the given time. Cancelled sales are skipped.
	SummarizeSalesForDay(ctx context.Context, day time.Time) (SaleSummary, error)
}

// SalePage describes a page of sale records.
type SalePage struct {
	Sales         []SaleRecord
	NextPageToken string
}

// RepairRecord pairs a repair with the payment total tracked for it.
type RepairRecord struct {
	Repair     domain.Repair
	AmountPaid money.Amount
}

// RepairFilter narrows a repair listing.
type RepairFilter struct {
	ClientID string
	Status   domain.RepairStatus
}

// RepairDetailsUpdate carries the editable fields of a repair. Nil
// pointers leave the stored value untouched.
type RepairDetailsUpdate struct {
	ItemDescription *string
	Issue           *string
	EstimatedPrice  *money.Amount
	FinalPrice      *money.Amount
	PromisedAt      *time.Time
}

// RepairStore persists workshop repair orders.
type RepairStore interface {
	// CreateRepair persists a new repair and allocates its document number.
	CreateRepair(ctx context.Context, repair domain.Repair) (RepairRecord, error)
	GetRepair(ctx context.Context, repairID string) (RepairRecord, error)
	GetRepairByNumber(ctx context.Context, number string) (RepairRecord, error)
	ListRepairs(ctx context.Context, filter RepairFilter, pageSize int, pageToken string) (RepairPage, error)
	// UpdateRepairDetails edits descriptive fields and prices. Delivered
	// and cancelled repairs are immutable.
	UpdateRepairDetails(ctx context.Context, repairID string, update RepairDetailsUpdate, at time.Time) (RepairRecord, error)
	// TransitionRepair moves a repair along its lifecycle. Delivery is
	// refused until the final price is set and fully paid; reaching ready
	// lands a repair.ready notification in the outbox.
	TransitionRepair(ctx context.Context, repairID string, to domain.RepairStatus, at time.Time) (RepairRecord, error)
}

// RepairPage describes a page of repair records.
type RepairPage struct {
	Repairs       []RepairRecord
	NextPageToken string
}

// PaymentStore records money received against sales and repairs.
type PaymentStore interface {
	// RecordSalePayment inserts a payment and recomputes the sale status
	// from the new payment total in the same transaction. Covering the
	// total lands a sale.paid notification in the outbox.
	RecordSalePayment(ctx context.Context, payment domain.Payment) (SaleRecord, error)
	// RecordRepairPayment inserts a payment against a repair.
	RecordRepairPayment(ctx context.Context, payment domain.Payment) (RepairRecord, error)
	ListPaymentsForSale(ctx context.Context, saleID string) ([]domain.Payment, error)
	ListPaymentsForRepair(ctx context.Context, repairID string) ([]domain.Payment, error)
}

// DepositFilter narrows a deposit listing.
type DepositFilter struct {
	ClientID string
	Status   domain.DepositStatus
}

// DepositStore persists client money held on account.
type DepositStore interface {
	CreateDeposit(ctx context.Context, deposit domain.Deposit) error
	GetDeposit(ctx context.Context, depositID string) (domain.Deposit, error)
	ListDeposits(ctx context.Context, filter DepositFilter, pageSize int, pageToken string) (DepositPage, error)
	// ApplyDeposit consumes a held deposit against a sale: the deposit
	// settles, a deposit-method payment lands on the sale, and the sale
	// status is recomputed, all in one transaction.
	ApplyDeposit(ctx context.Context, depositID string, saleID string, at time.Time) (domain.Deposit, SaleRecord, error)
	RefundDeposit(ctx context.Context, depositID string, at time.Time) (domain.Deposit, error)
}

// DepositPage describes a page of deposit records.
type DepositPage struct {
	Deposits      []domain.Deposit
	NextPageToken string
}

// ShipmentCheckInput carries the outcome of one courier poll.
type ShipmentCheckInput struct {
	ShipmentID string
	// Events is the full timeline parsed from the courier page, oldest
	// first. Already-known events are skipped by dedupe key.
	Events      []domain.ShipmentEvent
	CheckedAt   time.Time
	NextCheckAt time.Time
	// CheckError records a failed poll; events are ignored when set.
	CheckError string
}

// ShipmentCheckResult reports what a courier poll changed.
type ShipmentCheckResult struct {
	Shipment domain.Shipment
	// FreshEvents are the timeline entries this check added.
	FreshEvents []domain.ShipmentEvent
}

// ShipmentStore persists courier deliveries and their timelines.
type ShipmentStore interface {
	CreateShipment(ctx context.Context, shipment domain.Shipment) error
	GetShipment(ctx context.Context, shipmentID string) (domain.Shipment, error)
	GetShipmentBySale(ctx context.Context, saleID string) (domain.Shipment, error)
	ListShipments(ctx context.Context, status domain.ShipmentStatus, pageSize int, pageToken string) (ShipmentPage, error)
	ListShipmentEvents(ctx context.Context, shipmentID string) ([]domain.ShipmentEvent, error)
	// ListDueShipments returns non-terminal shipments whose next check is
	// due, ordered by NextCheckAt.
	ListDueShipments(ctx context.Context, now time.Time, limit int) ([]domain.Shipment, error)
	// RecordShipmentCheck applies one poll outcome in a transaction:
	// fresh timeline events are appended, the status advances without
	// regressing from terminal states, and reaching delivered or
	// returned lands a notification in the outbox.
	RecordShipmentCheck(ctx context.Context, input ShipmentCheckInput) (ShipmentCheckResult, error)
	// PruneShipmentEvents deletes all but the newest keep events per
	// delivered shipment whose delivery predates the cutoff, and reports
	// how many rows were removed.
	PruneShipmentEvents(ctx context.Context, keep int, deliveredBefore time.Time) (int64, error)
}

// ShipmentPage describes a page of shipment records.
type ShipmentPage struct {
	Shipments     []domain.Shipment
	NextPageToken string
}

// StaffStore persists back-office accounts.
type StaffStore interface {
	PutStaffUser(ctx context.Context, user domain.StaffUser) error
	GetStaffUser(ctx context.Context, userID string) (domain.StaffUser, error)
	GetStaffUserByUsername(ctx context.Context, username string) (domain.StaffUser, error)
	GetStaffUserByTelegramChatID(ctx context.Context, chatID int64) (domain.StaffUser, error)
	ListStaffUsers(ctx context.Context, pageSize int, pageToken string) (StaffUserPage, error)
	// BindStaffTelegram attaches a Telegram chat to an account, replacing
	// any previous binding of that chat.
	BindStaffTelegram(ctx context.Context, userID string, chatID int64) error
}

// StaffUserPage describes a page of staff account records.
type StaffUserPage struct {
	Users         []domain.StaffUser
	NextPageToken string
}

// PhotoStore persists sale photo records. Image bytes live on disk; the
// record keeps the path relative to the media root.
type PhotoStore interface {
	PutSalePhoto(ctx context.Context, photo domain.SalePhoto) error
	ListSalePhotos(ctx context.Context, saleID string) ([]domain.SalePhoto, error)
}

// PricingRule stores one Lua pricing script. At most one rule is active.
type PricingRule struct {
	ID        string
	Name      string
	Source    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PricingRuleStore persists pricing scripts.
type PricingRuleStore interface {
	PutPricingRule(ctx context.Context, rule PricingRule) error
	GetPricingRule(ctx context.Context, ruleID string) (PricingRule, error)
	// GetActivePricingRule returns the single active rule, or ErrNotFound
	// when pricing runs on the built-in formula.
	GetActivePricingRule(ctx context.Context) (PricingRule, error)
	// SetActivePricingRule activates one rule and deactivates the rest.
	SetActivePricingRule(ctx context.Context, ruleID string) error
	ListPricingRules(ctx context.Context) ([]PricingRule, error)
}

// OutboxStatus identifies one outbox event lifecycle state.
type OutboxStatus string

const (
	// OutboxStatusPending means the event awaits delivery.
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusLeased means a consumer holds the event.
	OutboxStatusLeased OutboxStatus = "leased"
	// OutboxStatusSucceeded means the event was delivered.
	OutboxStatusSucceeded OutboxStatus = "succeeded"
	// OutboxStatusDead means delivery was abandoned after repeated failures.
	OutboxStatusDead OutboxStatus = "dead"
)

// OutboxEvent stores one notification pending dispatch. Events are
// written in the same transaction as the state change they announce.
type OutboxEvent struct {
	ID             string
	EventType      string
	PayloadJSON    string
	DedupeKey      string
	Status         OutboxStatus
	AttemptCount   int
	NextAttemptAt  time.Time
	LeaseOwner     string
	LeaseExpiresAt *time.Time
	LastError      string
	ProcessedAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OutboxStore persists notification outbox events.
type OutboxStore interface {
	// EnqueueOutboxEvent inserts a pending event. A duplicate dedupe key
	// leaves the existing event in place without error.
	EnqueueOutboxEvent(ctx context.Context, event OutboxEvent) error
	// LeaseOutboxEvents claims up to limit due events for a consumer.
	// Events whose lease expired are reclaimed.
	LeaseOutboxEvents(ctx context.Context, consumer string, limit int, now time.Time, leaseTTL time.Duration) ([]OutboxEvent, error)
	MarkOutboxEventSucceeded(ctx context.Context, eventID string, consumer string, processedAt time.Time) error
	MarkOutboxEventRetry(ctx context.Context, eventID string, consumer string, nextAttemptAt time.Time, lastError string) error
	MarkOutboxEventDead(ctx context.Context, eventID string, consumer string, lastError string, at time.Time) error
	// CountOutboxEvents reports how many events sit in each status.
	CountOutboxEvents(ctx context.Context) (map[OutboxStatus]int64, error)
	// RequeueDeadOutboxEvents moves up to limit dead events back to
	// pending, oldest first, and reports how many were revived.
	RequeueDeadOutboxEvents(ctx context.Context, limit int, now time.Time) (int64, error)
}
