package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func TestCreateSaleAllocatesSequentialNumbers(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 12, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-020", 120000, 5, now)

	first := seedSale(t, store, client.ID, product, 1, now)
	second := seedSale(t, store, client.ID, product, 1, now)

	if first.Sale.Number != "S-000001" {
		t.Fatalf("first number = %q, want %q", first.Sale.Number, "S-000001")
	}
	if second.Sale.Number != "S-000002" {
		t.Fatalf("second number = %q, want %q", second.Sale.Number, "S-000002")
	}
	if first.Sale.Status != domain.SaleStatusPending {
		t.Fatalf("status = %s, want %s", first.Sale.Status, domain.SaleStatusPending)
	}
	if first.AmountPaid != 0 {
		t.Fatalf("amount paid = %d, want 0", first.AmountPaid)
	}
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 12, 30, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-021", 120000, 3, now)

	seedSale(t, store, client.ID, product, 1, now)
	afterOne, err := store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if afterOne.StockQty != 2 {
		t.Fatalf("stock after one = %d, want 2", afterOne.StockQty)
	}
	if afterOne.Status != domain.ProductStatusInStock {
		t.Fatalf("status after one = %s, want %s", afterOne.Status, domain.ProductStatusInStock)
	}

	seedSale(t, store, client.ID, product, 2, now)
	afterAll, err := store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if afterAll.StockQty != 0 {
		t.Fatalf("stock after all = %d, want 0", afterAll.StockQty)
	}
	if afterAll.Status != domain.ProductStatusSold {
		t.Fatalf("status after all = %s, want %s", afterAll.Status, domain.ProductStatusSold)
	}
}

func TestCreateSaleInsufficientStock(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 13, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-022", 120000, 1, now)

	sale, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID: client.ID,
		SoldAt:   now,
		Lines:    []domain.SaleLineInput{{ProductID: product.ID, Qty: 2, UnitPrice: product.Price}},
	}, fixedClock(now), nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := store.CreateSale(context.Background(), sale); !apperrors.IsCode(err, apperrors.CodeProductInsufficientStock) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeProductInsufficientStock)
	}

	// The failed sale must not touch stock.
	untouched, err := store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if untouched.StockQty != 1 {
		t.Fatalf("stock = %d, want 1", untouched.StockQty)
	}
}

func TestCreateSaleNotSellable(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 13, 30, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	draft := seedProduct(t, store, "RING-023", 120000, 0, now)

	sale, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID: client.ID,
		SoldAt:   now,
		Lines:    []domain.SaleLineInput{{ProductID: draft.ID, Qty: 1, UnitPrice: draft.Price}},
	}, fixedClock(now), nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := store.CreateSale(context.Background(), sale); !apperrors.IsCode(err, apperrors.CodeProductNotSellable) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeProductNotSellable)
	}
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 14, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)

	sale, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID: client.ID,
		SoldAt:   now,
		Lines:    []domain.SaleLineInput{{ProductID: "missing", Qty: 1, UnitPrice: 1000}},
	}, fixedClock(now), nil)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := store.CreateSale(context.Background(), sale); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestGetSaleByNumberIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 14, 30, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-024", 120000, 1, now)
	created := seedSale(t, store, client.ID, product, 1, now)

	got, err := store.GetSaleByNumber(context.Background(), "s-000001")
	if err != nil {
		t.Fatalf("get sale by number: %v", err)
	}
	if got.Sale.ID != created.Sale.ID {
		t.Fatalf("sale id = %q, want %q", got.Sale.ID, created.Sale.ID)
	}

	if _, err := store.GetSaleByNumber(context.Background(), "S-999999"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown number error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestSalePaymentsDriveStatus(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 15, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-025", 120000, 1, now)
	sale := seedSale(t, store, client.ID, product, 1, now)

	partial := recordCashPayment(t, store, sale.Sale.ID, 50000, now.Add(time.Hour))
	if partial.Sale.Status != domain.SaleStatusPartiallyPaid {
		t.Fatalf("status after partial = %s, want %s", partial.Sale.Status, domain.SaleStatusPartiallyPaid)
	}
	if partial.AmountPaid != 50000 {
		t.Fatalf("amount paid after partial = %d, want 50000", partial.AmountPaid)
	}

	full := recordCashPayment(t, store, sale.Sale.ID, 70000, now.Add(2*time.Hour))
	if full.Sale.Status != domain.SaleStatusPaid {
		t.Fatalf("status after full = %s, want %s", full.Sale.Status, domain.SaleStatusPaid)
	}
	if full.AmountPaid != 120000 {
		t.Fatalf("amount paid after full = %d, want 120000", full.AmountPaid)
	}

	payments, err := store.ListPaymentsForSale(context.Background(), sale.Sale.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("payments len = %d, want 2", len(payments))
	}
	if payments[0].Amount != 50000 || payments[1].Amount != 70000 {
		t.Fatalf("payment order = %d, %d, want 50000, 70000", payments[0].Amount, payments[1].Amount)
	}

	// sale.created at creation, sale.paid on the flip.
	counts, err := store.CountOutboxEvents(context.Background())
	if err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if counts[storage.OutboxStatusPending] != 2 {
		t.Fatalf("pending outbox = %d, want 2", counts[storage.OutboxStatusPending])
	}
}

func TestRecordSalePaymentOnCancelledSale(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 15, 30, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-026", 120000, 1, now)
	sale := seedSale(t, store, client.ID, product, 1, now)

	if _, err := store.CancelSale(context.Background(), sale.Sale.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}

	payment, err := domain.CreatePayment(domain.CreatePaymentInput{
		SaleID: sale.Sale.ID,
		Amount: 1000,
		Method: domain.PaymentMethodCash,
		PaidAt: now.Add(2 * time.Hour),
	}, fixedClock(now.Add(2*time.Hour)), nil)
	if err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if _, err := store.RecordSalePayment(context.Background(), payment); !errors.Is(err, domain.ErrSaleCancelled) {
		t.Fatalf("error = %v, want %v", err, domain.ErrSaleCancelled)
	}
}

func TestCancelSaleRestoresStock(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 16, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-027", 120000, 2, now)
	sale := seedSale(t, store, client.ID, product, 2, now)

	sold, err := store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if sold.Status != domain.ProductStatusSold {
		t.Fatalf("status before cancel = %s, want %s", sold.Status, domain.ProductStatusSold)
	}

	cancelled, err := store.CancelSale(context.Background(), sale.Sale.ID, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	if cancelled.Sale.Status != domain.SaleStatusCancelled {
		t.Fatalf("sale status = %s, want %s", cancelled.Sale.Status, domain.SaleStatusCancelled)
	}

	restored, err := store.GetProduct(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if restored.StockQty != 2 {
		t.Fatalf("stock = %d, want 2", restored.StockQty)
	}
	if restored.Status != domain.ProductStatusInStock {
		t.Fatalf("status after cancel = %s, want %s", restored.Status, domain.ProductStatusInStock)
	}

	if _, err := store.CancelSale(context.Background(), sale.Sale.ID, now.Add(2*time.Hour)); !errors.Is(err, domain.ErrSaleCancelled) {
		t.Fatalf("second cancel error = %v, want %v", err, domain.ErrSaleCancelled)
	}
}

func TestCancelSaleWithPaymentsRefused(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 16, 30, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-028", 120000, 1, now)
	sale := seedSale(t, store, client.ID, product, 1, now)
	recordCashPayment(t, store, sale.Sale.ID, 10000, now.Add(time.Hour))

	if _, err := store.CancelSale(context.Background(), sale.Sale.ID, now.Add(2*time.Hour)); !errors.Is(err, domain.ErrSaleHasPayments) {
		t.Fatalf("error = %v, want %v", err, domain.ErrSaleHasPayments)
	}
}

func TestListSalesOrdersByNumberDescending(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 17, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-029", 120000, 5, now)
	for i := 0; i < 3; i++ {
		seedSale(t, store, client.ID, product, 1, now)
	}

	pageOne, err := store.ListSales(context.Background(), storage.SaleFilter{}, 2, "")
	if err != nil {
		t.Fatalf("list page one: %v", err)
	}
	if len(pageOne.Sales) != 2 {
		t.Fatalf("page one len = %d, want 2", len(pageOne.Sales))
	}
	if pageOne.Sales[0].Sale.Number != "S-000003" || pageOne.Sales[1].Sale.Number != "S-000002" {
		t.Fatalf("page one numbers = %q, %q, want S-000003, S-000002",
			pageOne.Sales[0].Sale.Number, pageOne.Sales[1].Sale.Number)
	}
	if pageOne.NextPageToken == "" {
		t.Fatal("expected page one next token")
	}

	pageTwo, err := store.ListSales(context.Background(), storage.SaleFilter{}, 2, pageOne.NextPageToken)
	if err != nil {
		t.Fatalf("list page two: %v", err)
	}
	if len(pageTwo.Sales) != 1 {
		t.Fatalf("page two len = %d, want 1", len(pageTwo.Sales))
	}
	if pageTwo.Sales[0].Sale.Number != "S-000001" {
		t.Fatalf("page two number = %q, want S-000001", pageTwo.Sales[0].Sale.Number)
	}
	if pageTwo.NextPageToken != "" {
		t.Fatalf("page two next token = %q, want empty", pageTwo.NextPageToken)
	}
}

func TestListSalesFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.May, 11, 17, 30, 0, 0, time.UTC)
	anna := seedClient(t, store, "Anna Sokolova", "+79151111111", now)
	boris := seedClient(t, store, "Boris Orlov", "+79152222222", now)
	product := seedProduct(t, store, "RING-030", 120000, 5, now)

	seedSale(t, store, anna.ID, product, 1, now)
	laterSale := seedSale(t, store, boris.ID, product, 1, now.Add(48*time.Hour))
	cancelTarget := seedSale(t, store, boris.ID, product, 1, now)
	if _, err := store.CancelSale(context.Background(), cancelTarget.Sale.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}

	byClient, err := store.ListSales(context.Background(), storage.SaleFilter{ClientID: anna.ID}, 10, "")
	if err != nil {
		t.Fatalf("list by client: %v", err)
	}
	if len(byClient.Sales) != 1 {
		t.Fatalf("by client len = %d, want 1", len(byClient.Sales))
	}

	byStatus, err := store.ListSales(context.Background(), storage.SaleFilter{Status: domain.SaleStatusCancelled}, 10, "")
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(byStatus.Sales) != 1 {
		t.Fatalf("by status len = %d, want 1", len(byStatus.Sales))
	}
	if byStatus.Sales[0].Sale.ID != cancelTarget.Sale.ID {
		t.Fatalf("by status id = %q, want %q", byStatus.Sales[0].Sale.ID, cancelTarget.Sale.ID)
	}

	byWindow, err := store.ListSales(context.Background(), storage.SaleFilter{From: now.Add(24 * time.Hour)}, 10, "")
	if err != nil {
		t.Fatalf("list by window: %v", err)
	}
	if len(byWindow.Sales) != 1 {
		t.Fatalf("by window len = %d, want 1", len(byWindow.Sales))
	}
	if byWindow.Sales[0].Sale.ID != laterSale.Sale.ID {
		t.Fatalf("by window id = %q, want %q", byWindow.Sales[0].Sale.ID, laterSale.Sale.ID)
	}
}

func TestSummarizeSalesForDay(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	day := time.Date(2026, time.May, 12, 0, 0, 0, 0, time.UTC)
	morning := day.Add(10 * time.Hour)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", morning)
	band := seedProduct(t, store, "RING-031", 100000, 5, morning)
	chain := seedProduct(t, store, "CHAIN-031", 120000, 5, morning)

	discounted, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID:        client.ID,
		DiscountPercent: 10,
		SoldAt:          morning,
		Lines:           []domain.SaleLineInput{{ProductID: band.ID, Qty: 1, UnitPrice: band.Price}},
	}, fixedClock(morning), nil)
	if err != nil {
		t.Fatalf("create discounted sale: %v", err)
	}
	discountedRec, err := store.CreateSale(context.Background(), discounted)
	if err != nil {
		t.Fatalf("persist discounted sale: %v", err)
	}
	plain := seedSale(t, store, client.ID, chain, 1, morning.Add(time.Hour))

	recordCashPayment(t, store, discountedRec.Sale.ID, 50000, morning.Add(2*time.Hour))
	cardPayment, err := domain.CreatePayment(domain.CreatePaymentInput{
		SaleID: plain.Sale.ID,
		Amount: 90000,
		Method: domain.PaymentMethodCard,
		PaidAt: morning.Add(3 * time.Hour),
	}, fixedClock(morning.Add(3*time.Hour)), nil)
	if err != nil {
		t.Fatalf("create card payment: %v", err)
	}
	if _, err := store.RecordSalePayment(context.Background(), cardPayment); err != nil {
		t.Fatalf("record card payment: %v", err)
	}

	// Cancelled same-day sales and other days stay out of the summary.
	cancelTarget := seedSale(t, store, client.ID, chain, 1, morning.Add(4*time.Hour))
	if _, err := store.CancelSale(context.Background(), cancelTarget.Sale.ID, morning.Add(5*time.Hour)); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	seedSale(t, store, client.ID, band, 1, day.Add(26*time.Hour))

	summary, err := store.SummarizeSalesForDay(context.Background(), morning)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !summary.Day.Equal(day) {
		t.Fatalf("day = %v, want %v", summary.Day, day)
	}
	if summary.SaleCount != 2 {
		t.Fatalf("sale count = %d, want 2", summary.SaleCount)
	}
	if summary.Subtotal != 220000 {
		t.Fatalf("subtotal = %d, want 220000", summary.Subtotal)
	}
	if summary.Discount != 10000 {
		t.Fatalf("discount = %d, want 10000", summary.Discount)
	}
	if summary.Total != 210000 {
		t.Fatalf("total = %d, want 210000", summary.Total)
	}
	if summary.Paid != 140000 {
		t.Fatalf("paid = %d, want 140000", summary.Paid)
	}
	if len(summary.ByMethod) != 2 {
		t.Fatalf("by method len = %d, want 2", len(summary.ByMethod))
	}
	if summary.ByMethod[0].Method != domain.PaymentMethodCard || summary.ByMethod[0].Total != 90000 {
		t.Fatalf("by method[0] = %+v, want card 90000", summary.ByMethod[0])
	}
	if summary.ByMethod[1].Method != domain.PaymentMethodCash || summary.ByMethod[1].Total != 50000 {
		t.Fatalf("by method[1] = %+v, want cash 50000", summary.ByMethod[1])
	}
}
