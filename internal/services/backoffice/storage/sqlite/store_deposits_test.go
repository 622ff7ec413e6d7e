package sqlite

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func seedDeposit(t *testing.T, store *Store, clientID string, amount money.Amount, at time.Time) domain.Deposit {
	t.Helper()
	deposit, err := domain.CreateDeposit(domain.CreateDepositInput{
		ClientID: clientID,
		Amount:   amount,
		TakenAt:  at,
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create deposit: %v", err)
	}
	if err := store.CreateDeposit(context.Background(), deposit); err != nil {
		t.Fatalf("persist deposit: %v", err)
	}
	return deposit
}

func TestCreateGetDepositRoundTrip(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 10, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	deposit := seedDeposit(t, store, client.ID, 30000, now)

	got, err := store.GetDeposit(context.Background(), deposit.ID)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if got.Status != domain.DepositStatusHeld {
		t.Fatalf("status = %s, want %s", got.Status, domain.DepositStatusHeld)
	}
	if got.Amount != 30000 {
		t.Fatalf("amount = %d, want 30000", got.Amount)
	}
	if !got.TakenAt.Equal(now) {
		t.Fatalf("taken at = %v, want %v", got.TakenAt, now)
	}
	if got.SettledAt != nil {
		t.Fatalf("settled at = %v, want nil", got.SettledAt)
	}
}

func TestApplyDepositSettlesSale(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 11, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-040", 50000, 1, now)
	sale := seedSale(t, store, client.ID, product, 1, now)
	deposit := seedDeposit(t, store, client.ID, 50000, now)

	appliedAt := now.Add(time.Hour)
	applied, saleRecord, err := store.ApplyDeposit(context.Background(), deposit.ID, sale.Sale.ID, appliedAt)
	if err != nil {
		t.Fatalf("apply deposit: %v", err)
	}
	if applied.Status != domain.DepositStatusApplied {
		t.Fatalf("deposit status = %s, want %s", applied.Status, domain.DepositStatusApplied)
	}
	if applied.AppliedSaleID != sale.Sale.ID {
		t.Fatalf("applied sale id = %q, want %q", applied.AppliedSaleID, sale.Sale.ID)
	}
	if applied.SettledAt == nil || !applied.SettledAt.Equal(appliedAt) {
		t.Fatalf("settled at = %v, want %v", applied.SettledAt, appliedAt)
	}
	if saleRecord.Sale.Status != domain.SaleStatusPaid {
		t.Fatalf("sale status = %s, want %s", saleRecord.Sale.Status, domain.SaleStatusPaid)
	}
	if saleRecord.AmountPaid != 50000 {
		t.Fatalf("amount paid = %d, want 50000", saleRecord.AmountPaid)
	}

	payments, err := store.ListPaymentsForSale(context.Background(), sale.Sale.ID)
	if err != nil {
		t.Fatalf("list payments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("payments len = %d, want 1", len(payments))
	}
	if payments[0].Method != domain.PaymentMethodDeposit {
		t.Fatalf("method = %s, want %s", payments[0].Method, domain.PaymentMethodDeposit)
	}
	if want := fmt.Sprintf("deposit %s applied", deposit.ID); payments[0].Note != want {
		t.Fatalf("note = %q, want %q", payments[0].Note, want)
	}

	if _, _, err := store.ApplyDeposit(context.Background(), deposit.ID, sale.Sale.ID, now.Add(2*time.Hour)); !errors.Is(err, domain.ErrDepositNotHeld) {
		t.Fatalf("second apply error = %v, want %v", err, domain.ErrDepositNotHeld)
	}
}

func TestApplyDepositToCancelledSale(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 12, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	product := seedProduct(t, store, "RING-041", 50000, 1, now)
	sale := seedSale(t, store, client.ID, product, 1, now)
	deposit := seedDeposit(t, store, client.ID, 50000, now)

	if _, err := store.CancelSale(context.Background(), sale.Sale.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	if _, _, err := store.ApplyDeposit(context.Background(), deposit.ID, sale.Sale.ID, now.Add(2*time.Hour)); !errors.Is(err, domain.ErrSaleCancelled) {
		t.Fatalf("error = %v, want %v", err, domain.ErrSaleCancelled)
	}

	// The failed apply leaves the deposit on hold.
	held, err := store.GetDeposit(context.Background(), deposit.ID)
	if err != nil {
		t.Fatalf("get deposit: %v", err)
	}
	if held.Status != domain.DepositStatusHeld {
		t.Fatalf("deposit status = %s, want %s", held.Status, domain.DepositStatusHeld)
	}
}

func TestApplyDepositUnknownDeposit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 12, 30, 0, 0, time.UTC)
	if _, _, err := store.ApplyDeposit(context.Background(), "missing", "sale-1", now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("error = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestRefundDeposit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 13, 0, 0, 0, time.UTC)
	client := seedClient(t, store, "Anna Sokolova", "+79151234567", now)
	deposit := seedDeposit(t, store, client.ID, 30000, now)

	refundedAt := now.Add(time.Hour)
	refunded, err := store.RefundDeposit(context.Background(), deposit.ID, refundedAt)
	if err != nil {
		t.Fatalf("refund deposit: %v", err)
	}
	if refunded.Status != domain.DepositStatusRefunded {
		t.Fatalf("status = %s, want %s", refunded.Status, domain.DepositStatusRefunded)
	}
	if refunded.SettledAt == nil || !refunded.SettledAt.Equal(refundedAt) {
		t.Fatalf("settled at = %v, want %v", refunded.SettledAt, refundedAt)
	}

	if _, err := store.RefundDeposit(context.Background(), deposit.ID, now.Add(2*time.Hour)); !errors.Is(err, domain.ErrDepositNotHeld) {
		t.Fatalf("second refund error = %v, want %v", err, domain.ErrDepositNotHeld)
	}
}

func TestListDepositsFilters(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	now := time.Date(2026, time.June, 8, 14, 0, 0, 0, time.UTC)
	anna := seedClient(t, store, "Anna Sokolova", "+79151111111", now)
	boris := seedClient(t, store, "Boris Orlov", "+79152222222", now)

	seedDeposit(t, store, anna.ID, 10000, now)
	seedDeposit(t, store, anna.ID, 20000, now)
	refundTarget := seedDeposit(t, store, boris.ID, 30000, now)
	if _, err := store.RefundDeposit(context.Background(), refundTarget.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("refund deposit: %v", err)
	}

	byClient, err := store.ListDeposits(context.Background(), storage.DepositFilter{ClientID: anna.ID}, 10, "")
	if err != nil {
		t.Fatalf("list by client: %v", err)
	}
	if len(byClient.Deposits) != 2 {
		t.Fatalf("by client len = %d, want 2", len(byClient.Deposits))
	}

	held, err := store.ListDeposits(context.Background(), storage.DepositFilter{Status: domain.DepositStatusHeld}, 10, "")
	if err != nil {
		t.Fatalf("list held: %v", err)
	}
	if len(held.Deposits) != 2 {
		t.Fatalf("held len = %d, want 2", len(held.Deposits))
	}

	refunded, err := store.ListDeposits(context.Background(), storage.DepositFilter{Status: domain.DepositStatusRefunded}, 10, "")
	if err != nil {
		t.Fatalf("list refunded: %v", err)
	}
	if len(refunded.Deposits) != 1 {
		t.Fatalf("refunded len = %d, want 1", len(refunded.Deposits))
	}
	if refunded.Deposits[0].ID != refundTarget.ID {
		t.Fatalf("refunded id = %q, want %q", refunded.Deposits[0].ID, refundTarget.ID)
	}
}
