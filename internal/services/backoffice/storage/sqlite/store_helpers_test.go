package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "backoffice.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func sequenceIDs(prefix string) func() (string, error) {
	var n int
	return func() (string, error) {
		n++
		return fmt.Sprintf("%s-%d", prefix, n), nil
	}
}

func seedClient(t *testing.T, store *Store, name, phone string, at time.Time) domain.Client {
	t.Helper()

	client, err := domain.CreateClient(domain.CreateClientInput{
		FullName: name,
		Phone:    phone,
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create client fixture: %v", err)
	}
	if err := store.PutClient(context.Background(), client); err != nil {
		t.Fatalf("put client fixture: %v", err)
	}
	return client
}

func seedSupplier(t *testing.T, store *Store, name string, at time.Time) domain.Supplier {
	t.Helper()
	supplier, err := domain.CreateSupplier(domain.CreateSupplierInput{Name: name}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create supplier %s: %v", name, err)
	}
	if err := store.PutSupplier(context.Background(), supplier); err != nil {
		t.Fatalf("persist supplier %s: %v", name, err)
	}
	return supplier
}

func seedProduct(t *testing.T, store *Store, sku string, price money.Amount, qty int64, at time.Time) domain.Product {
	t.Helper()

	product, err := domain.CreateProduct(domain.CreateProductInput{
		SKU:      sku,
		Name:     "Product " + sku,
		Category: domain.CategoryRing,
		Metal:    domain.MetalGold585,
		WeightMg: 3200,
		Cost:     price / 2,
		Price:    price,
		StockQty: qty,
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create product fixture: %v", err)
	}
	if err := store.PutProduct(context.Background(), product); err != nil {
		t.Fatalf("put product fixture: %v", err)
	}
	return product
}

func seedSale(t *testing.T, store *Store, clientID string, product domain.Product, qty int64, at time.Time) storage.SaleRecord {
	t.Helper()

	sale, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID: clientID,
		SoldAt:   at,
		Lines: []domain.SaleLineInput{{
			ProductID: product.ID,
			Qty:       qty,
			UnitPrice: product.Price,
		}},
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create sale fixture: %v", err)
	}
	record, err := store.CreateSale(context.Background(), sale)
	if err != nil {
		t.Fatalf("persist sale fixture: %v", err)
	}
	return record
}

func seedRepair(t *testing.T, store *Store, clientID, item string, at time.Time) storage.RepairRecord {
	t.Helper()

	repair, err := domain.CreateRepair(domain.CreateRepairInput{
		ClientID:        clientID,
		ItemDescription: item,
		Issue:           "clasp is loose",
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create repair fixture: %v", err)
	}
	record, err := store.CreateRepair(context.Background(), repair)
	if err != nil {
		t.Fatalf("persist repair fixture: %v", err)
	}
	return record
}

func recordCashPayment(t *testing.T, store *Store, saleID string, amount money.Amount, at time.Time) storage.SaleRecord {
	t.Helper()

	payment, err := domain.CreatePayment(domain.CreatePaymentInput{
		SaleID: saleID,
		Amount: amount,
		Method: domain.PaymentMethodCash,
		PaidAt: at,
	}, fixedClock(at), nil)
	if err != nil {
		t.Fatalf("create payment fixture: %v", err)
	}
	record, err := store.RecordSalePayment(context.Background(), payment)
	if err != nil {
		t.Fatalf("record sale payment: %v", err)
	}
	return record
}
