// Package seed populates a development database with a demo dataset:
// a staff admin, suppliers, products, a received purchase, a sale with
// a payment, a repair, a deposit, and a shipment. It writes directly
// through the sqlite store, so the server does not need to be running.
package seed

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage/sqlite"
	"github.com/caarlos0/env/v11"
)

// demoPassword is the password of the seeded admin account. Seeding is
// a development convenience; the account is meant to be replaced before
// anything faces a network.
const demoPassword = "atelier-demo"

// Config holds seed command configuration.
type Config struct {
	DBPath  string        `env:"ATELIER_DB_PATH"`
	Timeout time.Duration `env:"ATELIER_SEED_TIMEOUT" envDefault:"2m"`
	Force   bool
}

type envConfig struct {
	DBPath  string        `env:"ATELIER_DB_PATH"`
	Timeout time.Duration `env:"ATELIER_SEED_TIMEOUT" envDefault:"2m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := env.Parse(&envCfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "atelier.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to the back-office sqlite database")
	fs.BoolVar(&cfg.Force, "force", false, "seed even when the database already has data")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run seeds the demo dataset into the configured database.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if !cfg.Force {
		empty, err := isEmpty(ctx, store)
		if err != nil {
			return err
		}
		if !empty {
			return errors.New("database already has data (use -force to seed anyway)")
		}
	}

	return seed(ctx, store, out)
}

func isEmpty(ctx context.Context, store storage.Store) (bool, error) {
	staff, err := store.ListStaffUsers(ctx, 1, "")
	if err != nil {
		return false, fmt.Errorf("check staff: %w", err)
	}
	if len(staff.Users) > 0 {
		return false, nil
	}
	clients, err := store.ListClients(ctx, "", 1, "")
	if err != nil {
		return false, fmt.Errorf("check clients: %w", err)
	}
	if len(clients.Clients) > 0 {
		return false, nil
	}
	products, err := store.ListProducts(ctx, storage.ProductFilter{MaxStock: -1}, 1, "")
	if err != nil {
		return false, fmt.Errorf("check products: %w", err)
	}
	return len(products.Products) == 0, nil
}

func seed(ctx context.Context, store storage.Store, out io.Writer) error {
	admin, err := domain.CreateStaffUser(domain.CreateStaffUserInput{
		Username:    "admin",
		Password:    demoPassword,
		DisplayName: "Administrator",
		Role:        domain.StaffRoleAdmin,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build staff admin: %w", err)
	}
	if err := store.PutStaffUser(ctx, admin); err != nil {
		return fmt.Errorf("seed staff admin: %w", err)
	}
	fmt.Fprintf(out, "staff: %s (password %s)\n", admin.Username, demoPassword)

	aurora, err := seedSupplier(ctx, store, out, domain.CreateSupplierInput{
		Name:        "Aurora Gems",
		ContactName: "Elena Orlova",
		Phone:       "+74950001122",
		Email:       "sales@auroragems.example",
	})
	if err != nil {
		return err
	}
	ural, err := seedSupplier(ctx, store, out, domain.CreateSupplierInput{
		Name:        "Ural Gold Works",
		ContactName: "Sergey Volkov",
		Phone:       "+73430002233",
	})
	if err != nil {
		return err
	}

	anna, err := seedClient(ctx, store, out, domain.CreateClientInput{
		FullName:         "Anna Sokolova",
		Phone:            "+79150001133",
		Email:            "anna.sokolova@example.com",
		TelegramUsername: "asokolova",
		DiscountPercent:  5,
	})
	if err != nil {
		return err
	}
	mikhail, err := seedClient(ctx, store, out, domain.CreateClientInput{
		FullName: "Mikhail Petrov",
		Phone:    "+79160002244",
	})
	if err != nil {
		return err
	}

	ring, err := seedProduct(ctx, store, out, domain.CreateProductInput{
		SKU:        "R-AU-001",
		Name:       "Gold ring with emerald",
		Category:   domain.CategoryRing,
		Metal:      domain.MetalGold585,
		WeightMg:   3200,
		Size:       "17",
		SupplierID: aurora.ID,
		Price:      money.Amount(1290000),
	})
	if err != nil {
		return err
	}
	earrings, err := seedProduct(ctx, store, out, domain.CreateProductInput{
		SKU:        "E-AU-002",
		Name:       "Gold earrings with diamonds",
		Category:   domain.CategoryEarrings,
		Metal:      domain.MetalGold750,
		WeightMg:   5400,
		SupplierID: aurora.ID,
		Price:      money.Amount(2450000),
	})
	if err != nil {
		return err
	}
	if _, err := seedProduct(ctx, store, out, domain.CreateProductInput{
		SKU:        "N-AG-003",
		Name:       "Silver chain necklace",
		Category:   domain.CategoryNecklace,
		Metal:      domain.MetalSilver925,
		WeightMg:   12000,
		SupplierID: ural.ID,
		Cost:       money.Amount(180000),
		Price:      money.Amount(390000),
		StockQty:   3,
	}); err != nil {
		return err
	}
	if _, err := seedProduct(ctx, store, out, domain.CreateProductInput{
		SKU:        "B-AU-004",
		Name:       "Gold bracelet",
		Category:   domain.CategoryBracelet,
		Metal:      domain.MetalGold585,
		WeightMg:   8100,
		SupplierID: ural.ID,
		Cost:       money.Amount(520000),
		Price:      money.Amount(980000),
		StockQty:   2,
	}); err != nil {
		return err
	}

	purchase, err := domain.CreatePurchase(domain.CreatePurchaseInput{
		SupplierID: aurora.ID,
		Reference:  "PO-2026-001",
		Lines: []domain.PurchaseLineInput{
			{ProductID: ring.ID, Qty: 2, UnitCost: money.Amount(620000)},
			{ProductID: earrings.ID, Qty: 1, UnitCost: money.Amount(1150000)},
		},
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build purchase: %w", err)
	}
	if err := store.CreatePurchase(ctx, purchase); err != nil {
		return fmt.Errorf("seed purchase: %w", err)
	}
	received, err := store.ReceivePurchase(ctx, purchase.ID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("receive purchase: %w", err)
	}
	fmt.Fprintf(out, "purchase: %s received (%d lines)\n", received.Reference, len(received.Lines))

	sale, err := domain.CreateSale(domain.CreateSaleInput{
		ClientID:        anna.ID,
		DiscountPercent: anna.DiscountPercent,
		Lines: []domain.SaleLineInput{
			{ProductID: ring.ID, Qty: 1, UnitPrice: ring.Price},
		},
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build sale: %w", err)
	}
	saleRec, err := store.CreateSale(ctx, sale)
	if err != nil {
		return fmt.Errorf("seed sale: %w", err)
	}
	payment, err := domain.CreatePayment(domain.CreatePaymentInput{
		SaleID:     saleRec.Sale.ID,
		Amount:     money.Amount(500000),
		Method:     domain.PaymentMethodCash,
		RecordedBy: admin.ID,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build payment: %w", err)
	}
	saleRec, err = store.RecordSalePayment(ctx, payment)
	if err != nil {
		return fmt.Errorf("seed payment: %w", err)
	}
	fmt.Fprintf(out, "sale: %s total=%d paid=%d\n",
		saleRec.Sale.Number, int64(saleRec.Sale.Totals().Total), int64(saleRec.AmountPaid))

	promised := time.Now().UTC().Add(72 * time.Hour)
	repair, err := domain.CreateRepair(domain.CreateRepairInput{
		ClientID:        mikhail.ID,
		ItemDescription: "Vintage gold watch",
		Issue:           "Broken clasp, worn bezel",
		EstimatedPrice:  money.Amount(150000),
		PromisedAt:      &promised,
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build repair: %w", err)
	}
	repairRec, err := store.CreateRepair(ctx, repair)
	if err != nil {
		return fmt.Errorf("seed repair: %w", err)
	}
	repairRec, err = store.TransitionRepair(ctx, repairRec.Repair.ID, domain.RepairStatusInProgress, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("start repair: %w", err)
	}
	fmt.Fprintf(out, "repair: %s (%s)\n", repairRec.Repair.Number, repairRec.Repair.Status)

	deposit, err := domain.CreateDeposit(domain.CreateDepositInput{
		ClientID: anna.ID,
		Amount:   money.Amount(300000),
		Note:     "Custom pendant order",
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build deposit: %w", err)
	}
	if err := store.CreateDeposit(ctx, deposit); err != nil {
		return fmt.Errorf("seed deposit: %w", err)
	}
	fmt.Fprintf(out, "deposit: %d held for %s\n", int64(deposit.Amount), anna.FullName)

	shipment, err := domain.CreateShipment(domain.CreateShipmentInput{
		SaleID:       saleRec.Sale.ID,
		Courier:      "cdek",
		TrackingCode: "TRK-1001845",
	}, nil, nil)
	if err != nil {
		return fmt.Errorf("build shipment: %w", err)
	}
	if err := store.CreateShipment(ctx, shipment); err != nil {
		return fmt.Errorf("seed shipment: %w", err)
	}
	fmt.Fprintf(out, "shipment: %s via %s\n", shipment.TrackingCode, shipment.Courier)

	return nil
}

func seedSupplier(ctx context.Context, store storage.Store, out io.Writer, input domain.CreateSupplierInput) (domain.Supplier, error) {
	supplier, err := domain.CreateSupplier(input, nil, nil)
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("build supplier %q: %w", input.Name, err)
	}
	if err := store.PutSupplier(ctx, supplier); err != nil {
		return domain.Supplier{}, fmt.Errorf("seed supplier %q: %w", input.Name, err)
	}
	fmt.Fprintf(out, "supplier: %s\n", supplier.Name)
	return supplier, nil
}

func seedClient(ctx context.Context, store storage.Store, out io.Writer, input domain.CreateClientInput) (domain.Client, error) {
	client, err := domain.CreateClient(input, nil, nil)
	if err != nil {
		return domain.Client{}, fmt.Errorf("build client %q: %w", input.FullName, err)
	}
	if err := store.PutClient(ctx, client); err != nil {
		return domain.Client{}, fmt.Errorf("seed client %q: %w", input.FullName, err)
	}
	fmt.Fprintf(out, "client: %s\n", client.FullName)
	return client, nil
}

func seedProduct(ctx context.Context, store storage.Store, out io.Writer, input domain.CreateProductInput) (domain.Product, error) {
	product, err := domain.CreateProduct(input, nil, nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build product %q: %w", input.SKU, err)
	}
	if err := store.PutProduct(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("seed product %q: %w", input.SKU, err)
	}
	fmt.Fprintf(out, "product: %s %s\n", product.SKU, product.Name)
	return product, nil
}

func openStore(path string) (*sqlite.Store, error) {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}
