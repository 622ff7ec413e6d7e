package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
	"github.com/atelier-erp/atelier/internal/platform/money"
)

var (
	// ErrProductSKUEmpty indicates a missing stock keeping unit.
	ErrProductSKUEmpty = apperrors.New(apperrors.CodeProductSKUEmpty, "product sku is required")
	// ErrProductNameEmpty indicates a missing product name.
	ErrProductNameEmpty = apperrors.New(apperrors.CodeProductNameEmpty, "product name is required")
	// ErrProductInvalidCategory indicates an unknown category value.
	ErrProductInvalidCategory = apperrors.New(apperrors.CodeProductInvalidCategory, "product category is not valid")
	// ErrProductInvalidMetal indicates an unknown metal value.
	ErrProductInvalidMetal = apperrors.New(apperrors.CodeProductInvalidMetal, "product metal is not valid")
	// ErrProductNegativeAmount indicates a negative cost or price.
	ErrProductNegativeAmount = apperrors.New(apperrors.CodeProductNegativeAmount, "product cost and price must not be negative")
	// ErrProductNegativeWeight indicates a negative weight.
	ErrProductNegativeWeight = apperrors.New(apperrors.CodeProductNegativeWeight, "product weight must not be negative")
)

// Category classifies a product within the catalog.
type Category int

const (
	// CategoryUnspecified represents an invalid category value.
	CategoryUnspecified Category = iota
	// CategoryRing is a finger ring.
	CategoryRing
	// CategoryEarrings is a pair of earrings.
	CategoryEarrings
	// CategoryNecklace is a necklace or chain.
	CategoryNecklace
	// CategoryBracelet is a bracelet.
	CategoryBracelet
	// CategoryPendant is a pendant or charm.
	CategoryPendant
	// CategoryWatch is a wristwatch.
	CategoryWatch
	// CategoryOther covers items outside the named categories.
	CategoryOther
)

// String returns the stable text form used in storage and over the API.
func (c Category) String() string {
	switch c {
	case CategoryRing:
		return "ring"
	case CategoryEarrings:
		return "earrings"
	case CategoryNecklace:
		return "necklace"
	case CategoryBracelet:
		return "bracelet"
	case CategoryPendant:
		return "pendant"
	case CategoryWatch:
		return "watch"
	case CategoryOther:
		return "other"
	default:
		return "unspecified"
	}
}

// ParseCategory converts a text form back to a Category.
func ParseCategory(raw string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ring":
		return CategoryRing, nil
	case "earrings":
		return CategoryEarrings, nil
	case "necklace":
		return CategoryNecklace, nil
	case "bracelet":
		return CategoryBracelet, nil
	case "pendant":
		return CategoryPendant, nil
	case "watch":
		return CategoryWatch, nil
	case "other":
		return CategoryOther, nil
	default:
		return CategoryUnspecified, ErrProductInvalidCategory
	}
}

// Metal identifies the primary material of a product.
type Metal int

const (
	// MetalUnspecified represents an invalid metal value.
	MetalUnspecified Metal = iota
	// MetalGold585 is 585-hallmark (14k) gold.
	MetalGold585
	// MetalGold750 is 750-hallmark (18k) gold.
	MetalGold750
	// MetalSilver925 is sterling silver.
	MetalSilver925
	// MetalPlatinum950 is 950-hallmark platinum.
	MetalPlatinum950
	// MetalSteel is surgical or stainless steel.
	MetalSteel
	// MetalOther covers materials outside the named metals.
	MetalOther
)

// String returns the stable text form used in storage and over the API.
func (m Metal) String() string {
	switch m {
	case MetalGold585:
		return "gold-585"
	case MetalGold750:
		return "gold-750"
	case MetalSilver925:
		return "silver-925"
	case MetalPlatinum950:
		return "platinum-950"
	case MetalSteel:
		return "steel"
	case MetalOther:
		return "other"
	default:
		return "unspecified"
	}
}

// ParseMetal converts a text form back to a Metal.
func ParseMetal(raw string) (Metal, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gold-585":
		return MetalGold585, nil
	case "gold-750":
		return MetalGold750, nil
	case "silver-925":
		return MetalSilver925, nil
	case "platinum-950":
		return MetalPlatinum950, nil
	case "steel":
		return MetalSteel, nil
	case "other":
		return MetalOther, nil
	default:
		return MetalUnspecified, ErrProductInvalidMetal
	}
}

// ProductStatus tracks a product through the inventory lifecycle.
type ProductStatus int

const (
	// ProductStatusUnspecified represents an invalid status value.
	ProductStatusUnspecified ProductStatus = iota
	// ProductStatusDraft is a registered product not yet received.
	ProductStatusDraft
	// ProductStatusInStock is a sellable product with stock on hand.
	ProductStatusInStock
	// ProductStatusSold is a product whose stock is exhausted.
	ProductStatusSold
	// ProductStatusArchived is a product withdrawn from sale.
	ProductStatusArchived
)

// String returns the stable text form used in storage and over the API.
func (s ProductStatus) String() string {
	switch s {
	case ProductStatusDraft:
		return "draft"
	case ProductStatusInStock:
		return "in-stock"
	case ProductStatusSold:
		return "sold"
	case ProductStatusArchived:
		return "archived"
	default:
		return "unspecified"
	}
}

// ParseProductStatus converts a text form back to a ProductStatus.
func ParseProductStatus(raw string) (ProductStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "draft":
		return ProductStatusDraft, nil
	case "in-stock":
		return ProductStatusInStock, nil
	case "sold":
		return ProductStatusSold, nil
	case "archived":
		return ProductStatusArchived, nil
	default:
		return ProductStatusUnspecified, fmt.Errorf("unknown product status %q", raw)
	}
}

// Product represents one catalog item. Weight is stored in milligrams so
// fractional gram weights stay integral.
type Product struct {
	ID         string
	SKU        string
	Name       string
	Category   Category
	Metal      Metal
	WeightMg   int64
	Size       string
	SupplierID string
	Cost       money.Amount
	Price      money.Amount
	StockQty   int64
	Status     ProductStatus
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Margin returns the whole-percent margin of price over cost. The second
// return is false when cost is zero and no margin can be derived.
func (p Product) Margin() (int64, bool) {
	return money.MarginPercent(p.Cost, p.Price)
}

// Sellable reports whether the product can appear on a new sale.
func (p Product) Sellable() bool {
	return p.Status == ProductStatusInStock && p.StockQty > 0
}

// CreateProductInput describes the data needed to register a product.
type CreateProductInput struct {
	SKU        string
	Name       string
	Category   Category
	Metal      Metal
	WeightMg   int64
	Size       string
	SupplierID string
	Cost       money.Amount
	Price      money.Amount
	StockQty   int64
	Notes      string
}

// CreateProduct creates a new product with a generated ID and timestamps.
// Products registered with stock start in-stock; the rest start as drafts
// and enter stock when a purchase is received.
func CreateProduct(input CreateProductInput, now func() time.Time, idGenerator func() (string, error)) (Product, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateProductInput(input)
	if err != nil {
		return Product{}, err
	}

	productID, err := idGenerator()
	if err != nil {
		return Product{}, fmt.Errorf("generate product id: %w", err)
	}

	status := ProductStatusDraft
	if normalized.StockQty > 0 {
		status = ProductStatusInStock
	}

	createdAt := now().UTC()
	return Product{
		ID:         productID,
		SKU:        normalized.SKU,
		Name:       normalized.Name,
		Category:   normalized.Category,
		Metal:      normalized.Metal,
		WeightMg:   normalized.WeightMg,
		Size:       normalized.Size,
		SupplierID: normalized.SupplierID,
		Cost:       normalized.Cost,
		Price:      normalized.Price,
		StockQty:   normalized.StockQty,
		Status:     status,
		Notes:      normalized.Notes,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}, nil
}

// NormalizeCreateProductInput trims and validates product input.
func NormalizeCreateProductInput(input CreateProductInput) (CreateProductInput, error) {
	input.SKU = strings.ToUpper(strings.TrimSpace(input.SKU))
	if input.SKU == "" {
		return CreateProductInput{}, ErrProductSKUEmpty
	}
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateProductInput{}, ErrProductNameEmpty
	}
	if input.Category == CategoryUnspecified {
		return CreateProductInput{}, ErrProductInvalidCategory
	}
	if input.Metal == MetalUnspecified {
		return CreateProductInput{}, ErrProductInvalidMetal
	}
	if input.WeightMg < 0 {
		return CreateProductInput{}, ErrProductNegativeWeight
	}
	if input.Cost.IsNegative() || input.Price.IsNegative() {
		return CreateProductInput{}, ErrProductNegativeAmount
	}
	if input.StockQty < 0 {
		return CreateProductInput{}, apperrors.New(apperrors.CodeProductInsufficientStock, "product stock must not be negative")
	}
	input.Size = strings.TrimSpace(input.Size)
	input.SupplierID = strings.TrimSpace(input.SupplierID)
	input.Notes = strings.TrimSpace(input.Notes)
	return input, nil
}
