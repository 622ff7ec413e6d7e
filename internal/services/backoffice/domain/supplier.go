package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
)

// ErrSupplierNameEmpty indicates a missing supplier name.
var ErrSupplierNameEmpty = apperrors.New(apperrors.CodeSupplierNameEmpty, "supplier name is required")

// Supplier represents a wholesale source of goods.
type Supplier struct {
	ID          string
	Name        string
	ContactName string
	Phone       string
	Email       string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateSupplierInput describes the data needed to register a supplier.
type CreateSupplierInput struct {
	Name        string
	ContactName string
	Phone       string
	Email       string
	Notes       string
}

// CreateSupplier creates a new supplier with a generated ID and timestamps.
func CreateSupplier(input CreateSupplierInput, now func() time.Time, idGenerator func() (string, error)) (Supplier, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateSupplierInput(input)
	if err != nil {
		return Supplier{}, err
	}

	supplierID, err := idGenerator()
	if err != nil {
		return Supplier{}, fmt.Errorf("generate supplier id: %w", err)
	}

	createdAt := now().UTC()
	return Supplier{
		ID:          supplierID,
		Name:        normalized.Name,
		ContactName: normalized.ContactName,
		Phone:       normalized.Phone,
		Email:       normalized.Email,
		Notes:       normalized.Notes,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}, nil
}

// NormalizeCreateSupplierInput trims and validates supplier input.
func NormalizeCreateSupplierInput(input CreateSupplierInput) (CreateSupplierInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return CreateSupplierInput{}, ErrSupplierNameEmpty
	}
	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return CreateSupplierInput{}, err
	}
	input.Phone = phone
	input.ContactName = strings.TrimSpace(input.ContactName)
	input.Email = strings.TrimSpace(input.Email)
	input.Notes = strings.TrimSpace(input.Notes)
	return input, nil
}
