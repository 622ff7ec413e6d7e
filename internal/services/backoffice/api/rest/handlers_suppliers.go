package rest

import (
	"net/http"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateSupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	supplier, err := domain.CreateSupplier(domain.CreateSupplierInput{
		Name:        req.Name,
		ContactName: req.ContactName,
		Phone:       req.Phone,
		Email:       req.Email,
		Notes:       req.Notes,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.PutSupplier(r.Context(), supplier); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toSupplier(supplier))
}

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	supplierID, err := pathValue(r, "supplierID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	supplier, err := s.store.GetSupplier(r.Context(), supplierID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSupplier(supplier))
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListSuppliers(r.Context(), pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.SupplierPage{
		Suppliers:     make([]apitypes.Supplier, 0, len(page.Suppliers)),
		NextPageToken: page.NextPageToken,
	}
	for _, supplier := range page.Suppliers {
		out.Suppliers = append(out.Suppliers, toSupplier(supplier))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	supplierID, err := pathValue(r, "supplierID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.UpdateSupplierRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	supplier, err := s.store.GetSupplier(r.Context(), supplierID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	merged := domain.CreateSupplierInput{
		Name:        supplier.Name,
		ContactName: supplier.ContactName,
		Phone:       supplier.Phone,
		Email:       supplier.Email,
		Notes:       supplier.Notes,
	}
	if req.Name != nil {
		merged.Name = *req.Name
	}
	if req.ContactName != nil {
		merged.ContactName = *req.ContactName
	}
	if req.Phone != nil {
		merged.Phone = *req.Phone
	}
	if req.Email != nil {
		merged.Email = *req.Email
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}
	normalized, err := domain.NormalizeCreateSupplierInput(merged)
	if err != nil {
		s.writeError(w, err)
		return
	}

	supplier.Name = normalized.Name
	supplier.ContactName = normalized.ContactName
	supplier.Phone = normalized.Phone
	supplier.Email = normalized.Email
	supplier.Notes = normalized.Notes
	supplier.UpdatedAt = s.now().UTC()
	if err := s.store.PutSupplier(r.Context(), supplier); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSupplier(supplier))
}
