package rest

import (
	"net/http"

	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreatePurchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	input := domain.CreatePurchaseInput{
		SupplierID: req.SupplierID,
		Reference:  req.Reference,
		Lines:      make([]domain.PurchaseLineInput, 0, len(req.Lines)),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, domain.PurchaseLineInput{
			ProductID: line.ProductID,
			Qty:       line.Qty,
			UnitCost:  money.Amount(line.UnitCost),
		})
	}
	purchase, err := domain.CreatePurchase(input, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.CreatePurchase(r.Context(), purchase); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPurchase(purchase))
}

func (s *Server) handleGetPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := pathValue(r, "purchaseID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	purchase, err := s.store.GetPurchase(r.Context(), purchaseID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPurchase(purchase))
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListPurchases(r.Context(), r.URL.Query().Get("supplier_id"), pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.PurchasePage{
		Purchases:     make([]apitypes.Purchase, 0, len(page.Purchases)),
		NextPageToken: page.NextPageToken,
	}
	for _, purchase := range page.Purchases {
		out.Purchases = append(out.Purchases, toPurchase(purchase))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReceivePurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := pathValue(r, "purchaseID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	purchase, err := s.store.ReceivePurchase(r.Context(), purchaseID, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPurchase(purchase))
}

func (s *Server) handleCancelPurchase(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := pathValue(r, "purchaseID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	purchase, err := s.store.CancelPurchase(r.Context(), purchaseID, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPurchase(purchase))
}
