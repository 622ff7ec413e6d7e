package rest

import (
	"net/http"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/money"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
	"github.com/atelier-erp/atelier/internal/services/backoffice/storage"
)

func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	takenAt := s.now().UTC()
	if req.TakenAt != nil {
		takenAt = *req.TakenAt
	}
	deposit, err := domain.CreateDeposit(domain.CreateDepositInput{
		ClientID: req.ClientID,
		Amount:   money.Amount(req.Amount),
		Note:     req.Note,
		TakenAt:  takenAt,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.CreateDeposit(r.Context(), deposit); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toDeposit(deposit))
}

func (s *Server) handleGetDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, err := pathValue(r, "depositID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	deposit, err := s.store.GetDeposit(r.Context(), depositID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDeposit(deposit))
}

func (s *Server) handleListDeposits(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.DepositFilter{ClientID: strings.TrimSpace(query.Get("client_id"))}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseDepositStatus(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown deposit status %q", raw))
			return
		}
		filter.Status = status
	}

	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListDeposits(r.Context(), filter, pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.DepositPage{
		Deposits:      make([]apitypes.Deposit, 0, len(page.Deposits)),
		NextPageToken: page.NextPageToken,
	}
	for _, deposit := range page.Deposits {
		out.Deposits = append(out.Deposits, toDeposit(deposit))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleApplyDeposit settles a held deposit against a sale. The store
// runs the whole exchange in one transaction and answers with both
// sides of it.
func (s *Server) handleApplyDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, err := pathValue(r, "depositID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.ApplyDepositRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	saleID := strings.TrimSpace(req.SaleID)
	if saleID == "" {
		s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "sale_id is required"))
		return
	}
	deposit, _, err := s.store.ApplyDeposit(r.Context(), depositID, saleID, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDeposit(deposit))
}

func (s *Server) handleRefundDeposit(w http.ResponseWriter, r *http.Request) {
	depositID, err := pathValue(r, "depositID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	deposit, err := s.store.RefundDeposit(r.Context(), depositID, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toDeposit(deposit))
}
