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

func (s *Server) handleCreateRepair(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateRepairRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	repair, err := domain.CreateRepair(domain.CreateRepairInput{
		ClientID:        req.ClientID,
		ItemDescription: req.ItemDescription,
		Issue:           req.Issue,
		EstimatedPrice:  money.Amount(req.EstimatedPrice),
		PromisedAt:      req.PromisedAt,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.CreateRepair(r.Context(), repair)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toRepair(record))
}

func (s *Server) handleGetRepair(w http.ResponseWriter, r *http.Request) {
	repairID, err := pathValue(r, "repairID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.GetRepair(r.Context(), repairID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRepair(record))
}

func (s *Server) handleGetRepairByNumber(w http.ResponseWriter, r *http.Request) {
	number, err := pathValue(r, "number")
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.GetRepairByNumber(r.Context(), number)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRepair(record))
}

func (s *Server) handleListRepairs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := storage.RepairFilter{ClientID: strings.TrimSpace(query.Get("client_id"))}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		status, err := domain.ParseRepairStatus(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown repair status %q", raw))
			return
		}
		filter.Status = status
	}

	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListRepairs(r.Context(), filter, pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.RepairPage{
		Repairs:       make([]apitypes.Repair, 0, len(page.Repairs)),
		NextPageToken: page.NextPageToken,
	}
	for _, record := range page.Repairs {
		out.Repairs = append(out.Repairs, toRepair(record))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateRepair(w http.ResponseWriter, r *http.Request) {
	repairID, err := pathValue(r, "repairID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.UpdateRepairRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	update := storage.RepairDetailsUpdate{
		ItemDescription: req.ItemDescription,
		Issue:           req.Issue,
		PromisedAt:      req.PromisedAt,
	}
	if req.EstimatedPrice != nil {
		estimated := money.Amount(*req.EstimatedPrice)
		update.EstimatedPrice = &estimated
	}
	if req.FinalPrice != nil {
		final := money.Amount(*req.FinalPrice)
		update.FinalPrice = &final
	}
	record, err := s.store.UpdateRepairDetails(r.Context(), repairID, update, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRepair(record))
}

func (s *Server) handleTransitionRepair(w http.ResponseWriter, r *http.Request) {
	repairID, err := pathValue(r, "repairID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.TransitionRepairRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	status, err := domain.ParseRepairStatus(req.Status)
	if err != nil {
		s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown repair status %q", req.Status))
		return
	}
	record, err := s.store.TransitionRepair(r.Context(), repairID, status, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toRepair(record))
}

func (s *Server) handleRecordRepairPayment(w http.ResponseWriter, r *http.Request) {
	repairID, err := pathValue(r, "repairID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	payment, err := s.paymentFromRequest(r, "", repairID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.store.RecordRepairPayment(r.Context(), payment)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toRepair(record))
}

func (s *Server) handleListRepairPayments(w http.ResponseWriter, r *http.Request) {
	repairID, err := pathValue(r, "repairID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	payments, err := s.store.ListPaymentsForRepair(r.Context(), repairID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.PaymentList{Payments: make([]apitypes.Payment, 0, len(payments))}
	for _, payment := range payments {
		out.Payments = append(out.Payments, toPayment(payment))
	}
	s.writeJSON(w, http.StatusOK, out)
}
