package rest

import (
	"net/http"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.CreateShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := s.store.GetSale(r.Context(), saleID); err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := domain.CreateShipment(domain.CreateShipmentInput{
		SaleID:       saleID,
		Courier:      req.Courier,
		TrackingCode: req.TrackingCode,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.CreateShipment(r.Context(), shipment); err != nil {
		if apperrors.IsCode(err, apperrors.CodeAlreadyExists) {
			err = apperrors.Newf(apperrors.CodeSaleShipmentExists, "sale %s already has a shipment", saleID)
		}
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toShipment(shipment))
}

func (s *Server) handleGetSaleShipment(w http.ResponseWriter, r *http.Request) {
	saleID, err := pathValue(r, "saleID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.store.GetShipmentBySale(r.Context(), saleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toShipment(shipment))
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	status := domain.ShipmentStatusUnspecified
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		parsed, err := domain.ParseShipmentStatus(raw)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown shipment status %q", raw))
			return
		}
		status = parsed
	}

	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListShipments(r.Context(), status, pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.ShipmentPage{
		Shipments:     make([]apitypes.Shipment, 0, len(page.Shipments)),
		NextPageToken: page.NextPageToken,
	}
	for _, shipment := range page.Shipments {
		out.Shipments = append(out.Shipments, toShipment(shipment))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := pathValue(r, "shipmentID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.store.GetShipment(r.Context(), shipmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.store.ListShipmentEvents(r.Context(), shipmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, apitypes.ShipmentDetail{
		Shipment: toShipment(shipment),
		Events:   toShipmentEvents(events),
	})
}

// handleCheckShipment polls the courier page for one shipment right
// now, outside the background schedule.
func (s *Server) handleCheckShipment(w http.ResponseWriter, r *http.Request) {
	shipmentID, err := pathValue(r, "shipmentID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.tracker == nil {
		s.writeError(w, apperrors.New(apperrors.CodeTrackerNotConfigured, "courier tracking is not configured"))
		return
	}
	result, err := s.tracker.CheckNow(r.Context(), shipmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	events, err := s.store.ListShipmentEvents(r.Context(), shipmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, apitypes.ShipmentDetail{
		Shipment: toShipment(result.Shipment),
		Events:   toShipmentEvents(events),
	})
}

// handleTrack answers an ad-hoc courier lookup for any tracking code,
// with no stored shipment involved.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req apitypes.TrackRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	code := strings.TrimSpace(req.TrackingCode)
	if code == "" {
		s.writeError(w, domain.ErrShipmentTrackingEmpty)
		return
	}
	if s.courier == nil {
		s.writeError(w, apperrors.New(apperrors.CodeTrackerNotConfigured, "courier tracking is not configured"))
		return
	}
	events, err := s.courier.Track(r.Context(), code)
	if err != nil {
		s.writeError(w, err)
		return
	}
	latest := domain.AdvanceShipmentStatus(domain.ShipmentStatusCreated, events)
	s.writeJSON(w, http.StatusOK, apitypes.TrackResponse{
		TrackingCode: code,
		LatestStatus: latest.String(),
		Events:       toShipmentEvents(events),
	})
}
