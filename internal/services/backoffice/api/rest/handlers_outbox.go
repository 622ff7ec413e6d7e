package rest

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

const (
	defaultLeaseLimit = 20
	maxLeaseLimit     = 100
	defaultLeaseTTL   = time.Minute
	defaultRetryDelay = 30 * time.Second
)

// handleLeaseOutbox claims due notification events for one consumer.
// Leases expire on their own, so a crashed consumer just hands its
// batch to the next lease call.
func (s *Server) handleLeaseOutbox(w http.ResponseWriter, r *http.Request) {
	var req apitypes.LeaseOutboxRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	consumer := strings.TrimSpace(req.Consumer)
	if consumer == "" {
		s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "consumer is required"))
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLeaseLimit
	}
	if limit > maxLeaseLimit {
		limit = maxLeaseLimit
	}
	leaseTTL := defaultLeaseTTL
	if req.LeaseTTLSeconds > 0 {
		leaseTTL = time.Duration(req.LeaseTTLSeconds) * time.Second
	}

	events, err := s.store.LeaseOutboxEvents(r.Context(), consumer, limit, s.now().UTC(), leaseTTL)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.LeaseOutboxResponse{Events: make([]apitypes.OutboxEvent, 0, len(events))}
	for _, event := range events {
		out.Events = append(out.Events, toOutboxEvent(event))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAckOutbox(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathValue(r, "eventID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.AckOutboxRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	consumer := strings.TrimSpace(req.Consumer)
	if consumer == "" {
		s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "consumer is required"))
		return
	}

	now := s.now().UTC()
	switch req.Outcome {
	case apitypes.AckOutcomeSucceeded:
		err = s.store.MarkOutboxEventSucceeded(r.Context(), eventID, consumer, now)
	case apitypes.AckOutcomeRetry:
		delay := defaultRetryDelay
		if req.RetryInSeconds > 0 {
			delay = time.Duration(req.RetryInSeconds) * time.Second
		}
		err = s.store.MarkOutboxEventRetry(r.Context(), eventID, consumer, now.Add(delay), req.Error)
	case apitypes.AckOutcomeDead:
		err = s.store.MarkOutboxEventDead(r.Context(), eventID, consumer, req.Error, now)
	default:
		err = apperrors.Newf(apperrors.CodeBadRequest, "unknown ack outcome %q", req.Outcome)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
