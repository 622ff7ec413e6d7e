package rest

import (
	"net/http"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	client, err := domain.CreateClient(domain.CreateClientInput{
		FullName:         req.FullName,
		Phone:            req.Phone,
		Email:            req.Email,
		TelegramUsername: req.TelegramUsername,
		DiscountPercent:  req.DiscountPercent,
		Notes:            req.Notes,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.PutClient(r.Context(), client); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toClient(client))
}

func (s *Server) handleGetClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathValue(r, "clientID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	client, err := s.store.GetClient(r.Context(), clientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toClient(client))
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListClients(r.Context(), r.URL.Query().Get("query"), pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.ClientPage{
		Clients:       make([]apitypes.Client, 0, len(page.Clients)),
		NextPageToken: page.NextPageToken,
	}
	for _, client := range page.Clients {
		out.Clients = append(out.Clients, toClient(client))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleUpdateClient merges the patch over the stored record and
// re-runs creation validation on the result.
func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathValue(r, "clientID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req apitypes.UpdateClientRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	client, err := s.store.GetClient(r.Context(), clientID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	merged := domain.CreateClientInput{
		FullName:         client.FullName,
		Phone:            client.Phone,
		Email:            client.Email,
		TelegramUsername: client.TelegramUsername,
		DiscountPercent:  client.DiscountPercent,
		Notes:            client.Notes,
	}
	if req.FullName != nil {
		merged.FullName = *req.FullName
	}
	if req.Phone != nil {
		merged.Phone = *req.Phone
	}
	if req.Email != nil {
		merged.Email = *req.Email
	}
	if req.TelegramUsername != nil {
		merged.TelegramUsername = *req.TelegramUsername
	}
	if req.DiscountPercent != nil {
		merged.DiscountPercent = *req.DiscountPercent
	}
	if req.Notes != nil {
		merged.Notes = *req.Notes
	}
	normalized, err := domain.NormalizeCreateClientInput(merged)
	if err != nil {
		s.writeError(w, err)
		return
	}

	client.FullName = normalized.FullName
	client.Phone = normalized.Phone
	client.Email = normalized.Email
	client.TelegramUsername = normalized.TelegramUsername
	client.DiscountPercent = normalized.DiscountPercent
	client.Notes = normalized.Notes
	client.UpdatedAt = s.now().UTC()
	if err := s.store.PutClient(r.Context(), client); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toClient(client))
}

func (s *Server) handleClientBalance(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathValue(r, "clientID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	balance, err := s.store.GetClientBalance(r.Context(), clientID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toClientBalance(balance))
}
