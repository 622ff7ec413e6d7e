package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	_ = encoder.Encode(payload)
}

// writeError renders the error body for any failure. Unknown errors are
// logged and answered with a generic message so internals never leak.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		s.logf("backoffice api: %v", err)
	}
	s.writeJSON(w, status, apitypes.ErrorResponse{Error: apitypes.ErrorBody{
		Code:    string(code),
		Message: apperrors.GetMessage(err),
	}})
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return apperrors.New(apperrors.CodeBadRequest, "request body is not valid json")
	}
	return nil
}

// pageParams reads pagination query parameters, clamping the page size
// to sane bounds.
func pageParams(r *http.Request) (int, string) {
	pageSize := defaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			pageSize = value
		}
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, strings.TrimSpace(r.URL.Query().Get("page_token"))
}

func pathValue(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(r.PathValue(name))
	if value == "" {
		return "", apperrors.Newf(apperrors.CodeBadRequest, "%s is required", name)
	}
	return value, nil
}
