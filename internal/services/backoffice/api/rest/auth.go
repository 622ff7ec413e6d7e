package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/requestctx"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

const tokenIssuer = "atelier-backoffice"

// staffClaims carries the staff identity inside a bearer token.
type staffClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// issueToken signs a bearer token for a staff account.
func (s *Server) issueToken(user domain.StaffUser, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(s.tokenTTL)
	claims := staffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: user.Username,
		Role:     user.Role.String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, apperrors.New(apperrors.CodeUnknown, "sign bearer token")
	}
	return signed, expiresAt, nil
}

// verifyToken parses and validates a staff bearer token.
func (s *Server) verifyToken(raw string) (staffClaims, error) {
	var claims staffClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return staffClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "bearer token expired")
		}
		return staffClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "bearer token is not valid")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return staffClaims{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "bearer token is not valid")
	}
	return claims, nil
}

// authInfo is the outcome of authenticating one request.
type authInfo struct {
	ctx     context.Context
	service bool
	role    string
}

// authenticate resolves the Authorization header into a request context
// carrying either a staff identity or the service-call marker.
func (s *Server) authenticate(r *http.Request) (authInfo, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return authInfo{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "missing bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return authInfo{}, apperrors.New(apperrors.CodeAuthTokenInvalid, "missing bearer token")
	}
	if s.serviceToken != "" && token == s.serviceToken {
		return authInfo{ctx: requestctx.WithServiceCall(r.Context()), service: true}, nil
	}
	claims, err := s.verifyToken(token)
	if err != nil {
		return authInfo{}, err
	}
	ctx := requestctx.WithStaffRole(requestctx.WithStaffID(r.Context(), claims.Subject), claims.Role)
	return authInfo{ctx: ctx, role: claims.Role}, nil
}

// requireAuth admits staff tokens and the service token.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		next(w, r.WithContext(auth.ctx))
	}
}

// requireService admits only the shared service token.
func (s *Server) requireService(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !auth.service {
			s.writeError(w, apperrors.New(apperrors.CodeAuthForbidden, "service token required"))
			return
		}
		next(w, r.WithContext(auth.ctx))
	}
}

// requireAdmin admits staff tokens carrying the admin role.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth, err := s.authenticate(r)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if auth.service || auth.role != domain.StaffRoleAdmin.String() {
			s.writeError(w, apperrors.New(apperrors.CodeAuthForbidden, "admin role required"))
			return
		}
		next(w, r.WithContext(auth.ctx))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apitypes.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		s.writeError(w, domain.ErrInvalidLogin)
		return
	}

	user, err := s.store.GetStaffUserByUsername(r.Context(), username)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			s.writeError(w, domain.ErrInvalidLogin)
			return
		}
		s.writeError(w, err)
		return
	}
	if err := domain.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		s.writeError(w, err)
		return
	}
	if !user.Active {
		s.writeError(w, domain.ErrStaffInactive)
		return
	}

	token, expiresAt, err := s.issueToken(user, s.now().UTC())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, apitypes.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Staff:     toStaffUser(user),
	})
}

func (s *Server) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req apitypes.CreateStaffRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	role := domain.StaffRoleUnspecified
	if strings.TrimSpace(req.Role) != "" {
		parsed, err := domain.ParseStaffRole(req.Role)
		if err != nil {
			s.writeError(w, apperrors.Newf(apperrors.CodeBadRequest, "unknown staff role %q", req.Role))
			return
		}
		role = parsed
	}
	user, err := domain.CreateStaffUser(domain.CreateStaffUserInput{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Role:        role,
	}, s.now, s.newID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.PutStaffUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toStaffUser(user))
}

func (s *Server) handleListStaff(w http.ResponseWriter, r *http.Request) {
	pageSize, pageToken := pageParams(r)
	page, err := s.store.ListStaffUsers(r.Context(), pageSize, pageToken)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := apitypes.StaffPage{
		Users:         make([]apitypes.StaffUser, 0, len(page.Users)),
		NextPageToken: page.NextPageToken,
	}
	for _, user := range page.Users {
		out.Users = append(out.Users, toStaffUser(user))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStaffByTelegramChat(w http.ResponseWriter, r *http.Request) {
	raw, err := pathValue(r, "chatID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "chat id must be an integer"))
		return
	}
	user, err := s.store.GetStaffUserByTelegramChatID(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toStaffUser(user))
}

func (s *Server) handleBindTelegram(w http.ResponseWriter, r *http.Request) {
	var req apitypes.BindTelegramRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.ChatID == 0 {
		s.writeError(w, apperrors.New(apperrors.CodeBadRequest, "username and chat_id are required"))
		return
	}
	user, err := s.store.GetStaffUserByUsername(r.Context(), username)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !user.Active {
		s.writeError(w, domain.ErrStaffInactive)
		return
	}
	if err := s.store.BindStaffTelegram(r.Context(), user.ID, req.ChatID); err != nil {
		s.writeError(w, err)
		return
	}
	user.TelegramChatID = req.ChatID
	s.writeJSON(w, http.StatusOK, toStaffUser(user))
}
