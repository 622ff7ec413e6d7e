package rest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

func TestLoginIssuesWorkingToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", apitypes.LoginRequest{
		Username: "  Vera ",
		Password: testAdminPassword,
	})
	requireStatus(t, rec, http.StatusOK)

	var resp apitypes.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.Staff.Username != "vera" {
		t.Fatalf("username = %q, want %q", resp.Staff.Username, "vera")
	}
	if want := env.clock.Now().Add(24 * time.Hour); !resp.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", resp.ExpiresAt, want)
	}

	list := env.do(t, http.MethodGet, "/v1/clients", resp.Token, nil)
	requireStatus(t, list, http.StatusOK)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", apitypes.LoginRequest{
		Username: "vera",
		Password: "not-the-password",
	})
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "AUTH_INVALID_LOGIN" {
		t.Fatalf("error code = %q, want AUTH_INVALID_LOGIN", code)
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", apitypes.LoginRequest{
		Username: "nobody",
		Password: "whatever-pass",
	})
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "AUTH_INVALID_LOGIN" {
		t.Fatalf("error code = %q, want AUTH_INVALID_LOGIN", code)
	}
}

func TestLoginRejectsDeactivatedAccount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	user := env.seedStaff(t, "misha", "misha-password", domain.StaffRoleClerk)
	user.Active = false
	if err := env.store.PutStaffUser(context.Background(), user); err != nil {
		t.Fatalf("deactivate staff: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/v1/auth/login", "", apitypes.LoginRequest{
		Username: "misha",
		Password: "misha-password",
	})
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "STAFF_INACTIVE" {
		t.Fatalf("error code = %q, want STAFF_INACTIVE", code)
	}
}

func TestRequestsWithoutTokenRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/clients", "", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "AUTH_TOKEN_INVALID" {
		t.Fatalf("error code = %q, want AUTH_TOKEN_INVALID", code)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)
	rec := env.do(t, http.MethodGet, "/v1/clients", token+"x", nil)
	requireStatus(t, rec, http.StatusUnauthorized)
}

func TestExpiredTokenRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.clerkToken(t)

	env.clock.Advance(24*time.Hour + time.Minute)
	rec := env.do(t, http.MethodGet, "/v1/clients", token, nil)
	requireStatus(t, rec, http.StatusUnauthorized)
	if code := errorCode(t, rec); code != "AUTH_TOKEN_INVALID" {
		t.Fatalf("error code = %q, want AUTH_TOKEN_INVALID", code)
	}
}

func TestServiceTokenAdmittedOnStaffRoutes(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/clients", testServiceToken, nil)
	requireStatus(t, rec, http.StatusOK)
}

func TestServiceRoutesRejectStaffTokens(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	token := env.adminToken(t)
	rec := env.do(t, http.MethodPost, "/v1/outbox/lease", token, apitypes.LeaseOutboxRequest{Consumer: "bot"})
	requireStatus(t, rec, http.StatusForbidden)
	if code := errorCode(t, rec); code != "AUTH_FORBIDDEN" {
		t.Fatalf("error code = %q, want AUTH_FORBIDDEN", code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	clerk := env.do(t, http.MethodGet, "/v1/staff", env.clerkToken(t), nil)
	requireStatus(t, clerk, http.StatusForbidden)

	service := env.do(t, http.MethodGet, "/v1/staff", testServiceToken, nil)
	requireStatus(t, service, http.StatusForbidden)

	admin := env.do(t, http.MethodGet, "/v1/staff", env.adminToken(t), nil)
	requireStatus(t, admin, http.StatusOK)
	var page apitypes.StaffPage
	decodeBody(t, admin, &page)
	if len(page.Users) != 2 {
		t.Fatalf("staff len = %d, want 2", len(page.Users))
	}
}

func TestCreateStaffAccount(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	admin := env.adminToken(t)

	rec := env.do(t, http.MethodPost, "/v1/staff", admin, apitypes.CreateStaffRequest{
		Username:    "Lena",
		Password:    "lena-password",
		DisplayName: "Lena K.",
		Role:        "manager",
	})
	requireStatus(t, rec, http.StatusCreated)
	var user apitypes.StaffUser
	decodeBody(t, rec, &user)
	if user.Username != "lena" {
		t.Fatalf("username = %q, want %q", user.Username, "lena")
	}
	if user.Role != "manager" {
		t.Fatalf("role = %q, want %q", user.Role, "manager")
	}

	env.login(t, "lena", "lena-password")
}

func TestCreateStaffRejectsShortPassword(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/staff", env.adminToken(t), apitypes.CreateStaffRequest{
		Username: "short",
		Password: "short",
	})
	requireStatus(t, rec, http.StatusBadRequest)
	if code := errorCode(t, rec); code != "STAFF_PASSWORD_WEAK" {
		t.Fatalf("error code = %q, want STAFF_PASSWORD_WEAK", code)
	}
}

func TestCreateStaffRejectsUnknownRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/staff", env.adminToken(t), apitypes.CreateStaffRequest{
		Username: "odd",
		Password: "odd-password",
		Role:     "owner",
	})
	requireStatus(t, rec, http.StatusBadRequest)
}

func TestTelegramBindAndLookup(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	bind := env.do(t, http.MethodPost, "/v1/staff/telegram-bind", testServiceToken, apitypes.BindTelegramRequest{
		Username: "dasha",
		ChatID:   774411,
	})
	requireStatus(t, bind, http.StatusOK)
	var bound apitypes.StaffUser
	decodeBody(t, bind, &bound)
	if bound.TelegramChatID != 774411 {
		t.Fatalf("chat id = %d, want 774411", bound.TelegramChatID)
	}

	lookup := env.do(t, http.MethodGet, "/v1/staff/telegram/774411", testServiceToken, nil)
	requireStatus(t, lookup, http.StatusOK)
	var found apitypes.StaffUser
	decodeBody(t, lookup, &found)
	if found.Username != "dasha" {
		t.Fatalf("username = %q, want %q", found.Username, "dasha")
	}

	missing := env.do(t, http.MethodGet, "/v1/staff/telegram/999999", testServiceToken, nil)
	requireStatus(t, missing, http.StatusNotFound)
}

func TestTelegramLookupRejectsBadChatID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/staff/telegram/abc", testServiceToken, nil)
	requireStatus(t, rec, http.StatusBadRequest)
}
