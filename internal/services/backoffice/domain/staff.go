package domain

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/id"
)

var (
	// ErrStaffUsernameEmpty indicates a missing username.
	ErrStaffUsernameEmpty = apperrors.New(apperrors.CodeStaffUsernameEmpty, "staff username is required")
	// ErrStaffPasswordWeak indicates a password below the minimum length.
	ErrStaffPasswordWeak = apperrors.New(apperrors.CodeStaffPasswordWeak, "staff password must be at least 8 characters")
	// ErrStaffInactive indicates a login attempt on a deactivated account.
	ErrStaffInactive = apperrors.New(apperrors.CodeStaffInactive, "staff account is deactivated")
	// ErrInvalidLogin indicates a failed username or password check.
	ErrInvalidLogin = apperrors.New(apperrors.CodeAuthInvalidLogin, "invalid username or password")
)

const minPasswordLength = 8

// StaffRole scopes what a staff account may do.
type StaffRole int

const (
	// StaffRoleUnspecified represents an invalid role value.
	StaffRoleUnspecified StaffRole = iota
	// StaffRoleAdmin manages accounts and settings.
	StaffRoleAdmin
	// StaffRoleManager runs day-to-day operations.
	StaffRoleManager
	// StaffRoleClerk records sales and repairs.
	StaffRoleClerk
)

// String returns the stable text form used in storage and over the API.
func (r StaffRole) String() string {
	switch r {
	case StaffRoleAdmin:
		return "admin"
	case StaffRoleManager:
		return "manager"
	case StaffRoleClerk:
		return "clerk"
	default:
		return "unspecified"
	}
}

// ParseStaffRole converts a text form back to a StaffRole.
func ParseStaffRole(raw string) (StaffRole, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return StaffRoleAdmin, nil
	case "manager":
		return StaffRoleManager, nil
	case "clerk":
		return StaffRoleClerk, nil
	default:
		return StaffRoleUnspecified, fmt.Errorf("unknown staff role %q", raw)
	}
}

// StaffUser represents one back-office account.
type StaffUser struct {
	ID             string
	Username       string
	PasswordHash   string
	DisplayName    string
	Role           StaffRole
	TelegramChatID int64
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateStaffUserInput describes the data needed to open an account.
type CreateStaffUserInput struct {
	Username    string
	Password    string
	DisplayName string
	Role        StaffRole
}

// CreateStaffUser creates an active staff account with a bcrypt password
// hash, a generated ID, and timestamps.
func CreateStaffUser(input CreateStaffUserInput, now func() time.Time, idGenerator func() (string, error)) (StaffUser, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	username := strings.ToLower(strings.TrimSpace(input.Username))
	if username == "" {
		return StaffUser{}, ErrStaffUsernameEmpty
	}
	if len(input.Password) < minPasswordLength {
		return StaffUser{}, ErrStaffPasswordWeak
	}
	role := input.Role
	if role == StaffRoleUnspecified {
		role = StaffRoleClerk
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return StaffUser{}, err
	}

	staffID, err := idGenerator()
	if err != nil {
		return StaffUser{}, fmt.Errorf("generate staff id: %w", err)
	}

	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = username
	}

	createdAt := now().UTC()
	return StaffUser{
		ID:           staffID,
		Username:     username,
		PasswordHash: hash,
		DisplayName:  displayName,
		Role:         role,
		Active:       true,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}, nil
}

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a stored hash. It returns
// ErrInvalidLogin on mismatch so callers never distinguish a bad
// password from a missing account.
func VerifyPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidLogin
	}
	return nil
}
