package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

// LeaseOutbox claims pending notification events for a consumer. The
// endpoint requires the shared service token.
func (c *Client) LeaseOutbox(ctx context.Context, req apitypes.LeaseOutboxRequest) (apitypes.LeaseOutboxResponse, error) {
	var out apitypes.LeaseOutboxResponse
	err := c.do(ctx, http.MethodPost, "/v1/outbox/lease", nil, req, &out)
	return out, err
}

// AckOutbox settles a leased event. The endpoint requires the shared
// service token and the same consumer name that leased the event.
func (c *Client) AckOutbox(ctx context.Context, eventID string, req apitypes.AckOutboxRequest) error {
	return c.do(ctx, http.MethodPost, "/v1/outbox/"+url.PathEscape(eventID)+"/ack", nil, req, nil)
}

// StaffByTelegramChat resolves a bound Telegram chat to its staff user.
// The endpoint requires the shared service token.
func (c *Client) StaffByTelegramChat(ctx context.Context, chatID int64) (apitypes.StaffUser, error) {
	var out apitypes.StaffUser
	err := c.do(ctx, http.MethodGet, "/v1/staff/telegram/"+strconv.FormatInt(chatID, 10), nil, nil, &out)
	return out, err
}

// BindTelegram attaches a Telegram chat to a staff account. The
// endpoint requires the shared service token.
func (c *Client) BindTelegram(ctx context.Context, username string, chatID int64) (apitypes.StaffUser, error) {
	var out apitypes.StaffUser
	req := apitypes.BindTelegramRequest{Username: username, ChatID: chatID}
	err := c.do(ctx, http.MethodPost, "/v1/staff/telegram-bind", nil, req, &out)
	return out, err
}

// CreateStaff registers a staff account. Admin only.
func (c *Client) CreateStaff(ctx context.Context, req apitypes.CreateStaffRequest) (apitypes.StaffUser, error) {
	var out apitypes.StaffUser
	err := c.do(ctx, http.MethodPost, "/v1/staff", nil, req, &out)
	return out, err
}

// ListStaff lists all staff accounts. Admin only.
func (c *Client) ListStaff(ctx context.Context) (apitypes.StaffPage, error) {
	var out apitypes.StaffPage
	err := c.do(ctx, http.MethodGet, "/v1/staff", nil, nil, &out)
	return out, err
}
