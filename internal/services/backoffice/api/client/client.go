// Package client is the typed Go client for the back-office REST API.
// The Telegram bot, the MCP bridge, and integration tests all reach the
// server through it, so wire changes surface here once.
//
// Errors carry the server's code when the response body holds the API
// error envelope; callers can branch with apperrors.IsCode.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/services/backoffice/api/apitypes"
)

const errorBodyLimit = 4096

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8084".
	BaseURL string
	// Token is the bearer credential: a staff JWT or the service token.
	// Leave empty for login-only use.
	Token string
	// HTTPClient overrides the transport. Nil gets an otelhttp-wrapped
	// default with a 30 second timeout.
	HTTPClient *http.Client
}

// Client talks to one back-office server.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

// New builds a Client from the given configuration.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("api base url is required")
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: base, token: strings.TrimSpace(cfg.Token), httpc: httpc}, nil
}

// WithToken returns a copy of the client using a different bearer token.
// The original client is untouched.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// Login exchanges staff credentials for a bearer token. The client
// itself keeps its configured token; call WithToken with the result to
// act as the staff member.
func (c *Client) Login(ctx context.Context, username, password string) (apitypes.LoginResponse, error) {
	var out apitypes.LoginResponse
	err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, apitypes.LoginRequest{
		Username: username,
		Password: password,
	}, &out)
	return out, err
}

// Health probes the server's liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil, nil)
}

// PageParams narrows a list call. Zero values mean server defaults.
type PageParams struct {
	PageSize  int
	PageToken string
}

func (p PageParams) apply(query url.Values) url.Values {
	if p.PageSize > 0 {
		query.Set("page_size", fmt.Sprintf("%d", p.PageSize))
	}
	if p.PageToken != "" {
		query.Set("page_token", p.PageToken)
	}
	return query
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		reader = bytes.NewReader(raw)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return decodeAPIError(res)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, errorBodyLimit))
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}

// decodeAPIError rebuilds the server's coded error from the response
// envelope, falling back to the raw status and body.
func decodeAPIError(res *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(res.Body, errorBodyLimit))
	if err != nil {
		return fmt.Errorf("read error body (status %d): %w", res.StatusCode, err)
	}
	var envelope apitypes.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != "" {
		return apperrors.New(apperrors.Code(envelope.Error.Code), envelope.Error.Message)
	}
	return fmt.Errorf("request status %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}
