// Package tracking checks courier deliveries against the courier's
// public tracking page. The courier offers no API, so the package
// fetches the page, extracts the shipment timeline from its markup,
// and feeds fresh events into the shipment store.
package tracking

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/atelier-erp/atelier/internal/errors"
	"github.com/atelier-erp/atelier/internal/platform/timeouts"
	"github.com/atelier-erp/atelier/internal/services/backoffice/domain"
)

const (
	defaultUserAgent = "atelier-tracker/1.0"

	// maxPageBytes caps how much of the tracking page is read. Courier
	// pages are a few hundred KiB; anything past this is not timeline.
	maxPageBytes = 1 << 20
)

// Client fetches the courier's public tracking page.
type Client struct {
	trackURL   string
	userAgent  string
	httpClient *http.Client
}

// NewClient builds a Client from the tracking URL pattern. The pattern
// must contain exactly one %s verb, replaced with the escaped tracking
// code on each fetch. An empty pattern means no courier is configured.
func NewClient(trackURL string, httpClient *http.Client) (*Client, error) {
	trackURL = strings.TrimSpace(trackURL)
	if trackURL == "" {
		return nil, apperrors.New(apperrors.CodeTrackerNotConfigured, "courier tracking url is not configured")
	}
	if strings.Count(trackURL, "%s") != 1 {
		return nil, apperrors.Newf(apperrors.CodeTrackerNotConfigured, "courier tracking url %q must contain exactly one %%s placeholder", trackURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.CourierFetch}
	}
	return &Client{
		trackURL:   trackURL,
		userAgent:  defaultUserAgent,
		httpClient: httpClient,
	}, nil
}

// FetchPage downloads the tracking page for one tracking code.
func (c *Client) FetchPage(ctx context.Context, trackingCode string) ([]byte, error) {
	trackingCode = strings.TrimSpace(trackingCode)
	if trackingCode == "" {
		return nil, domain.ErrShipmentTrackingEmpty
	}

	pageURL := fmt.Sprintf(c.trackURL, url.QueryEscape(trackingCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build tracking request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeCourierUnavailable, "fetch tracking page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.Newf(apperrors.CodeTrackingNotFound, "courier has no shipment for code %s", trackingCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.CodeCourierUnavailable, "courier returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, apperrors.Newf(apperrors.CodeCourierUnavailable, "read tracking page: %v", err)
	}
	return body, nil
}

// Track fetches and parses the courier timeline for a tracking code.
// Events come back oldest first.
func (c *Client) Track(ctx context.Context, trackingCode string) ([]domain.ShipmentEvent, error) {
	page, err := c.FetchPage(ctx, trackingCode)
	if err != nil {
		return nil, err
	}
	return ParseTimeline(page)
}
