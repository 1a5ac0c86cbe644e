// Package remote implements the HTTP client for the remote catalog fetch
// API: paginated full-catalog listing, incremental change pages, merchant
// locations, and the token-validity precondition check.
//
// Timeout semantics are inherited from the injected http.Client; the
// package does not model its own deadlines.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joylabs/catsync/internal/catalog"
)

// ErrUnauthorized is returned when the access token is rejected. Sync
// drivers treat this as an authentication precondition failure and abort
// before mutating any sync state.
var ErrUnauthorized = errors.New("access token rejected by catalog API")

// Client talks to the remote catalog service.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// NewClient creates a catalog API client. If httpClient is nil a default
// client with a 30 second timeout is used.
func NewClient(baseURL, accessToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

// EnsureAuthorized verifies the access token before a sync proceeds.
// Returns ErrUnauthorized for a rejected token, or a network error.
func (c *Client) EnsureAuthorized(ctx context.Context) error {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.get(ctx, "/v2/auth/validate", nil, &out); err != nil {
		return err
	}
	if !out.Valid {
		return ErrUnauthorized
	}
	return nil
}

// FetchPage retrieves one page of the full catalog listing, filtered to
// the replicated object types. An empty cursor starts from the beginning;
// an empty returned cursor means the listing is exhausted.
func (c *Client) FetchPage(ctx context.Context, cursor string, limit int) (*catalog.Page, error) {
	params := url.Values{}
	params.Set("types", strings.Join(catalog.TypeNames(catalog.SyncedTypes), ","))
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page catalog.Page
	if err := c.get(ctx, "/v2/catalog/list", params, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog page: %w", err)
	}
	return &page, nil
}

// FetchChanges retrieves one page of objects changed since the cursor.
// Tombstoned objects arrive with is_deleted set.
func (c *Client) FetchChanges(ctx context.Context, cursor string) (*catalog.Page, error) {
	params := url.Values{}
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var page catalog.Page
	if err := c.get(ctx, "/v2/catalog/changes", params, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch catalog changes: %w", err)
	}
	return &page, nil
}

// FetchLocations retrieves the merchant location list.
func (c *Client) FetchLocations(ctx context.Context) ([]catalog.Location, error) {
	var out struct {
		Locations []catalog.Location `json:"locations"`
	}
	if err := c.get(ctx, "/v2/locations", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch locations: %w", err)
	}
	return out.Locations, nil
}

// get performs an authenticated GET and decodes the JSON response.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog API request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("catalog API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
