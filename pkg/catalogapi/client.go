// Package catalogapi talks to the storefront catalog backend over HTTP.
package catalogapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/internal/catalog"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

const (
	defaultTimeout             = 10 * time.Second
	responseBodyReadLimit int64 = 1024
)

// Client implements catalog.Fetcher against the backend's REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the default client's request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = strings.TrimSpace(ua) }
}

// NewClient builds a client for the API rooted at baseURL. The default HTTP
// client keeps session cookies in a jar.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("catalog base url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("parse catalog base url: %w", err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout, Jar: jar},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

var _ catalog.Fetcher = (*Client)(nil)

// FetchCatalogPage lists products, grouped by design when requested.
func (c *Client) FetchCatalogPage(ctx context.Context, filters catalog.Filters, page catalog.Pagination, groupBy catalog.GroupBy) (catalog.RawPage, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog client not configured")
	}
	q := url.Values{}
	if filters.Size != "" {
		q.Set("size", filters.Size)
	}
	if filters.ProductType != "" {
		q.Set("productType", filters.ProductType)
	}
	if filters.MinPrice.Valid {
		q.Set("minPrice", filters.MinPrice.Decimal.String())
	}
	if filters.MaxPrice.Valid {
		q.Set("maxPrice", filters.MaxPrice.Decimal.String())
	}
	if page.Page > 0 {
		q.Set("page", strconv.Itoa(page.Page))
	}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if groupBy != catalog.GroupByNone {
		q.Set("groupBy", string(groupBy))
	}

	var out catalog.RawPage
	if err := c.getJSON(ctx, "/products", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchDesignVariants lists every variant of one design. The backend wraps
// the list as {success, data: [...]} or {success, data: {variants: [...]}};
// a bare array is accepted as well.
func (c *Client) FetchDesignVariants(ctx context.Context, designID string) ([]catalog.RawRecord, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog client not configured")
	}
	trimmed := strings.TrimSpace(designID)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "design id is required")
	}

	var body any
	if err := c.getJSON(ctx, "/products/designs/"+url.PathEscape(trimmed)+"/variants", nil, &body); err != nil {
		return nil, err
	}
	records, ok := variantRecords(body)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeMalformed, "design variants response not recognized").
			WithDetails(map[string]any{"designId": trimmed})
	}
	return records, nil
}

func variantRecords(body any) ([]catalog.RawRecord, bool) {
	switch t := body.(type) {
	case []any:
		return toRecords(t), true
	case map[string]any:
		if success, ok := t["success"].(bool); ok && !success {
			return nil, false
		}
		switch data := t["data"].(type) {
		case []any:
			return toRecords(data), true
		case map[string]any:
			if items, ok := data["variants"].([]any); ok {
				return toRecords(items), true
			}
			if items, ok := data["items"].([]any); ok {
				return toRecords(items), true
			}
		}
		if items, ok := t["variants"].([]any); ok {
			return toRecords(items), true
		}
	}
	return nil, false
}

func toRecords(items []any) []catalog.RawRecord {
	out := make([]catalog.RawRecord, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, catalog.RawRecord(obj))
		}
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build catalog request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute catalog request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.Wrap(pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"catalog request failed").
			WithDetails(map[string]any{"path": path, "status": resp.StatusCode})
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeMalformed, err, "decode catalog response")
	}
	return nil
}
