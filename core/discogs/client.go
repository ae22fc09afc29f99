package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crates/cache"
	"crates/config"
	"crates/logger"
)

// ErrNotFound is returned when Discogs answers 404.
var ErrNotFound = errors.New("discogs resource not found")

// UpstreamError carries a non-2xx Discogs status.
type UpstreamError struct {
	Status int
	Path   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("discogs %s returned status %d", e.Path, e.Status)
}

// Client proxies the Discogs database API, injecting the consumer key and
// secret into every request. Successful bodies are cached when a cache is
// configured.
type Client struct {
	baseURL   string
	key       string
	secret    string
	userAgent string
	http      *http.Client
	cache     *cache.ResponseCache
}

// NewClient builds a Client. httpClient and responses may be nil.
func NewClient(cfg *config.Config, httpClient *http.Client, responses *cache.ResponseCache) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.DiscogsBaseURL, "/"),
		key:       cfg.DiscogsConsumerKey,
		secret:    cfg.DiscogsConsumerSecret,
		userAgent: cfg.DiscogsUserAgent,
		http:      httpClient,
		cache:     responses,
	}
}

// Get fetches path with params plus credentials and returns the raw JSON.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	q := url.Values{}
	for k, vs := range params {
		if k == "key" || k == "secret" {
			continue
		}
		q[k] = vs
	}
	cacheKey := path + "?" + q.Encode()
	if body, ok := c.cache.Get(ctx, cacheKey); ok {
		return body, nil
	}

	q.Set("key", c.key)
	q.Set("secret", c.secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build discogs request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("discogs %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read discogs %s: %w", path, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn("[Discogs] upstream error",
			logger.String("path", path),
			logger.Int("status", resp.StatusCode))
		return nil, &UpstreamError{Status: resp.StatusCode, Path: path}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("discogs %s: response is not JSON", path)
	}

	c.cache.Set(ctx, cacheKey, body)
	return body, nil
}

// withPaging copies params and fills page/per_page defaults.
func withPaging(params url.Values) url.Values {
	out := url.Values{}
	for k, vs := range params {
		out[k] = vs
	}
	if out.Get("page") == "" {
		out.Set("page", "1")
	}
	if out.Get("per_page") == "" {
		out.Set("per_page", "20")
	}
	return out
}

// Search queries /database/search. Type defaults to release.
func (c *Client) Search(ctx context.Context, query string, params url.Values) (json.RawMessage, error) {
	p := withPaging(params)
	p.Set("q", query)
	if p.Get("type") == "" {
		p.Set("type", "release")
	}
	return c.Get(ctx, "/database/search", p)
}

func (c *Client) Release(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "/releases/"+url.PathEscape(id), nil)
}

func (c *Client) Artist(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "/artists/"+url.PathEscape(id), nil)
}

func (c *Client) ArtistReleases(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return c.Get(ctx, "/artists/"+url.PathEscape(id)+"/releases", withPaging(params))
}

func (c *Client) Master(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "/masters/"+url.PathEscape(id), nil)
}

func (c *Client) Label(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Get(ctx, "/labels/"+url.PathEscape(id), nil)
}

func (c *Client) LabelReleases(ctx context.Context, id string, params url.Values) (json.RawMessage, error) {
	return c.Get(ctx, "/labels/"+url.PathEscape(id)+"/releases", withPaging(params))
}

// Marketplace lists marketplace offers for a release.
func (c *Client) Marketplace(ctx context.Context, releaseID string, params url.Values) (json.RawMessage, error) {
	return c.Get(ctx, "/marketplace/listings/"+url.PathEscape(releaseID), withPaging(params))
}

// ReleaseDetails fetches and decodes a release.
func (c *Client) ReleaseDetails(ctx context.Context, id int64) (*Release, error) {
	body, err := c.Release(ctx, fmt.Sprint(id))
	if err != nil {
		return nil, err
	}
	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("decode discogs release %d: %w", id, err)
	}
	return &rel, nil
}

// Health runs a one-result search to confirm credentials work. It bypasses
// the cache.
func (c *Client) Health(ctx context.Context) error {
	probe := *c
	probe.cache = nil
	_, err := probe.Search(ctx, "test", url.Values{"per_page": {"1"}})
	return err
}
