package deviceconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/catalog"
	"github.com/muurk/nodecfg/internal/debounce"
	"github.com/muurk/nodecfg/internal/logging"
)

const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxRetries    = 3 // GET requests only
	DefaultRetryDelay    = 1 * time.Second
	DefaultMaxRetryDelay = 30 * time.Second
	DefaultCacheDuration = 30 * time.Second // target catalog freshness
)

// Client talks to the config server, which relays uploads, restores and
// status queries to nodes. Copying a Client after first use is not safe.
type Client struct {
	BaseURL string // "http://10.0.0.2:8123"

	// NodeIP addresses Upload. Empty lets the server use the address from
	// the document metadata.
	NodeIP string

	// Basic auth is sent when Username is set.
	Username, Password string

	HTTPClient *http.Client

	// Retry policy for GETs. Uploads are attempted once.
	MaxRetries            int
	RetryDelay            time.Duration
	MaxRetryDelay         time.Duration
	UseExponentialBackoff bool

	// CacheDuration is how long FetchTargets reuses its last result. Zero
	// disables the cache.
	CacheDuration time.Duration
	targets       targetCache
}

type targetCache struct {
	mu      sync.RWMutex
	catalog *catalog.TargetCatalog
	fetched time.Time
}

func (tc *targetCache) get(ttl time.Duration) *catalog.TargetCatalog {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if tc.catalog == nil || time.Since(tc.fetched) >= ttl {
		return nil
	}
	return tc.catalog
}

func (tc *targetCache) put(t *catalog.TargetCatalog) {
	tc.mu.Lock()
	tc.catalog, tc.fetched = t, time.Now()
	tc.mu.Unlock()
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:               strings.TrimRight(baseURL, "/"),
		HTTPClient:            &http.Client{Timeout: DefaultTimeout},
		MaxRetries:            DefaultMaxRetries,
		RetryDelay:            DefaultRetryDelay,
		MaxRetryDelay:         DefaultMaxRetryDelay,
		UseExponentialBackoff: true,
		CacheDuration:         DefaultCacheDuration,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// Upload posts a serialized document. It is attempted once: a 409 yields a
// conflict error, a 404 an unreachable error, any other failure an HTTP
// error carrying the server's raw message.
func (c *Client) Upload(ctx context.Context, payload []byte) error {
	path := "/upload"
	if c.NodeIP != "" {
		path += "?ip=" + url.QueryEscape(c.NodeIP)
	}

	_, err := c.do(ctx, http.MethodPost, path, payload, "application/json")
	if err != nil {
		return err
	}
	logging.Info("Configuration uploaded",
		zap.String("node", c.NodeIP),
		zap.Int("bytes", len(payload)))
	return nil
}

// Restore downloads the configuration currently stored on the node at ip.
// The body is returned raw so the caller can decode it with its catalogs.
func (c *Client) Restore(ctx context.Context, ip string) ([]byte, error) {
	return c.getWithRetry(ctx, "/restore/"+url.PathEscape(ip))
}

// Status retrieves the live state of the node at ip.
func (c *Client) Status(ctx context.Context, ip string) (*NodeStatus, error) {
	body, err := c.getWithRetry(ctx, "/status/"+url.PathEscape(ip))
	if err != nil {
		return nil, err
	}
	status, err := ParseNodeStatus(body)
	if err != nil {
		return nil, err
	}
	status.Address = ip
	status.Received = time.Now()
	return status, nil
}

// FetchMetadata retrieves the metadata catalog.
func (c *Client) FetchMetadata(ctx context.Context) (*catalog.Metadata, error) {
	body, err := c.getWithRetry(ctx, "/metadata")
	if err != nil {
		return nil, err
	}
	meta, err := catalog.ParseMetadata(body)
	if err != nil {
		return nil, NewParseError("failed to parse metadata catalog", err)
	}
	return meta, nil
}

// FetchTargets retrieves the target catalog, reusing a fresh cached copy.
func (c *Client) FetchTargets(ctx context.Context) (*catalog.TargetCatalog, error) {
	if c.CacheDuration > 0 {
		if cached := c.targets.get(c.CacheDuration); cached != nil {
			return cached, nil
		}
	}

	body, err := c.getWithRetry(ctx, "/targets")
	if err != nil {
		return nil, err
	}
	targets, err := catalog.ParseTargets(body)
	if err != nil {
		return nil, NewParseError("failed to parse target catalog", err)
	}
	if c.CacheDuration > 0 {
		c.targets.put(targets)
	}
	return targets, nil
}

// Search resolves a free-text place through the server's geocoder. It
// satisfies debounce.Geocoder.
func (c *Client) Search(ctx context.Context, query string) ([]debounce.Suggestion, error) {
	body, err := c.getWithRetry(ctx, "/geocode?q="+url.QueryEscape(query))
	if err != nil {
		return nil, err
	}
	var raw []struct {
		Name string  `json:"display_name"`
		Lat  float64 `json:"lat,string"`
		Lon  float64 `json:"lon,string"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, NewParseError("failed to parse geocoder response", err)
	}
	out := make([]debounce.Suggestion, 0, len(raw))
	for _, r := range raw {
		out = append(out, debounce.Suggestion{Name: r.Name, Lat: r.Lat, Lon: r.Lon})
	}
	return out, nil
}

// getWithRetry repeats a GET while the failure is retryable, sleeping
// between attempts.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	delay := c.RetryDelay
	for attempt := 0; ; attempt++ {
		body, err := c.do(ctx, http.MethodGet, path, nil, "")
		if err == nil || !IsRetryable(err) || attempt >= c.MaxRetries {
			return body, err
		}

		logging.Debug("Retrying request",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, NewNetworkError("request cancelled", ctx.Err())
		case <-time.After(delay):
		}
		delay = c.nextDelay(delay)
	}
}

func (c *Client) nextDelay(d time.Duration) time.Duration {
	if !c.UseExponentialBackoff {
		return d
	}
	return min(2*d, c.MaxRetryDelay)
}

// do performs a single request and classifies failures.
func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	target := c.BaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to create %s request", method), err)
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	logging.LogHTTPRequest(method, target)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("%s request failed", method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError("failed to read response body", err)
	}
	logging.LogHTTPResponse(target, resp.StatusCode, len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ErrorForStatus(resp.StatusCode, string(data))
	}
	return data, nil
}
