// Package shodan is a small client for the Shodan REST and streaming APIs
// covering on-demand scans, host lookups, searches and network alerts.
package shodan

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/version"
)

const (
	// DefaultBaseURL is the public API root.
	DefaultBaseURL = "https://api.shodan.io"
	// DefaultStreamURL is the root of the streaming API.
	DefaultStreamURL = "https://stream.shodan.io"
)

// ScanDone is the status Shodan reports for a finished scan.
const ScanDone = "DONE"

// redacted replaces the API key in URLs carried by errors.
const redacted = "REDACTED"

var (
	// ErrMissingKey is returned when a request is attempted without a key.
	ErrMissingKey = errors.New("shodan api key not configured")
	// ErrScanTimeout is returned by WaitForScan when the ceiling is reached.
	// The remote scan is not cancelled.
	ErrScanTimeout = errors.New("scan did not finish before timeout")
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("shodan: status %d", e.Status)
	}
	return fmt.Sprintf("shodan: %s (status %d)", e.Message, e.Status)
}

// RetryPolicy bounds the retries of throttled (429), unavailable (5xx) and
// unreachable requests. Waits grow exponentially between WaitMin and WaitMax
// unless the API sends Retry-After.
type RetryPolicy struct {
	// MaxRetries counts attempts after the first; negative disables retries
	// and zero takes the default.
	MaxRetries int
	WaitMin    time.Duration
	WaitMax    time.Duration
}

// DefaultRetryPolicy returns three retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, WaitMin: 1 * time.Second, WaitMax: 30 * time.Second}
}

// NoRetry sends every request once.
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: -1}
}

// Config controls a Client.
type Config struct {
	BaseURL   string
	StreamURL string
	APIKey    string
	Timeout   time.Duration
	Retry     RetryPolicy
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		StreamURL: DefaultStreamURL,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryPolicy(),
	}
}

// Client talks to the Shodan API with a single key.
type Client struct {
	cfg    Config
	http   *http.Client
	rc     *retryablehttp.Client
	logger zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests. Its transport
// also carries alert streams.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a Client, filling unset fields of cfg from DefaultConfig.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.StreamURL == "" {
		cfg.StreamURL = def.StreamURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = def.Retry.MaxRetries
	}
	if cfg.Retry.WaitMin <= 0 {
		cfg.Retry.WaitMin = def.Retry.WaitMin
	}
	if cfg.Retry.WaitMax < cfg.Retry.WaitMin {
		cfg.Retry.WaitMax = max(def.Retry.WaitMax, cfg.Retry.WaitMin)
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.With().Str("component", "shodan").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.http
	// The built-in logger prints full URLs, key included.
	rc.Logger = nil
	rc.RetryMax = max(cfg.Retry.MaxRetries, 0)
	rc.RetryWaitMin = cfg.Retry.WaitMin
	rc.RetryWaitMax = cfg.Retry.WaitMax
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			c.logger.Warn().Str("path", req.URL.Path).Int("attempt", attempt).Msg("Retrying request")
		}
	}
	// Exhausted retries hand back the last response for decodeError.
	rc.ErrorHandler = func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if resp != nil {
			return resp, nil
		}
		return nil, err
	}
	c.rc = rc
	return c
}

// ScanRequest is the answer to a scan submission.
type ScanRequest struct {
	ID          string `json:"id"`
	Count       int    `json:"count"`
	CreditsLeft int    `json:"credits_left"`
}

// ScanStatus describes a submitted scan.
type ScanStatus struct {
	ID      string `json:"id"`
	Count   int    `json:"count"`
	Status  string `json:"status"`
	Created string `json:"created"`
}

// Scan requests an on-demand scan of ips (comma separated IPs or CIDRs).
func (c *Client) Scan(ctx context.Context, ips string) (*ScanRequest, error) {
	form := url.Values{}
	form.Set("ips", ips)

	var out ScanRequest
	if err := c.do(ctx, http.MethodPost, "/shodan/scan", nil, formPayload(form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScanStatus returns the state of scan id.
func (c *Client) ScanStatus(ctx context.Context, id string) (*ScanStatus, error) {
	var out ScanStatus
	if err := c.do(ctx, http.MethodGet, "/shodan/scan/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitForScan polls scan id every interval until it is DONE or timeout
// elapses. A ctx deadline that expires first counts as the timeout too, so
// callers always see ErrScanTimeout for an unfinished scan; cancellation is
// returned as is.
func (c *Client) WaitForScan(ctx context.Context, id string, interval, timeout time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.ScanStatus(ctx, id)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrScanTimeout
			}
			return fmt.Errorf("scan status: %w", err)
		}
		if st.Status == ScanDone {
			return nil
		}
		c.logger.Debug().Str("scan_id", id).Str("status", st.Status).Msg("Waiting for scan")
		if time.Now().After(deadline) {
			return ErrScanTimeout
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrScanTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Host is a host document. Data keeps each banner as a loose map so that the
// raw payload survives untouched; Raw holds the exact bytes received.
type Host struct {
	IPStr     string           `json:"ip_str"`
	Org       string           `json:"org"`
	ISP       string           `json:"isp"`
	OS        string           `json:"os"`
	Hostnames []string         `json:"hostnames"`
	Ports     []int            `json:"ports"`
	Location  Location         `json:"location"`
	Data      []map[string]any `json:"data"`
	Raw       json.RawMessage  `json:"-"`
}

// Location is the geolocation block of hosts and matches.
type Location struct {
	City        string  `json:"city"`
	CountryCode string  `json:"country_code"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// Host fetches everything known about ip, including full banners.
func (c *Client) Host(ctx context.Context, ip string) (*Host, error) {
	q := url.Values{}
	q.Set("minify", "false")

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/shodan/host/"+url.PathEscape(ip), q, nil, &raw); err != nil {
		return nil, err
	}
	var h Host
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, fmt.Errorf("decode host: %w", err)
	}
	h.Raw = raw
	return &h, nil
}

// SearchResult is one page of search matches.
type SearchResult struct {
	Total   int                     `json:"total"`
	Matches []map[string]any        `json:"matches"`
	Facets  map[string][]FacetCount `json:"facets"`
}

// FacetCount is one bucket of a facet.
type FacetCount struct {
	Value any `json:"value"`
	Count int `json:"count"`
}

// Search runs query and returns the requested page (1-based).
func (c *Client) Search(ctx context.Context, query string, page int, facets []string) (*SearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if len(facets) > 0 {
		q.Set("facets", strings.Join(facets, ","))
	}

	var out SearchResult
	if err := c.do(ctx, http.MethodGet, "/shodan/host/search", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Matches == nil {
		out.Matches = []map[string]any{}
	}
	return &out, nil
}

// APIInfo returns plan and credit information for the key.
func (c *Client) APIInfo(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/api-info", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// payload is an encoded request body.
type payload struct {
	data        []byte
	contentType string
}

func formPayload(v url.Values) *payload {
	return &payload{data: []byte(v.Encode()), contentType: "application/x-www-form-urlencoded"}
}

func jsonPayload(v any) (*payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &payload{data: b, contentType: "application/json"}, nil
}

// endpoint joins base, path and q, adding the key.
func (c *Client) endpoint(base, path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.cfg.APIKey)
	return strings.TrimRight(base, "/") + path + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body *payload, out any) error {
	if c.cfg.APIKey == "" {
		return ErrMissingKey
	}

	var raw any
	if body != nil {
		raw = body.data
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.endpoint(c.cfg.BaseURL, path, q), raw)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, redactURL(err))
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}

	resp, err := c.rc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, redactURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// redactURL masks the key query parameter in the URL of a transport error.
// The result still unwraps to the underlying cause.
func redactURL(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}
	masked := *uerr
	masked.URL = maskKey(uerr.URL)
	return &masked
}

func maskKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '?'); i >= 0 {
			return raw[:i]
		}
		return raw
	}
	q := u.Query()
	if q.Has("key") {
		q.Set("key", redacted)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
