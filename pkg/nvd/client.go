// Package nvd queries the NVD CVE API 2.0 for vulnerabilities affecting a
// product/version pair.
//
// Lookups never return errors to the caller: transport failures, non-200
// answers and undecodable bodies degrade to an empty result whose status is
// vuln.StatusError. Successful answers are memoised per client in an LRU cache
// with a TTL, keyed by the literal (product, version) pair.
package nvd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/normalize"
	"github.com/vulntor/exposure/pkg/version"
	"github.com/vulntor/exposure/pkg/vuln"
)

// DefaultBaseURL is the public CVE API endpoint.
const DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"

// ErrNotFound is returned by Get when the API knows no such CVE.
var ErrNotFound = errors.New("cve not found")

// Config controls a Client.
type Config struct {
	BaseURL        string
	APIKey         string
	ResultsPerPage int
	// MaxCandidates caps the records taken from the matching page.
	MaxCandidates int
	Timeout       time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	// DetailTTL is the expiry of single-CVE entries served by Get.
	DetailTTL time.Duration
	// FilterByVersion drops candidates whose CPE ranges exclude the version.
	FilterByVersion bool
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		ResultsPerPage: 80,
		MaxCandidates:  10,
		Timeout:        10 * time.Second,
		CacheSize:      1024,
		CacheTTL:       6 * time.Hour,
		DetailTTL:      24 * time.Hour,
	}
}

// Result is the outcome of a Lookup.
type Result struct {
	Vulns  []vuln.VulnerabilityRecord
	Status vuln.LookupStatus
}

// clone copies the record slice so callers may annotate records freely.
func (r Result) clone() Result {
	out := Result{Status: r.Status, Vulns: make([]vuln.VulnerabilityRecord, len(r.Vulns))}
	copy(out.Vulns, r.Vulns)
	return out
}

// Client looks up CVEs for product/version pairs.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   gcache.Cache
	details gcache.Cache
	logger  zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client, filling unset fields of cfg from DefaultConfig.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ResultsPerPage <= 0 {
		cfg.ResultsPerPage = def.ResultsPerPage
	}
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = def.MaxCandidates
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = def.DetailTTL
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   gcache.New(cfg.CacheSize).LRU().Expiration(cfg.CacheTTL).Build(),
		details: gcache.New(cfg.CacheSize).LRU().Expiration(cfg.DetailTTL).Build(),
		logger:  log.With().Str("component", "nvd").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(product, version string) string {
	return product + "_" + version
}

// Lookup returns up to MaxCandidates CVEs for product at version. The query
// "product version" is tried first; the bare product is only queried when the
// first attempt produced no network-level matches.
func (c *Client) Lookup(ctx context.Context, product, version string) Result {
	key := cacheKey(product, version)
	if v, err := c.cache.Get(key); err == nil {
		if res, ok := v.(Result); ok {
			return res.clone()
		}
	}

	queries := make([]string, 0, 2)
	if version != "" {
		queries = append(queries, product+" "+version)
	}
	queries = append(queries, product)

	res := Result{Vulns: []vuln.VulnerabilityRecord{}, Status: vuln.StatusError}
	for _, q := range queries {
		items, err := c.search(ctx, q)
		if err != nil {
			c.logger.Debug().Err(err).Str("query", q).Msg("NVD query failed")
			continue
		}
		res.Status = vuln.StatusOK
		if len(items) == 0 {
			continue
		}
		if len(items) > c.cfg.MaxCandidates {
			items = items[:c.cfg.MaxCandidates]
		}
		res.Vulns = c.convert(items, product, version)
		break
	}

	if res.Status == vuln.StatusOK {
		_ = c.cache.Set(key, res.clone())
	}
	c.logger.Debug().
		Str("product", product).
		Str("version", version).
		Int("cves", len(res.Vulns)).
		Str("status", string(res.Status)).
		Msg("NVD lookup finished")
	return res
}

func (c *Client) convert(items []vulnerability, product, version string) []vuln.VulnerabilityRecord {
	out := make([]vuln.VulnerabilityRecord, 0, len(items))
	for _, item := range items {
		id, ok := vuln.NormalizeCVEID(item.CVE.ID)
		if !ok {
			continue
		}
		if c.cfg.FilterByVersion && !normalize.Affects(version, item.CVE.ranges()) {
			continue
		}
		score, _ := item.CVE.Metrics.score()
		out = append(out, vuln.VulnerabilityRecord{
			CVEID:       id,
			Description: item.CVE.description(),
			CVSS:        score,
			Severity:    vuln.Severity(score),
			Product:     product,
			Version:     version,
		})
	}
	return out
}

// search runs one keyword query and returns the raw vulnerability list.
func (c *Client) search(ctx context.Context, query string) ([]vulnerability, error) {
	params := url.Values{}
	params.Set("keywordSearch", query)
	params.Set("resultsPerPage", strconv.Itoa(c.cfg.ResultsPerPage))

	var body response
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	return body.Vulnerabilities, nil
}

// Get fetches a single CVE by id. Results are cached for DetailTTL.
func (c *Client) Get(ctx context.Context, cveID string) (*CVEDetail, error) {
	id, ok := vuln.NormalizeCVEID(cveID)
	if !ok {
		return nil, fmt.Errorf("malformed cve id %q", cveID)
	}
	if v, err := c.details.Get(id); err == nil {
		if d, ok := v.(*CVEDetail); ok {
			return d, nil
		}
	}

	params := url.Values{}
	params.Set("cveId", id)

	var body response
	if err := c.get(ctx, params, &body); err != nil {
		return nil, err
	}
	if len(body.Vulnerabilities) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	item := body.Vulnerabilities[0].CVE
	score, vector := item.Metrics.score()
	detail := &CVEDetail{
		ID:           id,
		Description:  item.description(),
		CVSS:         score,
		Vector:       vector,
		Severity:     vuln.Severity(score),
		Published:    item.Published,
		LastModified: item.LastModified,
		References:   make([]string, 0, len(item.References)),
	}
	for _, r := range item.References {
		detail.References = append(detail.References, r.URL)
	}

	_ = c.details.Set(id, detail)
	return detail, nil
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apiKey", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Purge drops every cached entry.
func (c *Client) Purge() {
	c.cache.Purge()
	c.details.Purge()
}
