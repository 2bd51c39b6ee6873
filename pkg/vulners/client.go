// Package vulners correlates CVE identifiers with public exploit documents
// through the Vulners id-search API.
package vulners

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vulntor/exposure/pkg/version"
	"github.com/vulntor/exposure/pkg/vuln"
)

// DefaultBaseURL is the id-search endpoint.
const DefaultBaseURL = "https://vulners.com/api/v3/search/id/"

const exploitType = "exploit"

// Config controls a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Timeout: 20 * time.Second,
	}
}

// Client fetches exploit documents for CVE ids.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a Client, filling unset fields of cfg from DefaultConfig.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: log.With().Str("component", "vulners").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type searchRequest struct {
	ID     []string `json:"id"`
	Fields []string `json:"fields"`
}

type searchResponse struct {
	Result string `json:"result"`
	Data   struct {
		Documents map[string]document `json:"documents"`
	} `json:"data"`
}

type document struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Href    string   `json:"href"`
	Type    string   `json:"type"`
	CVEList []string `json:"cvelist"`
}

// Correlate returns the exploit documents referencing cveIDs. Non-exploit
// documents are dropped. Failures degrade to an empty list with
// vuln.StatusError; an empty input makes no request.
func (c *Client) Correlate(ctx context.Context, cveIDs []string) ([]vuln.ExploitRecord, vuln.LookupStatus) {
	if len(cveIDs) == 0 {
		return nil, vuln.StatusSkipped
	}

	docs, err := c.search(ctx, cveIDs)
	if err != nil {
		c.logger.Debug().Err(err).Int("ids", len(cveIDs)).Msg("Vulners search failed")
		return []vuln.ExploitRecord{}, vuln.StatusError
	}

	keys := make([]string, 0, len(docs))
	for k := range docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []vuln.ExploitRecord{}
	for _, k := range keys {
		d := docs[k]
		if d.Type != exploitType {
			continue
		}
		cve := "N/A"
		if len(d.CVEList) > 0 {
			cve = d.CVEList[0]
		}
		out = append(out, vuln.ExploitRecord{
			Title: d.Title,
			Href:  d.Href,
			Type:  d.Type,
			CVEID: cve,
		})
	}
	return out, vuln.StatusOK
}

func (c *Client) search(ctx context.Context, ids []string) (map[string]document, error) {
	payload, err := json.Marshal(searchRequest{ID: ids, Fields: []string{"*"}})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Data.Documents, nil
}
