package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/vulntor/exposure/pkg/shodan"
)

// searchPageSize is the number of matches Shodan returns per page.
const searchPageSize = 100

// DefaultFacets are requested with every exposure search.
var DefaultFacets = []string{"country", "org", "os", "port"}

// GlobalExposure runs a Shodan search with automatic pagination.
type GlobalExposure struct{}

// ExposureResult is the document produced by GlobalExposure.
type ExposureResult struct {
	QueriedAt      string                         `json:"queried_at"`
	Query          string                         `json:"query"`
	RequestedLimit int                            `json:"requested_limit"`
	Collected      int                            `json:"collected"`
	Facets         map[string][]shodan.FacetCount `json:"facets"`
	Matches        []shodan.Match                 `json:"matches"`
}

func (GlobalExposure) Metadata() Metadata {
	return Metadata{
		Name: "global_exposure",
		Description: "Runs a filtered Shodan search with automatic pagination and exports the normalised matches " +
			"with country, organisation, operating system and port facets.",
		Params: []Param{
			{Name: "query", Label: "Query", Type: "text", Required: true, Placeholder: "http.title:'Home Assistant' port:8123"},
			{Name: "limit", Label: "Limit", Type: "number", Placeholder: 10, Rule: "gte=1"},
		},
		Timeout:    600 * time.Second,
		AcceptsLog: true,
	}
}

func (GlobalExposure) Run(ctx context.Context, env *Env, p Params) (any, error) {
	query := p.String("query")
	limit := p.Int("limit", 10)
	api := env.shodanClient(p)

	_ = env.Log.Printf("Running query: %s", query)
	res := ExposureResult{
		QueriedAt:      timestamp(env.now()),
		Query:          query,
		RequestedLimit: limit,
		Matches:        []shodan.Match{},
	}

	matches, facets, err := searchMatches(ctx, api, query, limit, DefaultFacets)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		res.Matches = append(res.Matches, shodan.NormalizeMatch(m))
	}
	res.Facets = facets
	if res.Facets == nil {
		res.Facets = map[string][]shodan.FacetCount{}
	}
	res.Collected = len(res.Matches)

	_ = env.Log.Printf("Query collected %d matches", res.Collected)
	return res, nil
}

// searchMatches pages through query until limit matches are collected or
// the results run out. Facets come from the first page.
func searchMatches(ctx context.Context, api *shodan.Client, query string, limit int, facets []string) ([]map[string]any, map[string][]shodan.FacetCount, error) {
	var (
		out    []map[string]any
		counts map[string][]shodan.FacetCount
	)
	for page := 1; len(out) < limit; page++ {
		sr, err := api.Search(ctx, query, page, facets)
		if err != nil {
			return nil, nil, fmt.Errorf("search page %d: %w", page, err)
		}
		if page == 1 {
			counts = sr.Facets
		}
		for _, m := range sr.Matches {
			if len(out) >= limit {
				break
			}
			out = append(out, m)
		}
		if len(sr.Matches) < searchPageSize {
			break
		}
	}
	return out, counts, nil
}
