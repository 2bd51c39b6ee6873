package tasks

import (
	"context"
	"net/netip"
	"time"

	"github.com/spf13/cast"
)

// ShodanEnum enumerates passively. An address query is summarised from its
// host document; any other query is searched and each matched host is
// summarised in turn.
type ShodanEnum struct{}

// EnumResult is the document produced by ShodanEnum for a search query.
type EnumResult struct {
	QueriedAt  string        `json:"queried_at"`
	Query      string        `json:"query"`
	TotalHosts int           `json:"total_hosts"`
	Results    []HostSummary `json:"results"`
}

func (ShodanEnum) Metadata() Metadata {
	return Metadata{
		Name: "shodan_enum",
		Description: "Passive enumeration with Shodan: summarises the banners of one IP, or of every host " +
			"matched by a search query.",
		Params: []Param{
			{Name: "query", Label: "Query or IP", Type: "text", Required: true, Placeholder: "nginx port:80"},
			{Name: "limit", Label: "Maximum hosts", Type: "number", Placeholder: 10, Rule: "gte=1"},
		},
		Timeout:    600 * time.Second,
		AcceptsLog: true,
	}
}

// Run never fails on upstream errors: they are reported in an error document.
func (ShodanEnum) Run(ctx context.Context, env *Env, p Params) (any, error) {
	query := p.String("query")
	limit := p.Int("limit", 10)
	api := env.shodanClient(p)
	log := env.logger()

	if _, err := netip.ParseAddr(query); err == nil {
		_ = env.Log.Printf("Looking up host %s", query)
		host, err := api.Host(ctx, query)
		if err != nil {
			_ = env.Log.Printf("Lookup of %s failed: %v", query, err)
			return map[string]string{"error": "host lookup failed: " + err.Error()}, nil
		}
		return summarizeHost(host, query, timestamp(env.now())), nil
	}

	_ = env.Log.Printf("Running enumeration query: %s", query)
	matches, _, err := searchMatches(ctx, api, query, limit, nil)
	if err != nil {
		_ = env.Log.Printf("Query failed: %v", err)
		return map[string]string{"error": err.Error()}, nil
	}

	res := EnumResult{QueriedAt: timestamp(env.now()), Query: query, Results: []HostSummary{}}
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		ip := cast.ToString(m["ip_str"])
		if ip == "" {
			continue
		}
		if _, dup := seen[ip]; dup {
			continue
		}
		seen[ip] = struct{}{}

		host, err := api.Host(ctx, ip)
		if err != nil {
			if ctx.Err() != nil {
				log.Warn().Err(ctx.Err()).Int("analysed", len(res.Results)).Msg("Enumeration stopped early")
				_ = env.Log.Printf("Enumeration stopped after %d hosts: %v", len(res.Results), ctx.Err())
				break
			}
			log.Warn().Err(err).Str("ip", ip).Msg("Host lookup failed")
			_ = env.Log.Printf("Lookup of %s failed: %v", ip, err)
			continue
		}
		res.Results = append(res.Results, summarizeHost(host, ip, timestamp(env.now())))
	}
	res.TotalHosts = len(res.Results)

	_ = env.Log.Printf("Enumeration finished: %d hosts", res.TotalHosts)
	return res, nil
}
