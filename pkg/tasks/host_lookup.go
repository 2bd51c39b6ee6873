package tasks

import (
	"context"
	"time"

	"github.com/vulntor/exposure/pkg/shodan"
)

// HostLookup fetches what Shodan already knows about an address.
type HostLookup struct{}

// HostLookupResult is the document produced by HostLookup. HostData holds a
// HostSummary, or an error object when the lookup failed.
type HostLookupResult struct {
	ScannedTarget string `json:"scanned_target"`
	Timestamp     string `json:"timestamp"`
	HostData      any    `json:"host_data"`
}

// HostSummary condenses a host document.
type HostSummary struct {
	QueriedAt string          `json:"queried_at"`
	IP        string          `json:"ip"`
	Summary   HostOverview    `json:"summary"`
	Results   []shodan.Banner `json:"results"`
}

// HostOverview is the host-level part of a summary.
type HostOverview struct {
	Org          string          `json:"org"`
	ISP          string          `json:"isp"`
	OS           string          `json:"os"`
	Location     shodan.Location `json:"location"`
	BannersCount int             `json:"banners_count"`
}

func (HostLookup) Metadata() Metadata {
	return Metadata{
		Name: "host_lookup",
		Description: "Looks up a host on Shodan by IP and exports its banners with port, transport, " +
			"organisation, ISP, operating system and location.",
		Params: []Param{
			{Name: "ip", Label: "IP address", Type: "string", Required: true, Placeholder: "192.0.2.1", Rule: "ip"},
		},
		Timeout:    600 * time.Second,
		AcceptsLog: true,
	}
}

func (HostLookup) Run(ctx context.Context, env *Env, p Params) (any, error) {
	ip := p.String("ip")
	now := timestamp(env.now())
	res := HostLookupResult{ScannedTarget: ip, Timestamp: now}

	host, err := env.shodanClient(p).Host(ctx, ip)
	if err != nil {
		_ = env.Log.Printf("Lookup of %s failed: %v", ip, err)
		res.HostData = map[string]string{"error": err.Error()}
		return res, nil
	}

	summary := summarizeHost(host, ip, now)
	res.HostData = summary
	_ = env.Log.Printf("Lookup of %s finished: %d banners", ip, summary.Summary.BannersCount)
	return res, nil
}

// summarizeHost condenses host into deduplicated banners; fallback names the
// address when the document carries none.
func summarizeHost(host *shodan.Host, fallback, queriedAt string) HostSummary {
	banners := shodan.Banners(host)
	addr := host.IPStr
	if addr == "" {
		addr = fallback
	}
	return HostSummary{
		QueriedAt: queriedAt,
		IP:        addr,
		Summary: HostOverview{
			Org:          host.Org,
			ISP:          host.ISP,
			OS:           host.OS,
			Location:     host.Location,
			BannersCount: len(banners),
		},
		Results: banners,
	}
}
