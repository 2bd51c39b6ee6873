package pipeline

import (
	"sort"
	"time"

	"github.com/vulntor/exposure/pkg/stringutil"
	"github.com/vulntor/exposure/pkg/vuln"
)

// MaxRawLength bounds the raw upstream payload kept in a report.
const MaxRawLength = 10000

// HostInfo is the host metadata copied into a report.
type HostInfo struct {
	IP        string
	Org       string
	OS        string
	Hostnames []string
}

// BuildHostReport assembles the per-host report from a pipeline outcome.
// raw is the upstream host payload and is kept truncated. Banners decoded
// without a port carry port 0; they count towards BannersCount but are not
// listed in Ports.
func BuildHostReport(host HostInfo, out Outcome, raw []byte, now time.Time) vuln.HostReport {
	seen := make(map[int]struct{})
	ports := []int{}
	for _, b := range out.Banners {
		if b.Port <= 0 {
			continue
		}
		if _, ok := seen[b.Port]; ok {
			continue
		}
		seen[b.Port] = struct{}{}
		ports = append(ports, b.Port)
	}
	sort.Ints(ports)

	hostnames := host.Hostnames
	if hostnames == nil {
		hostnames = []string{}
	}
	banners := out.Banners
	if banners == nil {
		banners = []vuln.BannerEntry{}
	}
	vulnsNVD := out.VulnsNVD
	if vulnsNVD == nil {
		vulnsNVD = []vuln.VulnerabilityRecord{}
	}
	vulns := out.Vulns
	if vulns == nil {
		vulns = map[string]vuln.VulnEntry{}
	}

	return vuln.HostReport{
		IP:           host.IP,
		IPStr:        host.IP,
		Org:          host.Org,
		OS:           host.OS,
		Hostnames:    hostnames,
		LastUpdate:   now.UTC().Format(time.RFC3339),
		Ports:        ports,
		BannersCount: len(banners),
		Banners:      banners,
		VulnsNVD:     vulnsNVD,
		Vulns:        vulns,
		Raw:          stringutil.Truncate(string(raw), MaxRawLength),
	}
}
