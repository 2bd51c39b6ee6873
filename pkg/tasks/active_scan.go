package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/vulntor/exposure/pkg/pipeline"
	"github.com/vulntor/exposure/pkg/shodan"
)

// ActiveScan triggers an on-demand Shodan scan of one host, waits for it and
// correlates the resulting banners with known CVEs and exploits.
type ActiveScan struct{}

// ScanFailure is reported in place of a host report when the upstream scan
// does not produce one.
type ScanFailure struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Target string `json:"target,omitempty"`
	ScanID string `json:"scan_id,omitempty"`
}

// StatusTimeout marks a scan abandoned after the polling ceiling.
const StatusTimeout = "TIMEOUT"

func (ActiveScan) Metadata() Metadata {
	return Metadata{
		Name:        "active_scan_cve",
		Description: "Active Shodan scan of a host followed by CVE (NVD) and exploit (Vulners) correlation.",
		Params: []Param{
			{Name: "target", Label: "Target IP (owned or authorised)", Type: "text", Required: true, Rule: "ip"},
			{Name: "wait_interval", Label: "Seconds between status checks", Type: "number", Placeholder: 5, Rule: "gt=0"},
			{Name: "timeout", Label: "Maximum wait (seconds)", Type: "number", Placeholder: 600, Rule: "gt=0"},
			{Name: "max_workers", Label: "Concurrent lookups", Type: "number", Placeholder: 5, Rule: "gte=1"},
			{Name: "nvd_api_key", Label: "NVD API key", Type: "password"},
			{Name: "vulners_api_key", Label: "Vulners API key", Type: "password"},
		},
		Timeout:    15 * time.Minute,
		AcceptsLog: true,
	}
}

func (ActiveScan) Run(ctx context.Context, env *Env, p Params) (any, error) {
	target := p.String("target")
	interval := time.Duration(p.Float("wait_interval", 5) * float64(time.Second))
	timeout := time.Duration(p.Float("timeout", 600) * float64(time.Second))

	api := env.shodanClient(p)
	_ = env.Log.Printf("Starting scan of %s", target)

	sr, err := api.Scan(ctx, target)
	if err != nil {
		return []any{ScanFailure{Error: "Scan start error: " + err.Error(), Target: target}}, nil
	}

	if err := api.WaitForScan(ctx, sr.ID, interval, timeout); err != nil {
		if errors.Is(err, shodan.ErrScanTimeout) {
			_ = env.Log.Printf("Scan %s timed out", sr.ID)
			return []any{ScanFailure{Status: StatusTimeout, Target: target, ScanID: sr.ID}}, nil
		}
		return []any{ScanFailure{Error: "Scan status error: " + err.Error(), Target: target, ScanID: sr.ID}}, nil
	}

	host, err := api.Host(ctx, target)
	if err != nil {
		return []any{ScanFailure{Error: "Host fetch error: " + err.Error(), Target: target, ScanID: sr.ID}}, nil
	}

	out := env.orchestrator(p).Run(ctx, shodan.HostRecords(host))
	ip := host.IPStr
	if ip == "" {
		ip = target
	}
	report := pipeline.BuildHostReport(pipeline.HostInfo{
		IP:        ip,
		Org:       host.Org,
		OS:        host.OS,
		Hostnames: host.Hostnames,
	}, out, host.Raw, env.now())

	_ = env.Log.Printf("Scan of %s finished: %d banners, %d CVEs", target, report.BannersCount, len(report.Vulns))
	return []any{report}, nil
}
