package tasks

import (
	"context"
	"time"

	"github.com/vulntor/exposure/pkg/nmap"
	"github.com/vulntor/exposure/pkg/pipeline"
	"github.com/vulntor/exposure/pkg/stringutil"
	"github.com/vulntor/exposure/pkg/vuln"
)

// NmapScan scans an address or small CIDR block with nmap and correlates
// detected services, producing reports shaped like active scan output.
type NmapScan struct{}

// NmapResult is the document produced by NmapScan.
type NmapResult struct {
	ScannedTarget string `json:"scanned_target"`
	Timestamp     string `json:"timestamp"`
	Results       []any  `json:"results"`
}

// HostFailure is reported for a host that could not be scanned.
type HostFailure struct {
	IP    string `json:"ip"`
	Error string `json:"error"`
	Raw   string `json:"raw,omitempty"`
}

func (NmapScan) Metadata() Metadata {
	return Metadata{
		Name: "nmap_scan",
		Description: "Scans with nmap and correlates detected services with CVEs and exploits. " +
			"Common arguments: -sS SYN scan, -sV service versions, -A aggressive, -F fast, -p- all ports, " +
			"-T<0-5> timing, -Pn skip discovery, --open open ports only. Keep -oX - so the report goes to stdout.",
		Params: []Param{
			{Name: "target", Label: "Target (IP or CIDR)", Type: "text", Required: true, Placeholder: "192.0.2.1/32", Rule: "ip|cidr|hostname"},
			{Name: "delay", Label: "Delay between hosts (s)", Type: "number", Placeholder: 0.5, Rule: "gte=0"},
			{Name: "max", Label: "Maximum hosts to scan", Type: "number", Placeholder: 0, Rule: "gte=0"},
			{Name: "nmap_args", Label: "nmap arguments", Type: "text", Placeholder: nmap.DefaultArgs, Help: "Passed to nmap as-is."},
			{Name: "nvd_api_key", Label: "NVD API key", Type: "password"},
			{Name: "vulners_api_key", Label: "Vulners API key", Type: "password"},
		},
		Timeout:    20 * time.Minute,
		AcceptsLog: true,
	}
}

func (NmapScan) Run(ctx context.Context, env *Env, p Params) (any, error) {
	target := p.String("target")
	targets := nmap.ExpandTargets(target)
	if limit := p.Int("max", 0); limit > 0 && len(targets) > limit {
		targets = targets[:limit]
	}
	delay := time.Duration(p.Float("delay", 0.5) * float64(time.Second))
	args := p.String("nmap_args")

	res := NmapResult{
		ScannedTarget: target,
		Timestamp:     timestamp(env.now()),
		Results:       make([]any, 0, len(targets)),
	}
	orch := env.orchestrator(p)
	runner := env.runner()
	prober := env.prober()

	_ = env.Log.Printf("Scan started: target=%s", target)
	for i, ip := range targets {
		if ctx.Err() != nil {
			res.Results = append(res.Results, HostFailure{IP: ip, Error: ctx.Err().Error()})
			break
		}
		_ = env.Log.Printf("Scanning %s (%d/%d)", ip, i+1, len(targets))

		if !prober.Alive(ctx, ip) {
			res.Results = append(res.Results, HostFailure{IP: ip, Error: "host did not answer ping"})
		} else {
			res.Results = append(res.Results, scanWithNmap(ctx, env, orch, runner, ip, args))
		}

		if i < len(targets)-1 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}
	_ = env.Log.Printf("Scan finished: %d hosts", len(res.Results))
	return res, nil
}

func scanWithNmap(ctx context.Context, env *Env, orch *pipeline.Orchestrator, runner *nmap.Runner, ip, args string) any {
	out, err := runner.Scan(ctx, ip, args)
	if err != nil {
		return HostFailure{IP: ip, Error: err.Error()}
	}
	hosts, err := nmap.ParseXML(out.Stdout)
	if err != nil {
		return HostFailure{IP: ip, Error: err.Error(), Raw: stringutil.Truncate(string(out.Stdout), pipeline.MaxRawLength)}
	}

	info := pipeline.HostInfo{IP: ip}
	var records []vuln.ServiceRecord
	for _, h := range hosts {
		records = append(records, h.Records()...)
		if info.OS == "" {
			info.OS = h.OS
		}
		info.Hostnames = append(info.Hostnames, h.Hostnames...)
	}

	outcome := orch.Run(ctx, records)
	return pipeline.BuildHostReport(info, outcome, out.Stdout, env.now())
}
