// Package pipeline correlates observed services with known vulnerabilities.
//
// For every service record the orchestrator resolves product and version
// (falling back to the raw banner), normalises the version, looks up CVEs,
// correlates exploits and attaches severities. Records are analysed in a
// bounded worker pool; a failing record never aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/exposure/pkg/banner"
	"github.com/vulntor/exposure/pkg/normalize"
	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/vuln"
	"github.com/vulntor/exposure/pkg/vulners"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 5

// Lookuper finds CVEs for a product/version pair.
type Lookuper interface {
	Lookup(ctx context.Context, product, version string) nvd.Result
}

// Correlator finds exploits for CVE ids.
type Correlator interface {
	Correlate(ctx context.Context, cveIDs []string) ([]vuln.ExploitRecord, vuln.LookupStatus)
}

// Settings carries everything needed to build an Orchestrator, API keys
// included.
type Settings struct {
	NVD     nvd.Config
	Vulners vulners.Config
	Workers int
}

// Orchestrator runs the correlation pipeline. Each instance owns its CVE
// cache; instances never share lookups.
type Orchestrator struct {
	lookup    Lookuper
	correlate Correlator
	workers   int
	logger    zerolog.Logger
}

// New builds an Orchestrator with fresh NVD and Vulners clients.
func New(s Settings) *Orchestrator {
	return NewWithClients(nvd.New(s.NVD), vulners.New(s.Vulners), s.Workers)
}

// NewWithClients builds an Orchestrator around existing clients.
func NewWithClients(l Lookuper, c Correlator, workers int) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Orchestrator{
		lookup:    l,
		correlate: c,
		workers:   workers,
		logger:    log.With().Str("component", "pipeline").Logger(),
	}
}

// Workers reports the pool size.
func (o *Orchestrator) Workers() int { return o.workers }

// Analysis is the result for one service record.
type Analysis struct {
	Banner vuln.BannerEntry
	Vulns  []vuln.VulnerabilityRecord
}

// Analyze processes one record. Lookups are skipped when the version is
// missing or too generic to search for.
func (o *Orchestrator) Analyze(ctx context.Context, rec vuln.ServiceRecord) Analysis {
	product := rec.Product
	if product == "" {
		product = rec.Service
	}
	version := rec.Version
	if product == "" || version == "" {
		p, v := banner.Parse(rec.Banner)
		if product == "" {
			product = p
		}
		if version == "" {
			version = v
		}
	}
	version = normalize.Version(version)

	a := Analysis{
		Banner: vuln.BannerEntry{
			Port:          rec.Port,
			Transport:     rec.Transport,
			Service:       rec.Service,
			Product:       product,
			Version:       version,
			Banner:        rec.Banner,
			LookupStatus:  vuln.StatusSkipped,
			ExploitStatus: vuln.StatusSkipped,
		},
		Vulns: []vuln.VulnerabilityRecord{},
	}
	if version == "" {
		return a
	}

	res := o.lookup.Lookup(ctx, product, version)
	a.Banner.LookupStatus = res.Status

	ids := make([]string, 0, len(res.Vulns))
	for _, v := range res.Vulns {
		ids = append(ids, v.CVEID)
	}
	var exploits []vuln.ExploitRecord
	exploits, a.Banner.ExploitStatus = o.correlate.Correlate(ctx, ids)

	service := rec.Service
	if service == "" {
		service = product
	}
	for _, v := range res.Vulns {
		v.Product = product
		v.Version = version
		v.Port = rec.Port
		v.Service = service
		v.Severity = vuln.Severity(v.CVSS)
		v.Exploits = vuln.ExploitsFor(exploits, v.CVEID)
		a.Vulns = append(a.Vulns, v)
	}
	return a
}

// safeAnalyze isolates a record: a panic is logged and turned into an empty
// analysis marked as failed.
func (o *Orchestrator) safeAnalyze(ctx context.Context, rec vuln.ServiceRecord) (a Analysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("analyze port %d: %v", rec.Port, r)
			a = Analysis{
				Banner: vuln.BannerEntry{
					Port:          rec.Port,
					Transport:     rec.Transport,
					Service:       rec.Service,
					Product:       rec.Product,
					Version:       rec.Version,
					Banner:        rec.Banner,
					LookupStatus:  vuln.StatusError,
					ExploitStatus: vuln.StatusSkipped,
				},
				Vulns: []vuln.VulnerabilityRecord{},
			}
		}
	}()
	return o.Analyze(ctx, rec), nil
}

// Outcome aggregates the analyses of a run.
type Outcome struct {
	Banners  []vuln.BannerEntry
	VulnsNVD []vuln.VulnerabilityRecord
	// Vulns maps CVE id to its entry; when two records report the same CVE
	// the one that completed last wins.
	Vulns map[string]vuln.VulnEntry
}

// Run analyses records concurrently with at most Workers in flight.
func (o *Orchestrator) Run(ctx context.Context, records []vuln.ServiceRecord) Outcome {
	out := Outcome{
		Banners:  make([]vuln.BannerEntry, 0, len(records)),
		VulnsNVD: []vuln.VulnerabilityRecord{},
		Vulns:    make(map[string]vuln.VulnEntry),
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(o.workers)

	for _, rec := range records {
		g.Go(func() error {
			a, err := o.safeAnalyze(ctx, rec)
			if err != nil {
				o.logger.Warn().Err(err).Int("port", rec.Port).Msg("Record analysis failed")
			}

			mu.Lock()
			defer mu.Unlock()
			out.Banners = append(out.Banners, a.Banner)
			out.VulnsNVD = append(out.VulnsNVD, a.Vulns...)
			for _, v := range a.Vulns {
				out.Vulns[v.CVEID] = v.Entry()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(out.Banners, func(i, j int) bool { return out.Banners[i].Port < out.Banners[j].Port })
	o.logger.Debug().
		Int("records", len(records)).
		Int("cves", len(out.Vulns)).
		Msg("Pipeline run finished")
	return out
}
