package pipeline

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/vuln"
)

type fakeLookup struct {
	mu      sync.Mutex
	calls   []string
	results map[string]nvd.Result
	delay   time.Duration
	active  atomic.Int32
	peak    atomic.Int32
	panicOn string
}

func (f *fakeLookup) Lookup(_ context.Context, product, version string) nvd.Result {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if product == f.panicOn {
		panic("boom")
	}

	key := product + " " + version
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if r, ok := f.results[key]; ok {
		return r
	}
	return nvd.Result{Vulns: []vuln.VulnerabilityRecord{}, Status: vuln.StatusOK}
}

type fakeCorrelator struct {
	exploits []vuln.ExploitRecord
	calls    atomic.Int32
}

func (f *fakeCorrelator) Correlate(_ context.Context, ids []string) ([]vuln.ExploitRecord, vuln.LookupStatus) {
	if len(ids) == 0 {
		return []vuln.ExploitRecord{}, vuln.StatusSkipped
	}
	f.calls.Add(1)
	return f.exploits, vuln.StatusOK
}

func TestAnalyze_SkipsUntrustedVersions(t *testing.T) {
	l := &fakeLookup{}
	o := NewWithClients(l, &fakeCorrelator{}, 1)

	for _, v := range []string{"", "0", "1.0", "1.1", " 1 "} {
		a := o.Analyze(context.Background(), vuln.ServiceRecord{Port: 80, Product: "nginx", Version: v})
		assert.Equal(t, vuln.StatusSkipped, a.Banner.LookupStatus, "version %q", v)
		assert.Empty(t, a.Vulns)
		assert.NotNil(t, a.Vulns)
	}
	assert.Empty(t, l.calls)
}

func TestAnalyze_BannerFallback(t *testing.T) {
	l := &fakeLookup{}
	o := NewWithClients(l, &fakeCorrelator{}, 1)

	a := o.Analyze(context.Background(), vuln.ServiceRecord{
		Port:   22,
		Banner: "SSH-2.0-OpenSSH_7.4p1 Debian-10",
	})
	assert.Equal(t, "OpenSSH", a.Banner.Product)
	assert.Equal(t, "7.4", a.Banner.Version)
	assert.Equal(t, vuln.StatusOK, a.Banner.LookupStatus)
	assert.Equal(t, []string{"OpenSSH 7.4"}, l.calls)
}

func TestAnalyze_ServiceUsedAsProduct(t *testing.T) {
	l := &fakeLookup{}
	o := NewWithClients(l, &fakeCorrelator{}, 1)

	a := o.Analyze(context.Background(), vuln.ServiceRecord{Port: 21, Service: "vsftpd", Version: "2.3.4"})
	assert.Equal(t, "vsftpd", a.Banner.Product)
	assert.Equal(t, []string{"vsftpd 2.3.4"}, l.calls)
}

func TestAnalyze_AttachesSeverityAndExploits(t *testing.T) {
	l := &fakeLookup{results: map[string]nvd.Result{
		"nginx 1.18.0": {
			Status: vuln.StatusOK,
			Vulns: []vuln.VulnerabilityRecord{
				{CVEID: "CVE-2021-23017", CVSS: 9.8, Description: "resolver off-by-one"},
				{CVEID: "CVE-2019-20372", CVSS: 5.3, Description: "request smuggling"},
			},
		},
	}}
	c := &fakeCorrelator{exploits: []vuln.ExploitRecord{
		{Title: "nginx resolver PoC", Href: "https://example.org/poc", Type: "exploit", CVEID: "CVE-2021-23017"},
	}}
	o := NewWithClients(l, c, 1)

	a := o.Analyze(context.Background(), vuln.ServiceRecord{Port: 443, Product: "nginx", Version: "1.18.0"})
	require.Len(t, a.Vulns, 2)
	assert.Equal(t, vuln.StatusOK, a.Banner.ExploitStatus)

	first := a.Vulns[0]
	assert.Equal(t, "Critical", first.Severity)
	assert.Equal(t, 443, first.Port)
	assert.Equal(t, "nginx", first.Product)
	assert.Equal(t, "nginx", first.Service)
	assert.Equal(t, "1.18.0", first.Version)
	require.Len(t, first.Exploits, 1)

	second := a.Vulns[1]
	assert.Equal(t, "Medium", second.Severity)
	assert.Empty(t, second.Exploits)
	assert.NotNil(t, second.Exploits)
}

func TestAnalyze_LookupErrorStillReported(t *testing.T) {
	l := &fakeLookup{results: map[string]nvd.Result{
		"Apache 2.4.49": {Status: vuln.StatusError, Vulns: []vuln.VulnerabilityRecord{}},
	}}
	c := &fakeCorrelator{}
	o := NewWithClients(l, c, 1)

	a := o.Analyze(context.Background(), vuln.ServiceRecord{Port: 80, Product: "Apache", Version: "2.4.49"})
	assert.Equal(t, vuln.StatusError, a.Banner.LookupStatus)
	assert.Equal(t, vuln.StatusSkipped, a.Banner.ExploitStatus)
	assert.Empty(t, a.Vulns)
	assert.Equal(t, int32(0), c.calls.Load())
}

func TestRun_RespectsWorkerLimit(t *testing.T) {
	l := &fakeLookup{delay: 10 * time.Millisecond}
	o := NewWithClients(l, &fakeCorrelator{}, 2)

	records := make([]vuln.ServiceRecord, 8)
	for i := range records {
		records[i] = vuln.ServiceRecord{Port: 8000 + i, Product: "nginx", Version: "1.18.0"}
	}
	out := o.Run(context.Background(), records)

	assert.Len(t, out.Banners, 8)
	assert.LessOrEqual(t, l.peak.Load(), int32(2))
	for i := 1; i < len(out.Banners); i++ {
		assert.Less(t, out.Banners[i-1].Port, out.Banners[i].Port)
	}
}

func TestRun_PanicIsolated(t *testing.T) {
	l := &fakeLookup{
		panicOn: "broken",
		results: map[string]nvd.Result{
			"nginx 1.18.0": {Status: vuln.StatusOK, Vulns: []vuln.VulnerabilityRecord{{CVEID: "CVE-2021-23017", CVSS: 9.8}}},
		},
	}
	o := NewWithClients(l, &fakeCorrelator{}, 3)

	out := o.Run(context.Background(), []vuln.ServiceRecord{
		{Port: 80, Product: "nginx", Version: "1.18.0"},
		{Port: 81, Product: "broken", Version: "2.0"},
	})

	require.Len(t, out.Banners, 2)
	assert.Equal(t, vuln.StatusOK, out.Banners[0].LookupStatus)
	assert.Equal(t, vuln.StatusError, out.Banners[1].LookupStatus)
	assert.Len(t, out.VulnsNVD, 1)
	assert.Contains(t, out.Vulns, "CVE-2021-23017")
}

func TestRun_OneEntryPerCVE(t *testing.T) {
	shared := nvd.Result{Status: vuln.StatusOK, Vulns: []vuln.VulnerabilityRecord{{CVEID: "CVE-2021-23017", CVSS: 9.8}}}
	l := &fakeLookup{results: map[string]nvd.Result{
		"nginx 1.18.0": shared,
		"nginx 1.19.0": shared,
	}}
	o := NewWithClients(l, &fakeCorrelator{}, 2)

	out := o.Run(context.Background(), []vuln.ServiceRecord{
		{Port: 80, Product: "nginx", Version: "1.18.0"},
		{Port: 8080, Product: "nginx", Version: "1.19.0"},
	})

	assert.Len(t, out.VulnsNVD, 2)
	require.Len(t, out.Vulns, 1)
	entry := out.Vulns["CVE-2021-23017"]
	assert.Contains(t, []int{80, 8080}, entry.Port)
}

func TestRun_Empty(t *testing.T) {
	o := NewWithClients(&fakeLookup{}, &fakeCorrelator{}, 0)
	assert.Equal(t, DefaultWorkers, o.Workers())

	out := o.Run(context.Background(), nil)
	assert.NotNil(t, out.Banners)
	assert.NotNil(t, out.VulnsNVD)
	assert.NotNil(t, out.Vulns)
}

func TestBuildHostReport(t *testing.T) {
	out := Outcome{
		Banners: []vuln.BannerEntry{{Port: 443}, {Port: 22}, {Port: 443}, {Port: 0}},
		Vulns:   map[string]vuln.VulnEntry{"CVE-2021-23017": {CVSS: 9.8}},
	}
	raw := []byte(strings.Repeat("x", MaxRawLength+50))
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	r := BuildHostReport(HostInfo{IP: "203.0.113.7", Org: "Example"}, out, raw, now)

	assert.Equal(t, "203.0.113.7", r.IP)
	assert.Equal(t, "203.0.113.7", r.IPStr)
	assert.Equal(t, []int{22, 443}, r.Ports)
	assert.Equal(t, 4, r.BannersCount)
	assert.Len(t, r.Raw, MaxRawLength)
	assert.Equal(t, "2024-03-01T12:00:00Z", r.LastUpdate)
	assert.NotNil(t, r.Hostnames)
	assert.NotNil(t, r.VulnsNVD)
}

func TestBuildHostReport_PortlessBanner(t *testing.T) {
	o := NewWithClients(&fakeLookup{}, &fakeCorrelator{}, 1)
	out := o.Run(context.Background(), []vuln.ServiceRecord{
		vuln.RecordFromMap(map[string]any{"data": "SSH-2.0-OpenSSH"}),
		vuln.RecordFromMap(map[string]any{"port": 22, "data": "SSH-2.0-OpenSSH"}),
	})

	r := BuildHostReport(HostInfo{IP: "203.0.113.7"}, out, nil, time.Now())
	assert.Equal(t, []int{22}, r.Ports)
	assert.Equal(t, 2, r.BannersCount)
}
