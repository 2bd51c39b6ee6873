package config

import (
	"github.com/vulntor/exposure/pkg/nmap"
	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/tasks"
	"github.com/vulntor/exposure/pkg/vulners"
)

// NVD returns the lookup client settings.
func (c Config) NVD() nvd.Config {
	cfg := nvd.DefaultConfig()
	cfg.APIKey = c.Keys.NVD
	if c.Endpoints.NVD != "" {
		cfg.BaseURL = c.Endpoints.NVD
	}
	if c.Endpoints.Timeout > 0 {
		cfg.Timeout = c.Endpoints.Timeout
	}
	if c.Pipeline.ResultsPerPage > 0 {
		cfg.ResultsPerPage = c.Pipeline.ResultsPerPage
	}
	if c.Pipeline.MaxCandidates > 0 {
		cfg.MaxCandidates = c.Pipeline.MaxCandidates
	}
	if c.Pipeline.CacheSize > 0 {
		cfg.CacheSize = c.Pipeline.CacheSize
	}
	if c.Pipeline.CacheTTL > 0 {
		cfg.CacheTTL = c.Pipeline.CacheTTL
	}
	cfg.FilterByVersion = c.Pipeline.FilterByVersion
	return cfg
}

// Vulners returns the exploit correlator settings.
func (c Config) Vulners() vulners.Config {
	cfg := vulners.DefaultConfig()
	cfg.APIKey = c.Keys.Vulners
	if c.Endpoints.Vulners != "" {
		cfg.BaseURL = c.Endpoints.Vulners
	}
	if c.Endpoints.Timeout > 0 {
		cfg.Timeout = c.Endpoints.Timeout
	}
	return cfg
}

// Shodan returns the Shodan client settings.
func (c Config) Shodan() shodan.Config {
	cfg := shodan.DefaultConfig()
	cfg.APIKey = c.Keys.Shodan
	if c.Endpoints.Shodan != "" {
		cfg.BaseURL = c.Endpoints.Shodan
	}
	if c.Endpoints.ShodanStream != "" {
		cfg.StreamURL = c.Endpoints.ShodanStream
	}
	if c.Endpoints.Timeout > 0 {
		cfg.Timeout = c.Endpoints.Timeout
	}
	return cfg
}

// Runner returns the nmap runner.
func (c Config) Runner() *nmap.Runner {
	r := nmap.NewRunner()
	if c.Scan.NmapPath != "" {
		r.Binary = c.Scan.NmapPath
	}
	if c.Scan.NmapTimeout > 0 {
		r.Timeout = c.Scan.NmapTimeout
	}
	r.Args = c.Scan.NmapArgs
	return r
}

// Prober returns the ICMP pre-check, or a prober that accepts every host
// when pings are disabled.
func (c Config) Prober() nmap.Prober {
	if !c.Scan.Ping {
		return nmap.AlwaysAlive{}
	}
	p := nmap.NewICMPProber()
	if c.Scan.PingCount > 0 {
		p.Count = c.Scan.PingCount
	}
	if c.Scan.PingTimeout > 0 {
		p.Timeout = c.Scan.PingTimeout
	}
	p.Privileged = c.Scan.PingPrivileged
	return p
}

// TaskEnv returns a task environment carrying the configured credentials,
// clients and scan tooling. The caller attaches the results store and log.
func (c Config) TaskEnv() *tasks.Env {
	return &tasks.Env{
		Keys: tasks.Keys{
			Shodan:  c.Keys.Shodan,
			NVD:     c.Keys.NVD,
			Vulners: c.Keys.Vulners,
		},
		NVD:     c.NVD(),
		Vulners: c.Vulners(),
		Shodan:  c.Shodan(),
		Workers: c.Pipeline.Workers,
		Runner:  c.Runner(),
		Prober:  c.Prober(),
	}
}
