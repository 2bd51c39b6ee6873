package owasp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cast"

	"github.com/vulntor/exposure/pkg/vuln"
)

// ErrUnrecognizedInput is returned by LoadReports for JSON that holds no host
// reports.
var ErrUnrecognizedInput = errors.New("input does not contain host reports")

// notDetermined marks a missing CVSS score in classification rows.
const notDetermined = "N/D"

// Report is a host report as read back from disk. Fields are loosely typed so
// that reports written by older tools still load.
type Report struct {
	IP        any                   `json:"ip"`
	IPStr     string                `json:"ip_str"`
	Org       string                `json:"org"`
	Hostnames []string              `json:"hostnames"`
	Banners   []ReportBanner        `json:"banners"`
	Vulns     map[string]ReportVuln `json:"vulns"`
}

// ReportBanner is the part of a banner entry used for the port join.
type ReportBanner struct {
	Port    any    `json:"port"`
	Service string `json:"service"`
	Product string `json:"product"`
	Version string `json:"version"`
}

// ReportVuln is one entry of a report's vulns mapping.
type ReportVuln struct {
	Port        any    `json:"port"`
	CVSS        any    `json:"cvss"`
	Description string `json:"description"`
}

func (r Report) ip() string {
	if s := cast.ToString(r.IP); s != "" {
		return s
	}
	return r.IPStr
}

// LoadReports reads host reports from r. It accepts a JSON list of reports,
// an object holding them under "results", or a single report object.
func LoadReports(r io.Reader) ([]Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read reports: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrUnrecognizedInput
	}

	switch data[0] {
	case '[':
		var reports []Report
		if err := json.Unmarshal(data, &reports); err != nil {
			return nil, fmt.Errorf("decode report list: %w", err)
		}
		return reports, nil
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("decode report object: %w", err)
		}
		if raw, ok := probe["results"]; ok {
			var reports []Report
			if err := json.Unmarshal(raw, &reports); err != nil {
				return nil, fmt.Errorf("decode results list: %w", err)
			}
			return reports, nil
		}
		_, hasVulns := probe["vulns"]
		_, hasBanners := probe["banners"]
		if !hasVulns && !hasBanners {
			return nil, ErrUnrecognizedInput
		}
		var single Report
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
		return []Report{single}, nil
	}
	return nil, ErrUnrecognizedInput
}

// ClassifyReports flattens reports into one classified row per (host, CVE).
// Service details come from the banner on the vulnerability's port; when
// several banners share a port the last one wins.
func (c *Catalog) ClassifyReports(reports []Report) []vuln.ClassifiedVuln {
	out := []vuln.ClassifiedVuln{}
	for _, host := range reports {
		byPort := make(map[int]ReportBanner, len(host.Banners))
		for _, b := range host.Banners {
			if p := cast.ToInt(b.Port); p != 0 {
				byPort[p] = b
			}
		}

		hostnames := host.Hostnames
		if hostnames == nil {
			hostnames = []string{}
		}

		ids := make([]string, 0, len(host.Vulns))
		for id := range host.Vulns {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			v := host.Vulns[id]
			port := cast.ToInt(v.Port)
			var svc ReportBanner
			if port != 0 {
				svc = byPort[port]
			}

			class := c.Classify(Input{
				Description: v.Description,
				Service:     svc.Service,
				Product:     svc.Product,
				Version:     svc.Version,
				CVEID:       id,
			})

			var cvss any = notDetermined
			if v.CVSS != nil {
				cvss = v.CVSS
			}

			out = append(out, vuln.ClassifiedVuln{
				IP:              host.ip(),
				Org:             host.Org,
				Hostnames:       hostnames,
				CVE:             id,
				CVSS:            cvss,
				Port:            port,
				Service:         svc.Service,
				Product:         svc.Product,
				Version:         svc.Version,
				Description:     v.Description,
				OwaspCategory:   class.Category,
				MatchedKeywords: class.MatchedKeywords,
			})
		}
	}
	return out
}

// ClassifyReports runs the default catalog.
func ClassifyReports(reports []Report) []vuln.ClassifiedVuln {
	return Default().ClassifyReports(reports)
}
