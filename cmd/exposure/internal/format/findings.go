package format

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/fatih/color"

	"github.com/vulntor/exposure/pkg/vuln"
)

// Finding is one vulnerability row.
type Finding struct {
	CVE      string  `json:"cve"`
	CVSS     float64 `json:"cvss"`
	Severity string  `json:"severity"`
	Port     int     `json:"port"`
	Product  string  `json:"product"`
	Version  string  `json:"version"`
	Exploits int     `json:"exploits"`
	// Category is the OWASP IoT label, set for classified rows only.
	Category string `json:"owasp_category,omitempty"`
}

// FindingsFromReport lists the vulns of a host report, highest score first.
func FindingsFromReport(r vuln.HostReport) []Finding {
	out := make([]Finding, 0, len(r.Vulns))
	for id, v := range r.Vulns {
		sev := v.Severity
		if sev == "" {
			sev = vuln.Severity(v.CVSS)
		}
		out = append(out, Finding{
			CVE:      id,
			CVSS:     v.CVSS,
			Severity: sev,
			Port:     v.Port,
			Product:  v.Product,
			Version:  v.Version,
			Exploits: len(v.Exploits),
		})
	}
	SortFindings(out)
	return out
}

// FindingsFromClassified converts classification rows. Rows without a score
// count as Low.
func FindingsFromClassified(rows []vuln.ClassifiedVuln) []Finding {
	out := make([]Finding, 0, len(rows))
	for _, r := range rows {
		score, _ := r.CVSS.(float64)
		out = append(out, Finding{
			CVE:      r.CVE,
			CVSS:     score,
			Severity: vuln.Severity(score),
			Port:     r.Port,
			Product:  r.Product,
			Version:  r.Version,
			Category: r.OwaspCategory,
		})
	}
	SortFindings(out)
	return out
}

// SortFindings orders by score descending, then CVE id.
func SortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].CVSS != fs[j].CVSS {
			return fs[i].CVSS > fs[j].CVSS
		}
		return fs[i].CVE < fs[j].CVE
	})
}

var severityColors = map[string]*color.Color{
	vuln.SeverityCritical: color.New(color.FgHiRed, color.Bold),
	vuln.SeverityHigh:     color.New(color.FgRed),
	vuln.SeverityMedium:   color.New(color.FgYellow),
	vuln.SeverityLow:      color.New(color.FgGreen),
}

func (f *formatter) severity(label string) string {
	if !f.color {
		return label
	}
	if c, ok := severityColors[label]; ok {
		return c.Sprint(label)
	}
	return label
}

// PrintFindings prints a findings table. An empty list prints a single line.
func (f *formatter) PrintFindings(findings []Finding) error {
	if f.mode == ModeJSON {
		return f.PrintJSON(findings)
	}
	if len(findings) == 0 {
		if f.quiet {
			return nil
		}
		_, err := fmt.Fprintln(f.stdout, "No vulnerabilities found.")
		return err
	}

	classified := false
	for _, fd := range findings {
		if fd.Category != "" {
			classified = true
			break
		}
	}

	headers := []string{"CVE", "CVSS", "Severity", "Port", "Product", "Version"}
	if classified {
		headers = append(headers, "OWASP")
	} else {
		headers = append(headers, "Exploits")
	}
	rows := make([][]string, 0, len(findings))
	for _, fd := range findings {
		row := []string{
			fd.CVE,
			strconv.FormatFloat(fd.CVSS, 'f', 1, 64),
			f.severity(fd.Severity),
			strconv.Itoa(fd.Port),
			fd.Product,
			fd.Version,
		}
		if classified {
			row = append(row, fd.Category)
		} else {
			row = append(row, strconv.Itoa(fd.Exploits))
		}
		rows = append(rows, row)
	}
	return f.PrintTable(headers, rows)
}

// SeverityLine renders counts as "Critical: 1  High: 2  Medium: 0  Low: 3".
func SeverityLine(counts map[string]int) string {
	return fmt.Sprintf("Critical: %d  High: %d  Medium: %d  Low: %d",
		counts[vuln.SeverityCritical], counts[vuln.SeverityHigh],
		counts[vuln.SeverityMedium], counts[vuln.SeverityLow])
}
