package vuln

// Severity labels, highest first.
const (
	SeverityCritical = "Critical"
	SeverityHigh     = "High"
	SeverityMedium   = "Medium"
	SeverityLow      = "Low"
)

// Severity maps a CVSS base score onto a coarse label. Boundaries are
// inclusive on the lower side: 9.0 is Critical, 8.999 is High.
func Severity(score float64) string {
	switch {
	case score >= 9.0:
		return SeverityCritical
	case score >= 7.0:
		return SeverityHigh
	case score >= 4.0:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityCounts tallies the vulns mapping of a report by severity label.
func SeverityCounts(vulns map[string]VulnEntry) map[string]int {
	counts := map[string]int{
		SeverityCritical: 0,
		SeverityHigh:     0,
		SeverityMedium:   0,
		SeverityLow:      0,
	}
	for _, v := range vulns {
		counts[Severity(v.CVSS)]++
	}
	return counts
}
