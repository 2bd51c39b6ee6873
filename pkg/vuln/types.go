// Package vuln holds the data model shared by the correlation pipeline:
// service observations, CVE records, exploit references and host reports.
package vuln

// LookupStatus reports how an external lookup for a record went.
type LookupStatus string

const (
	// StatusOK means the upstream answered, possibly with zero matches.
	StatusOK LookupStatus = "ok"
	// StatusError means every attempt failed; the record carries no findings.
	StatusError LookupStatus = "error"
	// StatusSkipped means no lookup was attempted (untrusted version, no ids).
	StatusSkipped LookupStatus = "skipped"
)

// ServiceRecord is one observed service on a host, as reported by a scanner.
type ServiceRecord struct {
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"`
	Service   string `json:"service,omitempty"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
	Banner    string `json:"banner,omitempty"`
}

// ExploitRecord references a public exploit for a CVE.
type ExploitRecord struct {
	Title string `json:"title"`
	Href  string `json:"href"`
	Type  string `json:"type"`
	CVEID string `json:"cve"`
}

// VulnerabilityRecord is a CVE matched against one service record.
type VulnerabilityRecord struct {
	CVEID       string          `json:"cve"`
	Description string          `json:"description"`
	CVSS        float64         `json:"cvss"`
	Severity    string          `json:"severity"`
	Product     string          `json:"product"`
	Version     string          `json:"version"`
	Port        int             `json:"port"`
	Service     string          `json:"service,omitempty"`
	Exploits    []ExploitRecord `json:"exploits"`
}

// VulnEntry is the per-CVE value stored in a host report's vulns mapping.
type VulnEntry struct {
	CVSS        float64         `json:"cvss"`
	Severity    string          `json:"severity,omitempty"`
	Port        int             `json:"port"`
	Service     string          `json:"service,omitempty"`
	Product     string          `json:"product"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Exploits    []ExploitRecord `json:"exploits"`
}

// Entry converts a record into its mapping form.
func (r VulnerabilityRecord) Entry() VulnEntry {
	return VulnEntry{
		CVSS:        r.CVSS,
		Severity:    r.Severity,
		Port:        r.Port,
		Service:     r.Service,
		Product:     r.Product,
		Version:     r.Version,
		Description: r.Description,
		Exploits:    r.Exploits,
	}
}

// BannerEntry is the report form of an analyzed service record.
type BannerEntry struct {
	Port          int          `json:"port"`
	Transport     string       `json:"transport,omitempty"`
	Service       string       `json:"service,omitempty"`
	Product       string       `json:"product"`
	Version       string       `json:"version"`
	Banner        string       `json:"banner"`
	LookupStatus  LookupStatus `json:"lookup_status,omitempty"`
	ExploitStatus LookupStatus `json:"exploit_status,omitempty"`
}

// HostReport is the per-host output of a scan plus correlation run.
type HostReport struct {
	IP           string                `json:"ip"`
	IPStr        string                `json:"ip_str"`
	Org          string                `json:"org,omitempty"`
	OS           string                `json:"os,omitempty"`
	Hostnames    []string              `json:"hostnames"`
	LastUpdate   string                `json:"last_update,omitempty"`
	Ports        []int                 `json:"ports"`
	BannersCount int                   `json:"banners_count"`
	Banners      []BannerEntry         `json:"banners"`
	VulnsNVD     []VulnerabilityRecord `json:"vulns_nvd"`
	Vulns        map[string]VulnEntry  `json:"vulns"`
	Raw          string                `json:"raw,omitempty"`
}

// Classification is the OWASP IoT category assigned to a vulnerability.
type Classification struct {
	Category        string   `json:"owasp_category"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// ClassifiedVuln is one row of the OWASP classification output. CVSS is the
// numeric score, or "N/D" when the source entry carried none.
type ClassifiedVuln struct {
	IP              string   `json:"ip"`
	Org             string   `json:"org"`
	Hostnames       []string `json:"hostnames"`
	CVE             string   `json:"cve"`
	CVSS            any      `json:"cvss"`
	Port            int      `json:"port"`
	Service         string   `json:"service"`
	Product         string   `json:"product"`
	Version         string   `json:"version"`
	Description     string   `json:"description"`
	OwaspCategory   string   `json:"owasp_category"`
	MatchedKeywords []string `json:"matched_keywords"`
}
