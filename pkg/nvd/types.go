package nvd

import "github.com/vulntor/exposure/pkg/normalize"

// response is the subset of the NVD CVE API 2.0 payload the client reads.
type response struct {
	ResultsPerPage  int             `json:"resultsPerPage"`
	StartIndex      int             `json:"startIndex"`
	TotalResults    int             `json:"totalResults"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	CVE cveItem `json:"cve"`
}

type cveItem struct {
	ID             string          `json:"id"`
	Published      string          `json:"published"`
	LastModified   string          `json:"lastModified"`
	VulnStatus     string          `json:"vulnStatus"`
	Descriptions   []langString    `json:"descriptions"`
	Metrics        metrics         `json:"metrics"`
	Configurations []configuration `json:"configurations"`
	References     []reference     `json:"references"`
}

type langString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type metrics struct {
	V31 []cvssMetric `json:"cvssMetricV31"`
	V30 []cvssMetric `json:"cvssMetricV30"`
	V2  []cvssMetric `json:"cvssMetricV2"`
}

type cvssMetric struct {
	Source   string `json:"source"`
	CVSSData struct {
		Version      string  `json:"version"`
		VectorString string  `json:"vectorString"`
		BaseScore    float64 `json:"baseScore"`
		BaseSeverity string  `json:"baseSeverity"`
	} `json:"cvssData"`
}

type configuration struct {
	Nodes []struct {
		Operator string     `json:"operator"`
		CPEMatch []cpeMatch `json:"cpeMatch"`
	} `json:"nodes"`
}

type cpeMatch struct {
	Vulnerable bool   `json:"vulnerable"`
	Criteria   string `json:"criteria"`
	normalize.Range
}

type reference struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}

// score returns the preferred CVSS base score: v3.1, then v3.0, then v2.
func (m metrics) score() (float64, string) {
	for _, set := range [][]cvssMetric{m.V31, m.V30, m.V2} {
		if len(set) > 0 {
			return set[0].CVSSData.BaseScore, set[0].CVSSData.VectorString
		}
	}
	return 0, ""
}

// description prefers the English text and falls back to the first entry.
func (c cveItem) description() string {
	for _, d := range c.Descriptions {
		if d.Lang == "en" {
			return d.Value
		}
	}
	if len(c.Descriptions) > 0 {
		return c.Descriptions[0].Value
	}
	return ""
}

// ranges collects the version windows of vulnerable CPE matches.
func (c cveItem) ranges() []normalize.Range {
	var out []normalize.Range
	for _, cfg := range c.Configurations {
		for _, node := range cfg.Nodes {
			for _, m := range node.CPEMatch {
				if m.Vulnerable {
					out = append(out, m.Range)
				}
			}
		}
	}
	return out
}

// CVEDetail is the single-CVE view served by Client.Get.
type CVEDetail struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	CVSS         float64  `json:"cvss"`
	Vector       string   `json:"vector,omitempty"`
	Severity     string   `json:"severity"`
	Published    string   `json:"published,omitempty"`
	LastModified string   `json:"last_modified,omitempty"`
	References   []string `json:"references"`
}
