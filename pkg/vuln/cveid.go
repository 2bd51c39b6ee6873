package vuln

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

var (
	cveIDPattern   = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,7}$`)
	cveScanPattern = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)
)

// NormalizeCVEID trims and upper-cases id. ok is false when the result is not
// a well-formed CVE identifier.
func NormalizeCVEID(id string) (string, bool) {
	id = strings.ToUpper(strings.TrimSpace(id))
	return id, cveIDPattern.MatchString(id)
}

// ExtractCVEs returns every CVE identifier mentioned anywhere in v, upper-cased,
// unique and sorted. Strings are scanned as-is; other values are scanned in
// their JSON encoding.
func ExtractCVEs(v any) []string {
	var text string
	switch t := v.(type) {
	case string:
		text = t
	case []byte:
		text = string(t)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		text = string(b)
	}

	seen := make(map[string]struct{})
	for _, m := range cveScanPattern.FindAllString(text, -1) {
		seen[strings.ToUpper(m)] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ExploitsFor returns the exploits whose CVE reference equals cveID exactly.
func ExploitsFor(exploits []ExploitRecord, cveID string) []ExploitRecord {
	out := []ExploitRecord{}
	for _, e := range exploits {
		if e.CVEID == cveID {
			out = append(out, e)
		}
	}
	return out
}
