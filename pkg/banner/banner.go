// Package banner extracts a product label and version from raw service
// banners using an ordered list of probes. The first probe whose keywords
// appear in the banner decides the product, even when its version pattern
// finds nothing.
package banner

import (
	"regexp"
	"strings"
	"sync"
)

// Product labels emitted by the built-in probes.
const (
	ProductNginx   = "nginx"
	ProductApache  = "Apache HTTP Server"
	ProductOpenSSH = "OpenSSH"
	ProductMariaDB = "MariaDB"
)

// Probe recognises one product family.
type Probe struct {
	// Label is the canonical product name reported on a match.
	Label string
	// Keywords are lower-case substrings; any of them selects the probe.
	Keywords []string
	// Version extracts the version; Group selects the capture group.
	Version *regexp.Regexp
	Group   int
}

// Match reports whether the lower-cased banner selects this probe.
func (p Probe) Match(lower string) bool {
	for _, kw := range p.Keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Extract returns the version captured from banner, or "".
func (p Probe) Extract(banner string) string {
	if p.Version == nil {
		return ""
	}
	m := p.Version.FindStringSubmatch(banner)
	if len(m) <= p.Group {
		return ""
	}
	return m[p.Group]
}

var builtin = []Probe{
	{Label: ProductNginx, Keywords: []string{"nginx"}, Version: regexp.MustCompile(`(?i)nginx/?([0-9.]+)?`), Group: 1},
	{Label: ProductApache, Keywords: []string{"apache", "httpd"}, Version: regexp.MustCompile(`(?i)apache/?([0-9.]+)?`), Group: 1},
	{Label: ProductOpenSSH, Keywords: []string{"openssh", "ssh"}, Version: regexp.MustCompile(`(?i)openssh[_-]?([0-9.]+)?`), Group: 1},
	{Label: ProductMariaDB, Keywords: []string{"mysql", "mariadb"}, Version: regexp.MustCompile(`(?i)(mysql|mariadb)/?([0-9.]+)?`), Group: 2},
}

var generic = regexp.MustCompile(`([A-Za-z\-_]+)[/ ]v?([0-9.]+)`)

var (
	mu    sync.RWMutex
	extra []Probe
)

// Register appends a probe after the built-in ones. Registered probes are
// consulted before the generic name/version fallback.
func Register(p Probe) {
	mu.Lock()
	defer mu.Unlock()
	extra = append(extra, p)
}

// Probes returns the active probe list in evaluation order.
func Probes() []Probe {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Probe, 0, len(builtin)+len(extra))
	out = append(out, builtin...)
	return append(out, extra...)
}

// Parse returns the product and version advertised by banner. It never
// fails: an unrecognised banner yields two empty strings.
func Parse(banner string) (product, version string) {
	if banner == "" {
		return "", ""
	}
	lower := strings.ToLower(banner)

	for _, p := range Probes() {
		if p.Match(lower) {
			return p.Label, p.Extract(banner)
		}
	}

	if m := generic.FindStringSubmatch(banner); m != nil {
		return m[1], m[2]
	}
	return "", ""
}
