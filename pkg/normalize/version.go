// Package normalize canonicalises product names and version strings before
// they are used as vulnerability search keys.
package normalize

import (
	"regexp"
	"strings"
)

var (
	numericVersion = regexp.MustCompile(`(\d+(?:\.\d+){0,3})`)
	looseVersion   = regexp.MustCompile(`v?([\d.]+[a-zA-Z0-9\-]*)`)
)

// untrusted versions are too generic to search for; they are reported by
// banners that carry placeholder values.
var untrusted = map[string]struct{}{
	"":    {},
	"0":   {},
	"0.0": {},
	"1":   {},
	"1.0": {},
	"1.1": {},
}

// Version reduces raw to its leading numeric dotted run (at most four
// components). Input without digits falls back to a loose pattern and then to
// the trimmed input itself. Placeholder versions normalise to "".
func Version(raw string) string {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ""
	}

	if m := numericVersion.FindStringSubmatch(v); m != nil {
		v = m[1]
	} else if m := looseVersion.FindStringSubmatch(v); m != nil {
		v = m[1]
	}

	if _, bad := untrusted[v]; bad {
		return ""
	}
	return v
}

// Trustworthy reports whether raw survives normalisation.
func Trustworthy(raw string) bool {
	return Version(raw) != ""
}
