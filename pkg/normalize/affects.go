package normalize

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Range is a CPE applicability window as published with a CVE. Empty bounds
// are open.
type Range struct {
	StartIncluding string `json:"versionStartIncluding,omitempty"`
	StartExcluding string `json:"versionStartExcluding,omitempty"`
	EndIncluding   string `json:"versionEndIncluding,omitempty"`
	EndExcluding   string `json:"versionEndExcluding,omitempty"`
}

// Bounded reports whether the range constrains versions at all.
func (r Range) Bounded() bool {
	return r.StartIncluding != "" || r.StartExcluding != "" || r.EndIncluding != "" || r.EndExcluding != ""
}

// Contains reports whether version falls inside the range.
func (r Range) Contains(version string) bool {
	if r.StartIncluding != "" && compareVersions(version, r.StartIncluding) < 0 {
		return false
	}
	if r.StartExcluding != "" && compareVersions(version, r.StartExcluding) <= 0 {
		return false
	}
	if r.EndIncluding != "" && compareVersions(version, r.EndIncluding) > 0 {
		return false
	}
	if r.EndExcluding != "" && compareVersions(version, r.EndExcluding) >= 0 {
		return false
	}
	return true
}

// Affects reports whether version is inside any of ranges. An unknown version,
// or a CVE without bounded ranges, is treated as affected.
func Affects(version string, ranges []Range) bool {
	if version == "" {
		return true
	}
	bounded := false
	for _, r := range ranges {
		if !r.Bounded() {
			continue
		}
		bounded = true
		if r.Contains(version) {
			return true
		}
	}
	return !bounded
}

// compareVersions orders two version strings, using semantic versioning when
// both parse and a numeric segment walk otherwise.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA == nil && errB == nil {
		return va.Compare(vb)
	}
	return compareSegments(a, b)
}

func compareSegments(a, b string) int {
	pa := strings.FieldsFunc(a, isSeparator)
	pb := strings.FieldsFunc(b, isSeparator)
	for i := 0; i < len(pa) || i < len(pb); i++ {
		var sa, sb string
		if i < len(pa) {
			sa = pa[i]
		}
		if i < len(pb) {
			sb = pb[i]
		}
		if c := compareSegment(sa, sb); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case a == "":
		return -1
	case b == "":
		return 1
	}
	return strings.Compare(a, b)
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}
