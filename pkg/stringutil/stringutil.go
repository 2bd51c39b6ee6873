// Package stringutil holds small string helpers shared by report builders
// and CLI output.
package stringutil

import "strings"

// Truncate returns at most max runes of s. Multi-byte characters are never
// split.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

// Ellipsis flattens s onto one line and shortens it to max runes, ending
// with "..." when something was cut. With max <= 3 there is no room for the
// marker and the text is simply truncated.
func Ellipsis(s string, max int) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")

	if max <= 0 {
		return ""
	}
	if Truncate(s, max) == s {
		return s
	}
	if max <= 3 {
		return Truncate(s, max)
	}
	return Truncate(s, max-3) + "..."
}
