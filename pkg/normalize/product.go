package normalize

import (
	"strings"
	"unicode"
)

var productAliases = []struct {
	keywords []string
	label    string
}{
	{[]string{"openssh", "ssh"}, "OpenSSH"},
	{[]string{"nginx"}, "nginx"},
	{[]string{"mariadb", "mysql"}, "MariaDB"},
	{[]string{"apache", "httpd"}, "Apache HTTP Server"},
}

// Product maps scanner product strings onto the labels used as search keys.
// Unknown products are title-cased word by word.
func Product(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return ""
	}
	lower := strings.ToLower(p)
	for _, alias := range productAliases {
		for _, kw := range alias.keywords {
			if strings.Contains(lower, kw) {
				return alias.label
			}
		}
	}
	return titleCase(lower)
}

func titleCase(s string) string {
	out := []rune(s)
	start := true
	for i, r := range out {
		if unicode.IsLetter(r) {
			if start {
				out[i] = unicode.ToUpper(r)
			}
			start = false
			continue
		}
		start = true
	}
	return string(out)
}
