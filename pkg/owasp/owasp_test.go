package owasp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat := Default()
	require.Len(t, cat.Categories, 10)
	assert.Equal(t, "I1", cat.Categories[0].ID)
	assert.Equal(t, "Insecure Network Services", cat.Categories[1].Name)
	assert.Equal(t, "I10", cat.Categories[9].ID)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		in       Input
		category string
		matched  []string
	}{
		{
			name:     "telnet only",
			in:       Input{Description: "telnet"},
			category: "Insecure Network Services",
			matched:  []string{"telnet"},
		},
		{
			name:     "no overlap",
			in:       Input{Description: "buffer overflow in parser", CVEID: "CVE-2020-1234"},
			category: Uncategorized,
			matched:  []string{},
		},
		{
			name:     "tie goes to first declared",
			in:       Input{Description: "ftp"},
			category: "Insecure Network Services",
			matched:  []string{"ftp"},
		},
		{
			name:     "highest score wins",
			in:       Input{Description: "Outdated component", Product: "OpenSSH", Version: "7.4"},
			category: "Use of Insecure or Outdated Components",
			matched:  []string{"outdated", "component", "openssh"},
		},
		{
			name:     "case insensitive",
			in:       Input{Description: "Hardcoded CREDENTIAL in firmware"},
			category: "Weak, Guessable, or Hardcoded Passwords",
			matched:  []string{"credential", "hardcoded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.matched, got.MatchedKeywords)
		})
	}
}

func TestParseCatalog(t *testing.T) {
	cat, err := ParseCatalog([]byte(`
categories:
  - id: X1
    name: Custom
    keywords: [Telnet]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"telnet"}, cat.Categories[0].Keywords)
	assert.Equal(t, "Custom", cat.Classify(Input{Description: "TELNET open"}).Category)

	_, err = ParseCatalog([]byte("categories: []"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("categories: [{id: A}]"))
	require.Error(t, err)

	_, err = ParseCatalog([]byte("::"))
	require.Error(t, err)
}

func TestLoadReports(t *testing.T) {
	tests := []struct {
		name  string
		input string
		hosts int
	}{
		{"list", `[{"ip":"10.0.0.1","vulns":{}},{"ip":"10.0.0.2"}]`, 2},
		{"results object", `{"scanned_target":"10.0.0.0/30","results":[{"ip":"10.0.0.1"}]}`, 1},
		{"single report", `{"ip_str":"10.0.0.1","banners":[]}`, 1},
		{"empty list", `[]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reports, err := LoadReports(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Len(t, reports, tt.hosts)
		})
	}
}

func TestLoadReports_Errors(t *testing.T) {
	_, err := LoadReports(strings.NewReader(`{"foo": 1}`))
	require.ErrorIs(t, err, ErrUnrecognizedInput)

	_, err = LoadReports(strings.NewReader(""))
	require.ErrorIs(t, err, ErrUnrecognizedInput)

	_, err = LoadReports(strings.NewReader(`"text"`))
	require.ErrorIs(t, err, ErrUnrecognizedInput)

	_, err = LoadReports(strings.NewReader(`[{"ip": "1.2.3.4",`))
	require.Error(t, err)
}

func TestClassifyReports(t *testing.T) {
	input := `[{
		"ip": "192.0.2.10",
		"org": "Example",
		"hostnames": ["cam.example.org"],
		"banners": [
			{"port": 22, "service": "ssh", "product": "OpenSSH", "version": "7.4"},
			{"port": 80, "product": "old", "version": "0"},
			{"port": 80, "product": "nginx", "version": "1.18.0"},
			{"product": "portless"}
		],
		"vulns": {
			"CVE-2023-38408": {"port": 22, "cvss": 9.8, "description": "remote code execution in ssh-agent"},
			"CVE-2021-23017": {"port": "80", "cvss": 7.7, "description": "off-by-one in resolver"},
			"CVE-2019-0001": {"description": "plaintext storage of secrets"}
		}
	}]`

	reports, err := LoadReports(strings.NewReader(input))
	require.NoError(t, err)

	rows := ClassifyReports(reports)
	require.Len(t, rows, 3)

	// rows are ordered by CVE id
	assert.Equal(t, "CVE-2019-0001", rows[0].CVE)
	assert.Equal(t, "N/D", rows[0].CVSS)
	assert.Equal(t, 0, rows[0].Port)
	assert.Empty(t, rows[0].Product)
	assert.Equal(t, "Insecure Data Transfer and Storage", rows[0].OwaspCategory)
	assert.Equal(t, []string{"storage", "plaintext"}, rows[0].MatchedKeywords)

	assert.Equal(t, "CVE-2021-23017", rows[1].CVE)
	assert.Equal(t, 80, rows[1].Port)
	assert.Equal(t, "nginx", rows[1].Product, "last banner on a port wins")
	assert.Equal(t, "1.18.0", rows[1].Version)
	assert.Equal(t, 7.7, rows[1].CVSS)

	assert.Equal(t, "CVE-2023-38408", rows[2].CVE)
	assert.Equal(t, "192.0.2.10", rows[2].IP)
	assert.Equal(t, "Example", rows[2].Org)
	assert.Equal(t, []string{"cam.example.org"}, rows[2].Hostnames)
	assert.Equal(t, "ssh", rows[2].Service)
	assert.Equal(t, "OpenSSH", rows[2].Product)
	assert.Equal(t, "Insecure Network Services", rows[2].OwaspCategory)
}

func TestClassifyReports_OneRowPerCVE(t *testing.T) {
	reports := []Report{{
		IPStr: "198.51.100.7",
		Banners: []ReportBanner{
			{Port: 21, Product: "vsftpd"},
			{Port: 2121, Product: "vsftpd"},
		},
		Vulns: map[string]ReportVuln{
			"CVE-2011-2523": {Port: 2121, CVSS: 9.8, Description: "backdoor"},
		},
	}}

	rows := ClassifyReports(reports)
	require.Len(t, rows, 1)
	assert.Equal(t, "198.51.100.7", rows[0].IP)
	assert.Equal(t, 2121, rows[0].Port)
	assert.NotNil(t, rows[0].Hostnames)
}
