package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1.18.0", "1.18.0"},
		{"  2.4.49 ", "2.4.49"},
		{"8.9p1", "8.9"},
		{"OpenSSH_7.4", "7.4"},
		{"1.2.3.4.5", "1.2.3.4"},
		{"10.3.34-MariaDB", "10.3.34"},
		{"vX", "vX"},
		{"beta", "beta"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Version(tt.raw), "raw %q", tt.raw)
	}
}

func TestVersion_Denylist(t *testing.T) {
	for _, raw := range []string{"0", "0.0", "1", "1.0", "1.1", "v1.0", "version 1"} {
		assert.Empty(t, Version(raw), "raw %q", raw)
		assert.False(t, Trustworthy(raw), "raw %q", raw)
	}
	assert.True(t, Trustworthy("1.2"))
}

func TestProduct(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"OpenSSH", "OpenSSH"},
		{"ssh", "OpenSSH"},
		{"nginx", "nginx"},
		{"MySQL", "MariaDB"},
		{"Apache httpd", "Apache HTTP Server"},
		{"microsoft-iis", "Microsoft-Iis"},
		{"vsftpd", "Vsftpd"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Product(tt.raw), "raw %q", tt.raw)
	}
}

func TestAffects(t *testing.T) {
	ranges := []Range{
		{StartIncluding: "7.0", EndIncluding: "7.9"},
		{StartExcluding: "8.5", EndExcluding: "9.3"},
	}

	assert.True(t, Affects("7.4", ranges))
	assert.True(t, Affects("7.9", ranges))
	assert.False(t, Affects("8.0", ranges))
	assert.False(t, Affects("8.5", ranges))
	assert.True(t, Affects("8.9", ranges))
	assert.False(t, Affects("9.3", ranges))
}

func TestAffects_Unbounded(t *testing.T) {
	assert.True(t, Affects("1.2.3", nil))
	assert.True(t, Affects("1.2.3", []Range{{}}))
	assert.True(t, Affects("", []Range{{EndIncluding: "1.0"}}))
}

func TestCompareVersions_NonSemver(t *testing.T) {
	assert.Equal(t, -1, compareVersions("2020.79", "2022.82"))
	assert.Equal(t, 1, compareVersions("1.2.3.4", "1.2.3.3"))
	assert.Equal(t, 0, compareVersions("1.2.3.4", "1.2.3.4"))
	assert.Equal(t, -1, compareVersions("1.2.3", "1.2.3.1"))
}
