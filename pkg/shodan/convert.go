package shodan

import (
	"strings"

	"github.com/spf13/cast"

	"github.com/vulntor/exposure/pkg/vuln"
)

// HostRecords turns the banners of h into pipeline input.
func HostRecords(h *Host) []vuln.ServiceRecord {
	if h == nil {
		return []vuln.ServiceRecord{}
	}
	out := make([]vuln.ServiceRecord, 0, len(h.Data))
	for _, item := range h.Data {
		out = append(out, vuln.RecordFromMap(item))
	}
	return out
}

// Banner is the compact per-service view used by host lookups.
type Banner struct {
	IP          string `json:"ip"`
	Port        int    `json:"port"`
	Transport   string `json:"transport"`
	Org         string `json:"org"`
	ISP         string `json:"isp"`
	OS          string `json:"os"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	FirstLine   string `json:"first_line"`
	SSL         any    `json:"ssl"`
	HTTP        any    `json:"http"`
	RawData     string `json:"raw_data"`
}

// Banners flattens h into one Banner per service. Entries sharing port,
// transport and first banner line are reported once.
func Banners(h *Host) []Banner {
	if h == nil {
		return []Banner{}
	}
	type key struct {
		port      int
		transport string
		line      string
	}
	seen := make(map[key]struct{})
	out := make([]Banner, 0, len(h.Data))

	for _, item := range h.Data {
		data := cast.ToString(item["data"])
		first := data
		if i := strings.IndexAny(first, "\r\n"); i >= 0 {
			first = first[:i]
		}
		b := Banner{
			IP:          h.IPStr,
			Port:        cast.ToInt(item["port"]),
			Transport:   cast.ToString(item["transport"]),
			Org:         h.Org,
			ISP:         h.ISP,
			OS:          h.OS,
			City:        h.Location.City,
			CountryCode: h.Location.CountryCode,
			FirstLine:   first,
			SSL:         item["ssl"],
			HTTP:        item["http"],
			RawData:     data,
		}
		k := key{b.Port, b.Transport, b.FirstLine}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, b)
	}
	return out
}

// Match is the normalised form of a search match.
type Match struct {
	IPStr       string         `json:"ip_str"`
	Port        int            `json:"port"`
	Org         string         `json:"org"`
	Hostnames   []string       `json:"hostnames"`
	City        string         `json:"city"`
	CountryCode string         `json:"country_code"`
	Latitude    float64        `json:"latitude"`
	Longitude   float64        `json:"longitude"`
	Data        string         `json:"data"`
	Opts        map[string]any `json:"opts"`
}

// NormalizeMatch flattens a raw search match.
func NormalizeMatch(m map[string]any) Match {
	loc, _ := m["location"].(map[string]any)
	opts, _ := m["opts"].(map[string]any)
	if opts == nil {
		opts = map[string]any{}
	}
	hostnames := cast.ToStringSlice(m["hostnames"])
	if hostnames == nil {
		hostnames = []string{}
	}
	return Match{
		IPStr:       cast.ToString(m["ip_str"]),
		Port:        cast.ToInt(m["port"]),
		Org:         cast.ToString(m["org"]),
		Hostnames:   hostnames,
		City:        cast.ToString(loc["city"]),
		CountryCode: cast.ToString(loc["country_code"]),
		Latitude:    cast.ToFloat64(loc["latitude"]),
		Longitude:   cast.ToFloat64(loc["longitude"]),
		Data:        strings.ReplaceAll(cast.ToString(m["data"]), "\n", " "),
		Opts:        opts,
	}
}
