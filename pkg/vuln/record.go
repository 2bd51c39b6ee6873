package vuln

import (
	"strings"

	"github.com/spf13/cast"
)

// RecordFromMap builds a ServiceRecord from a loosely typed scanner entry such
// as a Shodan banner. Missing or mistyped fields yield zero values.
func RecordFromMap(m map[string]any) ServiceRecord {
	rec := ServiceRecord{
		Port:      cast.ToInt(m["port"]),
		Transport: cast.ToString(m["transport"]),
		Product:   strings.TrimSpace(cast.ToString(m["product"])),
		Version:   strings.TrimSpace(cast.ToString(m["version"])),
	}

	rec.Service = strings.TrimSpace(cast.ToString(m["service"]))
	if rec.Service == "" {
		if meta, ok := m["_shodan"].(map[string]any); ok {
			rec.Service = cast.ToString(meta["module"])
		}
	}

	rec.Banner = cast.ToString(m["data"])
	if rec.Banner == "" {
		rec.Banner = cast.ToString(m["banner"])
	}
	return rec
}
