// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for exposure.
type Config struct {
	Log       LogConfig       `description:"Logging configuration" koanf:"log"`
	Server    ServerConfig    `description:"Server configuration" koanf:"server"`
	Workspace WorkspaceConfig `description:"Workspace layout" koanf:"workspace"`
	Keys      KeysConfig      `description:"Upstream API keys" koanf:"keys"`
	Pipeline  PipelineConfig  `description:"Correlation pipeline tuning" koanf:"pipeline"`
	Scan      ScanConfig      `description:"Local scanner settings" koanf:"scan"`
	Endpoints EndpointsConfig `description:"Upstream endpoints" koanf:"endpoints"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level      string `description:"Log level" koanf:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format     string `description:"Log format: json | text" koanf:"format" validate:"omitempty,oneof=json text"`
	File       string `description:"Rotated log file path (optional)" koanf:"file"`
	MaxSizeMB  int    `description:"Log file size before rotation" koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `description:"Rotated log files kept" koanf:"max_backups" validate:"gte=0"`
}

// ServerConfig holds configuration for 'exposure server start'.
type ServerConfig struct {
	Addr string `description:"Server listen address" koanf:"addr"`
	Port int    `description:"Server listen port" koanf:"port" validate:"min=1,max=65535"`

	// Concurrency is the number of background job workers.
	Concurrency int `description:"Number of concurrent background workers" koanf:"concurrency" validate:"min=1"`
	QueueSize   int `description:"Pending background jobs before submissions are rejected" koanf:"queue_size" validate:"min=1"`

	ReadTimeout time.Duration `description:"HTTP read timeout" koanf:"read_timeout"`
	// WriteTimeout of zero leaves synchronous task runs bounded only by the task timeout.
	WriteTimeout time.Duration `description:"HTTP write timeout" koanf:"write_timeout"`

	CORSOrigins   []string `description:"Origins allowed by CORS" koanf:"cors_origins"`
	UploadLimitMB int      `description:"Maximum upload size" koanf:"upload_limit_mb" validate:"min=1"`

	Auth AuthConfig `description:"Authentication configuration" koanf:"auth"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Mode  string `description:"Authentication mode: none|token" koanf:"mode" validate:"omitempty,oneof=none token"`
	Token string `description:"Static bearer token (required for token mode)" koanf:"token"`
}

// WorkspaceConfig locates results and logs.
type WorkspaceConfig struct {
	Dir string `description:"Workspace root directory" koanf:"dir"`
}

// KeysConfig holds upstream credentials. Task parameters override them per run.
type KeysConfig struct {
	Shodan  string `description:"Shodan API key" koanf:"shodan"`
	NVD     string `description:"NVD API key" koanf:"nvd"`
	Vulners string `description:"Vulners API key" koanf:"vulners"`
}

// PipelineConfig tunes the correlation pipeline.
type PipelineConfig struct {
	Workers         int           `description:"Concurrent banner analyses" koanf:"workers" validate:"min=1"`
	ResultsPerPage  int           `description:"NVD keyword search page size" koanf:"results_per_page" validate:"min=1"`
	MaxCandidates   int           `description:"NVD records kept per lookup" koanf:"max_candidates" validate:"min=1"`
	CacheSize       int           `description:"NVD lookup cache entries" koanf:"cache_size" validate:"min=1"`
	CacheTTL        time.Duration `description:"NVD lookup cache expiry" koanf:"cache_ttl"`
	FilterByVersion bool          `description:"Drop NVD candidates whose CPE ranges exclude the version" koanf:"filter_by_version"`
}

// ScanConfig holds nmap and ping settings.
type ScanConfig struct {
	NmapPath    string        `description:"nmap binary" koanf:"nmap_path"`
	NmapArgs    string        `description:"Default nmap arguments" koanf:"nmap_args"`
	NmapTimeout time.Duration `description:"Per-host nmap timeout" koanf:"nmap_timeout"`
	Ping        bool          `description:"ICMP pre-check before nmap" koanf:"ping"`
	PingCount   int           `description:"ICMP echo requests per host" koanf:"ping_count" validate:"gte=1"`
	PingTimeout time.Duration `description:"ICMP pre-check timeout" koanf:"ping_timeout"`
	// PingPrivileged uses raw sockets instead of unprivileged UDP pings.
	PingPrivileged bool `description:"Use raw ICMP sockets" koanf:"ping_privileged"`
}

// EndpointsConfig overrides upstream base URLs.
type EndpointsConfig struct {
	Shodan       string        `description:"Shodan API base URL" koanf:"shodan" validate:"omitempty,url"`
	ShodanStream string        `description:"Shodan streaming API base URL" koanf:"shodan_stream" validate:"omitempty,url"`
	NVD          string        `description:"NVD CVE API URL" koanf:"nvd" validate:"omitempty,url"`
	Vulners      string        `description:"Vulners id search URL" koanf:"vulners" validate:"omitempty,url"`
	Timeout      time.Duration `description:"Upstream request timeout (0 keeps per-client defaults)" koanf:"timeout"`
}
