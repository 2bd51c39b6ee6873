// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/vulntor/exposure/pkg/nmap"
	"github.com/vulntor/exposure/pkg/nvd"
	"github.com/vulntor/exposure/pkg/shodan"
	"github.com/vulntor/exposure/pkg/vulners"
)

// Manager handles loading and accessing application configuration.
type Manager struct {
	mu            sync.RWMutex
	koanfInstance *koanf.Koanf
	currentConfig Config
	sources       []ConfigSource
	listeners     []func(Config)
}

// NewManager creates a Manager holding the default configuration.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns the baseline configuration used when no other
// source overrides a value.
func DefaultConfig() Config {
	nvdDef := nvd.DefaultConfig()
	return Config{
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  5,
			MaxBackups: 3,
		},
		Server: DefaultServerConfig(),
		Pipeline: PipelineConfig{
			Workers:        5,
			ResultsPerPage: nvdDef.ResultsPerPage,
			MaxCandidates:  nvdDef.MaxCandidates,
			CacheSize:      nvdDef.CacheSize,
			CacheTTL:       nvdDef.CacheTTL,
		},
		Scan: ScanConfig{
			NmapPath:    "nmap",
			NmapArgs:    nmap.DefaultArgs,
			NmapTimeout: nmap.DefaultTimeout,
			PingCount:   2,
			PingTimeout: 2 * time.Second,
		},
		Endpoints: EndpointsConfig{
			Shodan:       shodan.DefaultBaseURL,
			ShodanStream: shodan.DefaultStreamURL,
			NVD:          nvd.DefaultBaseURL,
			Vulners:      vulners.DefaultBaseURL,
		},
	}
}

// DefaultConfigAsMap flattens DefaultConfig for koanf's confmap provider so
// that every key is known before flags are merged.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":       def.Log.Level,
		"log.format":      def.Log.Format,
		"log.file":        def.Log.File,
		"log.max_size_mb": def.Log.MaxSizeMB,
		"log.max_backups": def.Log.MaxBackups,

		"server.addr":            def.Server.Addr,
		"server.port":            def.Server.Port,
		"server.concurrency":     def.Server.Concurrency,
		"server.queue_size":      def.Server.QueueSize,
		"server.read_timeout":    def.Server.ReadTimeout,
		"server.write_timeout":   def.Server.WriteTimeout,
		"server.cors_origins":    def.Server.CORSOrigins,
		"server.upload_limit_mb": def.Server.UploadLimitMB,
		"server.auth.mode":       def.Server.Auth.Mode,
		"server.auth.token":      def.Server.Auth.Token,

		"workspace.dir": def.Workspace.Dir,

		"keys.shodan":  def.Keys.Shodan,
		"keys.nvd":     def.Keys.NVD,
		"keys.vulners": def.Keys.Vulners,

		"pipeline.workers":           def.Pipeline.Workers,
		"pipeline.results_per_page":  def.Pipeline.ResultsPerPage,
		"pipeline.max_candidates":    def.Pipeline.MaxCandidates,
		"pipeline.cache_size":        def.Pipeline.CacheSize,
		"pipeline.cache_ttl":         def.Pipeline.CacheTTL,
		"pipeline.filter_by_version": def.Pipeline.FilterByVersion,

		"scan.nmap_path":       def.Scan.NmapPath,
		"scan.nmap_args":       def.Scan.NmapArgs,
		"scan.nmap_timeout":    def.Scan.NmapTimeout,
		"scan.ping":            def.Scan.Ping,
		"scan.ping_count":      def.Scan.PingCount,
		"scan.ping_timeout":    def.Scan.PingTimeout,
		"scan.ping_privileged": def.Scan.PingPrivileged,

		"endpoints.shodan":        def.Endpoints.Shodan,
		"endpoints.shodan_stream": def.Endpoints.ShodanStream,
		"endpoints.nvd":           def.Endpoints.NVD,
		"endpoints.vulners":       def.Endpoints.Vulners,
		"endpoints.timeout":       def.Endpoints.Timeout,
	}
}

// Load merges the standard sources (see DefaultSources) into the manager.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads sources in ascending priority into a fresh koanf
// instance, validates the result and makes it current. Registered change
// listeners are notified.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	ordered := make([]ConfigSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	k := koanf.New(".")
	for _, src := range ordered {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := k.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	postProcess(&newCfg)
	if err := Validate(newCfg); err != nil {
		return err
	}

	m.mu.Lock()
	m.koanfInstance = k
	m.currentConfig = newCfg
	m.sources = ordered
	listeners := append([]func(Config){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(newCfg)
	}
	return nil
}

// Reload re-reads the sources of the last successful load.
func (m *Manager) Reload() error {
	m.mu.RLock()
	sources := m.sources
	m.mu.RUnlock()
	if len(sources) == 0 {
		return fmt.Errorf("config: nothing loaded yet")
	}
	return m.LoadWithSources(sources)
}

// OnChange registers fn to be called after every successful load.
func (m *Manager) OnChange(fn func(Config)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := m.currentConfig
	cfg.Server.CORSOrigins = append([]string(nil), m.currentConfig.Server.CORSOrigins...)
	return cfg
}

// Koanf exposes the merged key space, e.g. for 'config show'.
func (m *Manager) Koanf() *koanf.Koanf {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance
}

func postProcess(cfg *Config) {
	if cfg.Server.Auth.Mode == "" {
		cfg.Server.Auth.Mode = "none"
	}
}

var validate = validator.New()

// Validate checks value ranges declared on the config structs.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Server.Auth.Mode == "token" && cfg.Server.Auth.Token == "" {
		return fmt.Errorf("invalid configuration: server.auth.token is required in token mode")
	}
	return nil
}

// BindFlags defines the global flags shared by every command.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
