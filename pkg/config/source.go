// pkg/config/source.go
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment variable read by EnvSource.
const EnvPrefix = "EXPOSURE_"

// ConfigSource represents a configuration source that can load values into koanf.
// Sources are loaded in priority order (lowest first), with higher priority sources
// overriding lower priority values.
//
// Built-in sources and their priorities:
//   - DefaultSource (10): Hardcoded default values
//   - FileSource (20): Config file (e.g., ~/.config/exposure/config.yaml)
//   - LegacyEnvSource (25): SHODAN_API_KEY, NVD_API_KEY, VULNERS_API_KEY
//   - EnvSource (30): Environment variables (EXPOSURE_*)
//   - FlagSource (40): Command-line flags
type ConfigSource interface {
	// Name returns a human-readable name for this source (for logging/debugging)
	Name() string

	// Priority returns the load priority. Lower values are loaded first,
	// higher values override lower ones.
	Priority() int

	// Load loads configuration values into the provided koanf instance.
	Load(k *koanf.Koanf) error
}

// DefaultSource provides hardcoded default configuration values.
type DefaultSource struct{}

func (s *DefaultSource) Name() string  { return "defaults" }
func (s *DefaultSource) Priority() int { return 10 }

func (s *DefaultSource) Load(k *koanf.Koanf) error {
	if err := k.Load(confmap.Provider(DefaultConfigAsMap(), "."), nil); err != nil {
		return fmt.Errorf("error loading defaults: %w", err)
	}
	return nil
}

// FileSource loads configuration from a YAML file.
type FileSource struct {
	Path string // Path to config file (optional, silently skipped if empty or missing)
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return 20 }

func (s *FileSource) Load(k *koanf.Koanf) error {
	if s.Path == "" {
		return nil
	}

	if _, err := os.Stat(s.Path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error checking config file %s: %w", s.Path, err)
	}

	if err := k.Load(file.Provider(s.Path), yaml.Parser()); err != nil {
		return fmt.Errorf("error loading config file %s: %w", s.Path, err)
	}
	return nil
}

// legacyKeys maps the conventional upstream variables onto config keys.
var legacyKeys = map[string]string{
	"SHODAN_API_KEY":  "keys.shodan",
	"NVD_API_KEY":     "keys.nvd",
	"VULNERS_API_KEY": "keys.vulners",
}

// LegacyEnvSource reads API keys from their conventional, unprefixed
// environment variables. Empty variables are ignored.
type LegacyEnvSource struct {
	// Lookup defaults to os.LookupEnv.
	Lookup func(string) (string, bool)
}

func (s *LegacyEnvSource) Name() string  { return "legacy-env" }
func (s *LegacyEnvSource) Priority() int { return 25 }

func (s *LegacyEnvSource) Load(k *koanf.Koanf) error {
	lookup := s.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	values := map[string]interface{}{}
	for name, key := range legacyKeys {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			values[key] = strings.TrimSpace(v)
		}
	}
	if len(values) == 0 {
		return nil
	}
	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("error loading legacy environment: %w", err)
	}
	return nil
}

// EnvSource loads configuration from environment variables carrying Prefix.
// A variable maps onto the known key whose dots, written as underscores,
// spell the rest of its name:
//
//	EXPOSURE_LOG_LEVEL           -> log.level
//	EXPOSURE_SERVER_READ_TIMEOUT -> server.read_timeout
//	EXPOSURE_SERVER_AUTH_TOKEN   -> server.auth.token
//
// Other names are ignored; EXPOSURE_WORKSPACE, for one, is read by the
// workspace package directly.
type EnvSource struct {
	Prefix string // Environment variable prefix (default: "EXPOSURE_")
}

func (s *EnvSource) Name() string  { return "env" }
func (s *EnvSource) Priority() int { return 30 }

func (s *EnvSource) Load(k *koanf.Koanf) error {
	prefix := s.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}

	known := make(map[string]string)
	for key := range DefaultConfigAsMap() {
		known[strings.ReplaceAll(key, ".", "_")] = key
	}

	if err := k.Load(env.Provider(prefix, ".", func(name string) string {
		flat := strings.ToLower(strings.TrimPrefix(name, prefix))
		return known[flat]
	}), nil); err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}
	return nil
}

// FlagAliases maps global CLI flags onto config keys. Other flags are named
// after their key (e.g. --server.port).
var FlagAliases = map[string]string{
	"workspace-dir": "workspace.dir",
	"log-file":      "log.file",
	"log-format":    "log.format",
}

// FlagSource loads configuration from command-line flags. Flags that name
// no config key (command options such as --output) are skipped.
type FlagSource struct {
	Flags *pflag.FlagSet
	Debug bool // If true, set log.level to "debug"
}

func (s *FlagSource) Name() string  { return "flags" }
func (s *FlagSource) Priority() int { return 40 }

func (s *FlagSource) Load(k *koanf.Koanf) error {
	if s.Flags != nil {
		known := DefaultConfigAsMap()
		provider := posflag.ProviderWithFlag(s.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key := f.Name
			if alias, ok := FlagAliases[key]; ok {
				key = alias
			}
			if _, ok := known[key]; !ok {
				return "", nil
			}
			return key, posflag.FlagVal(s.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return fmt.Errorf("error loading command-line flags: %w", err)
		}
	}

	if s.Debug {
		_ = k.Set("log.level", "debug")
	}
	return nil
}

// DefaultSources returns the standard configuration sources.
// Order: defaults -> file -> legacy env -> env -> flags
func DefaultSources(configPath string, flags *pflag.FlagSet, debug bool) []ConfigSource {
	return []ConfigSource{
		&DefaultSource{},
		&FileSource{Path: configPath},
		&LegacyEnvSource{},
		&EnvSource{Prefix: EnvPrefix},
		&FlagSource{Flags: flags, Debug: debug},
	}
}
