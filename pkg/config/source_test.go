package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSource_Load(t *testing.T) {
	k := koanf.New(".")
	src := &DefaultSource{}
	assert.Equal(t, 10, src.Priority())
	assert.Equal(t, "defaults", src.Name())

	require.NoError(t, src.Load(k))
	assert.Equal(t, "info", k.String("log.level"))
	assert.Equal(t, "text", k.String("log.format"))
	assert.Equal(t, 5, k.Int("pipeline.workers"))
}

func TestFileSource_Load_EmptyPath(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FileSource{Path: ""}).Load(k), "Empty path should skip silently")
}

func TestFileSource_Load_NonExistentFile(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FileSource{Path: "/nonexistent/path/config.yaml"}).Load(k))
}

func TestFileSource_Load_ValidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
log:
  level: warn
  format: json
server:
  port: 9999
keys:
  shodan: file-key
pipeline:
  cache_ttl: 30m
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	k := koanf.New(".")
	src := &FileSource{Path: configPath}
	assert.Equal(t, 20, src.Priority())
	assert.Equal(t, "file:"+configPath, src.Name())

	require.NoError(t, src.Load(k))
	assert.Equal(t, "warn", k.String("log.level"))
	assert.Equal(t, "json", k.String("log.format"))
	assert.Equal(t, 9999, k.Int("server.port"))
	assert.Equal(t, "file-key", k.String("keys.shodan"))
	assert.Equal(t, "30m", k.String("pipeline.cache_ttl"))
}

func TestFileSource_Load_Malformed(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log: [unterminated"), 0o644))

	err := (&FileSource{Path: configPath}).Load(koanf.New("."))
	require.Error(t, err)
	assert.Contains(t, err.Error(), configPath)
}

func TestLegacyEnvSource_Load(t *testing.T) {
	env := map[string]string{
		"SHODAN_API_KEY":  " shodan-key ",
		"NVD_API_KEY":     "",
		"VULNERS_API_KEY": "vulners-key",
	}
	src := &LegacyEnvSource{Lookup: func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}}
	assert.Equal(t, 25, src.Priority())

	k := koanf.New(".")
	require.NoError(t, src.Load(k))
	assert.Equal(t, "shodan-key", k.String("keys.shodan"))
	assert.False(t, k.Exists("keys.nvd"), "empty variables are ignored")
	assert.Equal(t, "vulners-key", k.String("keys.vulners"))
}

func TestEnvSource_Load(t *testing.T) {
	t.Setenv("EXPOSURE_LOG_LEVEL", "error")
	t.Setenv("EXPOSURE_SERVER_PORT", "8888")
	t.Setenv("EXPOSURE_SERVER_READ_TIMEOUT", "5s")
	t.Setenv("EXPOSURE_SERVER_AUTH_TOKEN", "secret")
	t.Setenv("EXPOSURE_WORKSPACE_DIR", "/data/exposure")

	k := koanf.New(".")
	src := &EnvSource{Prefix: "EXPOSURE_"}
	assert.Equal(t, 30, src.Priority())
	assert.Equal(t, "env", src.Name())

	require.NoError(t, src.Load(k))
	assert.Equal(t, "error", k.String("log.level"))
	assert.Equal(t, 8888, k.Int("server.port"))
	assert.Equal(t, "5s", k.String("server.read_timeout"))
	assert.Equal(t, "secret", k.String("server.auth.token"))
	assert.Equal(t, "/data/exposure", k.String("workspace.dir"))
}

func TestEnvSource_Load_IgnoresUnknown(t *testing.T) {
	t.Setenv("EXPOSURE_WORKSPACE", "/data/exposure")
	t.Setenv("EXPOSURE_NOT_A_KEY", "x")

	k := koanf.New(".")
	require.NoError(t, (&EnvSource{}).Load(k))
	assert.False(t, k.Exists("workspace"))
	assert.False(t, k.Exists("not.a.key"))
}

func TestEnvSource_Load_DefaultPrefix(t *testing.T) {
	t.Setenv("EXPOSURE_LOG_FORMAT", "json")

	k := koanf.New(".")
	require.NoError(t, (&EnvSource{}).Load(k))
	assert.Equal(t, "json", k.String("log.format"))
}

func TestFlagSource_Load_NilFlags(t *testing.T) {
	src := &FlagSource{Flags: nil}
	assert.Equal(t, 40, src.Priority())
	assert.Equal(t, "flags", src.Name())
	require.NoError(t, src.Load(koanf.New(".")))
}

func TestFlagSource_Load(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log.level", "info", "")
	flags.String("log-file", "", "")
	_ = flags.Set("log.level", "debug")
	_ = flags.Set("log-file", "/var/log/exposure.log")

	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Flags: flags}).Load(k))

	assert.Equal(t, "debug", k.String("log.level"))
	assert.Equal(t, "/var/log/exposure.log", k.String("log.file"))
}

func TestFlagSource_Load_SkipsCommandFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log", "", "")
	flags.String("output", "table", "")
	_ = flags.Set("log", "/tmp/classify.log")

	k := koanf.New(".")
	require.NoError(t, (&DefaultSource{}).Load(k))
	require.NoError(t, (&FlagSource{Flags: flags}).Load(k))

	assert.Equal(t, "info", k.String("log.level"))
	assert.False(t, k.Exists("output"))
}

func TestFlagSource_Load_DebugFlag(t *testing.T) {
	k := koanf.New(".")
	require.NoError(t, (&FlagSource{Debug: true}).Load(k))
	assert.Equal(t, "debug", k.String("log.level"))
}

func TestDefaultSources_Order(t *testing.T) {
	sources := DefaultSources("/tmp/config.yaml", nil, false)

	require.Len(t, sources, 5)
	names := make([]string, 0, len(sources))
	for i, src := range sources {
		names = append(names, src.Name())
		if i > 0 {
			assert.Greater(t, src.Priority(), sources[i-1].Priority())
		}
	}
	assert.Equal(t, []string{"defaults", "file:/tmp/config.yaml", "legacy-env", "env", "flags"}, names)
}

func TestLoadWithSources_CustomSource(t *testing.T) {
	customSource := &mockConfigSource{
		name:     "custom",
		priority: 27,
		loadFunc: func(k *koanf.Koanf) error {
			return k.Set("log.level", "warn")
		},
	}

	manager := NewManager()
	sources := []ConfigSource{
		&DefaultSource{},
		customSource,
		&EnvSource{Prefix: "EXPOSURE_TEST_"},
	}

	require.NoError(t, manager.LoadWithSources(sources))
	assert.Equal(t, "warn", manager.Get().Log.Level)
}

func TestLoadWithSources_PriorityOrdering(t *testing.T) {
	t.Setenv("EXPOSURE_LOG_LEVEL", "error")

	manager := NewManager()
	sources := []ConfigSource{
		&EnvSource{Prefix: "EXPOSURE_"}, // priority 30
		&DefaultSource{},                // priority 10, loaded first despite order
	}

	require.NoError(t, manager.LoadWithSources(sources))
	assert.Equal(t, "error", manager.Get().Log.Level)
}

func TestLoadWithSources_LegacyKeysLoseToPrefixed(t *testing.T) {
	t.Setenv("NVD_API_KEY", "legacy")
	t.Setenv("EXPOSURE_KEYS_NVD", "prefixed")

	manager := NewManager()
	require.NoError(t, manager.Load(nil, ""))
	assert.Equal(t, "prefixed", manager.Get().Keys.NVD)
}

func TestLoadWithSources_SourceError(t *testing.T) {
	failing := &mockConfigSource{name: "broken", priority: 15, loadFunc: func(*koanf.Koanf) error {
		return assert.AnError
	}}
	err := NewManager().LoadWithSources([]ConfigSource{&DefaultSource{}, failing})
	require.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "broken")
}

// mockConfigSource is a test helper for custom config sources
type mockConfigSource struct {
	name     string
	priority int
	loadFunc func(k *koanf.Koanf) error
}

func (m *mockConfigSource) Name() string  { return m.name }
func (m *mockConfigSource) Priority() int { return m.priority }
func (m *mockConfigSource) Load(k *koanf.Koanf) error {
	if m.loadFunc != nil {
		return m.loadFunc(k)
	}
	return nil
}
