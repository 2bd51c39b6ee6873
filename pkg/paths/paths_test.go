package paths

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "exposure"), ConfigDir())
}

func TestConfigDir_Fallback(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("home fallback differs on windows")
	}
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", home)
	require.Equal(t, filepath.Join(home, ".config", "exposure"), ConfigDir())
}

func TestConfigFile(t *testing.T) {
	require.Equal(t, "/etc/exposure.yaml", ConfigFile("/etc/exposure.yaml"))

	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.Equal(t, filepath.Join(dir, "exposure", "config.yaml"), ConfigFile(""))
}
