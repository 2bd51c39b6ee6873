// Package paths resolves per-user configuration locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the name of the default configuration file.
const ConfigFileName = "config.yaml"

// ConfigDir returns the config directory for exposure.
// Order: XDG_CONFIG_HOME/exposure, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "exposure")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Exposure")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "exposure")
}

// ConfigFile returns explicit when set, otherwise the default config file
// path. The file need not exist.
func ConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return filepath.Join(ConfigDir(), ConfigFileName)
}
