package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultServerConfig returns the default server configuration, suitable for
// a local frontend on port 3000.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:          "127.0.0.1",
		Port:          8080,
		Concurrency:   4,
		QueueSize:     64,
		ReadTimeout:   30 * time.Second,
		CORSOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		UploadLimitMB: 32,
		Auth:          AuthConfig{Mode: "none"},
	}
}

// BindServerFlags binds server-specific flags to the provided FlagSet.
// Flags are namespaced under 'server.' so they map straight onto config keys.
// Example: --server.addr, --server.port
func BindServerFlags(flags *pflag.FlagSet) {
	defaults := DefaultServerConfig()

	flags.String("server.addr", defaults.Addr, "Server listen address (use 0.0.0.0 for all interfaces)")
	flags.Int("server.port", defaults.Port, "Server listen port")
	flags.Int("server.concurrency", defaults.Concurrency, "Number of concurrent background workers")
	flags.Int("server.queue_size", defaults.QueueSize, "Pending background jobs before submissions are rejected")
	flags.Duration("server.read_timeout", defaults.ReadTimeout, "HTTP read timeout")
	flags.Duration("server.write_timeout", defaults.WriteTimeout, "HTTP write timeout (0 disables)")
	flags.StringSlice("server.cors_origins", defaults.CORSOrigins, "Origins allowed by CORS")
	flags.String("server.auth.mode", defaults.Auth.Mode, "Authentication mode: none|token")
	flags.String("server.auth.token", "", "Static bearer token for token mode")
}
