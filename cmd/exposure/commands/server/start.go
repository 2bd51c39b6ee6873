// Package server provides the Cobra command implementation for the exposure
// server lifecycle. It wires CLI flags to the server runtime.
package server

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/appctx"
	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/paths"
	serversvc "github.com/vulntor/exposure/pkg/server"
	"github.com/vulntor/exposure/pkg/server/app"
	"github.com/vulntor/exposure/pkg/tasks"
)

// newStartServerCommand creates the 'exposure server start' command.
//
// The server hosts the task API, background jobs and health endpoints in a
// single runtime and runs until interrupted, then shuts down gracefully.
//
// Configuration is loaded from (lowest priority first):
//   - Config file (~/.config/exposure/config.yaml or --config)
//   - SHODAN_API_KEY, NVD_API_KEY, VULNERS_API_KEY
//   - Environment variables (EXPOSURE_*)
//   - Flags (--server.port, --server.auth.mode, ...)
//
// Example usage:
//
//	exposure server start
//	exposure server start --server.addr 0.0.0.0 --server.port 8080
//	exposure server start --server.auth.mode token --server.auth.token s3cret
func newStartServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the exposure server",
		Long: `Start the exposure HTTP server.

The server exposes the scan, classification and lookup tasks over a JSON API
for the web frontend, runs submitted jobs in the background and reloads its
configuration file when it changes. It runs until interrupted (Ctrl+C).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := format.FromCommand(cmd)

			cfgMgr, ok := appctx.Config(cmd.Context())
			if !ok {
				err := serversvc.ErrConfigUnavailable
				_ = formatter.PrintTotalFailureSummary("start server", err, serversvc.ErrorCode(err))
				return format.Reported(err)
			}

			deps := &app.Deps{
				Config:     cfgMgr,
				ConfigPath: watchedConfigFile(cmd),
				Tasks:      tasks.Default(),
				Logger:     log.With().Str("component", "server").Logger(),
			}

			application, err := app.New(cmd.Context(), deps)
			if err != nil {
				_ = formatter.PrintTotalFailureSummary("start server", err, serversvc.ErrorCode(err))
				return format.Reported(err)
			}

			if err := application.Listen(); err != nil {
				_ = formatter.PrintTotalFailureSummary("start server", err, serversvc.ErrorCode(err))
				return format.Reported(err)
			}
			_ = formatter.PrintSummary("Listening on http://" + application.Addr())

			if err := application.Run(cmd.Context()); err != nil {
				_ = formatter.PrintTotalFailureSummary("start server", err, serversvc.ErrorCode(err))
				return format.Reported(err)
			}
			return nil
		},
	}

	config.BindServerFlags(cmd.Flags())
	return cmd
}

// watchedConfigFile returns the config file to hot-reload, or "" when it
// does not exist.
func watchedConfigFile(cmd *cobra.Command) string {
	explicit := ""
	if fl := cmd.Flags().Lookup("config"); fl != nil {
		explicit = fl.Value.String()
	}
	path := paths.ConfigFile(explicit)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
