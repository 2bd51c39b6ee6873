// Package commands assembles the exposure command tree.
package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	serverCmd "github.com/vulntor/exposure/cmd/exposure/commands/server"
	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/appctx"
	"github.com/vulntor/exposure/pkg/cli"
	"github.com/vulntor/exposure/pkg/config"
	"github.com/vulntor/exposure/pkg/logging"
	"github.com/vulntor/exposure/pkg/paths"
	"github.com/vulntor/exposure/pkg/results"
	"github.com/vulntor/exposure/pkg/workspace"
)

const cliExecutable = "exposure"

// NewCommand constructs the top-level exposure CLI command, wiring global
// flags, configuration, logging and the shared workspace.
func NewCommand() *cobra.Command {
	var (
		configFile string
		outputMode string
		noColor    bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Exposure maps internet-facing devices to known vulnerabilities",
		Long: `Exposure scans hosts (through Shodan or a local nmap), correlates the
discovered services with NVD CVEs and Vulners exploits, and classifies the
findings against the OWASP IoT Top 10. It runs as a CLI or as an HTTP server.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(outputMode); err != nil {
				return err
			}

			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), paths.ConfigFile(configFile)); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg := mgr.Get()

			if err := logging.Configure(logging.Options{
				Level:      cfg.Log.Level,
				Format:     cfg.Log.Format,
				File:       cfg.Log.File,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				Out:        cmd.ErrOrStderr(),
			}); err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			root, err := workspace.Prepare(cfg.Workspace.Dir)
			if err != nil {
				return fmt.Errorf("prepare workspace: %w", err)
			}
			store, err := results.NewStore(workspace.Results(root))
			if err != nil {
				return fmt.Errorf("open results: %w", err)
			}
			log.Debug().Str("workspace", root).Msg("workspace ready")

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			ctx = appctx.WithStore(ctx, store)
			ctx = workspace.WithContext(ctx, root)

			cmd.SetContext(ctx)
			if r := cmd.Root(); r != nil && r != cmd {
				r.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Close()
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path (default "+paths.ConfigFile("")+")")
	cmd.PersistentFlags().String("workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated by size")
	cmd.PersistentFlags().String("log-format", "", "Log format: text|json")
	cmd.PersistentFlags().StringVarP(&outputMode, "output", "o", string(format.ModeTable), "Output format: table|json")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Print only result paths")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newScanCommand())
	cmd.AddCommand(newClassifyCommand())
	cmd.AddCommand(newHostCommand())
	cmd.AddCommand(newSearchCommand())
	cmd.AddCommand(newEnumCommand())
	cmd.AddCommand(newMonitorCommand())
	cmd.AddCommand(serverCmd.NewCommand())
	cmd.AddCommand(cli.NewVersionCommand(cliExecutable))

	return cmd
}
