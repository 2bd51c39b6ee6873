package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/tasks"
	"github.com/vulntor/exposure/pkg/vuln"
)

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		Short:   "Scan hosts and correlate services with known vulnerabilities",
		GroupID: "scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newScanActiveCommand())
	cmd.AddCommand(newScanNmapCommand())
	return cmd
}

func newScanActiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "active",
		Short: "Request an on-demand Shodan scan of one IP and correlate its services",
		Example: `  exposure scan active --target 192.0.2.10
  exposure scan active --target 192.0.2.10 --timeout 300 -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := paramsFromFlags(cmd, "target", "wait_interval", "timeout", "max_workers")
			data, out, err := runTask(cmd, taskRun{Operation: "scan", Task: "active_scan_cve", Params: params})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if f.Mode() == format.ModeTable {
				items, _ := data.([]any)
				if err := renderHosts(f, items); err != nil {
					return err
				}
			}
			return finish(f, "scan", data, out)
		},
	}

	cmd.Flags().String("target", "", "Target IP address (owned or authorised)")
	cmd.Flags().Float64("wait_interval", 5, "Seconds between scan status checks")
	cmd.Flags().Float64("timeout", 600, "Maximum seconds to wait for the scan")
	cmd.Flags().Int("max_workers", 5, "Concurrent vulnerability lookups")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newScanNmapCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nmap",
		Short: "Scan an IP or CIDR with the local nmap and correlate its services",
		Example: `  exposure scan nmap --target 192.0.2.0/28 --delay 1
  exposure scan nmap --target 192.0.2.10 --nmap_args "-sV -p 22,80,443"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			params := paramsFromFlags(cmd, "target", "delay", "max", "nmap_args")
			data, out, err := runTask(cmd, taskRun{Operation: "scan", Task: "nmap_scan", Params: params})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if res, ok := data.(tasks.NmapResult); ok && f.Mode() == format.ModeTable {
				if err := renderHosts(f, res.Results); err != nil {
					return err
				}
			}
			return finish(f, "scan", data, out)
		},
	}

	cmd.Flags().String("target", "", "Target IP, CIDR or hostname")
	cmd.Flags().Float64("delay", 0.5, "Seconds to wait between hosts")
	cmd.Flags().Int("max", 0, "Maximum hosts to scan (0 scans all)")
	cmd.Flags().String("nmap_args", "", "Arguments passed to nmap (default from scan.nmap_args)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// paramsFromFlags copies the named flags that were set on the command line.
// Unset flags fall back to the task's own defaults.
func paramsFromFlags(cmd *cobra.Command, names ...string) tasks.Params {
	params := tasks.Params{}
	for _, name := range names {
		if fl := cmd.Flags().Lookup(name); fl != nil && fl.Changed {
			params[name] = fl.Value.String()
		}
	}
	return params
}

// renderHosts prints one findings table per host report and a line per
// failed host.
func renderHosts(f format.Formatter, items []any) error {
	if len(items) == 0 {
		return f.PrintSummary("No hosts scanned.")
	}
	for _, item := range items {
		switch v := item.(type) {
		case vuln.HostReport:
			if err := renderReport(f, v); err != nil {
				return err
			}
		case tasks.ScanFailure:
			msg := v.Error
			if v.Status == tasks.StatusTimeout {
				msg = fmt.Sprintf("scan %s timed out", v.ScanID)
			}
			if err := f.PrintHeading(v.Target); err != nil {
				return err
			}
			if err := f.PrintError(errors.New(msg)); err != nil {
				return err
			}
		case tasks.HostFailure:
			if err := f.PrintHeading(v.IP); err != nil {
				return err
			}
			if err := f.PrintError(errors.New(v.Error)); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderReport(f format.Formatter, r vuln.HostReport) error {
	title := r.IPStr
	if title == "" {
		title = r.IP
	}
	var details []string
	if r.Org != "" {
		details = append(details, r.Org)
	}
	if r.OS != "" {
		details = append(details, r.OS)
	}
	if len(details) > 0 {
		title += " (" + strings.Join(details, ", ") + ")"
	}
	if err := f.PrintHeading(title); err != nil {
		return err
	}
	if err := f.PrintSummary(fmt.Sprintf("%d services, %s", r.BannersCount, format.SeverityLine(vuln.SeverityCounts(r.Vulns)))); err != nil {
		return err
	}
	return f.PrintFindings(format.FindingsFromReport(r))
}
