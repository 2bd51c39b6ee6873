package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/tasks"
)

func newEnumCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "enum",
		Short:   "Passively enumerate an IP or every host matched by a query",
		GroupID: "core",
		Example: `  exposure enum --query 192.0.2.10
  exposure enum --query "nginx port:80" --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, out, err := runTask(cmd, taskRun{
				Operation: "enumerate",
				Task:      "shodan_enum",
				Params:    paramsFromFlags(cmd, "query", "limit"),
			})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if f.Mode() == format.ModeTable {
				if err := renderEnum(f, data); err != nil {
					return err
				}
			}
			return finish(f, "enumerate", data, out)
		},
	}
	cmd.Flags().String("query", "", "Shodan search query or a single IP")
	cmd.Flags().Int("limit", 10, "Maximum matches to analyse")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func renderEnum(f format.Formatter, data any) error {
	switch v := data.(type) {
	case tasks.HostSummary:
		return renderSummary(f, v)
	case tasks.EnumResult:
		if err := f.PrintHeading(fmt.Sprintf("%s: %d hosts", v.Query, v.TotalHosts)); err != nil {
			return err
		}
		for _, s := range v.Results {
			if err := renderSummary(f, s); err != nil {
				return err
			}
		}
	case map[string]string:
		return f.PrintError(errors.New(v["error"]))
	}
	return nil
}

func newMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "monitor",
		Short:   "Collect banners streamed by a temporary Shodan alert",
		GroupID: "core",
		Example: `  exposure monitor --network 198.51.100.0/24 --name lab --duration 120`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, out, err := runTask(cmd, taskRun{
				Operation: "monitor",
				Task:      "realtime_monitor",
				Params:    paramsFromFlags(cmd, "network", "name", "duration"),
			})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if res, ok := data.(tasks.MonitorResult); ok && f.Mode() == format.ModeTable {
				if err := renderMonitor(f, res); err != nil {
					return err
				}
			}
			return finish(f, "monitor", data, out)
		},
	}
	cmd.Flags().String("network", "", "IP or network (CIDR) to watch")
	cmd.Flags().String("name", "ExposureMonitor", "Alert name")
	cmd.Flags().Int("duration", 300, "Seconds to collect events")
	_ = cmd.MarkFlagRequired("network")
	return cmd
}

func renderMonitor(f format.Formatter, res tasks.MonitorResult) error {
	if len(res.Data) == 0 {
		return nil
	}
	d := res.Data[0]
	if res.Status == tasks.MonitorError {
		return f.PrintError(fmt.Errorf("alert creation failed: %s", d.Message))
	}
	if err := f.PrintHeading(fmt.Sprintf("Alert %s on %s: %d events", d.AlertID, d.Network, d.EventsCollected)); err != nil {
		return err
	}
	rows := make([][]string, 0, len(d.Events))
	for _, e := range d.Events {
		first := ""
		if len(e.Data) > 0 {
			first = e.Data[0]
		}
		rows = append(rows, []string{orDash(e.Timestamp), e.IPStr, strconv.Itoa(e.Port), orDash(e.Module), strings.TrimSpace(first)})
	}
	return f.PrintTable([]string{"Time", "IP", "Port", "Module", "Banner"}, rows)
}
