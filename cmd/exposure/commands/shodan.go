package commands

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/tasks"
)

func newHostCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "host",
		Short:   "Look up what Shodan knows about an IP",
		GroupID: "core",
		Example: `  exposure host --ip 192.0.2.10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, out, err := runTask(cmd, taskRun{
				Operation: "host lookup",
				Task:      "host_lookup",
				Params:    paramsFromFlags(cmd, "ip"),
			})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if res, ok := data.(tasks.HostLookupResult); ok && f.Mode() == format.ModeTable {
				if err := renderHost(f, res); err != nil {
					return err
				}
			}
			return finish(f, "host lookup", data, out)
		},
	}
	cmd.Flags().String("ip", "", "IP address to look up")
	_ = cmd.MarkFlagRequired("ip")
	return cmd
}

func renderHost(f format.Formatter, res tasks.HostLookupResult) error {
	summary, ok := res.HostData.(tasks.HostSummary)
	if !ok {
		if m, isMap := res.HostData.(map[string]string); isMap {
			return f.PrintError(fmt.Errorf("lookup of %s failed: %s", res.ScannedTarget, m["error"]))
		}
		return nil
	}
	return renderSummary(f, summary)
}

func renderSummary(f format.Formatter, summary tasks.HostSummary) error {
	title := summary.IP
	if summary.Summary.Org != "" {
		title += " (" + summary.Summary.Org + ")"
	}
	if err := f.PrintHeading(title); err != nil {
		return err
	}
	loc := summary.Summary.Location
	if err := f.PrintSummary(fmt.Sprintf("ISP: %s  OS: %s  Location: %s %s  Banners: %d",
		orDash(summary.Summary.ISP), orDash(summary.Summary.OS), orDash(loc.City), loc.CountryCode, summary.Summary.BannersCount)); err != nil {
		return err
	}

	rows := make([][]string, 0, len(summary.Results))
	for _, b := range summary.Results {
		rows = append(rows, []string{strconv.Itoa(b.Port), b.Transport, b.FirstLine})
	}
	return f.PrintTable([]string{"Port", "Transport", "Banner"}, rows)
}

func newSearchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search",
		Short:   "Search Shodan and summarize the global exposure of a query",
		GroupID: "core",
		Example: `  exposure search --query "http.title:'Home Assistant' port:8123" --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, out, err := runTask(cmd, taskRun{
				Operation: "search",
				Task:      "global_exposure",
				Params:    paramsFromFlags(cmd, "query", "limit"),
			})
			if err != nil {
				return err
			}
			f := format.FromCommand(cmd)
			if res, ok := data.(tasks.ExposureResult); ok && f.Mode() == format.ModeTable {
				if err := renderExposure(f, res); err != nil {
					return err
				}
			}
			return finish(f, "search", data, out)
		},
	}
	cmd.Flags().String("query", "", "Shodan search query")
	cmd.Flags().Int("limit", 10, "Maximum matches to collect")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func renderExposure(f format.Formatter, res tasks.ExposureResult) error {
	if err := f.PrintHeading(fmt.Sprintf("%s: %d of %d requested", res.Query, res.Collected, res.RequestedLimit)); err != nil {
		return err
	}

	names := make([]string, 0, len(res.Facets))
	for name := range res.Facets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		var parts []string
		for _, fc := range res.Facets[name] {
			parts = append(parts, fmt.Sprintf("%v (%d)", fc.Value, fc.Count))
		}
		if len(parts) == 0 {
			continue
		}
		if err := f.PrintSummary(fmt.Sprintf("Top %s: %s", name, strings.Join(parts, ", "))); err != nil {
			return err
		}
	}

	rows := make([][]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		rows = append(rows, []string{m.IPStr, strconv.Itoa(m.Port), m.Org, m.CountryCode})
	}
	return f.PrintTable([]string{"IP", "Port", "Org", "Country"}, rows)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
