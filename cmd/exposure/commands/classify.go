package commands

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vulntor/exposure/cmd/exposure/internal/format"
	"github.com/vulntor/exposure/pkg/appctx"
	"github.com/vulntor/exposure/pkg/tasks"
	"github.com/vulntor/exposure/pkg/vuln"
)

func newClassifyCommand() *cobra.Command {
	var (
		inputFile string
		outFile   string
		logFile   string
	)

	cmd := &cobra.Command{
		Use:     "classify",
		Short:   "Classify scan findings against the OWASP IoT Top 10",
		GroupID: "core",
		Example: `  exposure classify --input_file results/active_scan_cve_20250101T000000Z_ab12cd.json
  exposure classify --input_file scan.json --out classified.json --log classify.log`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outFile
			if out == "" {
				store, ok := appctx.Store(cmd.Context())
				if !ok {
					return errors.New("results directory unavailable")
				}
				out = filepath.Join(store.Root(), tasks.ClassifiedName(inputFile))
			}

			data, saved, err := runTask(cmd, taskRun{
				Operation: "classify",
				Task:      "classify_owasp",
				Params:    tasks.Params{"input_file": inputFile},
				Out:       out,
				LogPath:   logFile,
			})
			if err != nil {
				return err
			}

			f := format.FromCommand(cmd)
			if f.Mode() == format.ModeTable {
				rows, _ := data.([]vuln.ClassifiedVuln)
				if err := f.PrintHeading(fmt.Sprintf("%d vulnerabilities classified", len(rows))); err != nil {
					return err
				}
				if err := f.PrintFindings(format.FindingsFromClassified(rows)); err != nil {
					return err
				}
			}
			return finish(f, "classify", data, saved)
		},
	}

	cmd.Flags().StringVar(&inputFile, "input_file", "", "Scan result JSON to classify")
	cmd.Flags().StringVar(&outFile, "out", "", "Output path (default <results>/<input>_classified.json)")
	cmd.Flags().StringVar(&logFile, "log", "", "Append progress lines to this file")
	_ = cmd.MarkFlagRequired("input_file")
	return cmd
}
