package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/vulntor/exposure/pkg/owasp"
	"github.com/vulntor/exposure/pkg/vuln"
)

// ClassifyOWASP maps the vulnerabilities of stored host reports onto the
// OWASP IoT Top 10.
type ClassifyOWASP struct{}

func (ClassifyOWASP) Metadata() Metadata {
	return Metadata{
		Name:        "classify_owasp",
		Description: "Classifies vulnerabilities from active_scan_cve reports against the OWASP IoT Top 10.",
		Params: []Param{
			{Name: "input_file", Label: "Input JSON (active_scan_cve result)", Type: "text", Required: true,
				Placeholder: "results/active_scan_cve_20250101T000000Z_abc123.json"},
		},
		Timeout:    120 * time.Second,
		AcceptsLog: true,
	}
}

func (ClassifyOWASP) Run(_ context.Context, env *Env, p Params) (any, error) {
	rows, err := ClassifyFile(env, p.String("input_file"))
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ClassifyFile loads the reports in path and classifies them. Missing or
// malformed input is an error.
func ClassifyFile(env *Env, path string) ([]vuln.ClassifiedVuln, error) {
	_ = env.Log.Printf("Analysis started: %s", path)

	f, err := env.openInput(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	reports, err := owasp.LoadReports(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	rows := owasp.ClassifyReports(reports)

	_ = env.Log.Printf("Analysis finished: %d vulnerabilities classified", len(rows))
	return rows, nil
}

// ClassifiedName returns "<input stem>_classified.json".
func ClassifiedName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_classified.json"
}
