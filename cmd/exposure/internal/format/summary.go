// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/vulntor/exposure/pkg/server"
)

// PrintSuccessSummary prints a standardized success message
// Examples:
//   - "✓ Scan completed, results saved to /data/results/nmap_scan_....json"
//   - "✓ Classify completed successfully"
func (f *formatter) PrintSuccessSummary(operation, outPath string) error {
	if f.quiet {
		if outPath != "" {
			_, err := fmt.Fprintln(f.stdout, outPath)
			return err
		}
		return nil
	}

	var message string
	if outPath != "" {
		message = fmt.Sprintf("✓ %s completed, results saved to %s", capitalize(operation), outPath)
	} else {
		message = fmt.Sprintf("✓ %s completed successfully", capitalize(operation))
	}

	if f.mode == ModeJSON {
		// stdout carries the document
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}

	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}

	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

// PrintTotalFailureSummary prints total failure with error and suggestions
// Example output:
//
//	✗ Failed to start server: port 99999 is out of range
//
//	💡 Suggestions:
//	  → Use a port between 1 and 65535:  exposure server start --server.port 8080
func (f *formatter) PrintTotalFailureSummary(operation string, err error, errorCode string) error {
	if f.quiet {
		return nil
	}

	if f.mode == ModeJSON {
		return f.PrintJSON(map[string]any{
			"success":    false,
			"operation":  operation,
			"error":      err.Error(),
			"error_code": errorCode,
		})
	}

	var sb strings.Builder

	errorMsg := fmt.Sprintf("✗ Failed to %s: %v", operation, err)
	if f.color {
		sb.WriteString(color.RedString("%s\n", errorMsg))
	} else {
		sb.WriteString(fmt.Sprintf("%s\n", errorMsg))
	}

	suggestions := GetSuggestions(errorCode, operation)
	if len(suggestions) > 0 {
		sb.WriteString("\n💡 Suggestions:\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("  → %s\n", s))
		}
	}

	_, writeErr := f.stderr.Write([]byte(sb.String()))
	return writeErr
}

// Task failure codes without a server counterpart.
const (
	CodeMissingAPIKey    = "MISSING_API_KEY"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeTimeout          = "TIMEOUT"
)

var suggestionGenerators = map[string]func(string) []string{
	server.CodeInvalidPort: func(string) []string {
		return []string{"Pick a free port:  exposure server start --server.port 8080"}
	},
	server.CodeInvalidConcurrency: func(string) []string {
		return []string{"Run at least one job worker:  exposure server start --server.concurrency 4"}
	},
	server.CodeInvalidConfig: func(string) []string {
		return []string{
			"Review the config file and EXPOSURE_* variables:  exposure --config <path> --debug version",
			"Token auth needs a token:  server.auth.mode token requires server.auth.token",
		}
	},
	server.CodeConfigUnavailable: func(string) []string {
		return []string{"Start the server through the exposure binary:  exposure server start"}
	},
	server.CodeWorkspaceFailed: func(string) []string {
		return []string{
			"Point results at a writable directory:  exposure --workspace-dir <dir> ...",
			"Or export EXPOSURE_WORKSPACE",
		}
	},
	server.CodeRuntimeFailed: func(operation string) []string {
		if operation == "start server" {
			return []string{"Another process may hold the port:  exposure server start --server.port <port>"}
		}
		return []string{"Rerun with --debug to log upstream requests"}
	},
	CodeMissingAPIKey: func(string) []string {
		return []string{"Export SHODAN_API_KEY or set keys.shodan in the config file"}
	},
	CodeInvalidParameter: func(operation string) []string {
		return []string{fmt.Sprintf("Check the %s flags with --help", operation)}
	},
	CodeInvalidInput: func(string) []string {
		return []string{"Classify a saved scan:  exposure classify --input_file <results>/active_scan_cve_<ts>.json"}
	},
	CodeTimeout: func(string) []string {
		return []string{"Retry later; Shodan may still be queueing the scan or throttling the key"}
	},
}

// GetSuggestions returns actionable hints for an error code. Unknown codes
// yield none.
func GetSuggestions(errorCode, operation string) []string {
	if gen, ok := suggestionGenerators[errorCode]; ok {
		return gen(operation)
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
