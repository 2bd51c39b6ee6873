// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func TestPrintJSON(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		expected string
	}{
		{
			name:     "object",
			data:     map[string]string{"query": "port:8123 <html>"},
			expected: "{\n  \"query\": \"port:8123 <html>\"\n}\n",
		},
		{
			name:     "nil",
			data:     nil,
			expected: "null\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, ModeJSON, false, false)

			require.NoError(t, f.PrintJSON(tt.data))
			require.Equal(t, tt.expected, stdout.String())
			require.Empty(t, stderr.String())
		})
	}
}

func TestPrintTable(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeTable, false, false)

	require.NoError(t, f.PrintTable([]string{"IP", "Port"}, [][]string{{"192.0.2.1", "80"}}))
	require.Contains(t, stdout.String(), "IP")
	require.Contains(t, stdout.String(), "192.0.2.1  80")
}

func TestPrintTable_JSONMode(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeJSON, false, false)

	require.NoError(t, f.PrintTable([]string{"ip", "port"}, [][]string{{"192.0.2.1", "80"}}))

	var items []map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &items))
	require.Equal(t, []map[string]string{{"ip": "192.0.2.1", "port": "80"}}, items)
}

func TestPrintSummary(t *testing.T) {
	tests := []struct {
		name       string
		mode       OutputMode
		quiet      bool
		wantStdout string
		wantStderr string
	}{
		{name: "table", mode: ModeTable, wantStdout: "done\n"},
		{name: "json goes to stderr", mode: ModeJSON, wantStderr: "done\n"},
		{name: "quiet", mode: ModeTable, quiet: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			f := New(&stdout, &stderr, tt.mode, tt.quiet, false)

			require.NoError(t, f.PrintSummary("done"))
			require.Equal(t, tt.wantStdout, stdout.String())
			require.Equal(t, tt.wantStderr, stderr.String())
		})
	}
}

func TestPrintError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeTable, false, false)
	require.NoError(t, f.PrintError(errors.New("boom")))
	require.Equal(t, "Error: boom\n", stderr.String())

	stdout.Reset()
	f = New(&stdout, &stderr, ModeJSON, false, false)
	require.NoError(t, f.PrintError(errors.New("boom")))
	require.JSONEq(t, `{"success":false,"error":"boom"}`, stdout.String())

	require.NoError(t, f.PrintError(nil))
}

func TestPrintHeading(t *testing.T) {
	var stdout, stderr bytes.Buffer
	f := New(&stdout, &stderr, ModeTable, false, false)
	require.NoError(t, f.PrintHeading("192.0.2.1"))
	require.Equal(t, "\n192.0.2.1\n", stdout.String())

	stdout.Reset()
	f = New(&stdout, &stderr, ModeJSON, false, false)
	require.NoError(t, f.PrintHeading("192.0.2.1"))
	require.Empty(t, stdout.String())
}

func TestValidateMode(t *testing.T) {
	require.NoError(t, ValidateMode("json"))
	require.NoError(t, ValidateMode("table"))
	require.Error(t, ValidateMode("yaml"))
}

func TestParseMode(t *testing.T) {
	require.Equal(t, ModeJSON, ParseMode("JSON"))
	require.Equal(t, ModeTable, ParseMode("table"))
	require.Equal(t, ModeTable, ParseMode("other"))
}

func TestFromCommandRespectsFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("output", "table", "")
	cmd.Flags().Bool("quiet", false, "")
	cmd.Flags().Bool("no-color", false, "")

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	require.NoError(t, cmd.Flags().Set("output", "json"))
	require.NoError(t, cmd.Flags().Set("quiet", "true"))
	require.NoError(t, cmd.Flags().Set("no-color", "true"))

	formatter := FromCommand(cmd)
	require.Equal(t, ModeJSON, formatter.Mode())

	require.NoError(t, formatter.PrintSummary("should be suppressed"))
	require.Empty(t, out.String())
	require.Empty(t, errOut.String())
}

func TestFromCommand_Defaults(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	cmd := &cobra.Command{Use: "bare"}

	f := FromCommand(cmd).(*formatter)
	require.Equal(t, ModeTable, f.mode)
	require.False(t, f.quiet)
	require.True(t, f.color)
}

func TestFromCommand_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Bool("no-color", false, "")

	f := FromCommand(cmd).(*formatter)
	require.False(t, f.color)
}
