package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	v "github.com/vulntor/exposure/pkg/version"
)

func TestVersionCommand(t *testing.T) {
	cmd := NewVersionCommand("exposure")
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	require.Contains(t, buf.String(), "exposure version: "+v.Version)
	require.Contains(t, buf.String(), "Go Version:")
}

func TestVersionCommand_Short(t *testing.T) {
	cmd := NewVersionCommand("exposure")
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--short"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "exposure version: "+v.Version+"\n", buf.String())
}

func TestVersionCommand_JSON(t *testing.T) {
	cmd := NewVersionCommand("exposure")
	cmd.Flags().String("output", "table", "")
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--output", "json"})

	require.NoError(t, cmd.Execute())
	var info v.Struct
	require.NoError(t, json.Unmarshal(buf.Bytes(), &info))
	require.Equal(t, v.Version, info.Version)
}
