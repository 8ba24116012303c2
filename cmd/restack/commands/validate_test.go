package commands

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restack/internal/desktop"
	"restack/internal/probe"
)

func TestValidateCommand_Metadata(t *testing.T) {
	if validateCmd.Use != "validate" {
		t.Errorf("Use = %q, want %q", validateCmd.Use, "validate")
	}
	if validateCmd.Flags().Lookup("desktop-config") == nil {
		t.Error("--desktop-config flag should be defined")
	}
	if validateCmd.Flags().Lookup("timeout") == nil {
		t.Error("--timeout flag should be defined")
	}
}

func TestValidateServers_EmptyConfig(t *testing.T) {
	var buf bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&buf)
	c.SetContext(t.Context())

	err := validateServers(c, desktop.NewConfig(), time.Second)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No servers configured.")
}

func TestPrintProbeResult(t *testing.T) {
	t.Run("passing server", func(t *testing.T) {
		var buf bytes.Buffer
		printProbeResult(&buf, probe.Result{
			Name: "filesystem", OK: true, ToolCount: 11, DurationMS: 85,
		})

		out := buf.String()
		assert.Contains(t, out, "filesystem")
		assert.Contains(t, out, "11 tools")
	})

	t.Run("failing server with stderr", func(t *testing.T) {
		var buf bytes.Buffer
		printProbeResult(&buf, probe.Result{
			Name:   "memory",
			OK:     false,
			Error:  "process exited before responding",
			Stderr: "Error: Cannot find module './dist/index.js'",
		})

		out := buf.String()
		assert.Contains(t, out, "memory")
		assert.Contains(t, out, "process exited before responding")
		assert.Contains(t, out, "Cannot find module")
	})

	t.Run("timeout is labeled", func(t *testing.T) {
		var buf bytes.Buffer
		printProbeResult(&buf, probe.Result{
			Name: "slow", OK: false, TimedOut: true, Error: "context deadline exceeded",
		})

		assert.Contains(t, buf.String(), "timed out")
	})
}
