package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServeTestCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "serve"}
	addServeFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(args))
	return cmd
}

func TestServeOverrides(t *testing.T) {
	t.Run("nothing set", func(t *testing.T) {
		o := serveOverrides(newServeTestCmd(t))
		assert.Zero(t, o.Port)
		assert.Empty(t, o.Host)
		assert.Nil(t, o.NoBrowser)
		assert.Nil(t, o.PanZoom, "the pan default must not override config")
	})

	t.Run("explicit flags", func(t *testing.T) {
		o := serveOverrides(newServeTestCmd(t,
			"--port", "8080", "--host", "0.0.0.0", "--theme", "dark",
			"--no-browser", "--pan=false", "--store", "/tmp/docs.db", "--mmdc", "/opt/mmdc"))

		assert.Equal(t, 8080, o.Port)
		assert.Equal(t, "0.0.0.0", o.Host)
		assert.Equal(t, "dark", o.Theme)
		require.NotNil(t, o.NoBrowser)
		assert.True(t, *o.NoBrowser)
		require.NotNil(t, o.PanZoom)
		assert.False(t, *o.PanZoom)
		assert.Equal(t, "/tmp/docs.db", o.StorePath)
		assert.Equal(t, "/opt/mmdc", o.MermaidCL)
	})
}

func TestServeArgs(t *testing.T) {
	assert.NoError(t, serveCmd.Args(serveCmd, nil))
	assert.NoError(t, serveCmd.Args(serveCmd, []string{"README.md"}))
	assert.Error(t, serveCmd.Args(serveCmd, []string{"a.md", "b.md"}))
}

func TestPreviewURL(t *testing.T) {
	tests := map[string]string{
		"127.0.0.1:4400": "http://127.0.0.1:4400",
		"0.0.0.0:4400":   "http://localhost:4400",
		"[::]:9000":      "http://localhost:9000",
		"[::1]:9000":     "http://[::1]:9000",
		"example.com:80": "http://example.com",
		"garbage":        "http://garbage",
	}
	for addr, want := range tests {
		assert.Equal(t, want, previewURL(addr), addr)
	}
}
