package mermaid

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

type echoCLI struct{}

func (echoCLI) CommandContext(ctx context.Context, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "mmdc", args...)
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestThemedCLI(t *testing.T) {
	cli, err := newThemedCLI(echoCLI{}, entities.MermaidConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.close() })

	t.Run("adds config file and svg id", func(t *testing.T) {
		ctx := withRender(context.Background(), "mermaid-x-1", entities.ThemeDark)
		cmd := cli.CommandContext(ctx, "-i", "in.mmd", "-o", "out.svg")

		assert.Equal(t, "in.mmd", argAfter(cmd.Args, "-i"))
		assert.Equal(t, "mermaid-x-1", argAfter(cmd.Args, "--svgId"))

		path := argAfter(cmd.Args, "--configFile")
		require.NotEmpty(t, path)
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var cfg themeConfig
		require.NoError(t, json.Unmarshal(data, &cfg))
		assert.Equal(t, "dark", cfg.Theme)
		assert.Equal(t, "loose", cfg.SecurityLevel)
		assert.Equal(t, "monospace", cfg.FontFamily)
		assert.Equal(t, 14, cfg.FontSize)
		assert.True(t, cfg.HTMLLabels)
		assert.Equal(t, true, cfg.Flowchart["useMaxWidth"])
	})

	t.Run("light theme by default without id", func(t *testing.T) {
		cmd := cli.CommandContext(context.Background(), "-i", "in.mmd")

		assert.Empty(t, argAfter(cmd.Args, "--svgId"))
		data, err := os.ReadFile(argAfter(cmd.Args, "--configFile"))
		require.NoError(t, err)
		assert.Contains(t, string(data), `"theme":"default"`)
	})

	t.Run("config files are written once per theme", func(t *testing.T) {
		a, err := cli.configFile(entities.ThemeLight)
		require.NoError(t, err)
		b, err := cli.configFile(entities.ThemeLight)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}
