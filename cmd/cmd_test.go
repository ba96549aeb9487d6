package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
)

// useProject points the commands at a fresh project tree with the external
// tools replaced by cp and true.
func useProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	viper.Reset()
	viper.Set("tools.sass", "cp {in} {out}")
	viper.Set("tools.tailwind", "cp {in} {out}")
	viper.Set("tools.lint", "true {in}")

	oldRoot := projectRoot
	projectRoot = root
	t.Cleanup(func() {
		projectRoot = oldRoot
		viper.Reset()
	})
	return root
}

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	return cmd, &out
}

func TestLevelFlag(t *testing.T) {
	var f levelFlag
	require.NoError(t, f.Set("DEBUG"))
	assert.Equal(t, logging.LevelDebug, f.level)
	assert.Equal(t, "DEBUG", f.String())
	assert.Equal(t, "level", f.Type())

	assert.Error(t, f.Set("verbose"))
	assert.Equal(t, logging.LevelDebug, f.level, "a rejected value leaves the flag unchanged")
}

func TestCompileCommand(t *testing.T) {
	root := useProject(t, map[string]string{
		"src/markup/index.html": "<p>{{.Page}}</p>",
		"src/js/app.js":         "app();",
	})

	require.NoError(t, runNode(context.Background(), "compile"))

	index, err := os.ReadFile(filepath.Join(root, "___Temp/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<p>index</p>", string(index))
	assert.FileExists(t, filepath.Join(root, "___Temp/js/main.js"))
}

func TestCompileCommandFailure(t *testing.T) {
	useProject(t, map[string]string{"src/markup/index.html": "{{ if }"})

	err := runNode(context.Background(), "compile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template-to-html")
}

func TestInvalidConfiguration(t *testing.T) {
	useProject(t, nil)
	viper.Set("server.port", 70000)

	err := runNode(context.Background(), "compile")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestGraphCommand(t *testing.T) {
	useProject(t, nil)
	cmd, out := testCommand()

	require.NoError(t, runGraph(cmd, nil))
	text := out.String()
	assert.Contains(t, text, "Style Compile (sequence)")
	assert.Contains(t, text, "Build (sequence)")
	assert.Contains(t, text, "  style-sources [parallel]")
	assert.Contains(t, text, "sass-compile -> ")
	assert.NotContains(t, text, "lint-scripts -> ")

	cmd, out = testCommand()
	require.NoError(t, runGraph(cmd, []string{"markup-compile"}))
	assert.True(t, strings.HasPrefix(out.String(), "Markup Compile (sequence)\n"))
	assert.NotContains(t, out.String(), "Build")

	cmd, _ = testCommand()
	assert.Error(t, runGraph(cmd, []string{"nope"}))
}

func TestConfigCommand(t *testing.T) {
	useProject(t, nil)
	viper.Set("server.port", 4000)
	viper.Set("purge.safelist", []string{"is-open"})
	cmd, out := testCommand()

	require.NoError(t, runConfigShow(cmd, nil))

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &cfg))
	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, []string{"is-open"}, cfg.Purge.Safelist)
	assert.Equal(t, "./src/markup", cfg.Paths.Src.Markup)

	cmd, out = testCommand()
	require.NoError(t, runConfigValidate(cmd, nil))
	assert.Contains(t, out.String(), "Configuration valid")
}

func TestConfigFile(t *testing.T) {
	root := useProject(t, map[string]string{
		".sitepipe.yml": "server:\n  port: 5050\nlog:\n  format: json\n",
	})
	viper.SetConfigFile(filepath.Join(root, ".sitepipe.yml"))
	require.NoError(t, viper.ReadInConfig())

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5050, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "cp {in} {out}", cfg.Tools.Sass)
}

func TestVersionCommand(t *testing.T) {
	cmd, out := testCommand()
	cmd.Flags().Bool("detailed", false, "")

	versionFormat = "json"
	t.Cleanup(func() { versionFormat = "text" })
	require.NoError(t, runVersionCommand(cmd, nil))
	assert.Contains(t, out.String(), `"version"`)

	versionFormat = "xml"
	assert.Error(t, runVersionCommand(cmd, nil))
}
