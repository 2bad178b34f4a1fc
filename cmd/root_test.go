package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foiahound/foiahound/api/schemas"
	"github.com/foiahound/foiahound/internal/config"
	"github.com/foiahound/foiahound/internal/observability"
)

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	// Reset viper and prevent config-file auto-discovery from the repo root.
	viper.Reset()
	viper.SetConfigName("a-config-file-that-does-not-exist")

	cfgFile = ""
	appConfig = nil
	osExit = os.Exit

	observability.ResetForTest()
	observability.InitializeLogger(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"})

	rootCmd = newRootCmd()
}

func TestRootCmd_VersionFlag(t *testing.T) {
	resetForTest(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"--version"})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), Version)
}

func TestRootCmd_NoArgs(t *testing.T) {
	resetForTest(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "foiahound")
}

func TestInitializeConfig_ReadsConfigFile(t *testing.T) {
	resetForTest(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	content := []byte("crawler:\n  agents: 7\nportal:\n  url: https://cityofexample.nextrequest.com\n")
	require.NoError(t, os.WriteFile(cfgPath, content, 0o644))

	cfgFile = cfgPath
	require.NoError(t, initializeConfig())

	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler().Agents)
	assert.Equal(t, "https://cityofexample.nextrequest.com", cfg.Portal().URL)
	// Untouched sections keep their defaults.
	assert.Equal(t, 15, cfg.Crawler().MaxAttempts)
}

func TestInitializeConfig_EnvOverride(t *testing.T) {
	resetForTest(t)

	t.Setenv("FOIAHOUND_PORTAL_EMAIL", "requester@example.org")
	t.Setenv("FOIAHOUND_PORTAL_PASSWORD", "hunter2")

	require.NoError(t, initializeConfig())
	cfg, err := config.NewConfigFromViper(viper.GetViper())
	require.NoError(t, err)

	assert.Equal(t, "requester@example.org", cfg.Portal().Email)
	assert.Equal(t, "hunter2", cfg.Portal().Password)
}

func TestChooserForIndex(t *testing.T) {
	opts := schemas.RequestOptions{Options: []schemas.RequestOption{
		{Title: "first"}, {Title: "second"},
	}}

	t.Run("defaults to first", func(t *testing.T) {
		idx, err := chooserForIndex(0)(opts)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("picks the named option", func(t *testing.T) {
		idx, err := chooserForIndex(2)(opts)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
	})

	t.Run("rejects an index past the list", func(t *testing.T) {
		_, err := chooserForIndex(5)(opts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only 2 were generated")
	})
}

func TestWriteJSONArtifact(t *testing.T) {
	dir := t.TempDir()

	path, err := writeJSONArtifact(dir, "status_report", schemas.RequestSummary{Total: 3})
	require.NoError(t, err)
	assert.FileExists(t, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total": 3`)
}
