package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vedsharma/analyze-request/internal/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("PORT", "")
	return home
}

func TestDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "analyze-request", cfg.App)
	assert.Equal(t, filepath.Join(home, ".analyze-request"), cfg.DataDir)
	assert.Equal(t, config.StorageJSON, cfg.Storage)
	assert.Equal(t, 15000, cfg.TimeoutMs)
	assert.Equal(t, 5173, cfg.Port)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Empty(t, cfg.Proxy)
}

func TestEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("ANALYZE_REQUEST_STORAGE", "SQLite")
	t.Setenv("ANALYZE_REQUEST_DATA_DIR", "/tmp/analyze")
	t.Setenv("ANALYZE_REQUEST_TIMEOUT_MS", "2500")
	t.Setenv("ANALYZE_REQUEST_PROXY", "http://localhost:5173/")
	t.Setenv("ANALYZE_REQUEST_LOG_FORMAT", "json")
	t.Setenv("PORT", "8081")

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, config.StorageSQLite, cfg.Storage)
	assert.Equal(t, "/tmp/analyze", cfg.DataDir)
	assert.Equal(t, 2500, cfg.TimeoutMs)
	assert.Equal(t, "http://localhost:5173", cfg.Proxy)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8081, cfg.Port)
}

func TestPrefixedPortWins(t *testing.T) {
	isolate(t)
	t.Setenv("ANALYZE_REQUEST_PORT", "9000")
	t.Setenv("PORT", "8081")

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
}

func TestConfigFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app: team\nstorage: sqlite\nlog:\n  format: json\n"), 0600))

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "team", cfg.App)
	assert.Equal(t, config.StorageSQLite, cfg.Storage)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 15000, cfg.TimeoutMs)
}

func TestDefaultConfigFileInHome(t *testing.T) {
	home := isolate(t)
	dir := filepath.Join(home, ".analyze-request")
	require.NoError(t, os.MkdirAll(dir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("timeout_ms: 500\n"), 0600))

	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.TimeoutMs)
}

func TestExplicitConfigFileMustExist(t *testing.T) {
	isolate(t)

	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInvalidValues(t *testing.T) {
	testCases := []struct {
		Name  string
		Key   string
		Value string
	}{
		{Name: "storage", Key: "ANALYZE_REQUEST_STORAGE", Value: "postgres"},
		{Name: "log_format", Key: "ANALYZE_REQUEST_LOG_FORMAT", Value: "xml"},
		{Name: "port", Key: "ANALYZE_REQUEST_PORT", Value: "70000"},
		{Name: "timeout", Key: "ANALYZE_REQUEST_TIMEOUT_MS", Value: "-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tc.Key, tc.Value)

			_, err := config.Load(viper.New(), "")
			assert.Error(t, err)
		})
	}
}

func TestYAML(t *testing.T) {
	isolate(t)
	cfg, err := config.Load(viper.New(), "")
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.Contains(t, out, "storage: json")
	assert.Contains(t, out, "timeout_ms: 15000")
	assert.NotContains(t, out, "proxy")
}
