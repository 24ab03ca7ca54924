package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"checker": {"scheme": "socks5"}}`))
	require.NoError(t, err)

	assert.Equal(t, "socks5", cfg.Checker.Scheme)
	assert.Equal(t, 10, cfg.Checker.Workers)
	assert.Equal(t, 10*time.Second, cfg.Checker.Timeout())
	assert.Equal(t, DefaultTestURL, cfg.Checker.TestURL)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, "logs", cfg.Files.ConvertOutput)
	assert.Equal(t, "/metrics", cfg.Metrics.Endpoint)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"checker": {"scheme": "http", "workers": 3, "timeout_ms": 2500, "test_url": "http://echo.test/ip"},
		"sources": {"lists": [{"url": "http://lists.test/a.txt", "enabled": true}]},
		"storage": {"type": "sqlite", "path": "/tmp/p.db"},
		"logging": {"level": "debug", "format": "json"}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Checker.Workers)
	assert.Equal(t, 2500*time.Millisecond, cfg.Checker.Timeout())
	assert.Equal(t, "http://echo.test/ip", cfg.Checker.TestURL)
	require.Len(t, cfg.Sources.Lists, 1)
	assert.True(t, cfg.Sources.Lists[0].Enabled)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad scheme":       `{"checker": {"scheme": "socks4"}}`,
		"too many workers": `{"checker": {"workers": 20000}}`,
		"short timeout":    `{"checker": {"timeout_ms": 5}}`,
		"unknown storage":  `{"storage": {"type": "s3"}}`,
		"unknown format":   `{"logging": {"format": "xml"}}`,
		"broken json":      `{"checker": `,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, DefaultWorkers, cfg.Checker.Workers)

	_, _, err = LoadOrDefault(writeConfig(t, `{"storage": {"type": "s3"}}`))
	assert.Error(t, err)
}

func TestRequireScheme(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.RequireScheme())

	cfg.Checker.Scheme = "https"
	assert.Error(t, cfg.RequireScheme())

	cfg.Checker.Scheme = "socks5"
	assert.NoError(t, cfg.RequireScheme())
}
