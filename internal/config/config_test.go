package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{"basic_config": {"backend_endpoint": "http://backend.local/api"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://backend.local/api", cfg.BasicConfig.BackendEndpoint)
	assert.Equal(t, ":8090", cfg.BasicConfig.ServerAddress)
	assert.Equal(t, "memory", cfg.BasicConfig.SessionStore)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)
	assert.Equal(t, 1000, cfg.Embedding.ChunkSize)

	sqliteCfg := cfg.Databases["sqlite3"]
	assert.True(t, filepath.IsAbs(sqliteCfg.DSN), "relative sqlite path should resolve next to the config file")
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `{"basic_config": {"backend_endpoint": "http://backend.local/api"}}`)
	t.Setenv("SOCIOFI_BASIC_CONFIG_SERVER_ADDRESS", ":9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.BasicConfig.ServerAddress)
}

func TestLoadRejectsUnknownSessionStore(t *testing.T) {
	path := writeConfig(t, `{"basic_config": {"session_store": "etcd"}}`)

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Assistant.Provider)
}
