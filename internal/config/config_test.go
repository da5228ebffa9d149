package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.CheckpointInterval)
	assert.Empty(t, cfg.DBPath)
}

func TestLoadServer_FromEnv(t *testing.T) {
	t.Setenv("STARCORE_ADDR", "127.0.0.1:9000")
	t.Setenv("STARCORE_DB", "/tmp/starcore.db")
	t.Setenv("STARCORE_SCHEMAS", "./schemas")
	t.Setenv("STARCORE_CHECKPOINT_INTERVAL", "5s")
	t.Setenv("STARCORE_MODULES", "TestSystem,TestProtocol")

	cfg, err := LoadServer()
	require.NoError(t, err)
	assert.Equal(t, Server{
		Addr:               "127.0.0.1:9000",
		DBPath:             "/tmp/starcore.db",
		SchemasDir:         "./schemas",
		CheckpointInterval: 5 * time.Second,
		Modules:            []string{"TestSystem", "TestProtocol"},
	}, cfg)
}

func TestLoadServer_Invalid(t *testing.T) {
	t.Setenv("STARCORE_CHECKPOINT_INTERVAL", "soon")
	_, err := LoadServer()
	assert.Error(t, err)

	t.Setenv("STARCORE_CHECKPOINT_INTERVAL", "-1s")
	_, err = LoadServer()
	assert.Error(t, err)
}

func TestLoadClient(t *testing.T) {
	t.Setenv("STARCORE_CLIENT_TYPE", "mobile")
	t.Setenv("STARCORE_SCHEMAS", "schemas")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/hub", cfg.URL)
	assert.Equal(t, "mobile", cfg.ClientType)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, "schemas", cfg.SchemasDir)
}
