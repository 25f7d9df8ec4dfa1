package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 600*time.Second, cfg.IdempotencyTTL())
	assert.True(t, cfg.Idempotency.LocalCache)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9000"

[neo4j]
uri = "bolt://graph:7687"
user = "kin"

[idempotency]
backend = "sqlite"
ttl_seconds = 30
local_cache = false
`), 0o600))

	t.Setenv("NEO4J_PASSWORD", "s3cret")
	t.Setenv("PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, "kin", cfg.Neo4j.User)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
	assert.Equal(t, "neo4j", cfg.Neo4j.Database)
	assert.Equal(t, BackendSQLite, cfg.Idempotency.Backend)
	assert.Equal(t, 30*time.Second, cfg.IdempotencyTTL())
	assert.False(t, cfg.Idempotency.LocalCache)
}

func TestLoad_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\nport="), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Environment = "production"
	cfg.Auth.BcryptRounds = 2
	cfg.Idempotency.Backend = "redis"
	cfg.Idempotency.TTLSeconds = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
	assert.Contains(t, err.Error(), "bcrypt_rounds")
	assert.Contains(t, err.Error(), "redis")
	assert.Contains(t, err.Error(), "ttl_seconds")
}
