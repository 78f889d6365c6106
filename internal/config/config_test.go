package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "postgres://localhost/refill"
auth:
  jwt_secret: "secret"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "refill", cfg.NATS.SubjectPrefix)
	assert.Equal(t, ":8080", cfg.ListenAddr())
}

func TestLoadConfigRequiresDSN(t *testing.T) {
	path := writeConfig(t, `
auth:
  jwt_secret: "secret"
`)

	_, err := LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.dsn")
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "postgres://localhost/refill"
`)

	_, err := LoadConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://override/refill")
	t.Setenv("REFILL_JWT_SECRET", "env-secret")
	t.Setenv("SERVER_PORT", "9090")

	path := writeConfig(t, `
server:
  port: 8080
database:
  dsn: "postgres://localhost/refill"
auth:
  jwt_secret: "file-secret"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://override/refill", cfg.Database.DSN)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestReconciliationDurationDefaults(t *testing.T) {
	var r ReconciliationConfig
	assert.Equal(t, 30*time.Second, r.IntervalDuration())
	assert.Equal(t, 30*time.Minute, r.StaleAfterDuration())
	assert.Equal(t, 15*time.Second, r.CallTimeoutDuration())

	r = ReconciliationConfig{Interval: 10, StaleAfter: 600, CallTimeout: 5}
	assert.Equal(t, 10*time.Second, r.IntervalDuration())
	assert.Equal(t, 10*time.Minute, r.StaleAfterDuration())
	assert.Equal(t, 5*time.Second, r.CallTimeoutDuration())
}
