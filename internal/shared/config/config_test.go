package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
# freight-service configuration
database:
  host: db.internal
  port: 5433
  user: freight
  password: secret
  database: freightflow

rabbitmq:
  host: mq.internal
  port: 5672
  user: guest
  password: guest

http:
  port: 8080

vision:
  url: http://vision:9000/analyze
  timeout_seconds: 7

auth:
  jwt_secret: topsecret
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "5433", cfg.Database.Port)
	assert.Equal(t, "freightflow", cfg.Database.Database)
	assert.Equal(t, "mq.internal", cfg.RabbitMQ.Host)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "http://vision:9000/analyze", cfg.Vision.URL)
	assert.Equal(t, 7, cfg.Vision.TimeoutSeconds)
	assert.Equal(t, "topsecret", cfg.Auth.JWTSecret)
}

func TestLoadConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "override.internal")

	path := writeConfig(t, `
database:
  host: ${TEST_DB_HOST:-localhost}
  port: ${TEST_DB_PORT:-5432}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "override.internal", cfg.Database.Host, "set env var wins")
	assert.Equal(t, "5432", cfg.Database.Port, "unset env var falls back to default")
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, "http:\n  port: 3000\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Vision.TimeoutSeconds, "vision timeout defaults when omitted")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
