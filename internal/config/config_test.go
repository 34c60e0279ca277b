package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_USER", "svc@example.com")
	t.Setenv("JIRA_API_KEY", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, "classic", cfg.Flavor)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "jira.issue-batches", cfg.AMQPQueue)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.RedisURL)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("JIRA_URL", "https://example.atlassian.net")
	t.Setenv("JIRA_USER", "svc@example.com")
	t.Setenv("JIRA_API_KEY", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JIRA_API_KEY")
}

func TestLoadRejectsUnknownFlavor(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JIRA_API_FLAVOR", "experimental")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flavor")
}

func TestLoadReadsYAML(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jira:
  project_key: DT
  page_size: 50
  timeout: 10s
  flavor: versioned
  estimate_field: customfield_99999
storage:
  driver: sqlite
  dsn: file:snapshots.db
amqp:
  queue: jira.batches.test
logger:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DT", cfg.ProjectKey)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "versioned", cfg.Flavor)
	assert.Equal(t, "customfield_99999", cfg.EstimateField)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:snapshots.db", cfg.DatabaseDSN)
	assert.Equal(t, "jira.batches.test", cfg.AMQPQueue)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JIRA_PROJECT_KEY", "OPS")
	t.Setenv("JIRA_PAGE_SIZE", "25")
	t.Setenv("JIRA_TIMEOUT", "5s")
	t.Setenv("LOG_LEVEL", "warn")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
jira:
  project_key: DT
  page_size: 50
logger:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "OPS", cfg.ProjectKey)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadIgnoresMissingFile(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PageSize)
}

func TestLoadBadYAML(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jira: [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
