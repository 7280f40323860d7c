package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Issuance.ValidityDays)
	assert.Equal(t, 1, cfg.Issuance.Concurrency)
	assert.Equal(t, time.Hour, cfg.Scheduler.ExpiryInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "benefits.yaml")
	content := `
database:
  path: /tmp/vouchers.db
issuance:
  validity_days: 45
  issuer: rh-portal
notify:
  endpoint: https://mail.example.com/send
  timeout: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("BENEFITS_ISSUANCE_CONCURRENCY", "4")

	l := NewLoader()
	l.SetConfigFile(path)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vouchers.db", cfg.Database.Path)
	assert.Equal(t, 45, cfg.Issuance.ValidityDays)
	assert.Equal(t, "rh-portal", cfg.Issuance.Issuer)
	assert.Equal(t, 4, cfg.Issuance.Concurrency)
	assert.Equal(t, "https://mail.example.com/send", cfg.Notify.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Notify.Timeout)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	l := NewLoader()
	l.SetConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := l.Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Issuance.ValidityDays = 0
	cfg.Issuance.Concurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validity_days")
	assert.Contains(t, err.Error(), "concurrency")
}
