package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tholdem/uniqn-sync/pkg/query"
	"github.com/tholdem/uniqn-sync/pkg/records"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uniqn.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"APP_ENV", "PORT", "CORS_HOSTS", "FIREBASE_PROJECT_ID",
		"FIREBASE_CREDENTIALS_JSON", "RESEND_KEY", "ALERT_FROM", "ALERT_EMAIL"} {
		t.Setenv(key, "")
	}
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, 15*time.Minute, cfg.Cache.TTLByCollection["workLogs"])
	assert.Equal(t, time.Minute, cfg.Cache.TTLByCollection["attendanceRecords"])
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)
	assert.Equal(t, 10, cfg.Monitor.MinRequests)

	qc, err := cfg.QueryConfig()
	require.NoError(t, err)
	assert.Equal(t, query.DefaultConfig(), qc)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
cache:
  ttlByCollection:
    workLogs: 30s
  cleanupInterval: 2m
queries:
  rowCapByRoleAndCollection:
    staff:
      workLogs: 10
  windowByRoleAndCollection:
    staff:
      workLogs:
        days: 14
monitor:
  minHitRate: 50
  alertEmail: ops@example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Cache.TTLByCollection["workLogs"])
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTLByCollection["tournaments"], "untouched keys keep their default")
	assert.Equal(t, 2*time.Minute, cfg.Cache.CleanupInterval)
	assert.Equal(t, 50.0, cfg.Monitor.MinHitRate)
	assert.Equal(t, "ops@example.com", cfg.Monitor.AlertEmail)

	qc, err := cfg.QueryConfig()
	require.NoError(t, err)
	assert.Equal(t, map[records.Collection]int{records.CollectionWorkLogs: 10}, qc.RowCaps[records.RoleStaff],
		"a role's table is replaced as a whole")
	assert.Equal(t, 200, qc.RowCaps[records.RoleManager][records.CollectionWorkLogs])
	assert.Equal(t, query.Window{Days: 14}, qc.Windows[records.RoleStaff][records.CollectionWorkLogs])
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_HOSTS", "https://a.example.com, https://b.example.com,")
	t.Setenv("FIREBASE_PROJECT_ID", "uniqn")
	t.Setenv("ALERT_EMAIL", "alerts@example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSHosts)
	assert.Equal(t, "uniqn", cfg.Server.ProjectID)
	assert.Equal(t, "alerts@example.com", cfg.Monitor.AlertEmail)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown collection ttl": "cache:\n  ttlByCollection:\n    payroll: 1m\n",
		"negative ttl":           "cache:\n  ttlByCollection:\n    workLogs: -1m\n",
		"unknown role":           "queries:\n  rowCapByRoleAndCollection:\n    owner:\n      workLogs: 1\n",
		"alias role key":         "queries:\n  rowCapByRoleAndCollection:\n    employer:\n      workLogs: 1\n",
		"negative cap":           "queries:\n  rowCapByRoleAndCollection:\n    staff:\n      workLogs: -1\n",
		"window without date":    "queries:\n  windowByRoleAndCollection:\n    admin:\n      jobPostings:\n        days: 3\n",
		"hit rate out of range":  "monitor:\n  minHitRate: 120\n",
		"bad alert email":        "monitor:\n  alertEmail: nope\n",
		"bad duration":           "cache:\n  cleanupInterval: soon\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTTLs_ReturnsCopy(t *testing.T) {
	cfg := Default()
	ttls := cfg.TTLs()
	ttls["workLogs"] = time.Second
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTLByCollection["workLogs"])
}
