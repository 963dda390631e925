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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
database:
  postgres:
    host: localhost
    database: weekly_intake
    user: intake
`

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_API_KEY", "")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "weekly-intake", cfg.App.Name)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "application-photos", cfg.Storage.Bucket)
	assert.Equal(t, int64(5*1024*1024), cfg.Intake.MaxPhotoBytes)
	assert.Equal(t, []string{"image/jpeg", "image/jpg", "image/png", "image/gif"}, cfg.Intake.PhotoTypes)
	assert.Equal(t, 10, cfg.Admin.RecentLimit)
	assert.False(t, cfg.Database.Redis.Enabled())
	assert.False(t, cfg.Database.Elasticsearch.Enabled())
}

func TestLoadFromFile_EmbeddedBackendDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_API_KEY", "")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Backend.UsingEmbeddedDefaults)
	assert.Equal(t, DefaultBackendURL, cfg.Backend.URL)
	assert.Equal(t, DefaultBackendAPIKey, cfg.Backend.APIKey)
}

func TestLoadFromFile_BackendFromEnv(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://backend.example.com/")
	t.Setenv("BACKEND_API_KEY", "anon-key")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.False(t, cfg.Backend.UsingEmbeddedDefaults)
	assert.Equal(t, "https://backend.example.com", cfg.Backend.URL)
	assert.Equal(t, "anon-key", cfg.Backend.APIKey)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_API_KEY", "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing postgres host",
			body: "database:\n  postgres:\n    database: x\n    user: y\n",
			want: "database.postgres.host is required",
		},
		{
			name: "bad timezone",
			body: minimalConfig + "intake:\n  timezone: Mars/Olympus\n",
			want: "intake.timezone",
		},
		{
			name: "worker without broker",
			body: minimalConfig + "workers:\n  submit-weekly-application:\n    enabled: true\n",
			want: "camunda.broker_address is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestWorkerDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	t.Setenv("BACKEND_API_KEY", "")

	body := minimalConfig + `
camunda:
  broker_address: localhost:26500
workers:
  create-weekly-questions:
    enabled: true
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	assert.True(t, IsWorkerEnabled(cfg, "create-weekly-questions"))
	wcfg := GetWorkerConfig(cfg, "create-weekly-questions")
	assert.Equal(t, 5, wcfg.MaxJobsActive)
	assert.Equal(t, 30000, wcfg.Timeout)

	assert.False(t, IsWorkerEnabled(cfg, "submit-weekly-application"))
	assert.Equal(t, 30*time.Second, GetDuration(GetWorkerConfig(cfg, "submit-weekly-application").Timeout))
}

func TestIntakeConfig_Location(t *testing.T) {
	assert.Equal(t, time.Local, IntakeConfig{}.Location())
	assert.Equal(t, time.Local, IntakeConfig{Timezone: "Local"}.Location())
	assert.Equal(t, "UTC", IntakeConfig{Timezone: "UTC"}.Location().String())
}
