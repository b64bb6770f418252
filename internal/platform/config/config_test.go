package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("AIP_SESSION_PATH", filepath.Join(t.TempDir(), "session.json"))

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 3, cfg.API.MaxAttempts)
	assert.Equal(t, time.Second, cfg.API.RetryBaseDelay)
	assert.Equal(t, int64(10<<20), cfg.API.MaxUploadBytes)
	assert.Equal(t, BackendFile, cfg.Session.Backend)
	assert.True(t, cfg.Errors.ShowMessage)
	assert.True(t, cfg.Errors.LogToConsole)
	assert.False(t, cfg.Errors.ShowNotification)
	assert.False(t, cfg.Errors.ReportToServer)
	assert.Equal(t, SinkNone, cfg.Report.Sink)
	assert.Equal(t, 1.0, cfg.Report.LowSampleRate)
	assert.Equal(t, 50, cfg.Points.LowBalanceThreshold)
	assert.False(t, cfg.Log.Metrics)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("AIP_API_BASE_URL", "https://api.example.com/api")
	t.Setenv("AIP_API_RETRY_ATTEMPTS", "5")
	t.Setenv("AIP_SESSION_BACKEND", BackendRedis)
	t.Setenv("AIP_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AIP_REPORT_SINK", SinkKafka)
	t.Setenv("AIP_REPORT_KAFKA_BROKERS", "k1:9092;k2:9092")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5, cfg.API.MaxAttempts)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Report.KafkaBrokers)
	assert.NotEmpty(t, cfg.Session.Path)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		t.Setenv("AIP_SESSION_PATH", filepath.Join(t.TempDir(), "session.json"))
		cfg, err := FromEnv()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }},
		{"zero attempts", func(c *Config) { c.API.MaxAttempts = 0 }},
		{"negative delay", func(c *Config) { c.API.RetryBaseDelay = -time.Second }},
		{"unknown backend", func(c *Config) { c.Session.Backend = "etcd" }},
		{"redis without url", func(c *Config) { c.Session.Backend = BackendRedis }},
		{"postgres without dsn", func(c *Config) { c.Session.Backend = BackendPostgres }},
		{"http sink without url", func(c *Config) { c.Report.Sink = SinkHTTP }},
		{"kafka sink without brokers", func(c *Config) { c.Report.Sink = SinkKafka }},
		{"unknown sink", func(c *Config) { c.Report.Sink = "syslog" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_ReadsDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("AIP_LOG_LEVEL=debug\nAIP_SESSION_BACKEND=memory\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("AIP_LOG_LEVEL")
		os.Unsetenv("AIP_SESSION_BACKEND")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
}

func TestLoad_MissingFileIsIgnored(t *testing.T) {
	t.Setenv("AIP_SESSION_PATH", filepath.Join(t.TempDir(), "session.json"))
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
