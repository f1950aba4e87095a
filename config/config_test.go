package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, SinkLog, cfg.Notify.Sink)
	assert.Equal(t, 5, cfg.Swap.SideEffectAttempts)
	assert.Equal(t, 2*time.Second, cfg.Swap.SideEffectBudget)
	assert.Less(t, cfg.Swap.SideEffectBudget, cfg.Server.RequestTimeout)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greenswap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  env: production
db:
  path: /var/lib/greenswap/data.db
swap:
  side_effect_backoff: 250ms
  reconcile_interval: 1m
notify:
  sink: kafka
kafka:
  brokers: [kafka-1:9092]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port, "env overrides file")
	assert.Equal(t, "production", cfg.Server.Env)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "/var/lib/greenswap/data.db", cfg.DB.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Swap.SideEffectBackoff)
	assert.Equal(t, time.Minute, cfg.Swap.ReconcileInterval)
	assert.Equal(t, 5, cfg.Swap.SideEffectAttempts, "unset file keys keep defaults")
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown sink":        {"NOTIFY_SINK": "pigeon"},
		"firestore no proj":   {"NOTIFY_SINK": "firestore"},
		"zero attempts":       {"SWAP_SIDE_EFFECT_ATTEMPTS": "0"},
		"budget past timeout": {"SWAP_SIDE_EFFECT_BUDGET": "30s"},
		"zero budget":         {"SWAP_SIDE_EFFECT_BUDGET": "0s"},
		"non-positive jwt tt": {"JWT_TOKEN_TTL": "-1h"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GS_INT", "nope")
	t.Setenv("GS_BOOL", "true")
	t.Setenv("GS_DUR", "3s")

	assert.Equal(t, 7, getEnvInt("GS_INT", 7))
	assert.True(t, getEnvBool("GS_BOOL", false))
	assert.Equal(t, 3*time.Second, getEnvDuration("GS_DUR", time.Second))
	assert.Equal(t, "fallback", getEnv("GS_UNSET", "fallback"))
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "warn"
	log, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.InfoLevel))
	assert.True(t, log.Core().Enabled(zap.WarnLevel))

	cfg.Server.Env = "production"
	cfg.Log.Level = "debug"
	log, err = cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	cfg.Log.Level = "loud"
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
