package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envViper())
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultDBPath(), cfg.DBPath)
	assert.Equal(t, "deliveries.csv", cfg.FeedPath)
	assert.False(t, cfg.Debug)
	assert.False(t, cfg.LogJSON)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CRICKRECON_DB_PATH", "/tmp/ipl.db")
	t.Setenv("CRICKRECON_BATCH_SIZE", "250")
	t.Setenv("CRICKRECON_DEBUG", "true")
	t.Setenv("CRICKRECON_LOG_JSON", "1")

	cfg, err := load(envViper())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/ipl.db", cfg.DBPath)
	assert.Equal(t, 250, cfg.BatchSize)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.LogJSON)
}

func TestLoad_RejectsBadBatchSize(t *testing.T) {
	t.Setenv("CRICKRECON_BATCH_SIZE", "0")
	_, err := load(envViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}
