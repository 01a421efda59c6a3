package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.apify.com/v2", cfg.Apify.BaseURL)
	assert.Equal(t, 1.0, cfg.Apify.SubmitRateLimit)
	assert.Equal(t, 3, cfg.Pipeline.PollIntervalSecs)
	assert.Equal(t, 250, cfg.Pipeline.FetchPageSize)
	assert.Equal(t, 100, cfg.Pipeline.DefaultMaxResults)
	assert.Equal(t, 0.5, cfg.Pipeline.RelevanceMaxDrop)
	assert.False(t, cfg.Pipeline.IncludeContactless)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LEADGEN_APIFY_TOKEN", "secret-token")
	t.Setenv("LEADGEN_STORE_DRIVER", "postgres")
	t.Setenv("LEADGEN_PIPELINE_POLL_INTERVAL_SECS", "5")
	t.Setenv("LEADGEN_PIPELINE_INCLUDE_CONTACTLESS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret-token", cfg.Apify.Token)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 5, cfg.Pipeline.PollIntervalSecs)
	assert.True(t, cfg.Pipeline.IncludeContactless)
}

func TestPipelineConfig_Durations(t *testing.T) {
	cfg := PipelineConfig{
		PollIntervalSecs:      2,
		SearchTimeoutSecs:     60,
		ExtractionTimeoutSecs: 120,
	}
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, time.Minute, cfg.SearchTimeout())
	assert.Equal(t, 2*time.Minute, cfg.ExtractionTimeout())
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.Error(t, InitLogger(LogConfig{Level: "not-a-level"}))
}
