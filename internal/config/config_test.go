package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "local", cfg.StorageBackend)
	assert.Equal(t, 24, cfg.TrendLookbackHours)
	assert.Equal(t, []string{"ai", "kubernetes", "golang"}, cfg.TrendTags)
	assert.Equal(t, 1.0, cfg.MediaDefaultBudgetUSD)
	assert.Equal(t, 587, cfg.SMTPPort)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEBUG", "true")
	t.Setenv("TREND_TAGS", "ai, llm ,,video")
	t.Setenv("TREND_LOOKBACK_HOURS", "6")
	t.Setenv("MEDIA_DEFAULT_BUDGET_USD", "2.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"ai", "llm", "video"}, cfg.TrendTags)
	assert.Equal(t, 6, cfg.TrendLookbackHours)
	assert.Equal(t, 2.5, cfg.MediaDefaultBudgetUSD)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "Unknown storage backend",
			env:  map[string]string{"STORAGE_BACKEND": "s3"},
		},
		{
			name: "Azure without account",
			env:  map[string]string{"STORAGE_BACKEND": "azure"},
		},
		{
			name: "Non-positive lookback",
			env:  map[string]string{"TREND_LOOKBACK_HOURS": "-3"},
		},
		{
			name: "Invalid cron spec",
			env:  map[string]string{"INGEST_SCHEDULE": "every tuesday"},
		},
		{
			name: "Email without SMTP",
			env:  map[string]string{"NOTIFICATION_EMAIL": "ops@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ScheduleOff(t *testing.T) {
	t.Setenv("INGEST_SCHEDULE", "off")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.IngestSchedule)

	t.Setenv("INGEST_SCHEDULE", "@every 1h")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "@every 1h", cfg.IngestSchedule)
}
