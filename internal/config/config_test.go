package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("TRENDING_INTERVAL", "")
	t.Setenv("AI_PROVIDER", "")
	t.Setenv("HOME_GENRES", "")
	t.Setenv("CREDITS_USER_DAILY", "")
	t.Setenv("CREDITS_DEVICE_DAILY", "")

	cfg := Load()
	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "5005", cfg.Port)
	require.Equal(t, time.Hour, cfg.TrendingInterval)
	require.Equal(t, 30*time.Minute, cfg.ConnectionMaxAge)
	require.Equal(t, "openrouter", cfg.AI.Provider)
	require.Equal(t, 20, cfg.GenerationRatePerMin)
	require.Equal(t, []string{"acao", "romance", "terror", "comedia", "drama"}, cfg.HomeGenres)
	require.Equal(t, 20, cfg.Credits.UserDailyLimit)
	require.Equal(t, 10, cfg.Credits.DeviceDailyLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRENDING_INTERVAL", "15m")
	t.Setenv("CONNECTION_MAX_AGE", "not-a-duration")
	t.Setenv("AI_PROVIDER", "Ollama")
	t.Setenv("GENERATION_RATE_PER_MIN", "5")
	t.Setenv("DB_NAME", "curtas_test")
	t.Setenv("HOME_GENRES", " suspense, ,drama ")
	t.Setenv("CREDITS_DEVICE_DAILY", "3")

	cfg := Load()
	require.Equal(t, 15*time.Minute, cfg.TrendingInterval)
	require.Equal(t, 30*time.Minute, cfg.ConnectionMaxAge)
	require.Equal(t, "ollama", cfg.AI.Provider)
	require.Equal(t, 5, cfg.GenerationRatePerMin)
	require.Contains(t, cfg.DatabaseURL, "/curtas_test?")
	require.Equal(t, []string{"suspense", "drama"}, cfg.HomeGenres)
	require.Equal(t, 3, cfg.Credits.DeviceDailyLimit)
}
