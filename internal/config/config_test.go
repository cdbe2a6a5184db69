package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, BackendFile, cfg.StorageBackend)
	require.Equal(t, 5*time.Second, cfg.StorageTimeout)
	require.Equal(t, []string{"learning_events"}, cfg.ConsumerTopics)
	require.Equal(t, 30, cfg.TrendDays)
	require.True(t, cfg.SeedSampleData)
	require.False(t, cfg.EventsEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("EVENTS_TOPIC", "events")
	t.Setenv("SEED_SAMPLE_DATA", "false")
	t.Setenv("STORAGE_TIMEOUT", "250ms")
	t.Setenv("TREND_DAYS", "not-a-number")
	t.Setenv("TIMEZONE", "UTC")

	cfg := Load()
	require.Equal(t, BackendPostgres, cfg.StorageBackend)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, []string{"events"}, cfg.ConsumerTopics)
	require.False(t, cfg.SeedSampleData)
	require.Equal(t, 250*time.Millisecond, cfg.StorageTimeout)
	require.Equal(t, 30, cfg.TrendDays)
	require.True(t, cfg.EventsEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoadReadsDotEnvWithoutOverriding(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDRESS=:9999\nSTUDENT_EMAIL_DOMAIN=uni.test\n"), 0o600))
	t.Setenv("ENV_FILE", path)
	t.Setenv("HTTP_ADDRESS", ":7000")
	t.Setenv("STUDENT_EMAIL_DOMAIN", "")
	os.Unsetenv("STUDENT_EMAIL_DOMAIN")

	cfg := Load()
	require.Equal(t, ":7000", cfg.HTTPAddress)
	require.Equal(t, "uni.test", cfg.StudentEmailDomain)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := Load()

	bad := cfg
	bad.StorageBackend = "s3"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Timezone = "Mars/Olympus"
	require.Error(t, bad.Validate())

	bad = cfg
	bad.StorageFile = ""
	require.Error(t, bad.Validate())
}
