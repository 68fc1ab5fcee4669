package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 12*time.Hour, cfg.Kiosk.SessionTTL)
	assert.Equal(t, 30, cfg.Redis.LookupRatePerMinute)
	assert.Equal(t, "signatures", cfg.Blob.SignaturesBucket)
	assert.Equal(t, int32(10), cfg.Storage.MaxConns)
	assert.True(t, cfg.IsDev())
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres needs url", map[string]string{"STORAGE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"unknown backend", map[string]string{"STORAGE_BACKEND": "mysql"}, "STORAGE_BACKEND"},
		{"short key", map[string]string{"STORAGE_BACKEND": "memory", "ENCRYPTION_KEY": "abcd"}, "64-character"},
		{"bot without chat", map[string]string{"STORAGE_BACKEND": "memory", "TELEGRAM_BOT_TOKEN": "x"}, "TELEGRAM_CREW_CHAT_ID"},
		{"bad ttl", map[string]string{"STORAGE_BACKEND": "memory", "KIOSK_SESSION_TTL": "-1h"}, "KIOSK_SESSION_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/nda")
	t.Setenv("KIOSK_SESSION_TTL", "30m")
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CREW_CHAT_ID", "-100123")

	cfg, err := load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.Kiosk.SessionTTL)
	assert.Equal(t, int64(-100123), cfg.Telegram.CrewChatID)
}

func TestLoadDevice(t *testing.T) {
	t.Setenv("KIOSK_API_URL", "")
	_, err := LoadDevice(viper.New())
	require.Error(t, err)

	v := viper.New()
	v.Set("kiosk.api_url", "http://localhost:8080")
	cfg, err := LoadDevice(v)
	require.NoError(t, err)
	assert.Equal(t, "kiosk-queue.db", cfg.DBPath)
}
