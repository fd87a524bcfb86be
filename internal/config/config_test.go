package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_KEY", "")
	t.Setenv("USER_STORE_DRIVER", "json")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, "user_database.json", cfg.UserDBPath)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_KEY", "key-123")
	t.Setenv("USER_STORE_DRIVER", "bolt")
	t.Setenv("SESSION_TIMEOUT", "5m")
	t.Setenv("HTTP_PORT", "9090")

	cfg, _, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.GeminiAPIKey)
	assert.Equal(t, "bolt", cfg.StoreDriver)
	assert.Equal(t, 5*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, "9090", cfg.HTTPPort)
}

func TestLoadConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("USER_STORE_DRIVER", "postgres")

	_, _, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USER_STORE_DRIVER")
}

func TestLoadConfig_RejectsBadTimeout(t *testing.T) {
	t.Setenv("USER_STORE_DRIVER", "json")
	t.Setenv("SESSION_TIMEOUT", "0s")

	_, _, err := LoadConfig()
	require.Error(t, err)
}
