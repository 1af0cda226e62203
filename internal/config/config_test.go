package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "nabd.db", cfg.DBPath)
	assert.Equal(t, "gpt-4o", cfg.OpenAIModel)
	assert.Equal(t, 100, cfg.APILimitMax)
	assert.Equal(t, time.Minute, cfg.APILimitWindow)
	assert.Equal(t, 5, cfg.AuthLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.AuthLimitWindow)
	assert.Equal(t, 20, cfg.ChatLimitMax)
	assert.Equal(t, 10, cfg.UploadLimitMax)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("AUTH_MODE", "none")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CHAT_LIMIT_MAX", "3")
	t.Setenv("CHAT_LIMIT_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.Equal(t, 3, cfg.ChatLimitMax)
	assert.Equal(t, 30*time.Second, cfg.ChatLimitWindow)
}

func TestLoad_JWTRequiresSecret(t *testing.T) {
	t.Setenv("AUTH_MODE", "jwt")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_UnknownAuthMode(t *testing.T) {
	t.Setenv("AUTH_MODE", "mtls")

	_, err := Load()
	require.Error(t, err)
}

func TestOpenAIEnabled(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.OpenAIEnabled())
	cfg.OpenAIAPIKey = "sk-test"
	assert.True(t, cfg.OpenAIEnabled())
}
