package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML_MissingFileUsesDefaults(t *testing.T) {
	cfg := loadFromYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Presence.TTL)
	assert.Equal(t, "home-assistant", cfg.Chat.WebhookDefaultRoom)
}

func TestLoadFromYAML_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: \"9090\"\npresence:\n  ttl: 45s\n"), 0o644))

	cfg := loadFromYAML(path)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Presence.TTL)
	assert.Equal(t, "@every 30s", cfg.Presence.SweepSpec)
	assert.Equal(t, 256, cfg.Chat.BusBuffer)
}

func TestOverrideWithEnvVars(t *testing.T) {
	t.Setenv("SERVER_PORT", "7000")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("PRESENCE_TTL", "10s")
	t.Setenv("WEBHOOK_DEFAULT_ROOM", "alerts")

	cfg := getDefaultConfig()
	overrideWithEnvVars(cfg)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Second, cfg.Presence.TTL)
	assert.Equal(t, "alerts", cfg.Chat.WebhookDefaultRoom)
}
