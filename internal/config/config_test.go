package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
)

func resetViper(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CHATBUDDY_DATA_DIR", "CHATBUDDY_LISTEN_ADDR",
		"CHATBUDDY_THREAT_PATTERNS", "CHATBUDDY_ROUTING_KEYWORDS",
		"CHATBUDDY_OPENAI_BASE_URL", "CHATBUDDY_OPENAI_MODEL",
		"CHATBUDDY_HANDLER_TIMEOUT_S", "CHATBUDDY_MAX_MESSAGE_LEN",
		"CHATBUDDY_MAX_ATTEMPTS", "CHATBUDDY_IDLE_EVICTION_H",
		"CHATBUDDY_SWEEP_SCHEDULE", "CHATBUDDY_AUDIT_QUEUE_SIZE",
		"CHATBUDDY_RATE_LIMIT_RPS", "CHATBUDDY_RATE_LIMIT_BURST",
		"CHATBUDDY_CONSENT_MODE",
	} {
		t.Setenv(key, "")
	}
	viper.Reset()
	viper.SetEnvPrefix("CHATBUDDY")
	viper.AutomaticEnv()
	viper.SetDefault(KeyListenAddr, DefaultListenAddr)
	viper.SetDefault(KeyConsentMode, ConsentModeEnforce)
	viper.SetDefault(KeyOpenAIModel, DefaultOpenAIModel)
	viper.SetDefault(KeyHandlerTimeoutS, 30)
	viper.SetDefault(KeyMaxMessageLen, guard.DefaultMaxLen)
	viper.SetDefault(KeyMaxAttempts, DefaultMaxAttempts)
	viper.SetDefault(KeyIdleEvictionH, 24)
	viper.SetDefault(KeySweepSchedule, cache.DefaultSweepSchedule)
	viper.SetDefault(KeyAuditQueueSize, 1024)
	viper.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	viper.SetDefault(KeyRateLimitBurst, DefaultRateLimitBurst)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, ConsentModeEnforce, cfg.ConsentMode)
	assert.Equal(t, DefaultOpenAIModel, cfg.OpenAIModel)
	assert.Empty(t, cfg.OpenAIBaseURL, "no backend configured by default")
	assert.Equal(t, 30*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, guard.DefaultMaxLen, cfg.MaxMessageLen)
	assert.Equal(t, DefaultMaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, 24*time.Hour, cfg.IdleEviction)
	assert.Equal(t, cache.DefaultSweepSchedule, cfg.SweepSchedule)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_DATA_DIR", "/var/lib/chatbuddy")
	t.Setenv("CHATBUDDY_OPENAI_BASE_URL", "http://localhost:11434")
	t.Setenv("CHATBUDDY_HANDLER_TIMEOUT_S", "5")
	t.Setenv("CHATBUDDY_MAX_ATTEMPTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/chatbuddy", cfg.DataDir)
	assert.Equal(t, "http://localhost:11434", cfg.OpenAIBaseURL)
	assert.Equal(t, 5*time.Second, cfg.HandlerTimeout)
	assert.Equal(t, 2, cfg.MaxAttempts)
	assert.Equal(t, filepath.Join("/var/lib/chatbuddy", "audit.db"), cfg.AuditDBPath())
}

func TestLoad_InvalidConsentMode(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_CONSENT_MODE", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "consent_mode")
}

func TestLoad_MessageLenAboveHardCap(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_MAX_MESSAGE_LEN", "99999")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_message_len")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_HANDLER_TIMEOUT_S", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler_timeout_s")
}

func TestLoad_BurstBelowRate(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_RATE_LIMIT_RPS", "50")
	t.Setenv("CHATBUDDY_RATE_LIMIT_BURST", "10")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_limit_burst")
}

func TestLoad_MissingOverrideFile(t *testing.T) {
	resetViper(t)
	t.Setenv("CHATBUDDY_THREAT_PATTERNS", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threat_patterns")
}

func TestLoad_PresentOverrideFile(t *testing.T) {
	resetViper(t)
	path := filepath.Join(t.TempDir(), "routing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables: []\n"), 0o600))
	t.Setenv("CHATBUDDY_ROUTING_KEYWORDS", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, path, cfg.RoutingKeywords)
}
