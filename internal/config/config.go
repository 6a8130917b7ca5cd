// Package config holds operator-level configuration for a ChatBuddy
// installation: data directory, pattern override paths, handler backend,
// HTTP limits. Set via env vars (CHATBUDDY_*) or a config file
// (chatbuddy.config.yaml).
//
// End-user state (consent grants, audit trail) lives in the data
// directory's SQLite stores, never in this config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/audit"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/cache"
	"github.com/brandaholic91/ChatBuddy-MVP-sub000/internal/guard"
)

// Viper keys. Each maps to an env var with the CHATBUDDY_ prefix
// (e.g. "openai_model" → CHATBUDDY_OPENAI_MODEL) and to a YAML field
// in chatbuddy.config.yaml.
const (
	KeyDataDir         = "data_dir"
	KeyListenAddr      = "listen_addr"
	KeyThreatPatterns  = "threat_patterns"
	KeyRoutingKeywords = "routing_keywords"
	KeyConsentMode     = "consent_mode"
	KeyOpenAIBaseURL   = "openai_base_url"
	KeyOpenAIModel     = "openai_model"
	KeyHandlerTimeoutS = "handler_timeout_s"
	KeyMaxMessageLen   = "max_message_len"
	KeyMaxAttempts     = "max_attempts"
	KeyIdleEvictionH   = "idle_eviction_h"
	KeySweepSchedule   = "sweep_schedule"
	KeyAuditQueueSize  = "audit_queue_size"
	KeyRateLimitRPS    = "rate_limit_rps"
	KeyRateLimitBurst  = "rate_limit_burst"
)

// Consent modes. "enforce" checks the persistent grant store; "allow-all"
// grants every purpose and exists for demos and local exploration.
const (
	ConsentModeEnforce  = "enforce"
	ConsentModeAllowAll = "allow-all"
)

const (
	DefaultListenAddr     = ":8080"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultMaxAttempts    = 1
	DefaultRateLimitRPS   = 10
	DefaultRateLimitBurst = 20
)

// Config holds resolved operator-level configuration for one process.
type Config struct {
	DataDir         string        // Base directory for all state (~/.chatbuddy)
	ListenAddr      string        // HTTP listen address
	ThreatPatterns  string        // Optional threat rule override file (YAML)
	RoutingKeywords string        // Optional routing keyword override file (YAML)
	ConsentMode     string        // "enforce" or "allow-all"
	OpenAIBaseURL   string        // OpenAI-compatible endpoint; empty selects static handlers
	OpenAIModel     string        // Chat model name
	HandlerTimeout  time.Duration // Per-execution bound
	MaxMessageLen   int           // Sanitize length bound in runes
	MaxAttempts     int           // Handler execution attempts per turn
	IdleEviction    time.Duration // Cache idle threshold
	SweepSchedule   string        // Cron expression for the cache sweeper
	AuditQueueSize  int           // Recorder queue depth
	RateLimitRPS    int           // Steady per-client request rate
	RateLimitBurst  int           // Per-client burst allowance
}

// AuditDBPath returns the full path to the audit SQLite database.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// ConsentDBPath returns the full path to the consent SQLite database.
func (c *Config) ConsentDBPath() string {
	return filepath.Join(c.DataDir, "consent.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func init() {
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
	viper.SetDefault(KeyAuditQueueSize, audit.DefaultQueueSize)
	viper.SetDefault(KeyRateLimitRPS, DefaultRateLimitRPS)
	viper.SetDefault(KeyRateLimitBurst, DefaultRateLimitBurst)
}

// Load reads configuration from Viper (which merges env vars, config
// file, and defaults) and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:         resolveDataDir(),
		ListenAddr:      viper.GetString(KeyListenAddr),
		ThreatPatterns:  viper.GetString(KeyThreatPatterns),
		RoutingKeywords: viper.GetString(KeyRoutingKeywords),
		ConsentMode:     viper.GetString(KeyConsentMode),
		OpenAIBaseURL:   viper.GetString(KeyOpenAIBaseURL),
		OpenAIModel:     viper.GetString(KeyOpenAIModel),
		HandlerTimeout:  time.Duration(viper.GetInt(KeyHandlerTimeoutS)) * time.Second,
		MaxMessageLen:   viper.GetInt(KeyMaxMessageLen),
		MaxAttempts:     viper.GetInt(KeyMaxAttempts),
		IdleEviction:    time.Duration(viper.GetInt(KeyIdleEvictionH)) * time.Hour,
		SweepSchedule:   viper.GetString(KeySweepSchedule),
		AuditQueueSize:  viper.GetInt(KeyAuditQueueSize),
		RateLimitRPS:    viper.GetInt(KeyRateLimitRPS),
		RateLimitBurst:  viper.GetInt(KeyRateLimitBurst),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func resolveDataDir() string {
	if dir := viper.GetString(KeyDataDir); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chatbuddy"
	}
	return filepath.Join(home, ".chatbuddy")
}

func (c *Config) validate() error {
	if c.ConsentMode != ConsentModeEnforce && c.ConsentMode != ConsentModeAllowAll {
		return fmt.Errorf("consent_mode must be %q or %q", ConsentModeEnforce, ConsentModeAllowAll)
	}
	if c.HandlerTimeout <= 0 {
		return fmt.Errorf("handler_timeout_s must be positive")
	}
	if c.MaxMessageLen <= 0 || c.MaxMessageLen > guard.HardMaxLen {
		return fmt.Errorf("max_message_len must be in 1..%d", guard.HardMaxLen)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max_attempts must be positive")
	}
	if c.IdleEviction <= 0 {
		return fmt.Errorf("idle_eviction_h must be positive")
	}
	if c.AuditQueueSize <= 0 {
		return fmt.Errorf("audit_queue_size must be positive")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst < c.RateLimitRPS {
		return fmt.Errorf("rate_limit_burst must be at least rate_limit_rps, both positive")
	}
	if p := c.ThreatPatterns; p != "" {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("threat_patterns: %w", err)
		}
	}
	if p := c.RoutingKeywords; p != "" {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("routing_keywords: %w", err)
		}
	}
	return nil
}
