// Package config handles loading, validation and live updates of the
// checker's settings. File and environment configuration is read through
// Viper; at runtime every component reads an immutable Settings snapshot
// obtained from a Store, never a shared mutable global.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/logger"
)

// Scan mode values. Background mode fetches ads.txt files from the page's
// origin directly; content mode first resolves the canonical host from the
// page markup.
const (
	ScanModeBackground = "background"
	ScanModeContent    = "content"
)

// Scan timing values.
const (
	ScanTimingImmediate = "immediate"
	ScanTimingDelayed   = "delayed"
)

// DefaultRegistryURL points at the IAB Tech Lab aggregate sellers list.
const DefaultRegistryURL = "https://sellers.json.iabtechlab.com/sellers.json"

// Settings is the full configuration of the checker. The json tags describe
// the record persisted to the external key-value store; mapstructure tags
// mirror the YAML file read by Viper.
type Settings struct {
	RegistryURL      string `mapstructure:"registry_url" json:"registryUrl"`
	CacheTTLMinutes  int    `mapstructure:"cache_ttl_minutes" json:"cacheTtlMinutes"`
	BadgeEnabled     bool   `mapstructure:"badge_enabled" json:"badgeEnabled"`
	ScanMode         string `mapstructure:"scan_mode" json:"scanMode"`
	ScanTiming       string `mapstructure:"scan_timing" json:"scanTiming"`
	ScanDelaySeconds int    `mapstructure:"scan_delay_seconds" json:"scanDelay"`

	CooldownSeconds     int `mapstructure:"cooldown_seconds" json:"-"`
	FetchTimeoutSeconds int `mapstructure:"fetch_timeout_seconds" json:"-"`
	FetchRetries        int `mapstructure:"fetch_retries" json:"-"`

	Redis RedisConfig   `mapstructure:"redis" json:"-"`
	Log   logger.Config `mapstructure:"log" json:"-"`
}

// RedisConfig holds the configuration for the Redis-backed key-value store.
type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// CacheTTL returns the registry cache time-to-live as a duration.
func (s Settings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// ScanDelay returns the delay applied before a scheduled scan fires. It is
// zero when scan timing is immediate.
func (s Settings) ScanDelay() time.Duration {
	if s.ScanTiming != ScanTimingDelayed {
		return 0
	}
	return time.Duration(s.ScanDelaySeconds) * time.Second
}

// Cooldown returns the minimum time between two executed scans of the same
// session.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownSeconds) * time.Second
}

// FetchTimeout returns the hard per-attempt network timeout.
func (s Settings) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSeconds) * time.Second
}

// Default returns the settings used when no file, environment or persisted
// record overrides them.
func Default() Settings {
	return Settings{
		RegistryURL:         DefaultRegistryURL,
		CacheTTLMinutes:     60 * 24,
		BadgeEnabled:        true,
		ScanMode:            ScanModeBackground,
		ScanTiming:          ScanTimingImmediate,
		ScanDelaySeconds:    0,
		CooldownSeconds:     60,
		FetchTimeoutSeconds: 8,
		FetchRetries:        1,
		Log:                 logger.Config{Level: "info"},
	}
}

// Normalize clamps out-of-range values and replaces unknown enum values with
// their defaults, so every snapshot handed to the rest of the system is
// well-formed.
func (s Settings) Normalize() Settings {
	if s.RegistryURL == "" {
		s.RegistryURL = DefaultRegistryURL
	}
	if s.CacheTTLMinutes < 1 {
		s.CacheTTLMinutes = 1
	}
	if s.ScanMode != ScanModeBackground && s.ScanMode != ScanModeContent {
		s.ScanMode = ScanModeBackground
	}
	if s.ScanTiming != ScanTimingImmediate && s.ScanTiming != ScanTimingDelayed {
		s.ScanTiming = ScanTimingImmediate
	}
	if s.ScanDelaySeconds < 0 {
		s.ScanDelaySeconds = 0
	}
	if s.CooldownSeconds < 0 {
		s.CooldownSeconds = 0
	}
	if s.FetchTimeoutSeconds <= 0 {
		s.FetchTimeoutSeconds = 8
	}
	if s.FetchRetries < 0 {
		s.FetchRetries = 0
	}
	return s
}

// LoadConfig reads configuration from a file in the given path and unmarshals
// it into a Settings struct. A missing file is not an error; defaults and
// environment variables still apply.
func LoadConfig(path string) (Settings, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("checker_config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ADSCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("registry_url", defaults.RegistryURL)
	v.SetDefault("cache_ttl_minutes", defaults.CacheTTLMinutes)
	v.SetDefault("badge_enabled", defaults.BadgeEnabled)
	v.SetDefault("scan_mode", defaults.ScanMode)
	v.SetDefault("scan_timing", defaults.ScanTiming)
	v.SetDefault("scan_delay_seconds", defaults.ScanDelaySeconds)
	v.SetDefault("cooldown_seconds", defaults.CooldownSeconds)
	v.SetDefault("fetch_timeout_seconds", defaults.FetchTimeoutSeconds)
	v.SetDefault("fetch_retries", defaults.FetchRetries)
	v.SetDefault("log.level", defaults.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Settings{}, err
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return Settings{}, err
	}
	return cfg.Normalize(), nil
}
