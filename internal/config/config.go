// SPDX-License-Identifier: MIT

// Package config loads daemon settings from the environment (prefix SUBARR_)
// with database overrides applied on top at startup.
package config

import (
	"time"
)

// MediaManager holds the connection settings for one upstream manager
// (sonarr or radarr).
type MediaManager struct {
	BaseURL string
	APIKey  string
	Enabled bool
}

// LanguageProfile is one (language, kind) pair the scanner wants satisfied.
type LanguageProfile struct {
	Language string // BCP-47-ish tag, canonicalized at load ("de", "pt-BR")
	Kind     string // "full", "forced" or "signs"
	MinScore int    // per-language minimum effective score
}

// Settings is the full daemon configuration.
type Settings struct {
	// HTTP surface
	ListenAddr string
	APIToken   string

	// Persistence
	DataDir string
	DBPath  string

	// Response cache
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CacheTTL         time.Duration // default per-provider response TTL
	CacheKeyPrefix   string
	ProviderCacheTTL map[string]time.Duration // per-provider overrides

	// Scheduler
	ScanInterval      time.Duration
	ProcessInterval   time.Duration
	ProcessBatchSize  int
	SearchConcurrency int
	RetryBackoffBase  time.Duration
	RetryBackoffCap   time.Duration
	SearchTimeout     time.Duration
	DownloadTimeout   time.Duration
	WatchdogGrace     time.Duration

	// Upgrades
	UpgradeMinScoreDelta int
	UpgradeWindowDays    int
	UpgradePreferASS     bool

	// Circuit breaker
	BreakerFailures int
	BreakerCooldown time.Duration

	// Webhook pipeline
	WebhookDelay         time.Duration
	WebhookAutoScan      bool
	WebhookAutoSearch    bool
	WebhookAutoTranslate bool

	// Providers
	PluginsDir         string
	ProviderOrder      []string       // preference order for tie-breaks
	ProviderBias       map[string]int // per-provider score bias
	ProviderRatePerMin int            // politeness limit per provider

	// Ledger-level auto-disable, independent of the circuit breaker.
	ProviderDisableAfter int
	ProviderDisableFor   time.Duration

	// Media sources
	Sonarr         MediaManager
	Radarr         MediaManager
	WatchedFolders []string
	Profiles       []LanguageProfile

	// Install
	MinFreeDiskBytes uint64

	// Translate fallback
	TranslateEnabled bool
}

// Defaults returns the built-in settings before environment and database
// overrides are applied.
func Defaults() Settings {
	return Settings{
		ListenAddr:           ":8267",
		DataDir:              "/var/lib/subarr",
		CacheTTL:             6 * time.Hour,
		CacheKeyPrefix:       "subarr:",
		ScanInterval:         6 * time.Hour,
		ProcessInterval:      15 * time.Second,
		ProcessBatchSize:     25,
		SearchConcurrency:    4,
		RetryBackoffBase:     5 * time.Minute,
		RetryBackoffCap:      24 * time.Hour,
		SearchTimeout:        30 * time.Second,
		DownloadTimeout:      60 * time.Second,
		WatchdogGrace:        2 * time.Minute,
		UpgradeMinScoreDelta: 50,
		UpgradeWindowDays:    7,
		UpgradePreferASS:     true,
		BreakerFailures:      3,
		BreakerCooldown:      60 * time.Second,
		WebhookDelay:         0,
		WebhookAutoScan:      true,
		WebhookAutoSearch:    true,
		WebhookAutoTranslate: false,
		PluginsDir:           "/var/lib/subarr/plugins",
		ProviderRatePerMin:   60,
		ProviderDisableAfter: 5,
		ProviderDisableFor:   time.Hour,
		MinFreeDiskBytes:     100 << 20,
		ProviderBias:         map[string]int{},
		ProviderCacheTTL:     map[string]time.Duration{},
		Profiles: []LanguageProfile{
			{Language: "en", Kind: "full", MinScore: 120},
		},
	}
}

// TTLFor returns the response-cache TTL for a provider, falling back to the
// global default.
func (s Settings) TTLFor(provider string) time.Duration {
	if ttl, ok := s.ProviderCacheTTL[provider]; ok {
		return ttl
	}
	return s.CacheTTL
}

// BiasFor returns the user-configured score bias for a provider.
func (s Settings) BiasFor(provider string) int {
	return s.ProviderBias[provider]
}
