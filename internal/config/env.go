// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/kzmx/subarr/internal/log"
)

// Prefix is prepended to every environment variable the daemon reads.
const Prefix = "SUBARR_"

// ParseString reads a string from the environment or returns the default.
func ParseString(key, defaultValue string) string {
	logger := log.WithComponent("config")
	if value, ok := os.LookupEnv(Prefix + key); ok && value != "" {
		lowerKey := strings.ToLower(key)
		if strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password") || strings.Contains(lowerKey, "key") {
			logger.Debug().Str("key", key).Bool("sensitive", true).Msg("using environment variable")
		} else {
			logger.Debug().Str("key", key).Str("value", value).Msg("using environment variable")
		}
		return value
	}
	return defaultValue
}

// ParseInt reads an integer from the environment, falling back to the
// default on absence or parse error.
func ParseInt(key string, defaultValue int) int {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(Prefix + key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Int("default", defaultValue).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

// ParseBool reads a boolean ("true"/"1"/"yes") from the environment.
func ParseBool(key string, defaultValue bool) bool {
	logger := log.WithComponent("config")
	v, ok := os.LookupEnv(Prefix + key)
	if !ok || v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	logger.Warn().Str("key", key).Str("value", v).
		Msg("invalid boolean in environment variable, using default")
	return defaultValue
}

// ParseSeconds reads an integer number of seconds from the environment.
func ParseSeconds(key string, defaultValue time.Duration) time.Duration {
	secs := ParseInt(key, int(defaultValue/time.Second))
	return time.Duration(secs) * time.Second
}

// ParseList reads a comma-separated list from the environment.
func ParseList(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(Prefix + key)
	if !ok || v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FromEnv builds Settings from defaults plus environment overrides.
func FromEnv() Settings {
	s := Defaults()

	s.ListenAddr = ParseString("LISTEN", s.ListenAddr)
	s.APIToken = ParseString("API_TOKEN", s.APIToken)
	s.DataDir = ParseString("DATA_DIR", s.DataDir)
	s.DBPath = ParseString("DB_PATH", s.DBPath)
	if s.DBPath == "" {
		s.DBPath = s.DataDir + "/subarr.db"
	}

	s.RedisAddr = ParseString("REDIS_ADDR", s.RedisAddr)
	s.RedisPassword = ParseString("REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = ParseInt("REDIS_DB", s.RedisDB)
	s.CacheTTL = ParseSeconds("RESPONSE_CACHE_TTL_SECONDS", s.CacheTTL)

	s.ScanInterval = ParseSeconds("SCAN_INTERVAL_SECONDS", s.ScanInterval)
	s.ProcessInterval = ParseSeconds("PROCESS_INTERVAL_SECONDS", s.ProcessInterval)
	s.ProcessBatchSize = ParseInt("PROCESS_BATCH_SIZE", s.ProcessBatchSize)
	s.SearchConcurrency = ParseInt("SEARCH_CONCURRENCY", s.SearchConcurrency)
	s.RetryBackoffBase = ParseSeconds("RETRY_BACKOFF_BASE_SECONDS", s.RetryBackoffBase)
	s.RetryBackoffCap = ParseSeconds("RETRY_BACKOFF_CAP_SECONDS", s.RetryBackoffCap)
	s.SearchTimeout = ParseSeconds("PROVIDER_SEARCH_TIMEOUT_SECONDS", s.SearchTimeout)
	s.DownloadTimeout = ParseSeconds("PROVIDER_DOWNLOAD_TIMEOUT_SECONDS", s.DownloadTimeout)

	s.UpgradeMinScoreDelta = ParseInt("UPGRADE_MIN_SCORE_DELTA", s.UpgradeMinScoreDelta)
	s.UpgradeWindowDays = ParseInt("UPGRADE_WINDOW_DAYS", s.UpgradeWindowDays)
	s.UpgradePreferASS = ParseBool("UPGRADE_PREFER_ASS", s.UpgradePreferASS)

	s.BreakerFailures = ParseInt("CIRCUIT_BREAKER_FAILURES", s.BreakerFailures)
	s.BreakerCooldown = ParseSeconds("CIRCUIT_BREAKER_COOLDOWN_SECONDS", s.BreakerCooldown)

	s.WebhookDelay = time.Duration(ParseInt("WEBHOOK_DELAY_MINUTES", int(s.WebhookDelay/time.Minute))) * time.Minute
	s.WebhookAutoScan = ParseBool("WEBHOOK_AUTO_SCAN", s.WebhookAutoScan)
	s.WebhookAutoSearch = ParseBool("WEBHOOK_AUTO_SEARCH", s.WebhookAutoSearch)
	s.WebhookAutoTranslate = ParseBool("WEBHOOK_AUTO_TRANSLATE", s.WebhookAutoTranslate)

	s.PluginsDir = ParseString("PLUGINS_DIR", s.PluginsDir)
	s.ProviderOrder = ParseList("PROVIDER_ORDER", s.ProviderOrder)
	s.ProviderRatePerMin = ParseInt("PROVIDER_RATE_PER_MINUTE", s.ProviderRatePerMin)
	s.ProviderDisableAfter = ParseInt("PROVIDER_DISABLE_AFTER", s.ProviderDisableAfter)
	s.ProviderDisableFor = ParseSeconds("PROVIDER_DISABLE_FOR_SECONDS", s.ProviderDisableFor)

	s.Sonarr.BaseURL = ParseString("SONARR_URL", s.Sonarr.BaseURL)
	s.Sonarr.APIKey = ParseString("SONARR_API_KEY", s.Sonarr.APIKey)
	s.Sonarr.Enabled = s.Sonarr.BaseURL != ""
	s.Radarr.BaseURL = ParseString("RADARR_URL", s.Radarr.BaseURL)
	s.Radarr.APIKey = ParseString("RADARR_API_KEY", s.Radarr.APIKey)
	s.Radarr.Enabled = s.Radarr.BaseURL != ""
	s.WatchedFolders = ParseList("WATCHED_FOLDERS", s.WatchedFolders)

	s.TranslateEnabled = ParseBool("TRANSLATE_ENABLED", s.TranslateEnabled)

	if langs := ParseList("LANGUAGES", nil); langs != nil {
		minScore := ParseInt("MIN_SCORE", 120)
		profiles := make([]LanguageProfile, 0, len(langs))
		for _, l := range langs {
			profiles = append(profiles, LanguageProfile{
				Language: canonicalLanguage(l),
				Kind:     "full",
				MinScore: minScore,
			})
		}
		s.Profiles = profiles
	}

	return s
}

// canonicalLanguage normalizes a user-supplied language tag ("DE", "pt_br").
func canonicalLanguage(raw string) string {
	tag, err := language.Parse(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return strings.ToLower(raw)
	}
	return tag.String()
}
