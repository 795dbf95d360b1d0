// SPDX-License-Identifier: MIT

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/kzmx/subarr/internal/log"
)

// ApplyOverrides layers database-stored settings on top of the
// environment-derived configuration. Keys use the same names as the
// environment variables, without the prefix. Unknown keys are logged and
// ignored so that an old database never prevents startup.
func ApplyOverrides(s Settings, kv map[string]string) Settings {
	logger := log.WithComponent("config")

	atoi := func(key, v string, dst *int) {
		i, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid integer override")
			return
		}
		*dst = i
	}
	seconds := func(key, v string, dst *time.Duration) {
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 {
			logger.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid duration override")
			return
		}
		*dst = time.Duration(i) * time.Second
	}
	boolean := func(v string, dst *bool) {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}

	for key, v := range kv {
		switch key {
		case "SCAN_INTERVAL_SECONDS":
			seconds(key, v, &s.ScanInterval)
		case "PROCESS_INTERVAL_SECONDS":
			seconds(key, v, &s.ProcessInterval)
		case "SEARCH_CONCURRENCY":
			atoi(key, v, &s.SearchConcurrency)
		case "RETRY_BACKOFF_BASE_SECONDS":
			seconds(key, v, &s.RetryBackoffBase)
		case "RETRY_BACKOFF_CAP_SECONDS":
			seconds(key, v, &s.RetryBackoffCap)
		case "PROVIDER_SEARCH_TIMEOUT_SECONDS":
			seconds(key, v, &s.SearchTimeout)
		case "PROVIDER_DOWNLOAD_TIMEOUT_SECONDS":
			seconds(key, v, &s.DownloadTimeout)
		case "UPGRADE_MIN_SCORE_DELTA":
			atoi(key, v, &s.UpgradeMinScoreDelta)
		case "UPGRADE_WINDOW_DAYS":
			atoi(key, v, &s.UpgradeWindowDays)
		case "UPGRADE_PREFER_ASS":
			boolean(v, &s.UpgradePreferASS)
		case "CIRCUIT_BREAKER_FAILURES":
			atoi(key, v, &s.BreakerFailures)
		case "CIRCUIT_BREAKER_COOLDOWN_SECONDS":
			seconds(key, v, &s.BreakerCooldown)
		case "WEBHOOK_DELAY_MINUTES":
			var mins int
			atoi(key, v, &mins)
			if mins >= 0 {
				s.WebhookDelay = time.Duration(mins) * time.Minute
			}
		case "WEBHOOK_AUTO_SCAN":
			boolean(v, &s.WebhookAutoScan)
		case "WEBHOOK_AUTO_SEARCH":
			boolean(v, &s.WebhookAutoSearch)
		case "WEBHOOK_AUTO_TRANSLATE":
			boolean(v, &s.WebhookAutoTranslate)
		case "RESPONSE_CACHE_TTL_SECONDS":
			seconds(key, v, &s.CacheTTL)
		case "PLUGINS_DIR":
			s.PluginsDir = v
		default:
			if strings.HasPrefix(key, "PROVIDER_BIAS_") {
				name := strings.ToLower(strings.TrimPrefix(key, "PROVIDER_BIAS_"))
				bias := 0
				atoi(key, v, &bias)
				s.ProviderBias[name] = bias
				continue
			}
			logger.Warn().Str("key", key).Msg("ignoring unknown settings override")
		}
	}

	return s
}
