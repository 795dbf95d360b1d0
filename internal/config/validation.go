// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks a Settings object for values the daemon cannot run with.
// It returns all problems joined, not just the first one.
func Validate(s Settings) error {
	var errs []error

	if s.DataDir == "" {
		errs = append(errs, errors.New("data dir must not be empty (set SUBARR_DATA_DIR)"))
	}
	if s.ProcessBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("process batch size must be positive, got %d", s.ProcessBatchSize))
	}
	if s.SearchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("search concurrency must be positive, got %d", s.SearchConcurrency))
	}
	if s.RetryBackoffBase <= 0 || s.RetryBackoffCap < s.RetryBackoffBase {
		errs = append(errs, fmt.Errorf("backoff base %s must be positive and not exceed cap %s",
			s.RetryBackoffBase, s.RetryBackoffCap))
	}
	if s.SearchTimeout <= 0 || s.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("provider timeouts must be positive"))
	}
	if s.BreakerFailures <= 0 {
		errs = append(errs, fmt.Errorf("circuit breaker failure threshold must be positive, got %d", s.BreakerFailures))
	}
	if s.WebhookDelay < 0 {
		errs = append(errs, errors.New("webhook delay must not be negative"))
	}
	if s.Sonarr.Enabled && s.Sonarr.APIKey == "" {
		errs = append(errs, errors.New("sonarr is configured without an API key (set SUBARR_SONARR_API_KEY)"))
	}
	if s.Radarr.Enabled && s.Radarr.APIKey == "" {
		errs = append(errs, errors.New("radarr is configured without an API key (set SUBARR_RADARR_API_KEY)"))
	}
	if len(s.Profiles) == 0 {
		errs = append(errs, errors.New("at least one language profile is required (set SUBARR_LANGUAGES)"))
	}
	for _, p := range s.Profiles {
		switch p.Kind {
		case "full", "forced", "signs":
		default:
			errs = append(errs, fmt.Errorf("unknown subtitle kind %q for language %q", p.Kind, p.Language))
		}
	}

	return errors.Join(errs...)
}

// Masked returns a copy of the settings safe for API exposure and logging:
// every secret field is replaced by a placeholder.
func Masked(s Settings) Settings {
	mask := func(v string) string {
		if v == "" {
			return ""
		}
		return "***"
	}
	s.APIToken = mask(s.APIToken)
	s.RedisPassword = mask(s.RedisPassword)
	s.Sonarr.APIKey = mask(s.Sonarr.APIKey)
	s.Radarr.APIKey = mask(s.Radarr.APIKey)
	return s
}

// IsSecretKey reports whether a settings-override key stored in the database
// holds a secret and must never be echoed back.
func IsSecretKey(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password") || strings.Contains(k, "api_key")
}
