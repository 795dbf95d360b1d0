// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kzmx/subarr/internal/config"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"detail": "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.wanted.Stats(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	counts := make(map[string]int, len(stats))
	for status, n := range stats {
		counts[string(status)] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version":        s.version,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"wanted":         counts,
		"providers":      s.registry.Names(),
	})
}

// handleSettingsGet returns the effective configuration with every secret
// replaced by a placeholder.
func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Masked(s.cfg))
}

// handleSettingsPut stores override key/value pairs in the database. The
// merged configuration is validated before anything is written; overrides
// take effect for components on their next construction, which in practice
// means after a restart.
func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	var kv map[string]string
	if err := json.NewDecoder(r.Body).Decode(&kv); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid json body")
		return
	}
	if len(kv) == 0 {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "no settings supplied")
		return
	}

	merged := config.ApplyOverrides(s.cfg, kv)
	if err := config.Validate(merged); err != nil {
		respondErrorCtx(w, r, http.StatusBadRequest, CodeCfgInvalid, err.Error(),
			nil, "overrides use the environment variable names without the SUBARR_ prefix")
		return
	}

	for key, v := range kv {
		if err := s.settings.Set(r.Context(), key, v); err != nil {
			respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
			return
		}
	}
	s.logger.Info().Int("keys", len(kv)).Msg("settings overrides stored")
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "stored",
		"keys":   len(kv),
		"note":   "overrides apply on next startup",
	})
}
