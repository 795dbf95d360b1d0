// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/storage"
)

func (s *Server) handleBlacklistList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.blacklist.List(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// handleBlacklistAdd bans a (provider, external id) pair. When a wanted id
// is supplied the item is parked in blacklisted state so the scheduler stops
// retrying it.
func (s *Server) handleBlacklistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider   string `json:"provider_name"`
		ExternalID string `json:"external_id"`
		Language   string `json:"language"`
		Path       string `json:"media_file_path"`
		Title      string `json:"title"`
		Reason     string `json:"reason"`
		WantedID   *int64 `json:"wanted_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "invalid json body")
		return
	}
	if req.Provider == "" || req.ExternalID == "" {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "provider_name and external_id are required")
		return
	}

	id, err := s.blacklist.Add(r.Context(), storage.BlacklistEntry{
		ProviderName: req.Provider,
		ExternalID:   req.ExternalID,
		Language:     req.Language,
		Path:         req.Path,
		Title:        req.Title,
		Reason:       req.Reason,
	})
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}

	if req.WantedID != nil {
		if err := s.wanted.MarkBlacklisted(r.Context(), *req.WantedID); err != nil {
			s.logger.Warn().Err(err).Int64("id", *req.WantedID).Msg("blacklist park failed")
		}
	}
	if s.bus != nil {
		s.bus.Emit(events.BlacklistAdded, map[string]any{
			"provider":    req.Provider,
			"external_id": req.ExternalID,
			"language":    req.Language,
			"title":       firstNonEmpty(req.Title, filepath.Base(req.Path)),
			"reason":      req.Reason,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleBlacklistDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	removed, err := s.blacklist.Delete(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	if !removed {
		respondError(w, r, http.StatusNotFound, CodeDBNotFound, "blacklist entry not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" && v != "." {
			return v
		}
	}
	return ""
}
