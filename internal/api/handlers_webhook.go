// SPDX-License-Identifier: MIT

package api

import (
	"io"
	"net/http"

	"github.com/kzmx/subarr/internal/webhook"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleWebhookSonarr(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, webhook.ParseSonarr)
}

func (s *Server) handleWebhookRadarr(w http.ResponseWriter, r *http.Request) {
	s.handleWebhook(w, r, webhook.ParseRadarr)
}

// handleWebhook accepts an upstream notification and hands it to the staged
// pipeline. Download events return 202 with the pipeline id so the caller
// can correlate webhook_stage events.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request, parse func([]byte) (webhook.Event, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeWHPayload, "unreadable request body")
		return
	}
	e, err := parse(body)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeWHPayload, err.Error())
		return
	}

	switch e.Type {
	case webhook.TypeDownload:
		id := s.pipeline.HandleDownload(e)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "pipeline_id": id})
	case webhook.TypeDelete:
		n, err := s.pipeline.HandleDelete(r.Context(), e)
		if err != nil {
			respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "removed": n})
	case webhook.TypeTest:
		writeJSON(w, http.StatusOK, map[string]string{"status": "test ok"})
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	}
}
