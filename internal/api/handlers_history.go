// SPDX-License-Identifier: MIT

package api

import "net/http"

func (s *Server) handleHistoryDownloads(w http.ResponseWriter, r *http.Request) {
	offset := intParam(r.URL.Query().Get("offset"), 0)
	limit := intParam(r.URL.Query().Get("limit"), defaultPageSize)

	rows, total, err := s.history.ListDownloads(r.Context(), offset, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"downloads": rows,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleHistoryUpgrades(w http.ResponseWriter, r *http.Request) {
	offset := intParam(r.URL.Query().Get("offset"), 0)
	limit := intParam(r.URL.Query().Get("limit"), defaultPageSize)

	rows, total, err := s.history.ListUpgrades(r.Context(), offset, limit)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upgrades": rows,
		"total":    total,
		"offset":   offset,
		"limit":    limit,
	})
}
