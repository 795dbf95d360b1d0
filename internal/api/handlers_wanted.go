// SPDX-License-Identifier: MIT

package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kzmx/subarr/internal/storage"
)

const defaultPageSize = 50

// handleWantedRefresh schedules an immediate library scan. The scan runs in
// the scheduler loop; the request returns as soon as it is queued.
func (s *Server) handleWantedRefresh(w http.ResponseWriter, r *http.Request) {
	s.scanner.TriggerScan()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scan scheduled"})
}

func (s *Server) handleWantedList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := storage.ListFilter{
		Status: storage.Status(q.Get("status")),
		Kind:   storage.MediaKind(q.Get("kind")),
		Path:   q.Get("path"),
		Offset: intParam(q.Get("offset"), 0),
		Limit:  intParam(q.Get("limit"), defaultPageSize),
	}
	if v := q.Get("series_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeBadRequest, "series_id must be an integer")
			return
		}
		f.SeriesID = &id
	}

	items, total, err := s.wanted.List(r.Context(), f)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"total":  total,
		"offset": f.Offset,
		"limit":  f.Limit,
	})
}

func (s *Server) handleWantedGet(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	item, err := s.wanted.Get(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, CodeDBNotFound, "wanted item not found")
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// handleWantedProcess forces one processing iteration, bypassing retry_after.
func (s *Server) handleWantedProcess(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if _, err := s.wanted.Get(r.Context(), id); errors.Is(err, sql.ErrNoRows) {
		respondError(w, r, http.StatusNotFound, CodeDBNotFound, "wanted item not found")
		return
	} else if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}

	if err := s.processor.ProcessItem(r.Context(), id); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	item, err := s.wanted.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

func intParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
