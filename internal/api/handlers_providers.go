// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
)

// providerView joins registry metadata, the call ledger and breaker state
// into the single row the dashboard renders.
type providerView struct {
	Name    string                `json:"name"`
	Info    providers.Info        `json:"info"`
	Stats   storage.ProviderStats `json:"stats"`
	Breaker resilience.Snapshot   `json:"breaker"`
	Bias    int                   `json:"bias"`
}

func (s *Server) handleProvidersList(w http.ResponseWriter, r *http.Request) {
	ledger, err := s.stats.All(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}

	views := make([]providerView, 0)
	for _, p := range s.registry.All() {
		name := p.Name()
		st := ledger[name]
		st.ProviderName = name
		views = append(views, providerView{
			Name:    name,
			Info:    p.Info(),
			Stats:   st,
			Breaker: s.breakers.For(name).Status(),
			Bias:    s.cfg.BiasFor(name),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": views})
}

// handleBreakerReset forces a provider's breaker back to closed and clears
// the ledger-level auto-disable flag.
func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.registry.Get(name); !ok {
		respondErrorCtx(w, r, http.StatusNotFound, CodeProvUnknown, "unknown provider",
			map[string]string{"provider": name}, "list registered providers with GET /api/v1/providers")
		return
	}

	s.breakers.For(name).Reset()
	if err := s.stats.ClearDisable(r.Context(), name); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeDBQuery, err.Error())
		return
	}
	s.logger.Info().Str("provider", name).Msg("breaker reset by operator")
	writeJSON(w, http.StatusOK, map[string]any{
		"provider": name,
		"breaker":  s.breakers.For(name).Status(),
	})
}

func (s *Server) handlePluginsReload(w http.ResponseWriter, r *http.Request) {
	if s.plugins == nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeProvReload, "plugin manager not running")
		return
	}
	if err := s.plugins.Reload(r.Context()); err != nil {
		respondError(w, r, http.StatusInternalServerError, CodeProvReload, err.Error())
		return
	}

	skipped := make([]map[string]string, 0)
	for _, fe := range s.plugins.Errors() {
		skipped = append(skipped, map[string]string{
			"file":  filepath.Base(fe.Path),
			"error": fe.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": s.registry.Names(),
		"skipped":   skipped,
	})
}
