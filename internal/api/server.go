// SPDX-License-Identifier: MIT

// Package api is the REST surface under /api/v1 plus the websocket push
// endpoint and the Prometheus scrape target.
package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/providers/luaplugin"
	"github.com/kzmx/subarr/internal/push"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/webhook"
)

// ScanTrigger requests an immediate library scan.
type ScanTrigger interface {
	TriggerScan()
}

// ItemProcessor runs one processing iteration for a wanted item.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, id int64) error
}

// PluginReloader re-discovers Lua plugins on demand.
type PluginReloader interface {
	Reload(ctx context.Context) error
	Errors() []luaplugin.FileError
}

// Deps carries everything the handlers touch. Nil optional fields disable
// the routes that need them.
type Deps struct {
	Config    config.Settings
	DB        *sql.DB
	Wanted    *storage.WantedStore
	History   *storage.HistoryStore
	Stats     *storage.ProviderStatsStore
	Blacklist *storage.BlacklistStore
	Settings  *storage.SettingsStore
	Registry  *providers.Registry
	Breakers  *resilience.Registry
	Plugins   PluginReloader
	Scanner   ScanTrigger
	Processor ItemProcessor
	Pipeline  *webhook.Pipeline
	Hub       *push.Hub
	Bus       *events.Bus
	Version   string
}

// Server is the HTTP API server.
type Server struct {
	cfg       config.Settings
	db        *sql.DB
	wanted    *storage.WantedStore
	history   *storage.HistoryStore
	stats     *storage.ProviderStatsStore
	blacklist *storage.BlacklistStore
	settings  *storage.SettingsStore
	registry  *providers.Registry
	breakers  *resilience.Registry
	plugins   PluginReloader
	scanner   ScanTrigger
	processor ItemProcessor
	pipeline  *webhook.Pipeline
	hub       *push.Hub
	bus       *events.Bus
	version   string
	started   time.Time
	logger    zerolog.Logger

	http *http.Server
}

func NewServer(d Deps) *Server {
	return &Server{
		cfg:       d.Config,
		db:        d.DB,
		wanted:    d.Wanted,
		history:   d.History,
		stats:     d.Stats,
		blacklist: d.Blacklist,
		settings:  d.Settings,
		registry:  d.Registry,
		breakers:  d.Breakers,
		plugins:   d.Plugins,
		scanner:   d.Scanner,
		processor: d.Processor,
		pipeline:  d.Pipeline,
		hub:       d.Hub,
		bus:       d.Bus,
		version:   d.Version,
		started:   time.Now(),
		logger:    log.WithComponent("api"),
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID, requestLogger, recoverer)

	// Unauthenticated operational surface.
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// The websocket channel is publish-only and browsers cannot set
		// auth headers on it, so it sits outside token auth.
		if s.hub != nil {
			r.Get("/ws", s.hub.ServeWS)
		}

		r.Group(func(r chi.Router) {
			r.Use(s.auth)

			r.Get("/wanted", s.handleWantedList)
			r.Get("/wanted/{id}", s.handleWantedGet)
			r.Get("/providers", s.handleProvidersList)
			r.Get("/blacklist", s.handleBlacklistList)
			r.Get("/history", s.handleHistoryDownloads)
			r.Get("/history/upgrades", s.handleHistoryUpgrades)
			r.Get("/system/status", s.handleSystemStatus)
			r.Get("/system/settings", s.handleSettingsGet)

			r.Group(func(r chi.Router) {
				r.Use(mutationLimit(30))

				r.Post("/wanted/refresh", s.handleWantedRefresh)
				r.Post("/wanted/{id}/process", s.handleWantedProcess)
				r.Post("/providers/{name}/reset-breaker", s.handleBreakerReset)
				r.Post("/plugins/reload", s.handlePluginsReload)
				r.Post("/webhook/sonarr", s.handleWebhookSonarr)
				r.Post("/webhook/radarr", s.handleWebhookRadarr)
				r.Post("/blacklist", s.handleBlacklistAdd)
				r.Delete("/blacklist/{id}", s.handleBlacklistDelete)
				r.Put("/system/settings", s.handleSettingsPut)
			})
		})
	})
	return r
}

// Start runs the HTTP server until ListenAndServe returns.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http server listening")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
