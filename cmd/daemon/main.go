// SPDX-License-Identifier: MIT

// Command daemon runs the subarr subtitle orchestration service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kzmx/subarr/internal/api"
	"github.com/kzmx/subarr/internal/cache"
	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/mediamanager"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/providers/luaplugin"
	"github.com/kzmx/subarr/internal/push"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/scheduler"
	"github.com/kzmx/subarr/internal/search"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/translate"
	"github.com/kzmx/subarr/internal/webhook"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("subarr %s (commit: %s)\n", version, commit)
		return
	}

	log.Configure(log.Config{
		Level:   config.ParseString("LOG_LEVEL", "info"),
		Service: "subarr",
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("data dir not writable")
	}
	db, err := storage.Open(cfg.DBPath, storage.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("database open failed")
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("database migration failed")
	}

	settings := storage.NewSettingsStore(db)
	overrides, err := settings.All(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("settings overrides unreadable")
	}
	providerCfg, generic := splitOverrides(overrides)
	cfg = config.ApplyOverrides(cfg, generic)
	if err := config.Validate(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	wanted := storage.NewWantedStore(db)
	history := storage.NewHistoryStore(db)
	stats := storage.NewProviderStatsStore(db)
	blacklist := storage.NewBlacklistStore(db)

	respCache := cache.Select(cache.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.CacheKeyPrefix,
	}, log.WithComponent("cache"))

	breakers := resilience.NewRegistry(cfg.BreakerFailures, cfg.BreakerCooldown)

	// The process-wide registry gets a throttled copy of every builtin so
	// provider politeness limits hold across search and download.
	registry := providers.NewRegistry()
	for _, p := range providers.Default.All() {
		registry.Register(providers.Throttle(p, cfg.ProviderRatePerMin))
	}
	bus := events.NewBus()
	defer bus.Close()

	hub := push.NewHub()
	hub.Attach(bus)
	go hub.Run(ctx)

	plugins := luaplugin.NewManager(cfg.PluginsDir, registry, bus)
	if err := plugins.Reload(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial plugin scan failed")
	}
	if err := plugins.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("plugin watcher not running")
	}
	defer plugins.Stop()

	// Provider settings are applied after plugin discovery so Lua providers
	// get their stored configuration too.
	for name, kv := range providerCfg {
		if err := registry.Configure(name, kv); err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("provider configuration skipped")
		}
	}
	for _, name := range registry.Names() {
		if err := stats.Ensure(ctx, name); err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("stats row init failed")
		}
	}

	aggregator := search.NewAggregator(registry, respCache, breakers, stats, blacklist, bus, cfg)
	installer := search.NewInstaller(registry, breakers, history, bus, cfg)

	translator := translate.NewQueue(nil, history, bus)
	go translator.Run(ctx)

	var (
		sonarr *mediamanager.Sonarr
		radarr *mediamanager.Radarr
	)
	if cfg.Sonarr.Enabled {
		sonarr = mediamanager.NewSonarr(cfg.Sonarr.BaseURL, cfg.Sonarr.APIKey)
	}
	if cfg.Radarr.Enabled {
		radarr = mediamanager.NewRadarr(cfg.Radarr.BaseURL, cfg.Radarr.APIKey)
	}
	// Typed nils must not become non-nil interfaces.
	var (
		episodes     scheduler.EpisodeLister
		movies       scheduler.MovieLister
		seriesRescan webhook.SeriesRescanner
		movieRescan  webhook.MovieRescanner
	)
	if sonarr != nil {
		episodes, seriesRescan = sonarr, sonarr
	}
	if radarr != nil {
		movies, movieRescan = radarr, radarr
	}

	scanner := scheduler.NewScanner(wanted, episodes, movies, bus, cfg)
	processor := scheduler.NewProcessor(wanted, history, aggregator, installer, translator, bus, cfg)
	sched := scheduler.New(scanner, processor, wanted, cfg)

	pipeline := webhook.NewPipeline(wanted, processor, seriesRescan, movieRescan, translator, bus, cfg)
	pipeline.Start(ctx)

	server := api.NewServer(api.Deps{
		Config:    cfg,
		DB:        db,
		Wanted:    wanted,
		History:   history,
		Stats:     stats,
		Blacklist: blacklist,
		Settings:  settings,
		Registry:  registry,
		Breakers:  breakers,
		Plugins:   plugins,
		Scanner:   sched,
		Processor: processor,
		Pipeline:  pipeline,
		Hub:       hub,
		Bus:       bus,
		Version:   version,
	})

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()
	go func() { errCh <- sched.Run(ctx) }()

	logger.Info().
		Str("version", version).
		Str("db", cfg.DBPath).
		Int("providers", len(registry.Names())).
		Msg("daemon started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("component failed")
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http drain incomplete")
	}
	pipeline.Wait()
	logger.Info().Msg("daemon stopped")
}

// splitOverrides partitions database settings into provider configuration
// ("provider.<name>.<field>" keys) and generic config overrides.
func splitOverrides(kv map[string]string) (map[string]map[string]string, map[string]string) {
	providerCfg := map[string]map[string]string{}
	generic := map[string]string{}
	for key, v := range kv {
		parts := strings.SplitN(key, ".", 3)
		if len(parts) == 3 && parts[0] == "provider" {
			name := parts[1]
			if providerCfg[name] == nil {
				providerCfg[name] = map[string]string{}
			}
			providerCfg[name][parts[2]] = v
			continue
		}
		generic[key] = v
	}
	return providerCfg, generic
}
