// SPDX-License-Identifier: MIT

// Package scheduler owns the periodic work: the library scan loop, the
// wanted-item process loop and the stale-claim watchdog.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
	"github.com/kzmx/subarr/internal/storage"
)

// Scheduler multiplexes the three loops on one goroutine so shutdown has a
// single place to land.
type Scheduler struct {
	scanner   *Scanner
	processor *Processor
	wanted    *storage.WantedStore
	cfg       config.Settings
	logger    zerolog.Logger
	scanNow   chan struct{}
}

func New(scanner *Scanner, processor *Processor, wanted *storage.WantedStore, cfg config.Settings) *Scheduler {
	return &Scheduler{
		scanner:   scanner,
		processor: processor,
		wanted:    wanted,
		cfg:       cfg,
		logger:    log.WithComponent("scheduler"),
		scanNow:   make(chan struct{}, 1),
	}
}

// TriggerScan requests an immediate scan. Coalesces while one is pending.
func (s *Scheduler) TriggerScan() {
	select {
	case s.scanNow <- struct{}{}:
	default:
	}
}

// Run blocks until ctx ends. The first scan starts immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	scanTicker := time.NewTicker(s.cfg.ScanInterval)
	defer scanTicker.Stop()
	processTicker := time.NewTicker(s.cfg.ProcessInterval)
	defer processTicker.Stop()
	watchdogTicker := time.NewTicker(s.watchdogInterval())
	defer watchdogTicker.Stop()

	s.TriggerScan()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("scheduler stopped")
			return ctx.Err()

		case <-s.scanNow:
			if _, _, err := s.scanner.Scan(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("library scan failed")
			}

		case <-scanTicker.C:
			s.TriggerScan()

		case <-processTicker.C:
			start := time.Now()
			n, err := s.processor.ProcessDue(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("process pass failed")
			}
			if n > 0 {
				metrics.RecordSchedulerPass("process", time.Since(start))
			}

		case <-watchdogTicker.C:
			s.watchdog(ctx)
		}
	}
}

// watchdog reverts searching claims older than the search timeout plus the
// grace period; their worker died mid-item.
func (s *Scheduler) watchdog(ctx context.Context) {
	cutoff := time.Now().Add(-(s.cfg.SearchTimeout + s.cfg.DownloadTimeout + s.cfg.WatchdogGrace))
	released, err := s.wanted.ReleaseStale(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Msg("watchdog pass failed")
		}
		return
	}
	if released > 0 {
		s.logger.Warn().Int64("released", released).Msg("stale searching claims reverted")
	}
}

func (s *Scheduler) watchdogInterval() time.Duration {
	if s.cfg.WatchdogGrace > 0 {
		return s.cfg.WatchdogGrace
	}
	return time.Minute
}
