// SPDX-License-Identifier: MIT

package webhook

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
	"github.com/kzmx/subarr/internal/scheduler"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/translate"
)

// SeriesRescanner is the sonarr surface stage two needs.
type SeriesRescanner interface {
	RescanSeries(ctx context.Context, seriesID int64) error
}

// MovieRescanner is the radarr surface stage two needs.
type MovieRescanner interface {
	RescanMovie(ctx context.Context, movieID int64) error
}

// Pipeline runs the post-import stages in the background. A request
// handler calls HandleDownload and returns immediately.
type Pipeline struct {
	wanted     *storage.WantedStore
	processor  *scheduler.Processor
	sonarr     SeriesRescanner
	radarr     MovieRescanner
	translator *translate.Queue
	bus        *events.Bus
	cfg        config.Settings
	logger     zerolog.Logger

	ctx context.Context
	wg  sync.WaitGroup

	mu      sync.Mutex
	latches map[string]latch
}

// latch remembers which run currently owns a path's delay window.
type latch struct {
	id     string
	cancel context.CancelFunc
}

func NewPipeline(
	wanted *storage.WantedStore,
	processor *scheduler.Processor,
	sonarr SeriesRescanner,
	radarr MovieRescanner,
	translator *translate.Queue,
	bus *events.Bus,
	cfg config.Settings,
) *Pipeline {
	return &Pipeline{
		wanted:     wanted,
		processor:  processor,
		sonarr:     sonarr,
		radarr:     radarr,
		translator: translator,
		bus:        bus,
		cfg:        cfg,
		logger:     log.WithComponent("webhook"),
		ctx:        context.Background(),
		latches:    map[string]latch{},
	}
}

// Start binds the pipeline's background work to the process lifetime.
func (p *Pipeline) Start(ctx context.Context) { p.ctx = ctx }

// Wait blocks until every in-flight pipeline run finished.
func (p *Pipeline) Wait() { p.wg.Wait() }

// HandleDownload schedules the staged pipeline for a download event and
// returns the pipeline id. A newer event for the same path cancels an
// older run still sitting in its delay stage.
func (p *Pipeline) HandleDownload(e Event) string {
	id := uuid.NewString()

	p.mu.Lock()
	if prev, ok := p.latches[e.Path]; ok {
		prev.cancel()
	}
	runCtx, cancel := context.WithCancel(p.ctx)
	p.latches[e.Path] = latch{id: id, cancel: cancel}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.releaseLatch(e.Path, id)
		defer cancel()
		p.run(runCtx, id, e)
	}()
	return id
}

// releaseLatch removes the latch only if this run still owns it.
func (p *Pipeline) releaseLatch(path, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.latches[path]; ok && cur.id == id {
		delete(p.latches, path)
	}
}

// HandleDelete drops wanted rows for the deleted file eagerly.
func (p *Pipeline) HandleDelete(ctx context.Context, e Event) (int64, error) {
	n, err := p.wanted.DeleteByPath(ctx, e.Path)
	if err != nil {
		return 0, err
	}
	p.logger.Info().
		Str("source", e.Source).
		Str("file", filepath.Base(e.Path)).
		Int64("removed", n).
		Msg("wanted rows removed for deleted media")
	return n, nil
}

func (p *Pipeline) run(ctx context.Context, id string, e Event) {
	if !p.delay(ctx, id) {
		return
	}
	p.rescan(ctx, id, e)
	ids := p.search(ctx, id, e)
	p.translateFallback(ctx, id, ids)
}

// delay is the latch-cancellable settle window before any work starts.
// Returns false when a newer event for the same path superseded this run.
func (p *Pipeline) delay(ctx context.Context, id string) bool {
	if p.cfg.WebhookDelay <= 0 {
		return true
	}
	p.stage(id, "delay", "start", "")
	timer := time.NewTimer(p.cfg.WebhookDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		p.stage(id, "delay", "cancelled", "superseded by a newer event")
		return false
	case <-timer.C:
		p.stage(id, "delay", "ok", "")
		return true
	}
}

func (p *Pipeline) rescan(ctx context.Context, id string, e Event) {
	if !p.cfg.WebhookAutoScan {
		p.stage(id, "rescan", "skipped", "")
		return
	}
	p.stage(id, "rescan", "start", "")

	var err error
	switch {
	case e.SeriesID != nil && p.sonarr != nil:
		err = p.sonarr.RescanSeries(ctx, *e.SeriesID)
	case e.MovieID != nil && p.radarr != nil:
		err = p.radarr.RescanMovie(ctx, *e.MovieID)
	}
	if err != nil {
		// Rescan failure must not stop the search stage.
		p.stage(id, "rescan", "failed", err.Error())
		p.logger.Warn().Err(err).Str("pipeline_id", id).Msg("manager rescan failed")
		return
	}
	p.stage(id, "rescan", "ok", "")
}

// search ensures wanted rows for every configured profile and processes
// them once, re-opening done rows so the upgrade gate runs.
func (p *Pipeline) search(ctx context.Context, id string, e Event) []int64 {
	if !p.cfg.WebhookAutoSearch {
		p.stage(id, "search", "skipped", "")
		return nil
	}
	p.stage(id, "search", "start", "")

	kind := storage.KindEpisode
	linked := storage.LinkedIDs{Title: e.Title, SeriesID: e.SeriesID, EpisodeID: e.FileID}
	if e.MovieID != nil {
		kind = storage.KindMovie
		linked = storage.LinkedIDs{Title: e.Title, MovieID: e.MovieID}
	}

	var ids []int64
	for _, profile := range p.cfg.Profiles {
		subtitleKind := profile.Kind
		if subtitleKind == "" {
			subtitleKind = "full"
		}
		itemID, created, err := p.wanted.Upsert(ctx, kind, e.Path, profile.Language, subtitleKind, linked)
		if err != nil {
			p.stage(id, "search", "failed", err.Error())
			return ids
		}
		if !created {
			item, err := p.wanted.Get(ctx, itemID)
			if err == nil && item.Status == storage.StatusDone {
				if err := p.wanted.MarkUpgradeCandidate(ctx, itemID, item.CurrentScore); err != nil {
					p.logger.Warn().Err(err).Int64("id", itemID).Msg("upgrade reopen failed")
				}
			}
		}
		ids = append(ids, itemID)

		if err := p.processor.ProcessItem(ctx, itemID); err != nil {
			p.stage(id, "search", "failed", err.Error())
			p.logger.Warn().Err(err).Int64("id", itemID).Msg("webhook-triggered processing failed")
			return ids
		}
	}
	p.stage(id, "search", "ok", "")
	return ids
}

// translateFallback queues local translation for items still unresolved.
func (p *Pipeline) translateFallback(ctx context.Context, id string, ids []int64) {
	if !p.cfg.WebhookAutoTranslate || !p.cfg.TranslateEnabled || p.translator == nil {
		p.stage(id, "translate", "skipped", "")
		return
	}
	p.stage(id, "translate", "start", "")
	queued := 0
	for _, itemID := range ids {
		item, err := p.wanted.Get(ctx, itemID)
		if err != nil || item.Status == storage.StatusDone {
			continue
		}
		if err := p.translator.Enqueue(item); err == nil {
			queued++
		}
	}
	if queued > 0 {
		p.stage(id, "translate", "ok", "")
		return
	}
	p.stage(id, "translate", "skipped", "nothing unresolved")
}

func (p *Pipeline) stage(id, stage, status, detail string) {
	metrics.RecordWebhookStage(stage, status)
	if p.bus != nil {
		p.bus.Emit(events.WebhookStage, map[string]any{
			"pipeline_id": id,
			"stage":       stage,
			"status":      status,
			"detail":      detail,
		})
	}
	p.logger.Debug().
		Str("pipeline_id", id).
		Str("stage", stage).
		Str("status", status).
		Msg("pipeline stage")
}
