// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/search"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
	"github.com/kzmx/subarr/internal/translate"
	"github.com/kzmx/subarr/internal/upgrade"
)

// Processor drives one wanted item through claim, search, the upgrade
// gate, install and the terminal status write.
type Processor struct {
	wanted     *storage.WantedStore
	history    *storage.HistoryStore
	aggregator *search.Aggregator
	installer  *search.Installer
	translator *translate.Queue
	bus        *events.Bus
	cfg        config.Settings
	logger     zerolog.Logger

	// now and rnd are swappable in tests.
	now func() time.Time
	rnd func() float64
}

func NewProcessor(
	wanted *storage.WantedStore,
	history *storage.HistoryStore,
	aggregator *search.Aggregator,
	installer *search.Installer,
	translator *translate.Queue,
	bus *events.Bus,
	cfg config.Settings,
) *Processor {
	return &Processor{
		wanted:     wanted,
		history:    history,
		aggregator: aggregator,
		installer:  installer,
		translator: translator,
		bus:        bus,
		cfg:        cfg,
		logger:     log.WithComponent("processor"),
		now:        time.Now,
		rnd:        nil,
	}
}

// ProcessDue claims and processes one batch. Shutdown is observed between
// items; the item in flight finishes.
func (p *Processor) ProcessDue(ctx context.Context) (int, error) {
	items, err := p.wanted.ListDue(ctx, p.now(), p.cfg.ProcessBatchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if err := p.ProcessItem(ctx, item.ID); err != nil {
			p.logger.Warn().Err(err).Int64("id", item.ID).Msg("item processing failed")
			continue
		}
		processed++
	}
	return processed, nil
}

// ProcessItem runs the full lifecycle for one wanted item. A lost claim is
// not an error; another worker owns the row.
func (p *Processor) ProcessItem(ctx context.Context, id int64) error {
	now := p.now()
	claimed, err := p.wanted.Claim(ctx, id, now)
	if err != nil {
		return fmt.Errorf("claim %d: %w", id, err)
	}
	if !claimed {
		return nil
	}
	item, err := p.wanted.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load %d: %w", id, err)
	}

	q := buildQuery(item)
	results, err := p.aggregator.Search(ctx, q)
	if err != nil {
		return p.fail(ctx, item)
	}

	best, ok := search.Best(results, p.minScore(item))
	if !ok {
		p.maybeTranslate(item)
		return p.fail(ctx, item)
	}

	if existing, installedPath, found := p.existingSidecar(item); found {
		return p.runUpgradeGate(ctx, item, existing, installedPath, best)
	}

	installed, err := p.installer.Install(ctx, item, best)
	if err != nil {
		p.logger.Warn().Err(err).Int64("id", item.ID).Msg("install failed")
		return p.fail(ctx, item)
	}
	return p.finish(ctx, item, best, installed, "")
}

// runUpgradeGate applies the upgrade decision before touching a file that
// already has a subtitle.
func (p *Processor) runUpgradeGate(ctx context.Context, item storage.WantedItem, existing upgrade.Existing, installedPath string, best search.Result) error {
	policy := upgrade.Policy{
		PreferASS:     p.cfg.UpgradePreferASS,
		MinScoreDelta: p.cfg.UpgradeMinScoreDelta,
		WindowDays:    p.cfg.UpgradeWindowDays,
	}
	candidate := upgrade.Candidate{Format: best.Candidate.Format, Score: best.Effective}
	ok, reason := upgrade.Decide(existing, candidate, policy, p.now())
	if !ok {
		p.logger.Debug().
			Int64("id", item.ID).
			Str("reason", reason).
			Msg("existing subtitle kept")
		return p.wanted.MarkDone(ctx, item.ID, p.now(), existing.Score)
	}

	installed, err := p.installer.Install(ctx, item, best)
	if err != nil {
		p.logger.Warn().Err(err).Int64("id", item.ID).Msg("upgrade install failed")
		return p.fail(ctx, item)
	}
	if installed.Path != installedPath {
		// The format changed, so the old sidecar name lingers.
		if err := os.Remove(installedPath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn().Err(err).Str("file", filepath.Base(installedPath)).Msg("stale sidecar not removed")
		}
	}

	if _, err := p.history.AddUpgrade(ctx, storage.UpgradeRecord{
		Path:         item.Path,
		OldFormat:    string(existing.Format),
		OldScore:     existing.Score,
		NewFormat:    string(installed.Format),
		NewScore:     best.Effective,
		ProviderName: best.Candidate.ProviderName,
		Reason:       reason,
		UpgradedAt:   p.now().UTC(),
	}); err != nil {
		p.logger.Warn().Err(err).Msg("upgrade history write failed")
	}
	if p.bus != nil {
		p.bus.Emit(events.SubtitleUpgraded, map[string]any{
			"provider":   best.Candidate.ProviderName,
			"language":   item.Language,
			"old_format": string(existing.Format),
			"new_format": string(installed.Format),
			"old_score":  existing.Score,
			"new_score":  best.Effective,
			"file":       filepath.Base(installed.Path),
			"reason":     reason,
		})
	}
	return p.finish(ctx, item, best, installed, reason)
}

func (p *Processor) finish(ctx context.Context, item storage.WantedItem, best search.Result, installed search.InstallResult, upgradeReason string) error {
	if err := p.wanted.MarkDone(ctx, item.ID, p.now(), best.Effective); err != nil {
		return err
	}
	if p.bus != nil {
		p.bus.Emit(events.WantedItemProcessed, map[string]any{
			"id":            item.ID,
			"kind":          string(item.Kind),
			"language":      item.Language,
			"subtitle_kind": item.SubtitleKind,
			"provider":      best.Candidate.ProviderName,
			"score":         best.Effective,
			"title":         item.Linked.Title,
		})
	}
	evt := p.logger.Info().
		Int64("id", item.ID).
		Str("provider", best.Candidate.ProviderName).
		Int("score", best.Effective).
		Str("file", filepath.Base(installed.Path))
	if upgradeReason != "" {
		evt = evt.Str("upgrade_reason", upgradeReason)
	}
	evt.Msg("wanted item processed")
	return nil
}

// fail writes the failed status with the next retry time. The claim
// already bumped search_count, so the loaded value drives the backoff.
func (p *Processor) fail(ctx context.Context, item storage.WantedItem) error {
	wait := Backoff(p.cfg.RetryBackoffBase, p.cfg.RetryBackoffCap, item.SearchCount, p.rnd)
	now := p.now()
	if err := p.wanted.MarkFailed(ctx, item.ID, now, now.Add(wait)); err != nil {
		return err
	}
	if p.bus != nil {
		p.bus.Emit(events.WantedItemFailed, map[string]any{
			"id":               item.ID,
			"kind":             string(item.Kind),
			"language":         item.Language,
			"subtitle_kind":    item.SubtitleKind,
			"search_count":     item.SearchCount,
			"retry_in_seconds": wait.Seconds(),
			"title":            item.Linked.Title,
		})
	}
	p.logger.Info().
		Int64("id", item.ID).
		Int("search_count", item.SearchCount).
		Dur("retry_in", wait).
		Msg("no usable subtitle, retry scheduled")
	return nil
}

func (p *Processor) maybeTranslate(item storage.WantedItem) {
	if !p.cfg.TranslateEnabled || p.translator == nil {
		return
	}
	if err := p.translator.Enqueue(item); err != nil {
		p.logger.Debug().Err(err).Int64("id", item.ID).Msg("translate fallback unavailable")
	}
}

// minScore resolves the per-language minimum from the configured profiles.
func (p *Processor) minScore(item storage.WantedItem) int {
	for _, profile := range p.cfg.Profiles {
		if profile.Language == item.Language &&
			(profile.Kind == item.SubtitleKind || profile.Kind == "") {
			return profile.MinScore
		}
	}
	return 0
}

// existingSidecar inspects the media directory for an already installed
// subtitle of this (language, kind) pair.
func (p *Processor) existingSidecar(item storage.WantedItem) (upgrade.Existing, string, bool) {
	kind := subtitles.Kind(item.SubtitleKind)
	if kind == "" {
		kind = subtitles.KindFull
	}
	for _, format := range []subtitles.Format{subtitles.FormatASS, subtitles.FormatSSA, subtitles.FormatSRT, subtitles.FormatVTT} {
		path := subtitles.SidecarPath(item.Path, item.Language, kind, format)
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		return upgrade.Existing{
			Format:       format,
			Score:        item.CurrentScore,
			DownloadedAt: st.ModTime(),
		}, path, true
	}
	return upgrade.Existing{}, "", false
}
