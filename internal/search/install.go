// SPDX-License-Identifier: MIT

package search

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/metrics"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

const downloadTries = 2

// Installer downloads a chosen candidate and places it next to the media
// file atomically.
type Installer struct {
	registry *providers.Registry
	breakers *resilience.Registry
	history  *storage.HistoryStore
	bus      *events.Bus
	cfg      config.Settings
	logger   zerolog.Logger

	// freeSpace is swappable in tests.
	freeSpace func(dir string) (uint64, error)
}

func NewInstaller(
	registry *providers.Registry,
	breakers *resilience.Registry,
	history *storage.HistoryStore,
	bus *events.Bus,
	cfg config.Settings,
) *Installer {
	return &Installer{
		registry:  registry,
		breakers:  breakers,
		history:   history,
		bus:       bus,
		cfg:       cfg,
		logger:    log.WithComponent("install"),
		freeSpace: freeSpace,
	}
}

// InstallResult describes a completed install.
type InstallResult struct {
	Path   string
	Format subtitles.Format
	Kind   subtitles.Kind
}

// Install fetches the subtitle behind r and writes it as a sidecar of the
// wanted item's media file. The write is atomic; a crash never leaves a
// partial subtitle behind.
func (in *Installer) Install(ctx context.Context, item storage.WantedItem, r Result) (InstallResult, error) {
	c := r.Candidate
	p, ok := in.registry.Get(c.ProviderName)
	if !ok {
		return InstallResult{}, fmt.Errorf("install: provider %q not registered", c.ProviderName)
	}
	cb := in.breakers.For(c.ProviderName)
	if !cb.AllowRequest() {
		return InstallResult{}, fmt.Errorf("install: provider %q breaker open", c.ProviderName)
	}

	callCtx, cancel := context.WithTimeout(ctx, in.cfg.DownloadTimeout)
	defer cancel()

	data, err := backoff.Retry(callCtx, func() ([]byte, error) {
		return p.Download(callCtx, c)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(downloadTries))
	if err != nil {
		cb.RecordFailure()
		metrics.RecordProviderDownload(c.ProviderName, "error")
		return InstallResult{}, fmt.Errorf("install: download from %s: %w", c.ProviderName, err)
	}
	cb.RecordSuccess()
	metrics.RecordProviderDownload(c.ProviderName, "success")

	if len(data) == 0 {
		return InstallResult{}, fmt.Errorf("install: %s returned an empty subtitle", c.ProviderName)
	}
	format, ok := subtitles.SniffFormat(data)
	if !ok {
		format = c.Format
	}
	if format == "" {
		return InstallResult{}, fmt.Errorf("install: cannot determine subtitle format from %s", c.ProviderName)
	}

	dir := filepath.Dir(item.Path)
	free, err := in.freeSpace(dir)
	if err != nil {
		return InstallResult{}, fmt.Errorf("install: free space check for %s: %w", dir, err)
	}
	if free < in.cfg.MinFreeDiskBytes {
		return InstallResult{}, fmt.Errorf("install: %d bytes free in %s, need %d", free, dir, in.cfg.MinFreeDiskBytes)
	}

	kind := subtitles.Kind(item.SubtitleKind)
	if kind == "" {
		kind = subtitles.KindFull
	}
	dest := subtitles.SidecarPath(item.Path, item.Language, kind, format)
	if err := renameio.WriteFile(dest, data, 0o644); err != nil {
		return InstallResult{}, fmt.Errorf("install: write %s: %w", dest, err)
	}

	if _, err := in.history.AddDownload(ctx, storage.DownloadRecord{
		ProviderName:  c.ProviderName,
		ExternalID:    c.ExternalID,
		Language:      item.Language,
		Format:        string(format),
		InstalledPath: dest,
		Score:         r.Effective,
		SubtitleKind:  string(kind),
		Source:        "provider",
		DownloadedAt:  time.Now().UTC(),
	}); err != nil {
		in.logger.Warn().Err(err).Str("file", filepath.Base(dest)).Msg("download history write failed")
	}

	if in.bus != nil {
		in.bus.Emit(events.SubtitleDownloaded, map[string]any{
			"provider": c.ProviderName,
			"language": item.Language,
			"format":   string(format),
			"score":    r.Effective,
			"file":     filepath.Base(dest),
			"source":   "provider",
		})
	}
	in.logger.Info().
		Str("provider", c.ProviderName).
		Str("language", item.Language).
		Str("format", string(format)).
		Int("score", r.Effective).
		Str("file", filepath.Base(dest)).
		Msg("subtitle installed")

	return InstallResult{Path: dest, Format: format, Kind: kind}, nil
}
