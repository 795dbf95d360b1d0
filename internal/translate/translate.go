// SPDX-License-Identifier: MIT

// Package translate is the local transcribe-and-translate fallback
// boundary. The engine internals live behind the Engine interface; the
// default build ships only the disabled stub.
package translate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

// ErrDisabled is returned while no engine is configured.
var ErrDisabled = errors.New("translate: engine disabled")

// Engine produces a subtitle for a media file. Transcribe yields SRT text
// in the spoken language; Translate rewrites it into the target language.
type Engine interface {
	Transcribe(ctx context.Context, mediaPath string) (string, error)
	Translate(ctx context.Context, srt, targetLanguage string) (string, error)
}

// Disabled is the default engine.
type Disabled struct{}

func (Disabled) Transcribe(context.Context, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Translate(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}

const queueDepth = 16

// Queue serializes translate jobs behind a single worker; transcription is
// too heavy to run concurrently with itself.
type Queue struct {
	engine  Engine
	history *storage.HistoryStore
	bus     *events.Bus
	logger  zerolog.Logger
	jobs    chan storage.WantedItem
}

func NewQueue(engine Engine, history *storage.HistoryStore, bus *events.Bus) *Queue {
	if engine == nil {
		engine = Disabled{}
	}
	return &Queue{
		engine:  engine,
		history: history,
		bus:     bus,
		logger:  log.WithComponent("translate"),
		jobs:    make(chan storage.WantedItem, queueDepth),
	}
}

// Enqueue schedules a fallback translation. It never blocks; a full queue
// is an error the caller may retry later.
func (q *Queue) Enqueue(item storage.WantedItem) error {
	if _, ok := q.engine.(Disabled); ok {
		return ErrDisabled
	}
	select {
	case q.jobs <- item:
		return nil
	default:
		return fmt.Errorf("translate: queue full (%d pending)", queueDepth)
	}
}

// Run drains the queue until the context ends.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-q.jobs:
			if err := q.process(ctx, item); err != nil {
				q.logger.Warn().Err(err).
					Str("file", filepath.Base(item.Path)).
					Str("language", item.Language).
					Msg("translate fallback failed")
			}
		}
	}
}

func (q *Queue) process(ctx context.Context, item storage.WantedItem) error {
	srt, err := q.engine.Transcribe(ctx, item.Path)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	translated, err := q.engine.Translate(ctx, srt, item.Language)
	if err != nil {
		return fmt.Errorf("translate: %w", err)
	}

	kind := subtitles.Kind(item.SubtitleKind)
	if kind == "" {
		kind = subtitles.KindFull
	}
	dest := subtitles.SidecarPath(item.Path, item.Language, kind, subtitles.FormatSRT)
	if err := renameio.WriteFile(dest, []byte(translated), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}

	if _, err := q.history.AddDownload(ctx, storage.DownloadRecord{
		ProviderName:  "local_stt",
		Language:      item.Language,
		Format:        string(subtitles.FormatSRT),
		InstalledPath: dest,
		SubtitleKind:  string(kind),
		Source:        "local_stt",
		DownloadedAt:  time.Now().UTC(),
	}); err != nil {
		q.logger.Warn().Err(err).Msg("download history write failed")
	}
	if q.bus != nil {
		q.bus.Emit(events.SubtitleDownloaded, map[string]any{
			"provider": "local_stt",
			"language": item.Language,
			"format":   string(subtitles.FormatSRT),
			"score":    0,
			"file":     filepath.Base(dest),
			"source":   "local_stt",
		})
	}
	q.logger.Info().
		Str("file", filepath.Base(dest)).
		Str("language", item.Language).
		Msg("translate fallback produced subtitle")
	return nil
}
