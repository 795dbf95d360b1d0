// SPDX-License-Identifier: MIT

package scheduler

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/log"
	"github.com/kzmx/subarr/internal/mediamanager"
	"github.com/kzmx/subarr/internal/metrics"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

// EpisodeLister is the sonarr surface the scanner needs.
type EpisodeLister interface {
	ListEpisodeFiles(ctx context.Context) ([]mediamanager.MediaFile, error)
}

// MovieLister is the radarr surface the scanner needs.
type MovieLister interface {
	ListMovieFiles(ctx context.Context) ([]mediamanager.MediaFile, error)
}

var videoExtensions = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".m4v": true, ".mov": true, ".ts": true,
}

// Scanner reconciles the wanted table against the libraries: it adds a row
// per missing (language, kind) sidecar and drops rows whose media is gone.
type Scanner struct {
	wanted *storage.WantedStore
	sonarr EpisodeLister
	radarr MovieLister
	bus    *events.Bus
	cfg    config.Settings
	logger zerolog.Logger
}

func NewScanner(wanted *storage.WantedStore, sonarr EpisodeLister, radarr MovieLister, bus *events.Bus, cfg config.Settings) *Scanner {
	return &Scanner{
		wanted: wanted,
		sonarr: sonarr,
		radarr: radarr,
		bus:    bus,
		cfg:    cfg,
		logger: log.WithComponent("scanner"),
	}
}

type scanFile struct {
	kind   storage.MediaKind
	path   string
	linked storage.LinkedIDs
}

// Scan runs one full reconciliation pass.
func (s *Scanner) Scan(ctx context.Context) (added, removed int64, err error) {
	start := time.Now()

	files, complete, err := s.collect(ctx)
	if err != nil {
		return 0, 0, err
	}

	live := make(map[string]struct{}, len(files))
	siblingsByDir := map[string][]string{}

	for _, f := range files {
		if ctx.Err() != nil {
			return added, removed, ctx.Err()
		}
		live[f.path] = struct{}{}

		dir := filepath.Dir(f.path)
		siblings, ok := siblingsByDir[dir]
		if !ok {
			entries, err := os.ReadDir(dir)
			if err != nil {
				s.logger.Debug().Err(err).Str("dir", filepath.Base(dir)).Msg("directory unreadable, skipped")
				siblingsByDir[dir] = nil
				continue
			}
			siblings = make([]string, 0, len(entries))
			for _, e := range entries {
				siblings = append(siblings, e.Name())
			}
			siblingsByDir[dir] = siblings
		}
		if siblings == nil {
			continue
		}

		for _, profile := range s.cfg.Profiles {
			kind := subtitles.Kind(profile.Kind)
			if kind == "" {
				kind = subtitles.KindFull
			}
			if subtitles.HasSidecar(f.path, profile.Language, kind, siblings) {
				continue
			}
			id, created, err := s.wanted.Upsert(ctx, f.kind, f.path, profile.Language, string(kind), f.linked)
			if err != nil {
				return added, removed, err
			}
			if created {
				added++
				if s.bus != nil {
					s.bus.Emit(events.WantedItemAdded, map[string]any{
						"id":            id,
						"kind":          string(f.kind),
						"language":      profile.Language,
						"subtitle_kind": string(kind),
						"title":         f.linked.Title,
					})
				}
			}
		}
	}

	// A partial listing must not wipe rows for files a failed source owns.
	if complete {
		removed, err = s.wanted.DeleteMissing(ctx, live)
		if err != nil {
			return added, removed, err
		}
	}

	elapsed := time.Since(start)
	metrics.RecordSchedulerPass("scan", elapsed)
	if s.bus != nil {
		s.bus.Emit(events.WantedScanComplete, map[string]any{
			"added":            added,
			"removed":          removed,
			"duration_seconds": elapsed.Seconds(),
		})
	}
	s.logger.Info().
		Int64("added", added).
		Int64("removed", removed).
		Dur("elapsed", elapsed).
		Msg("library scan complete")
	return added, removed, nil
}

func (s *Scanner) collect(ctx context.Context) ([]scanFile, bool, error) {
	var files []scanFile
	complete := true

	if s.sonarr != nil {
		episodes, err := s.sonarr.ListEpisodeFiles(ctx)
		if err != nil {
			complete = false
			s.logger.Warn().Err(err).Msg("sonarr listing failed, scan continues without it")
		}
		for _, f := range episodes {
			files = append(files, scanFile{
				kind: storage.KindEpisode,
				path: f.Path,
				linked: storage.LinkedIDs{
					SeriesID:  f.SeriesID,
					EpisodeID: f.FileID,
					Title:     f.Title,
				},
			})
		}
	}
	if s.radarr != nil {
		movies, err := s.radarr.ListMovieFiles(ctx)
		if err != nil {
			complete = false
			s.logger.Warn().Err(err).Msg("radarr listing failed, scan continues without it")
		}
		for _, f := range movies {
			files = append(files, scanFile{
				kind:   storage.KindMovie,
				path:   f.Path,
				linked: storage.LinkedIDs{MovieID: f.MovieID, Title: f.Title},
			})
		}
	}

	for _, root := range s.cfg.WatchedFolders {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries do not abort the walk
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !videoExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			kind := storage.KindMovie
			if seasonEpisodeRe.MatchString(filepath.Base(path)) {
				kind = storage.KindEpisode
			}
			files = append(files, scanFile{kind: kind, path: path})
			return nil
		})
		if err != nil {
			return nil, complete, err
		}
	}
	return files, complete, nil
}
