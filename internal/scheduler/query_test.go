// SPDX-License-Identifier: MIT

package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

func TestBuildQueryFromFilename(t *testing.T) {
	item := storage.WantedItem{
		Kind:         storage.KindEpisode,
		Path:         "/tv/Some Show/Some.Show.S01E02.1080p.WEB-DL.EAC3-NTb.mkv",
		Language:     "de",
		SubtitleKind: "full",
	}
	q := buildQuery(item)

	assert.Equal(t, "Some Show", q.Title)
	assert.Equal(t, 1, q.Season)
	assert.Equal(t, 2, q.Episode)
	assert.False(t, q.Movie)
	assert.Equal(t, "de", q.Language)
	assert.Equal(t, subtitles.KindFull, q.Kind)
	assert.Equal(t, "web", q.Release.Source)
	assert.Equal(t, "1080p", q.Release.Resolution)
	assert.Equal(t, "ntb", q.Release.Group)
}

func TestBuildQueryPrefersLinkedTitle(t *testing.T) {
	item := storage.WantedItem{
		Kind:     storage.KindEpisode,
		Path:     "/tv/x/x.S02E05.mkv",
		Language: "en",
		Linked:   storage.LinkedIDs{Title: "Proper Title"},
	}
	q := buildQuery(item)
	assert.Equal(t, "Proper Title", q.Title)
	assert.Equal(t, 2, q.Season)
	assert.Equal(t, 5, q.Episode)
}

func TestBuildQueryMovie(t *testing.T) {
	item := storage.WantedItem{
		Kind:     storage.KindMovie,
		Path:     "/movies/Great Movie (2020)/Great.Movie.2020.2160p.BluRay-GRP.mkv",
		Language: "de",
	}
	q := buildQuery(item)
	assert.True(t, q.Movie)
	assert.Equal(t, "Great Movie", q.Title)
	assert.Equal(t, 2020, q.Year)
	assert.Equal(t, "bluray", q.Release.Source)
}
