// SPDX-License-Identifier: MIT

package providers

import (
	"strings"

	"github.com/kzmx/subarr/internal/subtitles"
)

// weightTable assigns points per matched signal. Hash dominates so that a
// verified hash match always outranks any metadata-only match.
type weightTable struct {
	Hash            int
	Title           int
	Year            int
	Season          int
	Episode         int
	ReleaseGroup    int
	Source          int
	AudioCodec      int
	Resolution      int
	HearingImpaired int
}

var (
	episodeWeights = weightTable{
		Hash: 359, Title: 180, Year: 90, Season: 30, Episode: 30,
		ReleaseGroup: 14, Source: 7, AudioCodec: 3, Resolution: 2, HearingImpaired: 1,
	}
	movieWeights = weightTable{
		Hash: 119, Title: 60, Year: 30,
		ReleaseGroup: 13, Source: 7, AudioCodec: 3, Resolution: 2, HearingImpaired: 1,
	}
)

// formatBonus rewards richer formats. Signs subtitles depend on ASS
// styling, so the bonus is steeper for that kind.
var formatBonus = map[subtitles.Kind]map[subtitles.Format]int{
	subtitles.KindFull:   {subtitles.FormatASS: 3, subtitles.FormatSSA: 2, subtitles.FormatSRT: 1},
	subtitles.KindForced: {subtitles.FormatASS: 3, subtitles.FormatSSA: 2, subtitles.FormatSRT: 1},
	subtitles.KindSigns:  {subtitles.FormatASS: 6, subtitles.FormatSSA: 4},
}

// Score computes the base match score for a candidate against a query.
// Per-provider bias is applied by the caller on top of this.
func Score(q Query, c Candidate) int {
	w := episodeWeights
	if q.Movie {
		w = movieWeights
	}

	score := 0
	if q.FileHash != "" && c.HashMatch {
		score += w.Hash
	}
	if q.Title != "" && titleEqual(q.Title, c.Title) {
		score += w.Title
	}
	if q.Year != 0 && q.Year == c.Year {
		score += w.Year
	}
	if !q.Movie {
		if q.Season != 0 && q.Season == c.Season {
			score += w.Season
		}
		if q.Episode != 0 && q.Episode == c.Episode {
			score += w.Episode
		}
	}
	if q.Release.Group != "" && q.Release.Group == c.Release.Group {
		score += w.ReleaseGroup
	}
	if q.Release.Source != "" && q.Release.Source == c.Release.Source {
		score += w.Source
	}
	if q.Release.AudioCodec != "" && q.Release.AudioCodec == c.Release.AudioCodec {
		score += w.AudioCodec
	}
	if q.Release.Resolution != "" && q.Release.Resolution == c.Release.Resolution {
		score += w.Resolution
	}
	if q.HearingImpaired == c.HearingImpaired {
		score += w.HearingImpaired
	}

	kind := q.Kind
	if kind == "" {
		kind = subtitles.KindFull
	}
	score += formatBonus[kind][c.Format]
	return score
}

func titleEqual(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToLower(s)
		return strings.Map(func(r rune) rune {
			switch r {
			case '.', '_', '-', ':', '\'', ',':
				return ' '
			}
			return r
		}, s)
	}
	return strings.Join(strings.Fields(norm(a)), " ") == strings.Join(strings.Fields(norm(b)), " ")
}
