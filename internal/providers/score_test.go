// SPDX-License-Identifier: MIT

package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kzmx/subarr/internal/subtitles"
)

func TestParseRelease(t *testing.T) {
	info := ParseRelease("Show.S01E01.1080p.WEB-DL.EAC3-NTb.mkv")
	assert.Equal(t, ReleaseInfo{Group: "ntb", Source: "web", Resolution: "1080p", AudioCodec: "eac3"}, info)

	info = ParseRelease("Movie (2020) [2160p] [BluRay] [DTS]")
	assert.Equal(t, "bluray", info.Source)
	assert.Equal(t, "2160p", info.Resolution)
	assert.Equal(t, "dts", info.AudioCodec)
	assert.Empty(t, info.Group)

	assert.Equal(t, ReleaseInfo{}, ParseRelease("plainname"))
}

func TestScoreHashDominates(t *testing.T) {
	q := Query{
		Title: "Some Show", Year: 2020, Season: 1, Episode: 2,
		FileHash: "abc123",
		Release:  ReleaseInfo{Group: "ntb", Source: "web", Resolution: "1080p", AudioCodec: "eac3"},
	}

	hashOnly := Candidate{HashMatch: true}
	metadataFull := Candidate{
		Title: "Some Show", Year: 2020, Season: 1, Episode: 2,
		Release: q.Release,
	}
	assert.Greater(t, Score(q, hashOnly), Score(q, metadataFull))
}

func TestScoreEpisodeSignals(t *testing.T) {
	q := Query{Title: "Some Show", Season: 1, Episode: 2}
	c := Candidate{Title: "some.show", Season: 1, Episode: 2, HearingImpaired: false}

	// title 180 + season 30 + episode 30 + HI agreement 1
	assert.Equal(t, 241, Score(q, c))
}

func TestScoreMovieIgnoresSeasonEpisode(t *testing.T) {
	q := Query{Title: "Movie", Year: 2020, Movie: true}
	c := Candidate{Title: "Movie", Year: 2020, Season: 1, Episode: 1, HearingImpaired: false}

	// title 60 + year 30 + HI agreement 1
	assert.Equal(t, 91, Score(q, c))
}

func TestScoreFormatBonusPerKind(t *testing.T) {
	q := Query{Kind: subtitles.KindSigns}
	ass := Candidate{Format: subtitles.FormatASS, HearingImpaired: false}
	srt := Candidate{Format: subtitles.FormatSRT, HearingImpaired: false}

	// Signs subtitles lean on ASS styling; plain SRT earns nothing extra.
	assert.Equal(t, 6, Score(q, ass)-1)
	assert.Equal(t, 0, Score(q, srt)-1)

	q.Kind = subtitles.KindFull
	assert.Equal(t, 3, Score(q, ass)-1)
	assert.Equal(t, 1, Score(q, srt)-1)
}

func TestCandidateDetectKind(t *testing.T) {
	kind, conf := Candidate{Filename: "show.s01e01.de.forced.srt"}.DetectKind()
	assert.Equal(t, subtitles.KindForced, kind)
	assert.InDelta(t, 0.9, conf, 0.001)

	kind, _ = Candidate{Filename: "show.s01e01.de.srt"}.DetectKind()
	assert.Equal(t, subtitles.KindFull, kind)
}
