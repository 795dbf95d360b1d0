// SPDX-License-Identifier: MIT

package scheduler

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

var (
	seasonEpisodeRe = regexp.MustCompile(`(?i)\bS(\d{1,2})E(\d{1,3})\b`)
	yearRe          = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// buildQuery turns a wanted item into a provider query: linked metadata
// when the upstream manager supplied it, file-name parsing otherwise.
func buildQuery(item storage.WantedItem) providers.Query {
	name := filepath.Base(item.Path)

	q := providers.Query{
		Language: item.Language,
		Kind:     subtitles.Kind(item.SubtitleKind),
		Movie:    item.Kind == storage.KindMovie,
		Release:  providers.ParseRelease(name),
	}

	if m := seasonEpisodeRe.FindStringSubmatch(name); m != nil {
		q.Season, _ = strconv.Atoi(m[1])
		q.Episode, _ = strconv.Atoi(m[2])
	}
	if m := yearRe.FindString(name); m != "" {
		q.Year, _ = strconv.Atoi(m)
	}

	if item.Linked.Title != "" {
		q.Title = item.Linked.Title
	} else {
		q.Title = titleFromFilename(name)
	}
	return q
}

// titleFromFilename strips the extension and everything from the first
// season/episode or year token on, then de-dots the rest.
func titleFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if loc := seasonEpisodeRe.FindStringIndex(base); loc != nil {
		base = base[:loc[0]]
	} else if loc := yearRe.FindStringIndex(base); loc != nil {
		base = base[:loc[0]]
	}
	base = strings.Map(func(r rune) rune {
		switch r {
		case '.', '_':
			return ' '
		}
		return r
	}, base)
	return strings.TrimSpace(strings.Trim(base, "-( "))
}
