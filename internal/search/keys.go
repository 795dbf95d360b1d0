// SPDX-License-Identifier: MIT

package search

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/subtitles"
)

// Fingerprint reduces a query to a stable string so equal searches hash to
// the same cache key across restarts.
func Fingerprint(q providers.Query) string {
	return strings.Join([]string{
		strings.ToLower(q.Title),
		fmt.Sprintf("%d", q.Year),
		fmt.Sprintf("%d", q.Season),
		fmt.Sprintf("%d", q.Episode),
		fmt.Sprintf("%t", q.Movie),
		strings.ToLower(q.Language),
		q.FileHash,
		q.Release.Group,
		q.Release.Source,
		q.Release.Resolution,
		q.Release.AudioCodec,
		fmt.Sprintf("%t", q.HearingImpaired),
	}, "|")
}

// cacheKey derives the response-cache key for one provider search. The
// fnv-64a hex digest keeps provider internals and titles out of key names.
func cacheKey(provider, fingerprint string, kind subtitles.Kind) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s", provider, fingerprint, kind)
	return fmt.Sprintf("search:%x", h.Sum64())
}
