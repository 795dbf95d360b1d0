// SPDX-License-Identifier: MIT

// Package upgrade decides whether a newly found subtitle should replace an
// already installed one. The decision is pure: callers supply the clock
// and persist the outcome.
package upgrade

import (
	"time"

	"github.com/kzmx/subarr/internal/subtitles"
)

// Existing describes the installed subtitle.
type Existing struct {
	Format       subtitles.Format
	Score        int
	DownloadedAt time.Time
}

// Candidate describes the challenger.
type Candidate struct {
	Format subtitles.Format
	Score  int
}

// Policy is the user-configured upgrade behaviour.
type Policy struct {
	PreferASS     bool
	MinScoreDelta int
	WindowDays    int
}

// Decision reasons, recorded in upgrade history.
const (
	ReasonFormatDowngrade  = "format_downgrade"
	ReasonFormatUpgrade    = "format_upgrade"
	ReasonScoreDelta       = "score_delta"
	ReasonInsufficientGain = "insufficient_gain"
)

// styled reports whether a format carries positioning and styling.
func styled(f subtitles.Format) bool {
	return f == subtitles.FormatASS || f == subtitles.FormatSSA
}

// Decide returns whether the candidate replaces the existing subtitle and
// the reason for the outcome. Rules, in order: a styled subtitle is never
// replaced by a plain one; a styled challenger replaces a plain subtitle
// outright when preferred; otherwise the score gain must clear the
// configured delta, doubled while the existing install is younger than the
// window.
func Decide(existing Existing, candidate Candidate, p Policy, now time.Time) (bool, string) {
	if styled(existing.Format) && !styled(candidate.Format) {
		return false, ReasonFormatDowngrade
	}
	if p.PreferASS && !styled(existing.Format) && styled(candidate.Format) {
		return true, ReasonFormatUpgrade
	}

	required := p.MinScoreDelta
	window := time.Duration(p.WindowDays) * 24 * time.Hour
	if p.WindowDays > 0 && now.Sub(existing.DownloadedAt) < window {
		required *= 2
	}
	if candidate.Score-existing.Score >= required {
		return true, ReasonScoreDelta
	}
	return false, ReasonInsufficientGain
}
