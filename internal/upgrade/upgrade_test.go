// SPDX-License-Identifier: MIT

package upgrade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kzmx/subarr/internal/subtitles"
)

func TestDecide(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	policy := Policy{PreferASS: true, MinScoreDelta: 50, WindowDays: 7}

	fresh := now.Add(-24 * time.Hour)      // inside the window, delta doubles
	stale := now.Add(-30 * 24 * time.Hour) // outside the window

	tests := []struct {
		name       string
		existing   Existing
		candidate  Candidate
		wantOK     bool
		wantReason string
	}{
		{
			name:       "small gain inside window is rejected",
			existing:   Existing{Format: subtitles.FormatSRT, Score: 150, DownloadedAt: fresh},
			candidate:  Candidate{Format: subtitles.FormatSRT, Score: 170},
			wantOK:     false,
			wantReason: ReasonInsufficientGain,
		},
		{
			name:       "large gain inside window is accepted",
			existing:   Existing{Format: subtitles.FormatSRT, Score: 150, DownloadedAt: fresh},
			candidate:  Candidate{Format: subtitles.FormatSRT, Score: 260},
			wantOK:     true,
			wantReason: ReasonScoreDelta,
		},
		{
			name:       "outside the window the plain delta applies",
			existing:   Existing{Format: subtitles.FormatSRT, Score: 150, DownloadedAt: stale},
			candidate:  Candidate{Format: subtitles.FormatSRT, Score: 200},
			wantOK:     true,
			wantReason: ReasonScoreDelta,
		},
		{
			name:       "styled challenger beats plain install regardless of score",
			existing:   Existing{Format: subtitles.FormatSRT, Score: 150, DownloadedAt: fresh},
			candidate:  Candidate{Format: subtitles.FormatASS, Score: 80},
			wantOK:     true,
			wantReason: ReasonFormatUpgrade,
		},
		{
			name:       "styled install is never replaced by plain",
			existing:   Existing{Format: subtitles.FormatASS, Score: 150, DownloadedAt: stale},
			candidate:  Candidate{Format: subtitles.FormatSRT, Score: 500},
			wantOK:     false,
			wantReason: ReasonFormatDowngrade,
		},
		{
			name:       "ssa counts as styled",
			existing:   Existing{Format: subtitles.FormatSSA, Score: 100, DownloadedAt: stale},
			candidate:  Candidate{Format: subtitles.FormatVTT, Score: 400},
			wantOK:     false,
			wantReason: ReasonFormatDowngrade,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := Decide(tc.existing, tc.candidate, policy, now)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.wantReason, reason)
		})
	}
}

func TestDecideWithoutPreferASS(t *testing.T) {
	now := time.Now()
	policy := Policy{PreferASS: false, MinScoreDelta: 50, WindowDays: 0}

	existing := Existing{Format: subtitles.FormatSRT, Score: 150, DownloadedAt: now.Add(-time.Hour)}
	ok, reason := Decide(existing, Candidate{Format: subtitles.FormatASS, Score: 160}, policy, now)
	assert.False(t, ok, "without the format preference only the delta counts")
	assert.Equal(t, ReasonInsufficientGain, reason)

	ok, reason = Decide(existing, Candidate{Format: subtitles.FormatASS, Score: 210}, policy, now)
	assert.True(t, ok)
	assert.Equal(t, ReasonScoreDelta, reason)
}
