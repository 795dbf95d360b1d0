// SPDX-License-Identifier: MIT

package subtitles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	signsOnly := []byte(
		"[Script Info]\n[V4+ Styles]\n[Events]\n" +
			"Dialogue: 0,0:00:01.00,0:00:03.00,Signs,,0,0,0,,Store Sign\n" +
			"Dialogue: 0,0:01:00.00,0:01:05.00,Song-OP,,0,0,0,,Opening lyrics\n")
	mixed := []byte(
		"[Script Info]\n[Events]\n" +
			"Dialogue: 0,0:00:01.00,0:00:03.00,Signs,,0,0,0,,Store Sign\n" +
			"Dialogue: 0,0:01:00.00,0:01:05.00,Default,,0,0,0,,Hello there\n")

	tests := []struct {
		name     string
		in       Signals
		wantKind Kind
		wantConf float64
	}{
		{
			name:     "no signal means full",
			in:       Signals{Filename: "Show.S01E01.de.ass"},
			wantKind: KindFull,
			wantConf: 1.0,
		},
		{
			name:     "disposition bit wins outright",
			in:       Signals{ForcedDisposition: true},
			wantKind: KindForced,
			wantConf: 1.0,
		},
		{
			name:     "forced filename token",
			in:       Signals{Filename: "Show.S01E01.de.forced.srt"},
			wantKind: KindForced,
			wantConf: 0.9,
		},
		{
			name:     "foreign filename token",
			in:       Signals{Filename: "Movie.2020.foreign.parts.srt"},
			wantKind: KindForced,
			wantConf: 0.9,
		},
		{
			name:     "signs filename token",
			in:       Signals{Filename: "Show.S01E01.signs.ass"},
			wantKind: KindSigns,
			wantConf: 0.9,
		},
		{
			name:     "stream title forced",
			in:       Signals{StreamTitle: "German (Forced)"},
			wantKind: KindForced,
			wantConf: 0.8,
		},
		{
			name:     "stream title signs and songs",
			in:       Signals{StreamTitle: "Signs & Songs"},
			wantKind: KindSigns,
			wantConf: 0.8,
		},
		{
			name:     "style analysis signs only",
			in:       Signals{Content: signsOnly},
			wantKind: KindSigns,
			wantConf: 0.7,
		},
		{
			name:     "style analysis with dialogue is not signs",
			in:       Signals{Content: mixed},
			wantKind: KindFull,
			wantConf: 1.0,
		},
		{
			name: "two agreeing signals take the max confidence among them",
			in: Signals{
				Filename:    "Show.S01E01.signs.ass",
				StreamTitle: "Signs/Songs",
			},
			wantKind: KindSigns,
			wantConf: 0.9,
		},
		{
			name: "agreement beats a single stronger signal",
			in: Signals{
				StreamTitle: "forced", // forced 0.8
				Filename:    "x.signs.ass",
				Content:     signsOnly, // signs 0.9 + 0.7 agree
			},
			wantKind: KindSigns,
			wantConf: 0.9,
		},
		{
			name: "disagreement falls back to strongest single signal",
			in: Signals{
				ForcedDisposition: true,
				StreamTitle:       "songs",
			},
			wantKind: KindForced,
			wantConf: 1.0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, conf := Classify(tc.in)
			assert.Equal(t, tc.wantKind, kind)
			assert.InDelta(t, tc.wantConf, conf, 0.001)
		})
	}
}
