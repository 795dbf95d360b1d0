// SPDX-License-Identifier: MIT

// Package subtitles holds subtitle-file domain helpers: the forced/signs
// classifier, sidecar path naming and format inference.
package subtitles

import (
	"strings"
)

// Kind is the subtitle kind: ordinary dialogue, forced-only translation, or
// on-screen signs and songs.
type Kind string

const (
	KindFull   Kind = "full"
	KindForced Kind = "forced"
	KindSigns  Kind = "signs"
)

// Format is the subtitle container format.
type Format string

const (
	FormatASS Format = "ass"
	FormatSSA Format = "ssa"
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
)

// Signals are the observable inputs to the kind classifier. Zero values
// mean "signal absent".
type Signals struct {
	ForcedDisposition bool   // upstream container disposition bit
	Filename          string // candidate or sidecar file name
	StreamTitle       string // embedded stream title, if any
	Content           []byte // parsed subtitle content for style analysis
}

type signal struct {
	kind       Kind
	confidence float64
}

// Classify assigns a subtitle kind with a confidence in [0,1]. When two or
// more signals agree on a kind, that kind wins with the maximum confidence
// among the agreeing signals; otherwise the single strongest signal wins.
// No signal at all means ordinary dialogue.
func Classify(in Signals) (Kind, float64) {
	var signals []signal

	if in.ForcedDisposition {
		signals = append(signals, signal{KindForced, 1.0})
	}

	name := strings.ToLower(in.Filename)
	switch {
	case strings.Contains(name, ".forced.") || strings.Contains(name, ".foreign."):
		signals = append(signals, signal{KindForced, 0.9})
	case strings.Contains(name, ".signs.") || strings.Contains(name, ".sign."):
		signals = append(signals, signal{KindSigns, 0.9})
	}

	title := strings.ToLower(in.StreamTitle)
	switch {
	case strings.Contains(title, "forced") || strings.Contains(title, "foreign"):
		signals = append(signals, signal{KindForced, 0.8})
	case strings.Contains(title, "sign") || strings.Contains(title, "song"):
		signals = append(signals, signal{KindSigns, 0.8})
	}

	if len(in.Content) > 0 && signsOnlyStyles(in.Content) {
		signals = append(signals, signal{KindSigns, 0.7})
	}

	if len(signals) == 0 {
		return KindFull, 1.0
	}

	byKind := map[Kind][]float64{}
	for _, s := range signals {
		byKind[s.kind] = append(byKind[s.kind], s.confidence)
	}

	best := signal{confidence: -1}
	for kind, confs := range byKind {
		maxConf := 0.0
		for _, c := range confs {
			if c > maxConf {
				maxConf = c
			}
		}
		agreeing := len(confs) >= 2
		bestAgreeing := best.confidence >= 0 && len(byKind[best.kind]) >= 2
		switch {
		case agreeing && !bestAgreeing:
			best = signal{kind, maxConf}
		case agreeing == bestAgreeing && maxConf > best.confidence:
			best = signal{kind, maxConf}
		}
	}
	return best.kind, best.confidence
}

// signsOnlyStyles reports whether parsed ASS content carries only
// signs-style events and no dialogue.
func signsOnlyStyles(content []byte) bool {
	lines := strings.Split(string(content), "\n")
	events := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Dialogue:") {
			continue
		}
		events++
		// Dialogue: Layer, Start, End, Style, ...
		fields := strings.SplitN(strings.TrimPrefix(line, "Dialogue:"), ",", 5)
		if len(fields) < 4 {
			return false
		}
		style := strings.ToLower(strings.TrimSpace(fields[3]))
		if !strings.Contains(style, "sign") && !strings.Contains(style, "song") && !strings.Contains(style, "caption") {
			return false
		}
	}
	return events > 0
}
