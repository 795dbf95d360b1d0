// SPDX-License-Identifier: MIT

package providers

import (
	"regexp"
	"strings"
)

// ReleaseInfo holds the release tokens used for score matching.
type ReleaseInfo struct {
	Group      string `json:"group,omitempty"`
	Source     string `json:"source,omitempty"`     // web, bluray, hdtv, dvd
	Resolution string `json:"resolution,omitempty"` // 2160p, 1080p, 720p, 480p
	AudioCodec string `json:"audio_codec,omitempty"`
}

var (
	resolutionRe = regexp.MustCompile(`(?i)\b(2160p|1080p|720p|480p)\b`)
	groupRe      = regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.[a-z0-9]{2,4})?$`)
)

var sourceTokens = map[string]string{
	"webdl":  "web",
	"webrip": "web",
	"web":    "web",
	"bluray": "bluray",
	"bdrip":  "bluray",
	"brrip":  "bluray",
	"hdtv":   "hdtv",
	"dvdrip": "dvd",
	"dvd":    "dvd",
}

var audioTokens = map[string]string{
	"aac":    "aac",
	"ac3":    "ac3",
	"eac3":   "eac3",
	"dts":    "dts",
	"truehd": "truehd",
	"flac":   "flac",
	"opus":   "opus",
}

// ParseRelease extracts release group, source, resolution and audio codec
// from a release-style file name. Missing tokens stay empty.
func ParseRelease(name string) ReleaseInfo {
	var info ReleaseInfo

	if m := resolutionRe.FindString(name); m != "" {
		info.Resolution = strings.ToLower(m)
	}
	if m := groupRe.FindStringSubmatch(name); m != nil {
		info.Group = strings.ToLower(m[1])
	}
	for _, tok := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == '.' || r == ' ' || r == '_' || r == '-' || r == '[' || r == ']' || r == '(' || r == ')'
	}) {
		if s, ok := sourceTokens[tok]; ok && info.Source == "" {
			info.Source = s
		}
		if a, ok := audioTokens[tok]; ok && info.AudioCodec == "" {
			info.AudioCodec = a
		}
	}
	return info
}
