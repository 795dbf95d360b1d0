// SPDX-License-Identifier: MIT

package subtitles

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

// SidecarPath computes the install destination for a subtitle next to its
// media file: the media base name plus a language tag, an optional kind tag
// and the format extension, e.g. /m/Show/S01E01.de.ass or
// /m/Show/S01E01.de.forced.srt.
func SidecarPath(mediaPath, language string, kind Kind, format Format) string {
	base := strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath))
	parts := []string{base, language}
	if kind == KindForced || kind == KindSigns {
		parts = append(parts, string(kind))
	}
	parts = append(parts, string(format))
	return strings.Join(parts, ".")
}

// HasSidecar reports whether any of the given existing file names satisfies
// the (language, kind) pair for the media file.
func HasSidecar(mediaPath, language string, kind Kind, siblings []string) bool {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	for _, name := range siblings {
		for _, format := range []Format{FormatASS, FormatSSA, FormatSRT, FormatVTT} {
			want := filepath.Base(SidecarPath(base, language, kind, format))
			if name == want {
				return true
			}
		}
	}
	return false
}

var srtTiming = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}[,.]\d{3}`)

// FormatFromExtension maps a file extension to a Format.
func FormatFromExtension(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "ass":
		return FormatASS, true
	case "ssa":
		return FormatSSA, true
	case "srt":
		return FormatSRT, true
	case "vtt":
		return FormatVTT, true
	}
	return "", false
}

// SniffFormat infers the subtitle format from content, for providers that
// return files without a usable name.
func SniffFormat(content []byte) (Format, bool) {
	head := content
	if len(head) > 512 {
		head = head[:512]
	}
	// Tolerate a UTF-8 BOM.
	head = bytes.TrimPrefix(head, []byte{0xEF, 0xBB, 0xBF})

	switch {
	case bytes.Contains(head, []byte("[Script Info]")):
		if bytes.Contains(content, []byte("[V4+ Styles]")) {
			return FormatASS, true
		}
		return FormatSSA, true
	case bytes.HasPrefix(head, []byte("WEBVTT")):
		return FormatVTT, true
	case srtTiming.Match(content):
		return FormatSRT, true
	}
	return "", false
}
