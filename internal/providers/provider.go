// SPDX-License-Identifier: MIT

// Package providers defines the subtitle provider contract, the provider
// registry and the built-in HTTP providers. Lua plugin providers live in
// the luaplugin subpackage and are swapped into the registry at reload.
package providers

import (
	"context"

	"github.com/kzmx/subarr/internal/subtitles"
)

// Query describes one search against a provider. Zero values mean the
// field is unknown or not applicable.
type Query struct {
	Title    string // series title for episodes, movie title for movies
	Year     int
	Season   int
	Episode  int
	Movie    bool // movie search rather than episode search
	Language string
	Kind     subtitles.Kind // empty means any kind is acceptable
	FileHash string         // media file hash, if computed
	Release  ReleaseInfo    // tokens parsed from the media file name

	// HearingImpaired requests SDH subtitles when true.
	HearingImpaired bool
}

// Candidate is one subtitle result returned by a provider.
type Candidate struct {
	ProviderName string `json:"provider_name"`
	ExternalID   string `json:"external_id"`
	Language     string `json:"language"`

	Filename    string           `json:"filename"`
	Format      subtitles.Format `json:"format"`
	StreamTitle string           `json:"stream_title,omitempty"`

	Title   string `json:"title,omitempty"`
	Year    int    `json:"year,omitempty"`
	Season  int    `json:"season,omitempty"`
	Episode int    `json:"episode,omitempty"`

	Release         ReleaseInfo `json:"release"`
	HashMatch       bool        `json:"hash_match"`
	HearingImpaired bool        `json:"hearing_impaired"`

	// DownloadURL is used by HTTP providers; plugin providers carry what
	// they need in Metadata instead.
	DownloadURL string            `json:"download_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// DetectKind classifies the candidate as full, forced or signs from its
// file name and stream title.
func (c Candidate) DetectKind() (subtitles.Kind, float64) {
	return subtitles.Classify(subtitles.Signals{
		Filename:    c.Filename,
		StreamTitle: c.StreamTitle,
	})
}

// ConfigField describes one provider setting for the settings UI.
type ConfigField struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	Type     string `json:"type"` // text, password or number
	Required bool   `json:"required"`
	Default  string `json:"default,omitempty"`
	Help     string `json:"help,omitempty"`
}

// Info is static provider metadata.
type Info struct {
	Version      string        `json:"version"`
	Author       string        `json:"author"`
	Description  string        `json:"description"`
	ConfigFields []ConfigField `json:"config_fields,omitempty"`
	Languages    []string      `json:"languages,omitempty"` // empty means unrestricted
	RequiresAuth bool          `json:"requires_auth"`
}

// Provider is a subtitle source. Implementations must be safe for
// concurrent use.
type Provider interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Candidate, error)
	Download(ctx context.Context, c Candidate) ([]byte, error)
	Info() Info
}

// Configurable is implemented by providers that accept runtime settings,
// keyed by the field keys they advertise in Info.
type Configurable interface {
	Configure(settings map[string]string) error
}
