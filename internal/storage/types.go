// SPDX-License-Identifier: MIT

package storage

import "time"

// timeNow is swappable in tests.
var timeNow = time.Now

// MediaKind distinguishes series episodes from movies.
type MediaKind string

const (
	KindEpisode MediaKind = "episode"
	KindMovie   MediaKind = "movie"
)

// Status is the wanted-item lifecycle state.
type Status string

const (
	StatusWanted      Status = "wanted"
	StatusSearching   Status = "searching"
	StatusFailed      Status = "failed"
	StatusDone        Status = "done"
	StatusBlacklisted Status = "blacklisted"
)

// LinkedIDs ties a wanted item back to the upstream manager's entities.
type LinkedIDs struct {
	SeriesID  *int64 `json:"series_id,omitempty"`
	EpisodeID *int64 `json:"episode_id,omitempty"`
	MovieID   *int64 `json:"movie_id,omitempty"`
	Title     string `json:"title"`
}

// WantedItem is one (media file, language, kind) triple needing a subtitle.
type WantedItem struct {
	ID               int64      `json:"id"`
	Kind             MediaKind  `json:"kind"`
	Path             string     `json:"media_file_path"`
	Language         string     `json:"target_language"`
	SubtitleKind     string     `json:"subtitle_kind"`
	Status           Status     `json:"status"`
	SearchCount      int        `json:"search_count"`
	LastSearchAt     *time.Time `json:"last_search_at,omitempty"`
	RetryAfter       *time.Time `json:"retry_after,omitempty"`
	CurrentScore     int        `json:"current_score"`
	UpgradeCandidate bool       `json:"upgrade_candidate"`
	Linked           LinkedIDs  `json:"linked_ids"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// DownloadRecord is written once per successful install.
type DownloadRecord struct {
	ID            int64     `json:"id"`
	ProviderName  string    `json:"provider_name"`
	ExternalID    string    `json:"external_id"`
	Language      string    `json:"language"`
	Format        string    `json:"format"`
	InstalledPath string    `json:"installed_path"`
	Score         int       `json:"score"`
	SubtitleKind  string    `json:"subtitle_kind"`
	Source        string    `json:"source"` // "provider" or "local_stt"
	DownloadedAt  time.Time `json:"downloaded_at"`
}

// UpgradeRecord is one append-only upgrade-history row.
type UpgradeRecord struct {
	ID           int64     `json:"id"`
	Path         string    `json:"media_file_path"`
	OldFormat    string    `json:"old_format"`
	OldScore     int       `json:"old_score"`
	NewFormat    string    `json:"new_format"`
	NewScore     int       `json:"new_score"`
	ProviderName string    `json:"provider_name"`
	Reason       string    `json:"reason"`
	UpgradedAt   time.Time `json:"upgraded_at"`
}

// BlacklistEntry bans one (provider, external id) pair from download.
type BlacklistEntry struct {
	ID           int64     `json:"id"`
	ProviderName string    `json:"provider_name"`
	ExternalID   string    `json:"external_id"`
	Language     string    `json:"language"`
	Path         string    `json:"media_file_path"`
	Title        string    `json:"title"`
	Reason       string    `json:"reason"`
	AddedAt      time.Time `json:"added_at"`
}

// ProviderStats is the per-provider call ledger, updated after every call.
type ProviderStats struct {
	ProviderName        string     `json:"provider_name"`
	TotalSearches       int64      `json:"total_searches"`
	Successes           int64      `json:"successes"`
	Failures            int64      `json:"failures"`
	AvgScore            float64    `json:"avg_score"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	AvgResponseTimeMS   float64    `json:"avg_response_time_ms"`
	AutoDisabled        bool       `json:"auto_disabled"`
	DisabledUntil       *time.Time `json:"disabled_until,omitempty"`
}
