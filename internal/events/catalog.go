// SPDX-License-Identifier: MIT

// Package events is the in-process signal bus. The catalog below is the
// authoritative schema: every event name and its payload keys are enumerated
// here, and Emit drops anything outside it. Payload values are scalars;
// secrets and absolute filesystem paths are forbidden, so path-like payloads
// carry base names only.
package events

// Event names.
const (
	WantedItemAdded        = "wanted_item_added"
	WantedItemProcessed    = "wanted_item_processed"
	WantedItemFailed       = "wanted_item_failed"
	WantedScanComplete     = "wanted_scan_complete"
	SubtitleDownloaded     = "subtitle_downloaded"
	SubtitleUpgraded       = "subtitle_upgraded"
	WebhookStage           = "webhook_stage"
	ProviderBreakerChanged = "provider_breaker_changed"
	PluginsReloaded        = "plugins_reloaded"
	BlacklistAdded         = "blacklist_added"
)

// catalog maps each event name to its allowed payload keys.
var catalog = map[string]map[string]struct{}{
	WantedItemAdded:        keys("id", "kind", "language", "subtitle_kind", "title"),
	WantedItemProcessed:    keys("id", "kind", "language", "subtitle_kind", "provider", "score", "title"),
	WantedItemFailed:       keys("id", "kind", "language", "subtitle_kind", "search_count", "retry_in_seconds", "title"),
	WantedScanComplete:     keys("added", "removed", "duration_seconds"),
	SubtitleDownloaded:     keys("provider", "language", "format", "score", "file", "source"),
	SubtitleUpgraded:       keys("provider", "language", "old_format", "new_format", "old_score", "new_score", "file", "reason"),
	WebhookStage:           keys("pipeline_id", "stage", "status", "detail"),
	ProviderBreakerChanged: keys("provider", "state"),
	PluginsReloaded:        keys("loaded", "skipped"),
	BlacklistAdded:         keys("provider", "external_id", "language", "title", "reason"),
}

func keys(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// Known reports whether an event name is part of the catalog.
func Known(name string) bool {
	_, ok := catalog[name]
	return ok
}
