// SPDX-License-Identifier: MIT

package storage

import (
	"database/sql"
	"fmt"

	"github.com/kzmx/subarr/internal/log"
)

// migration is one ordered schema step. Steps must stay append-only; editing
// an applied step breaks existing databases.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "wanted_items",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS wanted_items (
				id               INTEGER PRIMARY KEY AUTOINCREMENT,
				kind             TEXT NOT NULL CHECK (kind IN ('episode','movie')),
				media_file_path  TEXT NOT NULL,
				target_language  TEXT NOT NULL,
				subtitle_kind    TEXT NOT NULL CHECK (subtitle_kind IN ('full','forced','signs')),
				status           TEXT NOT NULL DEFAULT 'wanted'
					CHECK (status IN ('wanted','searching','failed','done','blacklisted')),
				search_count     INTEGER NOT NULL DEFAULT 0,
				last_search_at   TEXT,
				retry_after      TEXT,
				current_score    INTEGER NOT NULL DEFAULT 0 CHECK (current_score >= 0),
				upgrade_candidate INTEGER NOT NULL DEFAULT 0,
				series_id        INTEGER,
				episode_id       INTEGER,
				movie_id         INTEGER,
				title            TEXT NOT NULL DEFAULT '',
				created_at       TEXT NOT NULL,
				updated_at       TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_wanted_unique
				ON wanted_items (media_file_path, target_language, subtitle_kind)`,
			`CREATE INDEX IF NOT EXISTS idx_wanted_status_kind ON wanted_items (status, kind)`,
			`CREATE INDEX IF NOT EXISTS idx_wanted_retry_after ON wanted_items (retry_after)`,
		},
	},
	{
		version: 2,
		name:    "subtitle_downloads",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS subtitle_downloads (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				provider_name  TEXT NOT NULL,
				external_id    TEXT NOT NULL,
				language       TEXT NOT NULL,
				format         TEXT NOT NULL,
				installed_path TEXT NOT NULL,
				score          INTEGER NOT NULL,
				subtitle_kind  TEXT NOT NULL,
				source         TEXT NOT NULL DEFAULT 'provider'
					CHECK (source IN ('provider','local_stt')),
				downloaded_at  TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_downloads_time ON subtitle_downloads (downloaded_at)`,
		},
	},
	{
		version: 3,
		name:    "upgrade_history",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS upgrade_history (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				media_file_path TEXT NOT NULL,
				old_format      TEXT NOT NULL,
				old_score       INTEGER NOT NULL,
				new_format      TEXT NOT NULL,
				new_score       INTEGER NOT NULL,
				provider_name   TEXT NOT NULL,
				reason          TEXT NOT NULL,
				upgraded_at     TEXT NOT NULL
			)`,
		},
	},
	{
		version: 4,
		name:    "blacklist",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS blacklist (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				provider_name   TEXT NOT NULL,
				external_id     TEXT NOT NULL,
				language        TEXT NOT NULL DEFAULT '',
				media_file_path TEXT NOT NULL DEFAULT '',
				title           TEXT NOT NULL DEFAULT '',
				reason          TEXT NOT NULL DEFAULT '',
				added_at        TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_blacklist_unique
				ON blacklist (provider_name, external_id)`,
		},
	},
	{
		version: 5,
		name:    "provider_stats",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS provider_stats (
				provider_name        TEXT PRIMARY KEY,
				total_searches       INTEGER NOT NULL DEFAULT 0,
				successes            INTEGER NOT NULL DEFAULT 0,
				failures             INTEGER NOT NULL DEFAULT 0,
				avg_score            REAL NOT NULL DEFAULT 0,
				last_success_at      TEXT,
				last_failure_at      TEXT,
				consecutive_failures INTEGER NOT NULL DEFAULT 0,
				avg_response_time_ms REAL NOT NULL DEFAULT 0,
				auto_disabled        INTEGER NOT NULL DEFAULT 0,
				disabled_until       TEXT
			)`,
		},
	},
	{
		version: 6,
		name:    "settings_overrides",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS settings (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
}

// Migrate applies every pending migration in order, each inside its own
// transaction. Re-running is a no-op.
func Migrate(db *sql.DB) error {
	logger := log.WithComponent("storage")

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var applied int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, m.version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if applied > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
			}
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`,
			m.version, m.name, formatTime(timeNow())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}

		logger.Info().Int("version", m.version).Str("name", m.name).Msg("applied migration")
	}

	return nil
}
