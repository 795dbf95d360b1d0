// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// HistoryStore persists download records and the append-only upgrade log.
type HistoryStore struct {
	db *sql.DB
}

// NewHistoryStore wraps the shared connection pool.
func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// AddDownload appends one download record and returns its id.
func (s *HistoryStore) AddDownload(ctx context.Context, d DownloadRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO subtitle_downloads
			(provider_name, external_id, language, format, installed_path,
			 score, subtitle_kind, source, downloaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ProviderName, d.ExternalID, d.Language, d.Format, d.InstalledPath,
		d.Score, d.SubtitleKind, d.Source, formatTime(d.DownloadedAt))
	if err != nil {
		return 0, fmt.Errorf("add download: %w", err)
	}
	return res.LastInsertId()
}

// ListDownloads returns a page of download history, newest first.
func (s *HistoryStore) ListDownloads(ctx context.Context, offset, limit int) ([]DownloadRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM subtitle_downloads`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count downloads: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_name, external_id, language, format, installed_path,
		       score, subtitle_kind, source, downloaded_at
		FROM subtitle_downloads
		ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list downloads: %w", err)
	}
	defer rows.Close()

	var out []DownloadRecord
	for rows.Next() {
		var d DownloadRecord
		var at string
		if err := rows.Scan(&d.ID, &d.ProviderName, &d.ExternalID, &d.Language, &d.Format,
			&d.InstalledPath, &d.Score, &d.SubtitleKind, &d.Source, &at); err != nil {
			return nil, 0, err
		}
		if d.DownloadedAt, err = parseTime(at); err != nil {
			return nil, 0, fmt.Errorf("downloaded_at: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

// AddUpgrade appends one row to the upgrade history.
func (s *HistoryStore) AddUpgrade(ctx context.Context, u UpgradeRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO upgrade_history
			(media_file_path, old_format, old_score, new_format, new_score,
			 provider_name, reason, upgraded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Path, u.OldFormat, u.OldScore, u.NewFormat, u.NewScore,
		u.ProviderName, u.Reason, formatTime(u.UpgradedAt))
	if err != nil {
		return 0, fmt.Errorf("add upgrade: %w", err)
	}
	return res.LastInsertId()
}

// ListUpgrades returns a page of upgrade history, newest first.
func (s *HistoryStore) ListUpgrades(ctx context.Context, offset, limit int) ([]UpgradeRecord, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM upgrade_history`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count upgrades: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, media_file_path, old_format, old_score, new_format, new_score,
		       provider_name, reason, upgraded_at
		FROM upgrade_history
		ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list upgrades: %w", err)
	}
	defer rows.Close()

	var out []UpgradeRecord
	for rows.Next() {
		var u UpgradeRecord
		var at string
		if err := rows.Scan(&u.ID, &u.Path, &u.OldFormat, &u.OldScore, &u.NewFormat,
			&u.NewScore, &u.ProviderName, &u.Reason, &at); err != nil {
			return nil, 0, err
		}
		if u.UpgradedAt, err = parseTime(at); err != nil {
			return nil, 0, fmt.Errorf("upgraded_at: %w", err)
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}
