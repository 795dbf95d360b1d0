// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// BlacklistStore persists banned (provider, external id) pairs. The
// aggregator consults it before every download.
type BlacklistStore struct {
	db *sql.DB
}

// NewBlacklistStore wraps the shared connection pool.
func NewBlacklistStore(db *sql.DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Add inserts an entry; re-adding an existing pair is treated as success of
// the pre-existing row.
func (s *BlacklistStore) Add(ctx context.Context, e BlacklistEntry) (int64, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blacklist
			(provider_name, external_id, language, media_file_path, title, reason, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_name, external_id) DO NOTHING`,
		e.ProviderName, e.ExternalID, e.Language, e.Path, e.Title, e.Reason,
		formatTime(timeNow()))
	if err != nil {
		return 0, fmt.Errorf("add blacklist: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM blacklist WHERE provider_name = ? AND external_id = ?`,
		e.ProviderName, e.ExternalID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("select blacklist id: %w", err)
	}
	return id, nil
}

// Delete removes one entry by id.
func (s *BlacklistStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM blacklist WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete blacklist: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Contains reports whether the pair is banned.
func (s *BlacklistStore) Contains(ctx context.Context, provider, externalID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM blacklist WHERE provider_name = ? AND external_id = ?`,
		provider, externalID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("blacklist lookup: %w", err)
	}
	return n > 0, nil
}

// List returns every entry, newest first.
func (s *BlacklistStore) List(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, provider_name, external_id, language, media_file_path, title, reason, added_at
		FROM blacklist ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blacklist: %w", err)
	}
	defer rows.Close()

	var out []BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		var at string
		if err := rows.Scan(&e.ID, &e.ProviderName, &e.ExternalID, &e.Language,
			&e.Path, &e.Title, &e.Reason, &at); err != nil {
			return nil, err
		}
		if e.AddedAt, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("added_at: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
