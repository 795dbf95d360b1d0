// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kzmx/subarr/internal/metrics"
)

// WantedStore persists the wanted-item state machine. All writes are short
// transactions; the unique index on (path, language, kind) resolves insert
// races in favour of the surviving row.
type WantedStore struct {
	db *sql.DB
}

// NewWantedStore wraps the shared connection pool.
func NewWantedStore(db *sql.DB) *WantedStore {
	return &WantedStore{db: db}
}

const wantedColumns = `id, kind, media_file_path, target_language, subtitle_kind, status,
	search_count, last_search_at, retry_after, current_score, upgrade_candidate,
	series_id, episode_id, movie_id, title, created_at, updated_at`

func scanWanted(row interface{ Scan(...any) error }) (WantedItem, error) {
	var w WantedItem
	var lastSearch, retryAfter sql.NullString
	var createdAt, updatedAt string
	var upgrade int

	err := row.Scan(&w.ID, &w.Kind, &w.Path, &w.Language, &w.SubtitleKind, &w.Status,
		&w.SearchCount, &lastSearch, &retryAfter, &w.CurrentScore, &upgrade,
		&w.Linked.SeriesID, &w.Linked.EpisodeID, &w.Linked.MovieID, &w.Linked.Title,
		&createdAt, &updatedAt)
	if err != nil {
		return WantedItem{}, err
	}

	w.UpgradeCandidate = upgrade != 0
	if w.LastSearchAt, err = scanNullableTime(lastSearch); err != nil {
		return WantedItem{}, fmt.Errorf("last_search_at: %w", err)
	}
	if w.RetryAfter, err = scanNullableTime(retryAfter); err != nil {
		return WantedItem{}, fmt.Errorf("retry_after: %w", err)
	}
	if w.CreatedAt, err = parseTime(createdAt); err != nil {
		return WantedItem{}, fmt.Errorf("created_at: %w", err)
	}
	if w.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return WantedItem{}, fmt.Errorf("updated_at: %w", err)
	}
	return w, nil
}

// Upsert inserts a wanted row or returns the existing one for the same
// (path, language, kind). Concurrent callers racing on the same triple all
// receive the id of the row that won the unique index.
func (s *WantedStore) Upsert(ctx context.Context, kind MediaKind, path, language, subtitleKind string, linked LinkedIDs) (int64, bool, error) {
	now := formatTime(timeNow())

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO wanted_items
			(kind, media_file_path, target_language, subtitle_kind, status,
			 series_id, episode_id, movie_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'wanted', ?, ?, ?, ?, ?, ?)
		ON CONFLICT (media_file_path, target_language, subtitle_kind) DO NOTHING`,
		kind, path, language, subtitleKind,
		linked.SeriesID, linked.EpisodeID, linked.MovieID, linked.Title, now, now)
	if err != nil {
		return 0, false, fmt.Errorf("upsert wanted: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM wanted_items WHERE media_file_path = ? AND target_language = ? AND subtitle_kind = ?`,
		path, language, subtitleKind).Scan(&id)
	if err != nil {
		return 0, false, fmt.Errorf("select after upsert: %w", err)
	}

	return id, affected > 0, nil
}

// Get returns one wanted item by id.
func (s *WantedStore) Get(ctx context.Context, id int64) (WantedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+wantedColumns+` FROM wanted_items WHERE id = ?`, id)
	return scanWanted(row)
}

// Claim atomically moves an item into searching when it is still claimable.
// It returns false when another worker owns the item or it reached a
// terminal state; this is the per-id in-flight guard.
func (s *WantedStore) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	// retry_after stays put: a claim that fails again computes a fresh
	// value, and the watchdog path releases back to wanted which clears it.
	res, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'searching', last_search_at = ?,
		    search_count = search_count + 1, updated_at = ?
		WHERE id = ? AND status IN ('wanted', 'failed')`,
		formatTime(now), formatTime(now), id)
	if err != nil {
		return false, fmt.Errorf("claim wanted %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// MarkFailed parks the item for retry at retryAfter.
func (s *WantedStore) MarkFailed(ctx context.Context, id int64, now, retryAfter time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'failed', retry_after = ?, updated_at = ?
		WHERE id = ?`,
		formatTime(retryAfter), formatTime(now), id)
	return err
}

// MarkDone finishes the item with the installed score.
func (s *WantedStore) MarkDone(ctx context.Context, id int64, now time.Time, score int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'done', retry_after = NULL, current_score = ?,
		    upgrade_candidate = 0, updated_at = ?
		WHERE id = ?`,
		score, formatTime(now), id)
	return err
}

// MarkBlacklisted parks the item permanently.
func (s *WantedStore) MarkBlacklisted(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'blacklisted', updated_at = ?
		WHERE id = ?`,
		formatTime(timeNow()), id)
	return err
}

// MarkUpgradeCandidate re-opens a done item because policy allows replacing
// its installed subtitle.
func (s *WantedStore) MarkUpgradeCandidate(ctx context.Context, id int64, score int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'wanted', upgrade_candidate = 1, current_score = ?,
		    retry_after = NULL, updated_at = ?
		WHERE id = ?`,
		score, formatTime(timeNow()), id)
	return err
}

// ListDue returns claimable items whose retry time has passed, ordered by
// retry_after then id. Rows that never failed (null retry_after) are due
// immediately.
func (s *WantedStore) ListDue(ctx context.Context, now time.Time, limit int) ([]WantedItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+wantedColumns+` FROM wanted_items
		WHERE status IN ('wanted', 'failed')
		  AND (retry_after IS NULL OR retry_after <= ?)
		ORDER BY retry_after IS NOT NULL, retry_after, id
		LIMIT ?`,
		formatTime(now), limit)
	if err != nil {
		return nil, fmt.Errorf("list due: %w", err)
	}
	defer rows.Close()

	var out []WantedItem
	for rows.Next() {
		w, err := scanWanted(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// ReleaseStale reverts searching claims older than the cutoff back to
// wanted. This is the watchdog against workers that died mid-search.
func (s *WantedStore) ReleaseStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wanted_items
		SET status = 'wanted', retry_after = NULL, updated_at = ?
		WHERE status = 'searching' AND last_search_at < ?`,
		formatTime(timeNow()), formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("release stale: %w", err)
	}
	return res.RowsAffected()
}

// ListFilter narrows List results.
type ListFilter struct {
	Status   Status
	Kind     MediaKind
	SeriesID *int64
	Path     string
	Offset   int
	Limit    int
}

// List returns one page of wanted items plus the total count of rows
// matching the same filters.
func (s *WantedStore) List(ctx context.Context, f ListFilter) ([]WantedItem, int, error) {
	var where []string
	var args []any

	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.SeriesID != nil {
		where = append(where, "series_id = ?")
		args = append(args, *f.SeriesID)
	}
	if f.Path != "" {
		where = append(where, "media_file_path = ?")
		args = append(args, f.Path)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM wanted_items`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count wanted: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+wantedColumns+` FROM wanted_items`+clause+` ORDER BY id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list wanted: %w", err)
	}
	defer rows.Close()

	var out []WantedItem
	for rows.Next() {
		w, err := scanWanted(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, w)
	}
	return out, total, rows.Err()
}

// DeleteByPath removes every wanted row for one media file. Used when the
// file disappears or a delete webhook arrives.
func (s *WantedStore) DeleteByPath(ctx context.Context, path string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM wanted_items WHERE media_file_path = ?`, path)
	if err != nil {
		return 0, fmt.Errorf("delete by path: %w", err)
	}
	return res.RowsAffected()
}

// DeleteMissing removes wanted rows whose path is not in the live set.
// The live set is passed as a temp table to keep the statement bounded.
func (s *WantedStore) DeleteMissing(ctx context.Context, livePaths map[string]struct{}) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT media_file_path FROM wanted_items`)
	if err != nil {
		return 0, fmt.Errorf("list paths: %w", err)
	}
	var stale []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		if _, ok := livePaths[p]; !ok {
			stale = append(stale, p)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var removed int64
	for _, p := range stale {
		n, err := s.DeleteByPath(ctx, p)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	return removed, nil
}

// Stats returns row counts per status and refreshes the gauge metrics.
func (s *WantedStore) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM wanted_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("wanted stats: %w", err)
	}
	defer rows.Close()

	out := map[Status]int{
		StatusWanted: 0, StatusSearching: 0, StatusFailed: 0, StatusDone: 0, StatusBlacklisted: 0,
	}
	for rows.Next() {
		var st Status
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	for st, n := range out {
		metrics.SetWantedCount(string(st), n)
	}
	return out, rows.Err()
}
