// SPDX-License-Identifier: MIT

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ProviderStatsStore keeps one ledger row per registered provider, updated
// after every search or download call.
type ProviderStatsStore struct {
	db *sql.DB
}

// NewProviderStatsStore wraps the shared connection pool.
func NewProviderStatsStore(db *sql.DB) *ProviderStatsStore {
	return &ProviderStatsStore{db: db}
}

// Ensure creates the ledger row for a provider if absent. Called at
// registration time so every provider has a row.
func (s *ProviderStatsStore) Ensure(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_stats (provider_name) VALUES (?)
		ON CONFLICT (provider_name) DO NOTHING`, provider)
	if err != nil {
		return fmt.Errorf("ensure provider stats: %w", err)
	}
	return nil
}

// RecordSuccess updates the ledger after a successful call. The rolling
// averages use a cumulative mean over the success count.
func (s *ProviderStatsStore) RecordSuccess(ctx context.Context, provider string, score int, elapsed time.Duration) error {
	if err := s.Ensure(ctx, provider); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE provider_stats SET
			total_searches = total_searches + 1,
			successes = successes + 1,
			consecutive_failures = 0,
			avg_score = (avg_score * successes + ?) / (successes + 1),
			avg_response_time_ms = (avg_response_time_ms * total_searches + ?) / (total_searches + 1),
			last_success_at = ?,
			auto_disabled = 0,
			disabled_until = NULL
		WHERE provider_name = ?`,
		score, float64(elapsed.Milliseconds()), formatTime(timeNow()), provider)
	if err != nil {
		return fmt.Errorf("record provider success: %w", err)
	}
	return nil
}

// RecordFailure updates the ledger after a failed call. When disableAfter is
// positive and the consecutive-failure run reaches it, the provider is
// auto-disabled until disabledUntil.
func (s *ProviderStatsStore) RecordFailure(ctx context.Context, provider string, elapsed time.Duration, disableAfter int, disabledUntil time.Time) error {
	if err := s.Ensure(ctx, provider); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE provider_stats SET
			total_searches = total_searches + 1,
			failures = failures + 1,
			consecutive_failures = consecutive_failures + 1,
			avg_response_time_ms = (avg_response_time_ms * total_searches + ?) / (total_searches + 1),
			last_failure_at = ?,
			auto_disabled = CASE WHEN ? > 0 AND consecutive_failures + 1 >= ? THEN 1 ELSE auto_disabled END,
			disabled_until = CASE WHEN ? > 0 AND consecutive_failures + 1 >= ? THEN ? ELSE disabled_until END
		WHERE provider_name = ?`,
		float64(elapsed.Milliseconds()), formatTime(timeNow()),
		disableAfter, disableAfter, disableAfter, disableAfter, formatTime(disabledUntil),
		provider)
	if err != nil {
		return fmt.Errorf("record provider failure: %w", err)
	}
	return nil
}

// ClearDisable lifts an auto-disable and resets the failure run. Used by
// the operator breaker-reset endpoint.
func (s *ProviderStatsStore) ClearDisable(ctx context.Context, provider string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE provider_stats SET
			auto_disabled = 0,
			disabled_until = NULL,
			consecutive_failures = 0
		WHERE provider_name = ?`, provider)
	if err != nil {
		return fmt.Errorf("clear provider disable: %w", err)
	}
	return nil
}

// Get returns the ledger row for one provider.
func (s *ProviderStatsStore) Get(ctx context.Context, provider string) (ProviderStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider_name, total_searches, successes, failures, avg_score,
		       last_success_at, last_failure_at, consecutive_failures,
		       avg_response_time_ms, auto_disabled, disabled_until
		FROM provider_stats WHERE provider_name = ?`, provider)
	return scanProviderStats(row)
}

// All returns every ledger row keyed by provider name.
func (s *ProviderStatsStore) All(ctx context.Context) (map[string]ProviderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_name, total_searches, successes, failures, avg_score,
		       last_success_at, last_failure_at, consecutive_failures,
		       avg_response_time_ms, auto_disabled, disabled_until
		FROM provider_stats`)
	if err != nil {
		return nil, fmt.Errorf("list provider stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ProviderStats)
	for rows.Next() {
		ps, err := scanProviderStats(rows)
		if err != nil {
			return nil, err
		}
		out[ps.ProviderName] = ps
	}
	return out, rows.Err()
}

func scanProviderStats(row interface{ Scan(...any) error }) (ProviderStats, error) {
	var ps ProviderStats
	var lastSuccess, lastFailure, disabledUntil sql.NullString
	var autoDisabled int

	err := row.Scan(&ps.ProviderName, &ps.TotalSearches, &ps.Successes, &ps.Failures,
		&ps.AvgScore, &lastSuccess, &lastFailure, &ps.ConsecutiveFailures,
		&ps.AvgResponseTimeMS, &autoDisabled, &disabledUntil)
	if err != nil {
		return ProviderStats{}, err
	}

	ps.AutoDisabled = autoDisabled != 0
	if ps.LastSuccessAt, err = scanNullableTime(lastSuccess); err != nil {
		return ProviderStats{}, fmt.Errorf("last_success_at: %w", err)
	}
	if ps.LastFailureAt, err = scanNullableTime(lastFailure); err != nil {
		return ProviderStats{}, fmt.Errorf("last_failure_at: %w", err)
	}
	if ps.DisabledUntil, err = scanNullableTime(disabledUntil); err != nil {
		return ProviderStats{}, fmt.Errorf("disabled_until: %w", err)
	}
	return ps, nil
}
