// SPDX-License-Identifier: MIT

package search

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/subtitles"
)

const srtPayload = "1\n00:00:01,000 --> 00:00:02,000\nHallo Welt\n"

func testInstaller(t *testing.T, cfg config.Settings, p providers.Provider) (*Installer, *storage.HistoryStore) {
	t.Helper()
	reg := providers.NewRegistry()
	reg.Register(p)
	_, _, history := testStores(t)
	breakers := resilience.NewRegistry(cfg.BreakerFailures, cfg.BreakerCooldown)
	return NewInstaller(reg, breakers, history, nil, cfg), history
}

func TestInstallWritesSidecarAtomically(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "Show.S01E02.mkv")
	require.NoError(t, os.WriteFile(media, []byte("x"), 0o644))

	p := &fakeProvider{name: "alpha", payload: []byte(srtPayload)}
	in, history := testInstaller(t, config.Defaults(), p)

	item := storage.WantedItem{Path: media, Language: "de", SubtitleKind: "full"}
	r := Result{Candidate: cand("alpha", "a1", "Show", 1, 2), Effective: 210}

	got, err := in.Install(context.Background(), item, r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Show.S01E02.de.srt"), got.Path)
	assert.Equal(t, subtitles.FormatSRT, got.Format)

	data, err := os.ReadFile(got.Path)
	require.NoError(t, err)
	assert.Equal(t, srtPayload, string(data))

	rows, total, err := history.ListDownloads(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "alpha", rows[0].ProviderName)
	assert.Equal(t, 210, rows[0].Score)
	assert.Equal(t, "provider", rows[0].Source)
}

func TestInstallForcedKindInPath(t *testing.T) {
	dir := t.TempDir()
	media := filepath.Join(dir, "Show.S01E02.mkv")

	p := &fakeProvider{name: "alpha", payload: []byte(srtPayload)}
	in, _ := testInstaller(t, config.Defaults(), p)

	item := storage.WantedItem{Path: media, Language: "de", SubtitleKind: "forced"}
	got, err := in.Install(context.Background(), item, Result{Candidate: cand("alpha", "a1", "Show", 1, 2)})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Show.S01E02.de.forced.srt"), got.Path)
}

func TestInstallRejectsEmptyPayload(t *testing.T) {
	p := &fakeProvider{name: "alpha", payload: nil}
	in, _ := testInstaller(t, config.Defaults(), p)

	item := storage.WantedItem{Path: filepath.Join(t.TempDir(), "m.mkv"), Language: "de"}
	_, err := in.Install(context.Background(), item, Result{Candidate: cand("alpha", "a1", "Show", 1, 2)})
	assert.ErrorContains(t, err, "empty subtitle")
}

func TestInstallStopsOnLowDiskSpace(t *testing.T) {
	p := &fakeProvider{name: "alpha", payload: []byte(srtPayload)}
	cfg := config.Defaults()
	in, _ := testInstaller(t, cfg, p)
	in.freeSpace = func(string) (uint64, error) { return cfg.MinFreeDiskBytes - 1, nil }

	item := storage.WantedItem{Path: filepath.Join(t.TempDir(), "m.mkv"), Language: "de"}
	_, err := in.Install(context.Background(), item, Result{Candidate: cand("alpha", "a1", "Show", 1, 2)})
	assert.ErrorContains(t, err, "bytes free")
}

func TestInstallRecordsBreakerFailure(t *testing.T) {
	p := &fakeProvider{name: "alpha", err: errors.New("download refused")}
	cfg := config.Defaults()
	in, _ := testInstaller(t, cfg, p)

	item := storage.WantedItem{Path: filepath.Join(t.TempDir(), "m.mkv"), Language: "de"}
	_, err := in.Install(context.Background(), item, Result{Candidate: cand("alpha", "a1", "Show", 1, 2)})
	require.Error(t, err)
	assert.Equal(t, 1, in.breakers.For("alpha").Status().Failures)
	assert.Equal(t, downloadTries, p.downloads, "download is retried once before giving up")
}

func TestInstallRefusesOpenBreaker(t *testing.T) {
	p := &fakeProvider{name: "alpha", payload: []byte(srtPayload)}
	cfg := config.Defaults()
	cfg.BreakerFailures = 1
	in, _ := testInstaller(t, cfg, p)
	in.breakers.For("alpha").RecordFailure()

	item := storage.WantedItem{Path: filepath.Join(t.TempDir(), "m.mkv"), Language: "de"}
	_, err := in.Install(context.Background(), item, Result{Candidate: cand("alpha", "a1", "Show", 1, 2)})
	assert.ErrorContains(t, err, "breaker open")
	assert.Zero(t, p.downloads)
}
