// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kzmx/subarr/internal/cache"
	"github.com/kzmx/subarr/internal/config"
	"github.com/kzmx/subarr/internal/events"
	"github.com/kzmx/subarr/internal/providers"
	"github.com/kzmx/subarr/internal/providers/luaplugin"
	"github.com/kzmx/subarr/internal/resilience"
	"github.com/kzmx/subarr/internal/scheduler"
	"github.com/kzmx/subarr/internal/search"
	"github.com/kzmx/subarr/internal/storage"
	"github.com/kzmx/subarr/internal/webhook"
)

type fakeScanner struct{ calls atomic.Int32 }

func (f *fakeScanner) TriggerScan() { f.calls.Add(1) }

type fakeReloader struct {
	err    error
	errors []luaplugin.FileError
	calls  atomic.Int32
}

func (f *fakeReloader) Reload(context.Context) error  { f.calls.Add(1); return f.err }
func (f *fakeReloader) Errors() []luaplugin.FileError { return f.errors }

type staticProvider struct{ name string }

func (s *staticProvider) Name() string         { return s.name }
func (s *staticProvider) Info() providers.Info { return providers.Info{Version: "1.0"} }
func (s *staticProvider) Search(context.Context, providers.Query) ([]providers.Candidate, error) {
	return nil, nil
}
func (s *staticProvider) Download(context.Context, providers.Candidate) ([]byte, error) {
	return nil, nil
}

type fixture struct {
	srv       *httptest.Server
	cfg       config.Settings
	wanted    *storage.WantedStore
	history   *storage.HistoryStore
	blacklist *storage.BlacklistStore
	breakers  *resilience.Registry
	scanner   *fakeScanner
	reloader  *fakeReloader
	bus       *events.Bus
}

func newFixture(t *testing.T, cfg config.Settings) fixture {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "subarr.db"), storage.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(db))

	wanted := storage.NewWantedStore(db)
	history := storage.NewHistoryStore(db)
	stats := storage.NewProviderStatsStore(db)
	blacklist := storage.NewBlacklistStore(db)
	settings := storage.NewSettingsStore(db)

	reg := providers.NewRegistry()
	reg.Register(&staticProvider{name: "alpha"})
	breakers := resilience.NewRegistry(cfg.BreakerFailures, cfg.BreakerCooldown)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	agg := search.NewAggregator(reg, cache.NewMemory(), breakers, stats, blacklist, nil, cfg)
	inst := search.NewInstaller(reg, breakers, history, nil, cfg)
	proc := scheduler.NewProcessor(wanted, history, agg, inst, nil, nil, cfg)

	pipeline := webhook.NewPipeline(wanted, proc, nil, nil, nil, bus, cfg)
	pipeline.Start(context.Background())
	t.Cleanup(pipeline.Wait)

	scanner := &fakeScanner{}
	reloader := &fakeReloader{}
	s := NewServer(Deps{
		Config:    cfg,
		DB:        db,
		Wanted:    wanted,
		History:   history,
		Stats:     stats,
		Blacklist: blacklist,
		Settings:  settings,
		Registry:  reg,
		Breakers:  breakers,
		Plugins:   reloader,
		Scanner:   scanner,
		Processor: proc,
		Pipeline:  pipeline,
		Bus:       bus,
		Version:   "test",
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return fixture{
		srv: srv, cfg: cfg, wanted: wanted, history: history,
		blacklist: blacklist, breakers: breakers,
		scanner: scanner, reloader: reloader, bus: bus,
	}
}

func apiConfig() config.Settings {
	cfg := config.Defaults()
	cfg.ProviderOrder = []string{"alpha"}
	cfg.Profiles = []config.LanguageProfile{{Language: "de", Kind: "full", MinScore: 100}}
	return cfg
}

func (f fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	if f.cfg.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAuthRejectsMissingToken(t *testing.T) {
	cfg := apiConfig()
	cfg.APIToken = "secret-token"
	f := newFixture(t, cfg)

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/api/v1/wanted", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, CodeAuthRequired, body["code"])
	assert.NotEmpty(t, body["request_id"], "envelope carries the request id")

	ok := f.do(t, http.MethodGet, "/api/v1/wanted", nil)
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestHealthUnauthenticated(t *testing.T) {
	cfg := apiConfig()
	cfg.APIToken = "secret-token"
	f := newFixture(t, cfg)

	resp, err := http.Get(f.srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWantedListFilters(t *testing.T) {
	f := newFixture(t, apiConfig())
	ctx := context.Background()

	_, _, err := f.wanted.Upsert(ctx, storage.KindEpisode, "/tv/A.S01E01.mkv", "de", "full", storage.LinkedIDs{})
	require.NoError(t, err)
	_, _, err = f.wanted.Upsert(ctx, storage.KindMovie, "/movies/B.mkv", "de", "full", storage.LinkedIDs{})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/wanted?kind=movie", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	first := items[0].(map[string]any)
	assert.Equal(t, "/movies/B.mkv", first["media_file_path"])
}

func TestWantedGetNotFound(t *testing.T) {
	f := newFixture(t, apiConfig())

	resp := f.do(t, http.MethodGet, "/api/v1/wanted/999", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, CodeDBNotFound, body["code"])
}

func TestWantedRefreshSchedulesScan(t *testing.T) {
	f := newFixture(t, apiConfig())

	resp := f.do(t, http.MethodPost, "/api/v1/wanted/refresh", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, int32(1), f.scanner.calls.Load())
}

func TestProvidersListIncludesBreakerState(t *testing.T) {
	f := newFixture(t, apiConfig())
	f.breakers.For("alpha").RecordFailure()

	resp := f.do(t, http.MethodGet, "/api/v1/providers", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	views := body["providers"].([]any)
	require.Len(t, views, 1)
	v := views[0].(map[string]any)
	assert.Equal(t, "alpha", v["name"])
	breaker := v["breaker"].(map[string]any)
	assert.Equal(t, float64(1), breaker["failures"])
}

func TestBreakerReset(t *testing.T) {
	cfg := apiConfig()
	f := newFixture(t, cfg)
	cb := f.breakers.For("alpha")
	for i := 0; i < cfg.BreakerFailures; i++ {
		cb.RecordFailure()
	}
	require.False(t, cb.AllowRequest())

	resp := f.do(t, http.MethodPost, "/api/v1/providers/alpha/reset-breaker", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, cb.AllowRequest())

	missing := f.do(t, http.MethodPost, "/api/v1/providers/nope/reset-breaker", nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	body := decode(t, missing)
	assert.Equal(t, CodeProvUnknown, body["code"])
}

func TestPluginsReload(t *testing.T) {
	f := newFixture(t, apiConfig())
	f.reloader.errors = []luaplugin.FileError{{Path: "/plugins/bad.lua", Err: assert.AnError}}

	resp := f.do(t, http.MethodPost, "/api/v1/plugins/reload", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), f.reloader.calls.Load())

	body := decode(t, resp)
	skipped := body["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, "bad.lua", skipped[0].(map[string]any)["file"])
}

func TestWebhookSonarr(t *testing.T) {
	f := newFixture(t, apiConfig())

	resp := f.do(t, http.MethodPost, "/api/v1/webhook/sonarr",
		map[string]any{"eventType": "Test"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/v1/webhook/sonarr", map[string]any{
		"eventType":   "Download",
		"series":      map[string]any{"id": 5, "title": "Some Show"},
		"episodeFile": map[string]any{"id": 11, "path": "/tv/Some Show/S01E01.mkv"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	body := decode(t, resp)
	assert.NotEmpty(t, body["pipeline_id"])

	// Download without a path is malformed.
	resp = f.do(t, http.MethodPost, "/api/v1/webhook/sonarr",
		map[string]any{"eventType": "Download"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body = decode(t, resp)
	assert.Equal(t, CodeWHPayload, body["code"])
}

func TestBlacklistRoundTrip(t *testing.T) {
	f := newFixture(t, apiConfig())
	ctx := context.Background()

	id, _, err := f.wanted.Upsert(ctx, storage.KindEpisode, "/tv/A.S01E01.mkv", "de", "full", storage.LinkedIDs{})
	require.NoError(t, err)

	resp := f.do(t, http.MethodPost, "/api/v1/blacklist", map[string]any{
		"provider_name": "alpha",
		"external_id":   "x1",
		"language":      "de",
		"reason":        "bad sync",
		"wanted_id":     id,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	item, err := f.wanted.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusBlacklisted, item.Status)

	list := f.do(t, http.MethodGet, "/api/v1/blacklist", nil)
	entries := decode(t, list)["entries"].([]any)
	require.Len(t, entries, 1)
	entryID := int64(entries[0].(map[string]any)["id"].(float64))

	del := f.do(t, http.MethodDelete, "/api/v1/blacklist/"+itoa(entryID), nil)
	assert.Equal(t, http.StatusOK, del.StatusCode)

	missing := f.do(t, http.MethodDelete, "/api/v1/blacklist/"+itoa(entryID), nil)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestHistoryDownloads(t *testing.T) {
	f := newFixture(t, apiConfig())
	_, err := f.history.AddDownload(context.Background(), storage.DownloadRecord{
		ProviderName: "alpha", ExternalID: "x1", Language: "de",
		Format: "srt", InstalledPath: "/tv/A.S01E01.de.srt",
		Score: 240, SubtitleKind: "full", Source: "provider",
		DownloadedAt: time.Now(),
	})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, float64(1), body["total"])
}

func TestSettingsSecretsMasked(t *testing.T) {
	cfg := apiConfig()
	cfg.APIToken = "secret-token"
	cfg.Sonarr.APIKey = "sonarr-key"
	f := newFixture(t, cfg)

	resp := f.do(t, http.MethodGet, "/api/v1/system/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret-token")
	assert.NotContains(t, string(raw), "sonarr-key")
	assert.Contains(t, string(raw), "***")
}

func TestSettingsPutRejectsInvalid(t *testing.T) {
	f := newFixture(t, apiConfig())

	resp := f.do(t, http.MethodPut, "/api/v1/system/settings",
		map[string]string{"SEARCH_CONCURRENCY": "0"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, CodeCfgInvalid, body["code"])

	ok := f.do(t, http.MethodPut, "/api/v1/system/settings",
		map[string]string{"UPGRADE_MIN_SCORE_DELTA": "75"})
	assert.Equal(t, http.StatusOK, ok.StatusCode)
}

func TestSystemStatus(t *testing.T) {
	f := newFixture(t, apiConfig())
	_, _, err := f.wanted.Upsert(context.Background(), storage.KindEpisode, "/tv/A.S01E01.mkv", "de", "full", storage.LinkedIDs{})
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/v1/system/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "test", body["version"])
	wanted := body["wanted"].(map[string]any)
	assert.Equal(t, float64(1), wanted["wanted"])
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
