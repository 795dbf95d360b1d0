// SPDX-License-Identifier: MIT

package mediamanager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSonarrListEpisodeFiles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "key", r.Header.Get("X-Api-Key"))
		switch r.URL.Path {
		case "/api/v3/series":
			w.Write([]byte(`[{"id":5,"title":"Some Show","year":2020}]`))
		case "/api/v3/episodefile":
			assert.Equal(t, "5", r.URL.Query().Get("seriesId"))
			w.Write([]byte(`[{"id":11,"seriesId":5,"path":"/tv/Some Show/S01E01.mkv"},
				{"id":12,"seriesId":5,"path":"/tv/Some Show/S01E02.mkv"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewSonarr(srv.URL, "key")
	files, err := s.ListEpisodeFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "/tv/Some Show/S01E01.mkv", files[0].Path)
	assert.Equal(t, "Some Show", files[0].Title)
	require.NotNil(t, files[0].SeriesID)
	assert.Equal(t, int64(5), *files[0].SeriesID)
	require.NotNil(t, files[1].FileID)
	assert.Equal(t, int64(12), *files[1].FileID)
}

func TestSonarrRescanSeries(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/command", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s := NewSonarr(srv.URL, "key")
	require.NoError(t, s.RescanSeries(context.Background(), 5))
	assert.Equal(t, "RescanSeries", got["name"])
	assert.Equal(t, float64(5), got["seriesId"])
}

func TestRadarrListMovieFilesSkipsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/movie", r.URL.Path)
		w.Write([]byte(`[
			{"id":1,"title":"Released","year":2020,"movieFile":{"path":"/movies/Released/Released.mkv"}},
			{"id":2,"title":"Announced","year":2027}]`))
	}))
	defer srv.Close()

	r := NewRadarr(srv.URL, "key")
	files, err := r.ListMovieFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "Released", files[0].Title)
	require.NotNil(t, files[0].MovieID)
	assert.Equal(t, int64(1), *files[0].MovieID)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSonarr(srv.URL, "bad")
	_, err := s.ListEpisodeFiles(context.Background())
	assert.ErrorContains(t, err, "401")

	r := NewRadarr(srv.URL, "bad")
	assert.ErrorContains(t, r.RescanMovie(context.Background(), 1), "401")
}
