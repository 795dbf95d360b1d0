// SPDX-License-Identifier: MIT

// Package mediamanager holds thin REST clients for the upstream media
// managers. Only the calls the scan and webhook paths need are covered.
package mediamanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// MediaFile is one media file known to an upstream manager.
type MediaFile struct {
	Path     string
	Title    string
	Year     int
	SeriesID *int64
	FileID   *int64
	MovieID  *int64
}

type client struct {
	base   string
	apiKey string
	http   *http.Client
}

func newClient(base, apiKey string) client {
	return client{
		base:   strings.TrimRight(base, "/"),
		apiKey: apiKey,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c client) get(ctx context.Context, path string, out any) error {
	req, _ := http.NewRequestWithContext(ctx, "GET", c.base+path, nil)
	req.Header.Set("X-Api-Key", c.apiKey)
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, res.StatusCode)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c client) command(ctx context.Context, body any) error {
	raw, _ := json.Marshal(body)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.base+"/api/v3/command", bytes.NewReader(raw))
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return fmt.Errorf("POST /api/v3/command: status %d", res.StatusCode)
	}
	return nil
}

// Sonarr lists episode files and triggers series rescans.
type Sonarr struct{ client }

func NewSonarr(baseURL, apiKey string) *Sonarr {
	return &Sonarr{newClient(baseURL, apiKey)}
}

// ListEpisodeFiles walks every series and collects its on-disk files.
func (s *Sonarr) ListEpisodeFiles(ctx context.Context) ([]MediaFile, error) {
	var series []struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
		Year  int    `json:"year"`
	}
	if err := s.get(ctx, "/api/v3/series", &series); err != nil {
		return nil, err
	}

	var out []MediaFile
	for _, sr := range series {
		var files []struct {
			ID       int64  `json:"id"`
			SeriesID int64  `json:"seriesId"`
			Path     string `json:"path"`
		}
		if err := s.get(ctx, fmt.Sprintf("/api/v3/episodefile?seriesId=%d", sr.ID), &files); err != nil {
			return nil, err
		}
		for _, f := range files {
			seriesID, fileID := f.SeriesID, f.ID
			out = append(out, MediaFile{
				Path:     f.Path,
				Title:    sr.Title,
				Year:     sr.Year,
				SeriesID: &seriesID,
				FileID:   &fileID,
			})
		}
	}
	return out, nil
}

func (s *Sonarr) RescanSeries(ctx context.Context, seriesID int64) error {
	return s.command(ctx, map[string]any{"name": "RescanSeries", "seriesId": seriesID})
}

// Radarr lists movie files and triggers movie rescans.
type Radarr struct{ client }

func NewRadarr(baseURL, apiKey string) *Radarr {
	return &Radarr{newClient(baseURL, apiKey)}
}

func (r *Radarr) ListMovieFiles(ctx context.Context) ([]MediaFile, error) {
	var movies []struct {
		ID        int64  `json:"id"`
		Title     string `json:"title"`
		Year      int    `json:"year"`
		MovieFile *struct {
			Path string `json:"path"`
		} `json:"movieFile"`
	}
	if err := r.get(ctx, "/api/v3/movie", &movies); err != nil {
		return nil, err
	}

	var out []MediaFile
	for _, m := range movies {
		if m.MovieFile == nil || m.MovieFile.Path == "" {
			continue
		}
		movieID := m.ID
		out = append(out, MediaFile{
			Path:    m.MovieFile.Path,
			Title:   m.Title,
			Year:    m.Year,
			MovieID: &movieID,
		})
	}
	return out, nil
}

func (r *Radarr) RescanMovie(ctx context.Context, movieID int64) error {
	return r.command(ctx, map[string]any{"name": "RescanMovie", "movieIds": []int64{movieID}})
}
