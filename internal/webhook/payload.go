// SPDX-License-Identifier: MIT

// Package webhook turns upstream-manager notifications into the staged
// delay, rescan, search, translate pipeline.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event types after normalization.
const (
	TypeDownload = "download"
	TypeDelete   = "delete"
	TypeTest     = "test"
	TypeIgnored  = "ignored"
)

// Event is a normalized webhook notification.
type Event struct {
	Source   string // "sonarr" or "radarr"
	Type     string
	Path     string
	Title    string
	Year     int
	SeriesID *int64
	FileID   *int64
	MovieID  *int64
}

// ParseSonarr normalizes a sonarr webhook payload.
func ParseSonarr(body []byte) (Event, error) {
	var p struct {
		EventType string `json:"eventType"`
		Series    struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
			Year  int    `json:"year"`
		} `json:"series"`
		EpisodeFile struct {
			ID   int64  `json:"id"`
			Path string `json:"path"`
		} `json:"episodeFile"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("sonarr payload: %w", err)
	}

	e := Event{Source: "sonarr", Title: p.Series.Title, Year: p.Series.Year, Path: p.EpisodeFile.Path}
	if p.Series.ID != 0 {
		id := p.Series.ID
		e.SeriesID = &id
	}
	if p.EpisodeFile.ID != 0 {
		id := p.EpisodeFile.ID
		e.FileID = &id
	}

	switch strings.ToLower(p.EventType) {
	case "download":
		if e.Path == "" {
			return Event{}, fmt.Errorf("sonarr download event without episode file path")
		}
		e.Type = TypeDownload
	case "episodefiledelete", "seriesdelete":
		e.Type = TypeDelete
	case "test":
		e.Type = TypeTest
	default:
		e.Type = TypeIgnored
	}
	return e, nil
}

// ParseRadarr normalizes a radarr webhook payload.
func ParseRadarr(body []byte) (Event, error) {
	var p struct {
		EventType string `json:"eventType"`
		Movie     struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
			Year  int    `json:"year"`
		} `json:"movie"`
		MovieFile struct {
			Path string `json:"path"`
		} `json:"movieFile"`
	}
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("radarr payload: %w", err)
	}

	e := Event{Source: "radarr", Title: p.Movie.Title, Year: p.Movie.Year, Path: p.MovieFile.Path}
	if p.Movie.ID != 0 {
		id := p.Movie.ID
		e.MovieID = &id
	}

	switch strings.ToLower(p.EventType) {
	case "download":
		if e.Path == "" {
			return Event{}, fmt.Errorf("radarr download event without movie file path")
		}
		e.Type = TypeDownload
	case "moviefiledelete", "moviedelete":
		e.Type = TypeDelete
	case "test":
		e.Type = TypeTest
	default:
		e.Type = TypeIgnored
	}
	return e, nil
}
