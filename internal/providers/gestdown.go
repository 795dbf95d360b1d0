// SPDX-License-Identifier: MIT

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kzmx/subarr/internal/subtitles"
)

func init() { Register(newGestdown()) }

// gestdown serves episode subtitles only; movie queries return nothing.
type gestdown struct {
	mu   sync.RWMutex
	base string
	http *http.Client
}

func newGestdown() *gestdown {
	return &gestdown{
		base: "https://api.gestdown.info",
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *gestdown) Name() string { return "gestdown" }

func (g *gestdown) Info() Info {
	return Info{
		Version:     "1.0.0",
		Author:      "subarr",
		Description: "Gestdown (Addic7ed proxy) episode subtitles",
		ConfigFields: []ConfigField{
			{Key: "base_url", Label: "Base URL", Type: "text", Default: "https://api.gestdown.info"},
		},
	}
}

func (g *gestdown) Configure(settings map[string]string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if v := settings["base_url"]; v != "" {
		g.base = strings.TrimRight(v, "/")
	}
	return nil
}

func (g *gestdown) baseURL() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.base
}

func (g *gestdown) Search(ctx context.Context, q Query) ([]Candidate, error) {
	if q.Movie {
		return nil, nil
	}
	base := g.baseURL()

	u := base + "/subtitles/get/" + url.PathEscape(q.Title) + "/" +
		strconv.Itoa(q.Season) + "/" + strconv.Itoa(q.Episode) + "/" +
		url.PathEscape(strings.ToLower(q.Language))
	req, _ := http.NewRequestWithContext(ctx, "GET", u, nil)
	req.Header.Set("Accept", "application/json")
	res, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gestdown: search status %d", res.StatusCode)
	}

	var payload struct {
		MatchingSubtitles []struct {
			SubtitleID      string `json:"subtitleId"`
			Version         string `json:"version"`
			Completed       bool   `json:"completed"`
			HearingImpaired bool   `json:"hearingImpaired"`
			Language        string `json:"language"`
			DownloadURI     string `json:"downloadUri"`
		} `json:"matchingSubtitles"`
		Episode struct {
			Title  string `json:"title"`
			Season int    `json:"season"`
			Number int    `json:"number"`
			Show   string `json:"show"`
		} `json:"episode"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(payload.MatchingSubtitles))
	for _, s := range payload.MatchingSubtitles {
		if !s.Completed {
			continue
		}
		out = append(out, Candidate{
			ProviderName:    g.Name(),
			ExternalID:      s.SubtitleID,
			Language:        s.Language,
			Filename:        s.Version + ".srt",
			Format:          subtitles.FormatSRT,
			Title:           payload.Episode.Show,
			Season:          payload.Episode.Season,
			Episode:         payload.Episode.Number,
			Release:         ParseRelease(s.Version),
			HearingImpaired: s.HearingImpaired,
			DownloadURL:     base + s.DownloadURI,
		})
	}
	return out, nil
}

func (g *gestdown) Download(ctx context.Context, c Candidate) ([]byte, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", c.DownloadURL, nil)
	res, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gestdown: download status %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
