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

func init() { Register(newPodnapisi()) }

type podnapisi struct {
	mu   sync.RWMutex
	base string
	http *http.Client
}

func newPodnapisi() *podnapisi {
	return &podnapisi{
		base: "https://www.podnapisi.net",
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *podnapisi) Name() string { return "podnapisi" }

func (p *podnapisi) Info() Info {
	return Info{
		Version:     "1.0.0",
		Author:      "subarr",
		Description: "Podnapisi.NET keyword search, no account needed",
		ConfigFields: []ConfigField{
			{Key: "base_url", Label: "Base URL", Type: "text", Default: "https://www.podnapisi.net"},
		},
	}
}

func (p *podnapisi) Configure(settings map[string]string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if v := settings["base_url"]; v != "" {
		p.base = strings.TrimRight(v, "/")
	}
	return nil
}

func (p *podnapisi) baseURL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.base
}

func (p *podnapisi) Search(ctx context.Context, q Query) ([]Candidate, error) {
	base := p.baseURL()

	params := url.Values{}
	params.Set("keywords", q.Title)
	params.Set("language", strings.ToLower(q.Language))
	if !q.Movie {
		params.Set("seasons", strconv.Itoa(q.Season))
		params.Set("episodes", strconv.Itoa(q.Episode))
	}
	if q.Year != 0 {
		params.Set("year", strconv.Itoa(q.Year))
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", base+"/subtitles/search/advanced?"+params.Encode(), nil)
	req.Header.Set("Accept", "application/json")
	res, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podnapisi: search status %d", res.StatusCode)
	}

	var payload struct {
		Data []struct {
			ID       string   `json:"id"`
			Language string   `json:"language"`
			Releases []string `json:"releases"`
			Movie    struct {
				Title string `json:"title"`
				Year  int    `json:"year"`
			} `json:"movie"`
			Custom struct {
				HearingImpaired bool `json:"hearing_impaired"`
			} `json:"custom"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(payload.Data))
	for _, d := range payload.Data {
		release := ""
		if len(d.Releases) > 0 {
			release = d.Releases[0]
		}
		out = append(out, Candidate{
			ProviderName:    p.Name(),
			ExternalID:      d.ID,
			Language:        d.Language,
			Filename:        release + ".srt",
			Format:          subtitles.FormatSRT,
			Title:           d.Movie.Title,
			Year:            d.Movie.Year,
			Season:          q.Season,
			Episode:         q.Episode,
			Release:         ParseRelease(release),
			HearingImpaired: d.Custom.HearingImpaired,
			DownloadURL:     base + "/subtitles/" + url.PathEscape(d.ID) + "/download",
		})
	}
	return out, nil
}

func (p *podnapisi) Download(ctx context.Context, c Candidate) ([]byte, error) {
	req, _ := http.NewRequestWithContext(ctx, "GET", c.DownloadURL, nil)
	res, err := p.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("podnapisi: download status %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
