// SPDX-License-Identifier: MIT

package providers

import (
	"bytes"
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

func init() { Register(newOpenSubtitles()) }

type openSubtitles struct {
	mu     sync.RWMutex
	base   string
	apiKey string
	http   *http.Client
}

func newOpenSubtitles() *openSubtitles {
	return &openSubtitles{
		base: "https://api.opensubtitles.com/api/v1",
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *openSubtitles) Name() string { return "opensubtitles" }

func (o *openSubtitles) Info() Info {
	return Info{
		Version:     "1.0.0",
		Author:      "subarr",
		Description: "OpenSubtitles.com REST search with hash matching",
		ConfigFields: []ConfigField{
			{Key: "api_key", Label: "API key", Type: "password", Required: true,
				Help: "Consumer API key from opensubtitles.com"},
			{Key: "base_url", Label: "Base URL", Type: "text",
				Default: "https://api.opensubtitles.com/api/v1"},
		},
		RequiresAuth: true,
	}
}

func (o *openSubtitles) Configure(settings map[string]string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if v := settings["base_url"]; v != "" {
		o.base = strings.TrimRight(v, "/")
	}
	if v := settings["api_key"]; v != "" {
		o.apiKey = v
	}
	return nil
}

func (o *openSubtitles) creds() (base, key string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.base, o.apiKey
}

func (o *openSubtitles) Search(ctx context.Context, q Query) ([]Candidate, error) {
	base, key := o.creds()

	params := url.Values{}
	params.Set("query", q.Title)
	params.Set("languages", strings.ToLower(q.Language))
	if !q.Movie {
		params.Set("season_number", strconv.Itoa(q.Season))
		params.Set("episode_number", strconv.Itoa(q.Episode))
	}
	if q.Year != 0 {
		params.Set("year", strconv.Itoa(q.Year))
	}
	if q.FileHash != "" {
		params.Set("moviehash", q.FileHash)
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", base+"/subtitles?"+params.Encode(), nil)
	req.Header.Set("Api-Key", key)
	req.Header.Set("Accept", "application/json")
	res, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles: search status %d", res.StatusCode)
	}

	var p struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Language        string `json:"language"`
				Release         string `json:"release"`
				HearingImpaired bool   `json:"hearing_impaired"`
				MovieHashMatch  bool   `json:"moviehash_match"`
				FeatureDetails  struct {
					Title         string `json:"title"`
					Year          int    `json:"year"`
					SeasonNumber  int    `json:"season_number"`
					EpisodeNumber int    `json:"episode_number"`
				} `json:"feature_details"`
				Files []struct {
					FileID   int64  `json:"file_id"`
					FileName string `json:"file_name"`
				} `json:"files"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, err
	}

	var out []Candidate
	for _, d := range p.Data {
		a := d.Attributes
		for _, f := range a.Files {
			format, ok := subtitles.FormatFromExtension(f.FileName)
			if !ok {
				format = subtitles.FormatSRT
			}
			out = append(out, Candidate{
				ProviderName:    o.Name(),
				ExternalID:      strconv.FormatInt(f.FileID, 10),
				Language:        a.Language,
				Filename:        f.FileName,
				Format:          format,
				Title:           a.FeatureDetails.Title,
				Year:            a.FeatureDetails.Year,
				Season:          a.FeatureDetails.SeasonNumber,
				Episode:         a.FeatureDetails.EpisodeNumber,
				Release:         ParseRelease(a.Release),
				HashMatch:       a.MovieHashMatch,
				HearingImpaired: a.HearingImpaired,
				Metadata:        map[string]string{"file_id": strconv.FormatInt(f.FileID, 10)},
			})
		}
	}
	return out, nil
}

func (o *openSubtitles) Download(ctx context.Context, c Candidate) ([]byte, error) {
	base, key := o.creds()

	body, _ := json.Marshal(map[string]string{"file_id": c.Metadata["file_id"]})
	req, _ := http.NewRequestWithContext(ctx, "POST", base+"/download", bytes.NewReader(body))
	req.Header.Set("Api-Key", key)
	req.Header.Set("Content-Type", "application/json")
	res, err := o.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles: download status %d", res.StatusCode)
	}
	var p struct {
		Link string `json:"link"`
	}
	if err := json.NewDecoder(res.Body).Decode(&p); err != nil {
		return nil, err
	}

	fileReq, _ := http.NewRequestWithContext(ctx, "GET", p.Link, nil)
	fileRes, err := o.http.Do(fileReq)
	if err != nil {
		return nil, err
	}
	defer fileRes.Body.Close()
	if fileRes.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("opensubtitles: file status %d", fileRes.StatusCode)
	}
	return io.ReadAll(fileRes.Body)
}
