package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type DeezerClient struct {
	searchURL string
	http      *http.Client
}

func NewDeezerClient(searchURL string) *DeezerClient {
	if searchURL == "" {
		searchURL = "https://api.deezer.com/search"
	}
	return &DeezerClient{
		searchURL: searchURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type deezerSearchResponse struct {
	Data []struct {
		ID       int64  `json:"id"`
		Title    string `json:"title"`
		Duration int    `json:"duration"` // seconds
		Preview  string `json:"preview"`
		Artist   struct {
			Name string `json:"name"`
		} `json:"artist"`
		Album struct {
			Cover       string `json:"cover"`
			CoverMedium string `json:"cover_medium"`
			CoverBig    string `json:"cover_big"`
		} `json:"album"`
	} `json:"data"`
}

func (c *DeezerClient) SearchTracks(ctx context.Context, query string, limit int) ([]TrackSearchItem, error) {
	if limit <= 0 || limit > 25 {
		limit = 10
	}

	val := url.Values{}
	val.Set("q", query)
	val.Set("limit", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+val.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deezer status %d", resp.StatusCode)
	}

	var body deezerSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	out := make([]TrackSearchItem, 0, len(body.Data))
	for _, t := range body.Data {
		cover := t.Album.CoverBig
		if cover == "" {
			cover = t.Album.CoverMedium
		}
		if cover == "" {
			cover = t.Album.Cover
		}

		out = append(out, TrackSearchItem{
			Title:      t.Title,
			Artist:     t.Artist.Name,
			Provider:   "deezer",
			ExternalID: fmt.Sprint(t.ID),
			CoverURL:   cover,
			PreviewURL: t.Preview,
			DurationMs: t.Duration * 1000,
		})
	}

	return out, nil
}
