package loanapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

const userAgent = "Matcher-Go/0.1.0"

// Service exposes the episode catalog operations the controller needs.
type Service interface {
	Episodes(ctx context.Context, seriesID int, dub string) ([]int, error)
	Video(ctx context.Context, key scene.VideoKey) (Video, error)
}

// Video is one episode's stream catalog, keyed by quality label.
type Video struct {
	Playlists    map[string]string `json:"playlists"`
	ThumbnailURL string            `json:"thumbnailUrl"`
}

// BestPlaylist picks the playlist URL with the lowest numeric quality label.
// Audio fingerprinting does not benefit from higher bitrates, so the cheapest
// stream wins. Non-numeric labels lose to numeric ones.
func (v Video) BestPlaylist() (string, bool) {
	labels := make([]string, 0, len(v.Playlists))
	for label := range v.Playlists {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		qi, erri := strconv.Atoi(labels[i])
		qj, errj := strconv.Atoi(labels[j])
		if (erri == nil) != (errj == nil) {
			return erri == nil
		}
		if erri == nil {
			return qi < qj
		}
		return labels[i] < labels[j]
	})
	for _, label := range labels {
		if url := strings.TrimSpace(v.Playlists[label]); url != "" {
			return url, true
		}
	}
	return "", false
}

// Client talks to the LoanAPI episode catalog over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient builds a LoanAPI client from configuration.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.LoanAPI.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.LoanAPI.BaseURL, "/"),
		token:   cfg.LoanAPI.Token,
		client:  &http.Client{Timeout: timeout},
	}
}

type episodesRequest struct {
	SeriesID int    `json:"myAnimeListId"`
	Dub      string `json:"dub"`
}

type videoRequest struct {
	SeriesID int    `json:"myAnimeListId"`
	Dub      string `json:"dub"`
	Episode  int    `json:"episode"`
}

// Episodes returns the available episode numbers for a series and dub, in
// the order the catalog serves them. That order is authoritative: windowing
// and batching work over list positions, so it must survive the boundary.
func (c *Client) Episodes(ctx context.Context, seriesID int, dub string) ([]int, error) {
	var episodes []int
	err := c.post(ctx, "/episodes", episodesRequest{SeriesID: seriesID, Dub: dub}, &episodes)
	if err != nil {
		return nil, fmt.Errorf("list episodes for series %d dub %s: %w", seriesID, dub, err)
	}
	return episodes, nil
}

// Video returns one episode's stream catalog.
func (c *Client) Video(ctx context.Context, key scene.VideoKey) (Video, error) {
	var video Video
	err := c.post(ctx, "/video", videoRequest{SeriesID: key.SeriesID, Dub: key.Dub, Episode: key.Episode}, &video)
	if err != nil {
		return Video{}, fmt.Errorf("fetch video %s: %w", key, err)
	}
	return video, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Service = (*Client)(nil)
