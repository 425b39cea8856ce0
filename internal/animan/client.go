package animan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

const userAgent = "Matcher-Go/0.1.0"

// Service exposes the work-queue operations the service loop needs.
type Service interface {
	VideosToMatch(ctx context.Context) ([]scene.VideoKey, error)
	WaitForNotification(ctx context.Context) error
	UpdateScenes(ctx context.Context, items []ResultItem) error
	UploadEmptyScenes(ctx context.Context, keys []scene.VideoKey) error
}

// ResultItem couples one episode with its detected scenes. A nil Scenes
// pointer marshals to null, which the backend treats as "matched, nothing
// found" so the episode leaves the queue.
type ResultItem struct {
	VideoKey scene.VideoKey `json:"videoKey"`
	Scenes   *scene.Scenes  `json:"scenes"`
}

// Client talks to the AniMan work queue over HTTP.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	waitCap time.Duration
}

// NewClient builds an AniMan client from configuration.
func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.AniMan.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.AniMan.BaseURL, "/"),
		token:   cfg.AniMan.Token,
		client:  &http.Client{Timeout: timeout},
		waitCap: time.Duration(cfg.AniMan.NotificationWaitSeconds) * time.Second,
	}
}

type matchQueueResponse struct {
	VideosToMatch []scene.VideoKey `json:"videosToMatch"`
}

// VideosToMatch returns the current batch of queued episodes. All returned
// keys belong to one series/dub pair; the service loop verifies that.
func (c *Client) VideosToMatch(ctx context.Context) ([]scene.VideoKey, error) {
	var queue matchQueueResponse
	if err := c.do(ctx, http.MethodGet, "/videos-to-match", nil, &queue, 0); err != nil {
		return nil, fmt.Errorf("fetch videos to match: %w", err)
	}
	return queue.VideosToMatch, nil
}

// WaitForNotification long-polls the backend until new work may be
// available or the server-side cap elapses. Returning without error after
// the cap is the idle path, not a failure.
func (c *Client) WaitForNotification(ctx context.Context) error {
	wait := c.waitCap
	if wait <= 0 {
		wait = 20 * time.Second
	}
	path := "/notifications?waitSeconds=" + strconv.Itoa(int(wait/time.Second))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, wait+10*time.Second); err != nil {
		return fmt.Errorf("wait for notification: %w", err)
	}
	return nil
}

type resultRequest struct {
	Items []ResultItem `json:"items"`
}

// UpdateScenes submits match results for a batch of episodes.
func (c *Client) UpdateScenes(ctx context.Context, items []ResultItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/video-scenes", resultRequest{Items: items}, nil, 0); err != nil {
		return fmt.Errorf("update scenes for %d videos: %w", len(items), err)
	}
	return nil
}

// UploadEmptyScenes reports the given episodes as matched with no scenes,
// releasing them from the queue after a failed or skipped match.
func (c *Client) UploadEmptyScenes(ctx context.Context, keys []scene.VideoKey) error {
	if len(keys) == 0 {
		return nil
	}
	items := make([]ResultItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, ResultItem{VideoKey: key})
	}
	return c.UpdateScenes(ctx, items)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	client := c.client
	if timeout > 0 && timeout > client.Timeout {
		longPoll := *c.client
		longPoll.Timeout = timeout
		client = &longPoll
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Service = (*Client)(nil)
