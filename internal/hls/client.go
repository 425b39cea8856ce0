package hls

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Client fetches and parses remote media playlists.
type Client struct {
	http *http.Client
}

// NewClient builds a playlist client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Fetch downloads the playlist at rawURL and parses it, resolving segment
// URIs against the playlist location.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Playlist, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Playlist{}, fmt.Errorf("hls: bad playlist url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return Playlist{}, fmt.Errorf("hls: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Playlist{}, fmt.Errorf("hls: fetch playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Playlist{}, fmt.Errorf("hls: fetch playlist: unexpected status %s", resp.Status)
	}
	return Parse(resp.Body, resp.Request.URL)
}
