package loanapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.LoanAPI.BaseURL = srv.URL
	cfg.LoanAPI.Token = "loan-token"
	return NewClient(&cfg)
}

func TestEpisodesKeepsServerOrderAndAuthenticates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/episodes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer loan-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["myAnimeListId"] != float64(1185) || req["dub"] != "AniLibria" {
			t.Errorf("unexpected request body: %v", req)
		}
		_, _ = w.Write([]byte(`[10, 1, 2, 3]`))
	}))
	defer srv.Close()

	episodes, err := testClient(t, srv).Episodes(context.Background(), 1185, "AniLibria")
	if err != nil {
		t.Fatalf("Episodes: %v", err)
	}
	if !reflect.DeepEqual(episodes, []int{10, 1, 2, 3}) {
		t.Fatalf("catalog order not preserved: got %v, want [10 1 2 3]", episodes)
	}
}

func TestEpisodesSurfacesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "series unknown", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Episodes(context.Background(), 9, "x")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "404") || !strings.Contains(err.Error(), "series unknown") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestVideoDecodesPlaylists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"playlists":{"480":"http://cdn/480.m3u8","1080":"http://cdn/1080.m3u8"},"thumbnailUrl":"http://cdn/t.jpg"}`))
	}))
	defer srv.Close()

	video, err := testClient(t, srv).Video(context.Background(), scene.VideoKey{SeriesID: 1185, Dub: "AniLibria", Episode: 7})
	if err != nil {
		t.Fatalf("Video: %v", err)
	}
	if len(video.Playlists) != 2 || video.ThumbnailURL != "http://cdn/t.jpg" {
		t.Fatalf("unexpected video: %+v", video)
	}
}

func TestBestPlaylistPrefersLowestNumericQuality(t *testing.T) {
	tests := []struct {
		name      string
		playlists map[string]string
		want      string
		found     bool
	}{
		{
			name:      "lowest numeric wins",
			playlists: map[string]string{"1080": "hi", "480": "lo", "720": "mid"},
			want:      "lo",
			found:     true,
		},
		{
			name:      "numeric beats non numeric",
			playlists: map[string]string{"auto": "a", "720": "mid"},
			want:      "mid",
			found:     true,
		},
		{
			name:      "blank url skipped",
			playlists: map[string]string{"480": "  ", "720": "mid"},
			want:      "mid",
			found:     true,
		},
		{
			name:      "empty catalog",
			playlists: nil,
			want:      "",
			found:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Video{Playlists: tt.playlists}.BestPlaylist()
			if ok != tt.found || got != tt.want {
				t.Fatalf("BestPlaylist() = %q, %v; want %q, %v", got, ok, tt.want, tt.found)
			}
		})
	}
}
