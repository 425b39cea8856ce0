package animan

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/samber/mo"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.AniMan.BaseURL = srv.URL
	cfg.AniMan.Token = "animan-token"
	cfg.AniMan.NotificationWaitSeconds = 1
	return NewClient(&cfg)
}

func TestVideosToMatchDecodesQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/videos-to-match" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer animan-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		_, _ = w.Write([]byte(`{"videosToMatch":[
			{"myAnimeListId":1185,"dub":"AniLibria","episode":5},
			{"myAnimeListId":1185,"dub":"AniLibria","episode":6}
		]}`))
	}))
	defer srv.Close()

	keys, err := testClient(t, srv).VideosToMatch(context.Background())
	if err != nil {
		t.Fatalf("VideosToMatch: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	want := scene.VideoKey{SeriesID: 1185, Dub: "AniLibria", Episode: 6}
	if keys[1] != want {
		t.Fatalf("expected %v, got %v", want, keys[1])
	}
}

func TestVideosToMatchEmptyQueue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"videosToMatch":[]}`))
	}))
	defer srv.Close()

	keys, err := testClient(t, srv).VideosToMatch(context.Background())
	if err != nil {
		t.Fatalf("VideosToMatch: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected empty queue, got %v", keys)
	}
}

func TestWaitForNotificationPassesCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("waitSeconds"); got != "1" {
			t.Errorf("unexpected waitSeconds %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := testClient(t, srv).WaitForNotification(context.Background()); err != nil {
		t.Fatalf("WaitForNotification: %v", err)
	}
}

func TestUpdateScenesMarshalsAbsentAsNull(t *testing.T) {
	var body map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video-scenes" || r.Method != http.MethodPost {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	matched := scene.Scenes{
		Opening:          mo.Some(scene.Interval{Start: 10, End: 99.5}),
		Ending:           mo.None[scene.Interval](),
		SceneAfterEnding: mo.None[scene.Interval](),
	}
	items := []ResultItem{
		{VideoKey: scene.VideoKey{SeriesID: 1185, Dub: "AniLibria", Episode: 5}, Scenes: &matched},
		{VideoKey: scene.VideoKey{SeriesID: 1185, Dub: "AniLibria", Episode: 6}},
	}
	if err := testClient(t, srv).UpdateScenes(context.Background(), items); err != nil {
		t.Fatalf("UpdateScenes: %v", err)
	}

	raw := string(body["items"])
	if !strings.Contains(raw, `"opening":{"start":10,"end":99.5}`) {
		t.Fatalf("expected opening interval in payload, got %s", raw)
	}
	if !strings.Contains(raw, `"scenes":null`) {
		t.Fatalf("expected null scenes for fallback item, got %s", raw)
	}
}

func TestUpdateScenesSkipsEmptyBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty batch")
	}))
	defer srv.Close()

	if err := testClient(t, srv).UpdateScenes(context.Background(), nil); err != nil {
		t.Fatalf("UpdateScenes: %v", err)
	}
}

func TestUploadEmptyScenesSendsNullPerKey(t *testing.T) {
	var req resultRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
	}))
	defer srv.Close()

	keys := []scene.VideoKey{
		{SeriesID: 1185, Dub: "AniLibria", Episode: 5},
		{SeriesID: 1185, Dub: "AniLibria", Episode: 6},
	}
	if err := testClient(t, srv).UploadEmptyScenes(context.Background(), keys); err != nil {
		t.Fatalf("UploadEmptyScenes: %v", err)
	}
	if len(req.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(req.Items))
	}
	for _, item := range req.Items {
		if item.Scenes != nil {
			t.Fatalf("expected nil scenes, got %+v", item.Scenes)
		}
	}
}

func TestServerErrorSurfacesSnippet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv).VideosToMatch(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "queue unavailable") {
		t.Fatalf("unexpected error: %v", err)
	}
}
