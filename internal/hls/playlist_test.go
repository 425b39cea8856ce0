package hls

import (
	"math"
	"net/url"
	"strings"
	"testing"
)

const samplePlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXTINF:9.5,
seg0.ts
#EXTINF:10.0,
seg1.ts
#EXTINF:8.25,
https://cdn.example.com/abs/seg2.ts
#EXT-X-ENDLIST
`

func mustParse(t *testing.T, text string, base string) Playlist {
	t.Helper()
	var baseURL *url.URL
	if base != "" {
		parsed, err := url.Parse(base)
		if err != nil {
			t.Fatalf("parse base url: %v", err)
		}
		baseURL = parsed
	}
	playlist, err := Parse(strings.NewReader(text), baseURL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return playlist
}

func TestParseResolvesURIs(t *testing.T) {
	playlist := mustParse(t, samplePlaylist, "https://host.example/v/480/index.m3u8")

	if len(playlist.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(playlist.Segments))
	}
	if got := playlist.Segments[0].URI; got != "https://host.example/v/480/seg0.ts" {
		t.Fatalf("relative URI not resolved: %q", got)
	}
	if got := playlist.Segments[2].URI; got != "https://cdn.example.com/abs/seg2.ts" {
		t.Fatalf("absolute URI must pass through: %q", got)
	}
	if got := playlist.TotalDuration(); math.Abs(got-27.75) > 1e-9 {
		t.Fatalf("TotalDuration = %v, want 27.75", got)
	}
}

func TestParseRejectsMissingHeader(t *testing.T) {
	if _, err := Parse(strings.NewReader("#EXTINF:4,\nseg.ts\n"), nil); err == nil {
		t.Fatal("expected error for playlist without #EXTM3U")
	}
}

func TestParseRejectsSegmentWithoutDuration(t *testing.T) {
	if _, err := Parse(strings.NewReader("#EXTM3U\nseg.ts\n"), nil); err == nil {
		t.Fatal("expected error for segment without #EXTINF")
	}
}

func segmentPlaylist(durations ...float64) Playlist {
	p := Playlist{}
	for i, d := range durations {
		p.Segments = append(p.Segments, Segment{URI: string(rune('a' + i)), Duration: d})
	}
	return p
}

func TestWindowLeading(t *testing.T) {
	p := segmentPlaylist(10, 10, 10, 10)

	subset, captured := Window(p, true, 25)
	if len(subset) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(subset))
	}
	if captured != 30 {
		t.Fatalf("captured = %v, want 30", captured)
	}
	if subset[0].URI != "a" || subset[2].URI != "c" {
		t.Fatalf("leading window must start from the head: %+v", subset)
	}
}

func TestWindowTrailingKeepsPlaybackOrder(t *testing.T) {
	p := segmentPlaylist(10, 10, 10, 10)

	subset, captured := Window(p, false, 15)
	if len(subset) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(subset))
	}
	if captured != 20 {
		t.Fatalf("captured = %v, want 20", captured)
	}
	if subset[0].URI != "c" || subset[1].URI != "d" {
		t.Fatalf("trailing window must keep playback order: %+v", subset)
	}
}

func TestWindowShorterThanRequest(t *testing.T) {
	p := segmentPlaylist(10, 10)

	subset, captured := Window(p, true, 300)
	if len(subset) != 2 {
		t.Fatalf("expected whole playlist, got %d segments", len(subset))
	}
	if captured != 20 {
		t.Fatalf("captured = %v, want 20", captured)
	}
}
