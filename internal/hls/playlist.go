package hls

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// ErrNoSegments indicates a syntactically valid playlist that carries no
// media segments.
var ErrNoSegments = errors.New("hls: playlist has no segments")

// Segment is one media segment of an HLS playlist. URI is absolute once the
// playlist has been parsed against its own URL.
type Segment struct {
	URI      string
	Duration float64
}

// Playlist is a parsed HLS media playlist. Segment order matches playback
// order.
type Playlist struct {
	Segments []Segment
}

// TotalDuration sums the durations of every segment, in seconds.
func (p Playlist) TotalDuration() float64 {
	var total float64
	for _, seg := range p.Segments {
		total += seg.Duration
	}
	return total
}

// Parse reads a media playlist, resolving segment URIs against base when it
// is non-nil. Only the tags the matcher needs are interpreted; unknown tags
// are ignored so vendor extensions do not break parsing.
func Parse(r io.Reader, base *url.URL) (Playlist, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var playlist Playlist
	var pendingDuration float64
	var havePending bool
	first := true

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			if line != "#EXTM3U" {
				return Playlist{}, fmt.Errorf("hls: missing #EXTM3U header, got %q", line)
			}
			first = false
			continue
		}
		switch {
		case strings.HasPrefix(line, "#EXTINF:"):
			value := strings.TrimPrefix(line, "#EXTINF:")
			if idx := strings.IndexByte(value, ','); idx >= 0 {
				value = value[:idx]
			}
			duration, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
			if err != nil {
				return Playlist{}, fmt.Errorf("hls: bad #EXTINF duration %q: %w", value, err)
			}
			pendingDuration = duration
			havePending = true
		case strings.HasPrefix(line, "#"):
			// Other tags (#EXT-X-VERSION, #EXT-X-ENDLIST, ...) are irrelevant here.
		default:
			if !havePending {
				return Playlist{}, fmt.Errorf("hls: segment %q without preceding #EXTINF", line)
			}
			uri, err := resolveURI(line, base)
			if err != nil {
				return Playlist{}, err
			}
			playlist.Segments = append(playlist.Segments, Segment{URI: uri, Duration: pendingDuration})
			havePending = false
		}
	}
	if err := scanner.Err(); err != nil {
		return Playlist{}, fmt.Errorf("hls: read playlist: %w", err)
	}
	if first {
		return Playlist{}, errors.New("hls: empty playlist")
	}
	return playlist, nil
}

func resolveURI(raw string, base *url.URL) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("hls: bad segment uri %q: %w", raw, err)
	}
	if base == nil || ref.IsAbs() {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// Window selects the subset of segments covering the leading or trailing
// seconds of the playlist. Segments accumulate from the chosen edge until the
// requested duration is reached or the playlist is exhausted; the returned
// duration is the actual coverage, which may exceed the request by part of
// the final segment or fall short when the episode itself is shorter.
func Window(p Playlist, leading bool, seconds float64) ([]Segment, float64) {
	var captured float64
	var subset []Segment

	if leading {
		for _, seg := range p.Segments {
			subset = append(subset, seg)
			captured += seg.Duration
			if captured >= seconds {
				break
			}
		}
		return subset, captured
	}

	for i := len(p.Segments) - 1; i >= 0; i-- {
		seg := p.Segments[i]
		subset = append([]Segment{seg}, subset...)
		captured += seg.Duration
		if captured >= seconds {
			break
		}
	}
	return subset, captured
}
