package audio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/hls"
)

func testDownloader(t *testing.T, retries int) *Downloader {
	t.Helper()
	cfg := config.Default()
	cfg.Download.TempDir = t.TempDir()
	cfg.Download.Threads = 4
	cfg.Download.SegmentRetries = retries
	return NewDownloader(&cfg)
}

func TestMergeDownloadsAllSegmentsAndInvokesFFmpeg(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ts-bytes"))
	}))
	defer srv.Close()

	var capturedArgs []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		capturedArgs = append([]string{name}, args...)
		return exec.Command("true")
	}
	defer func() { commandContext = original }()

	d := testDownloader(t, 3)
	segments := []hls.Segment{
		{URI: srv.URL + "/seg0.ts", Duration: 10},
		{URI: srv.URL + "/seg1.ts", Duration: 10},
		{URI: srv.URL + "/seg2.ts", Duration: 10},
	}
	path, err := d.Merge(context.Background(), "clip-a", segments)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if hits.Load() != 3 {
		t.Fatalf("expected 3 segment downloads, got %d", hits.Load())
	}
	if filepath.Ext(path) != ".wav" {
		t.Fatalf("expected wav output, got %q", path)
	}
	joined := strings.Join(capturedArgs, " ")
	if !strings.Contains(joined, "-f concat") || !strings.Contains(joined, "-ar 16000") {
		t.Fatalf("unexpected ffmpeg invocation: %q", joined)
	}
	// Intermediate part files must be cleaned up.
	workDir := filepath.Join(d.tempDir, "clip-clip-a")
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Fatalf("expected work dir %s to be removed", workDir)
	}
}

func TestMergeRetriesSegmentDownloads(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ts-bytes"))
	}))
	defer srv.Close()

	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.Command("true")
	}
	defer func() { commandContext = original }()

	d := testDownloader(t, 3)
	if _, err := d.Merge(context.Background(), "clip-b", []hls.Segment{{URI: srv.URL + "/seg.ts", Duration: 6}}); err != nil {
		t.Fatalf("Merge with one flaky response: %v", err)
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts.Load())
	}
}

func TestMergeFailsAfterRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := testDownloader(t, 2)
	_, err := d.Merge(context.Background(), "clip-c", []hls.Segment{{URI: srv.URL + "/seg.ts", Duration: 6}})
	if err == nil {
		t.Fatal("expected error when every attempt fails")
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMergeRejectsEmptySegmentList(t *testing.T) {
	d := testDownloader(t, 1)
	if _, err := d.Merge(context.Background(), "clip-d", nil); err == nil {
		t.Fatal("expected error for empty segment list")
	}
}
