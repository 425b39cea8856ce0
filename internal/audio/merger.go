package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/hls"
)

var commandContext = exec.CommandContext

// Merger produces one merged audio clip from a list of HLS segments.
type Merger interface {
	Merge(ctx context.Context, clipID string, segments []hls.Segment) (string, error)
}

// Downloader fetches segments concurrently and merges them into a single
// mono wav clip via ffmpeg. It is safe for use from pipeline workers.
type Downloader struct {
	http    *http.Client
	tempDir string
	threads int
	retries int
	ffmpeg  string
}

// NewDownloader builds a Downloader from the download section of cfg.
func NewDownloader(cfg *config.Config) *Downloader {
	return &Downloader{
		http:    &http.Client{Timeout: time.Duration(cfg.Download.RequestTimeout) * time.Second},
		tempDir: cfg.Download.TempDir,
		threads: cfg.Download.Threads,
		retries: cfg.Download.SegmentRetries,
		ffmpeg:  cfg.FFmpegBinary(),
	}
}

// Merge downloads every segment, concatenates them in order, and transcodes
// the result to a 16 kHz mono wav under the temp directory. The returned path
// is owned by the caller; intermediate part files are removed before Merge
// returns.
func (d *Downloader) Merge(ctx context.Context, clipID string, segments []hls.Segment) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("audio: clip %s: no segments to merge", clipID)
	}

	workDir := filepath.Join(d.tempDir, "clip-"+clipID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("audio: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	parts, err := d.downloadAll(ctx, workDir, segments)
	if err != nil {
		return "", err
	}

	listPath := filepath.Join(workDir, "parts.txt")
	if err := writeConcatList(listPath, parts); err != nil {
		return "", err
	}

	outPath := filepath.Join(d.tempDir, clipID+".wav")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-vn", "-ac", "1", "-ar", "16000",
		outPath,
	}
	cmd := commandContext(ctx, d.ffmpeg, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		_ = os.Remove(outPath)
		return "", fmt.Errorf("audio: merge clip %s: %w: %s", clipID, err, strings.TrimSpace(string(output)))
	}
	return outPath, nil
}

func (d *Downloader) downloadAll(ctx context.Context, workDir string, segments []hls.Segment) ([]string, error) {
	parts := make([]string, len(segments))
	indexes := make(chan int)
	errs := make(chan error, 1)

	workers := d.threads
	if workers > len(segments) {
		workers = len(segments)
	}
	if workers < 1 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				path := filepath.Join(workDir, fmt.Sprintf("part%05d.ts", i))
				if err := d.downloadSegment(ctx, segments[i].URI, path); err != nil {
					select {
					case errs <- err:
						cancel()
					default:
					}
					return
				}
				parts[i] = path
			}
		}()
	}

feed:
	for i := range segments {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	select {
	case err := <-errs:
		return nil, err
	default:
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return parts, nil
}

func (d *Downloader) downloadSegment(ctx context.Context, uri, path string) error {
	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = d.fetchOnce(ctx, uri, path)
		if lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("audio: download segment %s after %d attempts: %w", uri, d.retries, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, uri, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := d.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}

func writeConcatList(path string, parts []string) error {
	var sb strings.Builder
	for _, part := range parts {
		sb.WriteString("file '")
		sb.WriteString(part)
		sb.WriteString("'\n")
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("audio: write concat list: %w", err)
	}
	return nil
}
