package audio

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bounan/Bounan.Matcher/internal/hls"
	"github.com/bounan/Bounan.Matcher/internal/prefetch"
)

var (
	// ErrReused is returned when a provider's window sequence is requested twice.
	ErrReused = errors.New("audio: window provider already consumed")
	// ErrNotReady is returned when truncated durations are requested before
	// the sequence has been fully consumed.
	ErrNotReady = errors.New("audio: window sequence not fully consumed")
)

// Window is one merged audio clip covering an edge of an episode. Offset is
// the clip's position on the full episode timeline; Duration is the captured
// length clamped to the configured match window.
type Window struct {
	Path     string
	Offset   float64
	Duration float64
}

// Source couples one episode's playlist with its known total duration.
type Source struct {
	Playlist      hls.Playlist
	TotalDuration float64
}

// Provider lazily produces one Window per source, prefetching a single
// position ahead so download and transcode latency overlaps recognition of
// the previous clip. A provider is single-use: Windows may be called once.
type Provider struct {
	merger  Merger
	sources []Source
	leading bool
	seconds float64

	used atomic.Bool

	mu        sync.Mutex
	truncated []float64
	completed bool
}

// NewProvider builds a provider over sources. leading selects the scan
// direction: true captures from the start of each episode, false from the end.
func NewProvider(merger Merger, sources []Source, leading bool, seconds float64) *Provider {
	return &Provider{
		merger:  merger,
		sources: sources,
		leading: leading,
		seconds: seconds,
	}
}

// Windows starts the sequence. Matching compares audio across episodes, so
// fewer than two sources yields an immediately exhausted iterator. The caller
// must drain the iterator or Close it; each yielded clip's file is deleted as
// soon as the caller advances past it.
func (p *Provider) Windows(ctx context.Context) (*Iterator, error) {
	if !p.used.CompareAndSwap(false, true) {
		return nil, ErrReused
	}

	it := &Iterator{provider: p, ctx: ctx, n: len(p.sources)}
	if len(p.sources) < 2 {
		it.done = true
		p.setCompleted()
		return it, nil
	}

	it.pipe = prefetch.New[fetched](func(f fetched) {
		_ = os.Remove(f.path)
	})
	if err := it.pipe.Submit(0, p.work(ctx, 0)); err != nil {
		it.pipe.Close()
		return nil, err
	}
	return it, nil
}

// TruncatedDurations returns the captured duration per source, in source
// order. It fails until the window sequence has been fully consumed.
func (p *Provider) TruncatedDurations() ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.completed {
		return nil, ErrNotReady
	}
	out := make([]float64, len(p.truncated))
	copy(out, p.truncated)
	return out, nil
}

func (p *Provider) setCompleted() {
	p.mu.Lock()
	p.completed = true
	p.mu.Unlock()
}

func (p *Provider) record(truncated float64) {
	p.mu.Lock()
	p.truncated = append(p.truncated, truncated)
	p.mu.Unlock()
}

type fetched struct {
	path     string
	captured float64
}

// work returns a self-contained work function for position i. Everything the
// worker needs is bound here; it reads no provider state while running.
func (p *Provider) work(ctx context.Context, i int) func() (fetched, error) {
	playlist := p.sources[i].Playlist
	leading := p.leading
	seconds := p.seconds
	merger := p.merger
	return func() (fetched, error) {
		segments, captured := hls.Window(playlist, leading, seconds)
		path, err := merger.Merge(ctx, uuid.NewString(), segments)
		if err != nil {
			return fetched{}, err
		}
		return fetched{path: path, captured: captured}, nil
	}
}

// Iterator walks the window sequence in source order.
type Iterator struct {
	provider *Provider
	ctx      context.Context
	pipe     *prefetch.Pipeline[fetched]

	i        int
	n        int
	cur      Window
	lastPath string
	done     bool
	err      error
}

// Next advances to the next window, deleting the previously yielded clip
// file. It returns false when the sequence is exhausted or failed; check Err
// afterwards.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}
	it.releaseCurrent()

	if it.i >= it.n {
		it.finish(nil)
		return false
	}

	f, err := it.pipe.Await(it.ctx, it.i)
	if err != nil {
		it.finish(err)
		return false
	}
	if next := it.i + 1; next < it.n {
		if err := it.pipe.Submit(next, it.provider.work(it.ctx, next)); err != nil {
			_ = os.Remove(f.path)
			it.finish(err)
			return false
		}
	}

	src := it.provider.sources[it.i]
	truncated := f.captured
	if truncated > it.provider.seconds {
		truncated = it.provider.seconds
	}
	offset := 0.0
	if !it.provider.leading {
		offset = src.TotalDuration - f.captured
		if offset < 0 {
			offset = 0
		}
	}

	it.provider.record(truncated)
	it.cur = Window{Path: f.path, Offset: offset, Duration: truncated}
	it.lastPath = f.path
	it.i++
	return true
}

// Window returns the current window. Valid only after Next reported true.
func (it *Iterator) Window() Window {
	return it.cur
}

// Err reports the failure that terminated the sequence, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Close tears the iterator down early, releasing the pipeline and any
// yielded-but-unconsumed clip file. Safe to call multiple times.
func (it *Iterator) Close() {
	if it.done {
		return
	}
	it.releaseCurrent()
	it.finish(nil)
}

func (it *Iterator) finish(err error) {
	it.done = true
	if err != nil && it.err == nil {
		it.err = err
	}
	if it.pipe != nil {
		it.pipe.Close()
	}
	if it.err == nil && it.i == it.n {
		it.provider.setCompleted()
	}
}

func (it *Iterator) releaseCurrent() {
	if it.lastPath == "" {
		return
	}
	_ = os.Remove(it.lastPath)
	it.lastPath = ""
}
