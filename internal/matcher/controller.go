package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/bounan/Bounan.Matcher/internal/animan"
	"github.com/bounan/Bounan.Matcher/internal/audio"
	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/hls"
	"github.com/bounan/Bounan.Matcher/internal/loanapi"
	"github.com/bounan/Bounan.Matcher/internal/logging"
	"github.com/bounan/Bounan.Matcher/internal/recognizer"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

// ErrGroupMismatch rejects a request whose episodes span more than one
// series/dub pair.
var ErrGroupMismatch = errors.New("matcher: request mixes series/dub groups")

// ErrCountMismatch marks a batch whose reconciled output does not line up
// one to one with its episodes. It goes straight to fallback, not retry.
var ErrCountMismatch = errors.New("matcher: scene count does not match batch size")

// ManifestFetcher resolves a playlist URL into a parsed media playlist.
type ManifestFetcher interface {
	Fetch(ctx context.Context, rawURL string) (hls.Playlist, error)
}

// Group is the series/dub pair every episode in one request shares.
type Group struct {
	SeriesID int
	Dub      string
}

// Key returns the VideoKey for one episode of the group.
func (g Group) Key(episode int) scene.VideoKey {
	return scene.VideoKey{SeriesID: g.SeriesID, Dub: g.Dub, Episode: episode}
}

// Controller drives one matching request end to end: window expansion,
// batching, per-batch recognition, and result submission. Batches are
// processed sequentially and fail independently; a batch that exhausts its
// retries is reported as empty scenes instead of aborting the request.
type Controller struct {
	cfg        *config.Config
	catalog    loanapi.Service
	results    animan.Service
	manifests  ManifestFetcher
	merger     audio.Merger
	recognizer recognizer.Client
	reconciler Reconciler
	logger     *slog.Logger

	retryDelay func(ctx context.Context, d time.Duration) error
}

// NewController wires a controller from its collaborators.
func NewController(cfg *config.Config, catalog loanapi.Service, results animan.Service, manifests ManifestFetcher, merger audio.Merger, rec recognizer.Client, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Controller{
		cfg:        cfg,
		catalog:    catalog,
		results:    results,
		manifests:  manifests,
		merger:     merger,
		recognizer: rec,
		reconciler: NewReconciler(cfg),
		logger:     logging.NewComponentLogger(logger, "matcher"),
		retryDelay: sleepContext,
	}
}

// ProcessRequest handles one work-queue request. Requested episodes that
// cannot be matched (window too small, episode unavailable, forced window
// over the cap) are answered with empty scenes; an error return means the
// whole request failed before any batch ran.
func (c *Controller) ProcessRequest(ctx context.Context, keys []scene.VideoKey, force bool) error {
	group, err := requestGroup(keys)
	if err != nil {
		return err
	}
	requested := lo.Map(keys, func(k scene.VideoKey, _ int) int { return k.Episode })

	available, err := c.catalog.Episodes(ctx, group.SeriesID, group.Dub)
	if err != nil {
		return err
	}

	window, err := c.window(requested, available, force)
	if err != nil {
		c.logger.Error("forced reprocess rejected", logging.Error(err), logging.Int(logging.FieldSeriesID, group.SeriesID))
		return c.results.UploadEmptyScenes(ctx, keys)
	}

	if len(window) < c.cfg.Matching.MinEpisodeNumber {
		c.logger.Info("episode window too small to match",
			logging.Int("window_size", len(window)),
			logging.Int("minimum", c.cfg.Matching.MinEpisodeNumber))
		return c.results.UploadEmptyScenes(ctx, keys)
	}

	inWindow := lo.SliceToMap(window, func(e int) (int, struct{}) { return e, struct{}{} })
	unavailable := lo.Filter(keys, func(k scene.VideoKey, _ int) bool {
		_, ok := inWindow[k.Episode]
		return !ok
	})
	if len(unavailable) > 0 && !force {
		c.logger.Info("reporting unavailable episodes as empty",
			logging.Int("unavailable", len(unavailable)),
			logging.Int("requested", len(keys)))
		if err := c.results.UploadEmptyScenes(ctx, unavailable); err != nil {
			return err
		}
	}

	for _, batch := range SplitIntoBatches(window, c.cfg.Matching.BatchSize) {
		if err := c.runBatch(ctx, group, batch); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) window(requested, available []int, force bool) ([]int, error) {
	if force {
		return ForceWindow(available, c.cfg.Matching.ForceEpisodeCap)
	}
	return EpisodeWindow(requested, available, c.cfg.Matching.EpisodesToMatch), nil
}

// runBatch drives one batch through recognition with bounded retry. Every
// terminal outcome except a context or submission error ends in a result
// upload, real scenes or empty ones, so the batch never stays unanswered.
func (c *Controller) runBatch(ctx context.Context, group Group, batch []int) error {
	logger := c.logger.With(logging.Any(logging.FieldBatch, batch))
	logger.Info("processing batch", logging.Int("episodes", len(batch)))

	attempts := c.cfg.Workflow.BatchAttempts
	delay := time.Duration(c.cfg.Workflow.BatchRetryDelaySeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		items, err := c.matchBatch(ctx, group, batch)
		if err == nil {
			logger.Info("batch matched", logging.Int("results", len(items)))
			return c.results.UpdateScenes(ctx, items)
		}
		lastErr = err
		if errors.Is(err, ErrCountMismatch) || ctx.Err() != nil {
			break
		}
		logger.Warn("batch attempt failed",
			logging.Int("attempt", attempt),
			logging.Error(err))
		if attempt < attempts {
			if err := c.retryDelay(ctx, delay); err != nil {
				return err
			}
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	logger.Error("batch failed, uploading empty scenes", logging.Error(lastErr))
	keys := lo.Map(batch, func(e int, _ int) scene.VideoKey { return group.Key(e) })
	return c.results.UploadEmptyScenes(ctx, keys)
}

// matchBatch performs one full batch attempt: manifest resolution, two
// recognition passes, reconciliation, and the one-to-one count check.
func (c *Controller) matchBatch(ctx context.Context, group Group, batch []int) ([]animan.ResultItem, error) {
	sources, usable, err := c.resolveSources(ctx, group, batch)
	if err != nil {
		return nil, err
	}

	openings, _, err := c.recognizeDirection(ctx, sources, true)
	if err != nil {
		return nil, fmt.Errorf("recognize openings: %w", err)
	}
	endings, truncated, err := c.recognizeDirection(ctx, sources, false)
	if err != nil {
		return nil, fmt.Errorf("recognize endings: %w", err)
	}

	totals := lo.Map(sources, func(s audio.Source, _ int) float64 { return s.TotalDuration })
	scenes := c.reconciler.Reconcile(openings, endings, totals, truncated)

	items := make([]animan.ResultItem, 0, len(batch))
	next := 0
	for i, episode := range batch {
		item := animan.ResultItem{VideoKey: group.Key(episode)}
		if usable[i] {
			if next >= len(scenes) {
				return nil, fmt.Errorf("%w: %d scenes for %d usable episodes", ErrCountMismatch, len(scenes), countTrue(usable))
			}
			item.Scenes = &scenes[next]
			next++
		}
		items = append(items, item)
	}
	if next != len(scenes) {
		return nil, fmt.Errorf("%w: %d scenes for %d usable episodes", ErrCountMismatch, len(scenes), next)
	}
	return items, nil
}

// resolveSources fetches and screens each episode's manifest. Episodes with
// no usable manifest are skipped, not failed: they get an absent Scenes and
// usable[i] = false.
func (c *Controller) resolveSources(ctx context.Context, group Group, batch []int) ([]audio.Source, []bool, error) {
	minTotal := 2 * float64(c.cfg.Matching.SecondsToMatch)

	sources := make([]audio.Source, 0, len(batch))
	usable := make([]bool, len(batch))
	for i, episode := range batch {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		key := group.Key(episode)
		logger := c.logger.With(logging.Int(logging.FieldEpisode, episode))

		video, err := c.catalog.Video(ctx, key)
		if err != nil {
			logger.Warn("skipping episode, manifest unavailable", logging.Error(err))
			continue
		}
		playlistURL, ok := video.BestPlaylist()
		if !ok {
			logger.Warn("skipping episode, no playlists offered")
			continue
		}
		playlist, err := c.manifests.Fetch(ctx, playlistURL)
		if err != nil {
			logger.Warn("skipping episode, playlist fetch failed", logging.Error(err))
			continue
		}
		total := playlist.TotalDuration()
		if total < minTotal {
			logger.Warn("skipping episode, too short",
				logging.Float64("total_duration", total),
				logging.Float64("minimum", minTotal))
			continue
		}
		sources = append(sources, audio.Source{Playlist: playlist, TotalDuration: total})
		usable[i] = true
	}
	return sources, usable, nil
}

// recognizeDirection runs one audio-provider pass over the sources and
// returns the raw guesses plus per-episode truncated durations.
func (c *Controller) recognizeDirection(ctx context.Context, sources []audio.Source, leading bool) ([]scene.Interval, []float64, error) {
	provider := audio.NewProvider(c.merger, sources, leading, float64(c.cfg.Matching.SecondsToMatch))
	iterator, err := provider.Windows(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer iterator.Close()

	guesses, err := c.recognizer.Recognize(ctx, iterator)
	if err != nil {
		return nil, nil, err
	}
	truncated, err := provider.TruncatedDurations()
	if err != nil {
		return nil, nil, err
	}
	return guesses, truncated, nil
}

func requestGroup(keys []scene.VideoKey) (Group, error) {
	if len(keys) == 0 {
		return Group{}, fmt.Errorf("%w: empty request", ErrGroupMismatch)
	}
	group := Group{SeriesID: keys[0].SeriesID, Dub: keys[0].Dub}
	for _, key := range keys[1:] {
		if key.SeriesID != group.SeriesID || key.Dub != group.Dub {
			return Group{}, fmt.Errorf("%w: %d/%s and %d/%s", ErrGroupMismatch, group.SeriesID, group.Dub, key.SeriesID, key.Dub)
		}
	}
	return group, nil
}

func countTrue(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
