package matcher

import (
	"math"
	"sort"

	"github.com/samber/mo"

	"github.com/bounan/Bounan.Matcher/internal/config"
	"github.com/bounan/Bounan.Matcher/internal/scene"
)

// Reconciler turns raw per-episode interval guesses into validated Scenes.
// Guesses arrive in episode order, one per direction per episode, with NaN
// bounds where recognition found nothing.
type Reconciler struct {
	edgeThreshold  float64
	minSceneLength float64
}

// NewReconciler builds a reconciler from the matching thresholds.
func NewReconciler(cfg *config.Config) Reconciler {
	return Reconciler{
		edgeThreshold:  float64(cfg.Matching.SceneAfterOpeningThresholdSec),
		minSceneLength: float64(cfg.Matching.MinSceneLengthSec),
	}
}

// Reconcile corrects both guess sets and combines them into one rounded
// Scenes record per episode. The output length is the shortest of the
// inputs; a shortfall against the batch size surfaces later as a count
// mismatch.
func (r Reconciler) Reconcile(openings, endings []scene.Interval, totals, truncatedEndings []float64) []scene.Scenes {
	fixedOpenings := r.FixOpenings(openings, totals)
	fixedEndings := r.FixEndings(endings, totals, truncatedEndings)

	n := min(len(fixedOpenings), len(fixedEndings), len(totals))
	out := make([]scene.Scenes, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Combine(fixedOpenings[i], fixedEndings[i], totals[i]).Round())
	}
	return out
}

// FixOpenings repairs two systematic recognition artifacts. An opening that
// starts within edgeThreshold of zero is anchored to the very beginning.
// An opening whose end lands within edgeThreshold of the episode's end is a
// truncation artifact, not a real opening, and is resized to the median
// opening length observed across the window.
func (r Reconciler) FixOpenings(guesses []scene.Interval, totals []float64) []scene.Interval {
	n := min(len(guesses), len(totals))
	medianLen := medianLength(guesses[:n])

	fixed := make([]scene.Interval, 0, n)
	for i := 0; i < n; i++ {
		guess := guesses[i]
		switch {
		case guess.Start < r.edgeThreshold:
			fixed = append(fixed, scene.Interval{Start: 0, End: guess.End})
		case math.Abs(totals[i]-guess.End) < r.edgeThreshold:
			fixed = append(fixed, scene.Interval{Start: guess.Start, End: guess.Start + medianLen})
		default:
			fixed = append(fixed, guess)
		}
	}
	return fixed
}

// FixEndings re-bases trailing-scan guesses onto the episode timeline. The
// trailing clip starts at totalDuration - truncatedDuration, so both bounds
// shift by that amount.
func (r Reconciler) FixEndings(guesses []scene.Interval, totals, truncated []float64) []scene.Interval {
	n := min(len(guesses), len(totals), len(truncated))
	fixed := make([]scene.Interval, 0, n)
	for i := 0; i < n; i++ {
		fixed = append(fixed, guesses[i].Shift(totals[i]-truncated[i]))
	}
	return fixed
}

// Combine validates both intervals and derives the scene after the ending.
// When the gap between a valid ending and the episode's end exceeds the
// threshold, the tail becomes a separate scene; otherwise the ending is
// extended to cover it.
func (r Reconciler) Combine(opening, ending scene.Interval, total float64) scene.Scenes {
	result := scene.Scenes{
		Opening:          scene.ValidOrNone(opening, r.minSceneLength),
		Ending:           mo.None[scene.Interval](),
		SceneAfterEnding: mo.None[scene.Interval](),
	}

	validEnding, ok := scene.ValidOrNone(ending, r.minSceneLength).Get()
	if !ok {
		return result
	}
	if total-validEnding.End > r.edgeThreshold {
		result.Ending = mo.Some(validEnding)
		result.SceneAfterEnding = scene.ValidOrNone(scene.Interval{Start: validEnding.End, End: total}, r.minSceneLength)
	} else {
		result.Ending = mo.Some(scene.Interval{Start: validEnding.Start, End: total})
	}
	return result
}

// medianLength returns the median of the finite guess lengths. NaN guesses
// carry no length information and are left out; with no finite guess at all
// the median is NaN and downstream validation rejects anything built on it.
func medianLength(guesses []scene.Interval) float64 {
	lengths := make([]float64, 0, len(guesses))
	for _, g := range guesses {
		if l := g.Length(); !math.IsNaN(l) && !math.IsInf(l, 0) {
			lengths = append(lengths, l)
		}
	}
	if len(lengths) == 0 {
		return math.NaN()
	}
	sort.Float64s(lengths)
	mid := len(lengths) / 2
	if len(lengths)%2 == 1 {
		return lengths[mid]
	}
	return (lengths[mid-1] + lengths[mid]) / 2
}
