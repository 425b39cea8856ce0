package scene

import (
	"fmt"
	"math"

	"github.com/samber/mo"
)

// VideoKey identifies one episode of one dub. Values compare equal when all
// three fields match.
type VideoKey struct {
	SeriesID int    `json:"myAnimeListId"`
	Dub      string `json:"dub"`
	Episode  int    `json:"episode"`
}

// String renders the key in the form used throughout log output.
func (k VideoKey) String() string {
	return fmt.Sprintf("%d/%s/e%d", k.SeriesID, k.Dub, k.Episode)
}

// Interval is one detected scene span, in seconds from the start of the
// episode.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Length returns End - Start.
func (iv Interval) Length() float64 {
	return iv.End - iv.Start
}

// Shift returns the interval moved by delta seconds.
func (iv Interval) Shift(delta float64) Interval {
	return Interval{Start: iv.Start + delta, End: iv.End + delta}
}

// Round returns the interval with both bounds rounded to two decimal places.
func (iv Interval) Round() Interval {
	return Interval{Start: round2(iv.Start), End: round2(iv.End)}
}

// Valid reports whether the interval has finite bounds and spans at least
// minLength seconds. Recognition emits NaN bounds when it found nothing.
func (iv Interval) Valid(minLength float64) bool {
	if math.IsNaN(iv.Start) || math.IsInf(iv.Start, 0) {
		return false
	}
	if math.IsNaN(iv.End) || math.IsInf(iv.End, 0) {
		return false
	}
	return iv.End-iv.Start >= minLength
}

// ValidOrNone filters iv through Valid, collapsing rejects to None.
func ValidOrNone(iv Interval, minLength float64) mo.Option[Interval] {
	if !iv.Valid(minLength) {
		return mo.None[Interval]()
	}
	return mo.Some(iv)
}

// Scenes is the final per-episode record. Absent fields mean no scene was
// detected (or the episode was processed via fallback).
type Scenes struct {
	Opening          mo.Option[Interval] `json:"opening"`
	Ending           mo.Option[Interval] `json:"ending"`
	SceneAfterEnding mo.Option[Interval] `json:"sceneAfterEnding"`
}

// Empty returns an all-absent Scenes record.
func Empty() Scenes {
	return Scenes{
		Opening:          mo.None[Interval](),
		Ending:           mo.None[Interval](),
		SceneAfterEnding: mo.None[Interval](),
	}
}

// IsEmpty reports whether no scene is present.
func (s Scenes) IsEmpty() bool {
	return s.Opening.IsAbsent() && s.Ending.IsAbsent() && s.SceneAfterEnding.IsAbsent()
}

// Round rounds every present interval to two decimal places.
func (s Scenes) Round() Scenes {
	return Scenes{
		Opening:          roundOption(s.Opening),
		Ending:           roundOption(s.Ending),
		SceneAfterEnding: roundOption(s.SceneAfterEnding),
	}
}

func roundOption(o mo.Option[Interval]) mo.Option[Interval] {
	iv, ok := o.Get()
	if !ok {
		return o
	}
	return mo.Some(iv.Round())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
