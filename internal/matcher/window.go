package matcher

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// ErrSafetyCap rejects a forced full reprocess over a series too large to
// redo in one request.
var ErrSafetyCap = errors.New("matcher: forced window exceeds the episode safety cap")

// EpisodeWindow expands the requested episodes into the set of available
// episodes within lookahead positions of each. Positions count entries in
// the availability list, not episode numbers, so gaps in numbering do not
// widen the window. Requested episodes missing from the list contribute
// nothing. The result is duplicate free and keeps the availability list's
// order, which also fixes batch order downstream.
func EpisodeWindow(requested, available []int, lookahead int) []int {
	index := make(map[int]int, len(available))
	for i, episode := range available {
		index[episode] = i
	}

	include := make(map[int]struct{})
	for _, episode := range lo.Uniq(requested) {
		at, ok := index[episode]
		if !ok {
			continue
		}
		from := max(0, at-lookahead)
		to := min(len(available), at+lookahead+1)
		for i := from; i < to; i++ {
			include[i] = struct{}{}
		}
	}

	positions := lo.Keys(include)
	sort.Ints(positions)
	window := make([]int, 0, len(positions))
	for _, i := range positions {
		window = append(window, available[i])
	}
	return window
}

// ForceWindow returns the full available list for a forced reprocess, or
// ErrSafetyCap when the series is larger than the configured cap.
func ForceWindow(available []int, limit int) ([]int, error) {
	if len(available) > limit {
		return nil, fmt.Errorf("%w: %d episodes available, cap is %d", ErrSafetyCap, len(available), limit)
	}
	return available, nil
}

// SplitIntoBatches chunks episodes into runs of size. A trailing chunk
// smaller than size is folded into its predecessor, so every batch except
// a lone one holds between size and 2*size-1 episodes.
func SplitIntoBatches(episodes []int, size int) [][]int {
	if len(episodes) == 0 {
		return nil
	}
	var batches [][]int
	for from := 0; from < len(episodes); from += size {
		to := min(from+size, len(episodes))
		batch := make([]int, to-from)
		copy(batch, episodes[from:to])
		batches = append(batches, batch)
	}
	last := len(batches) - 1
	if last > 0 && len(batches[last]) < size {
		batches[last-1] = append(batches[last-1], batches[last]...)
		batches = batches[:last]
	}
	return batches
}
