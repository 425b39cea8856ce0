// Package prefetch provides a bounded-lookahead concurrent executor over a
// fixed ordered sequence of positions.
//
// The intended usage is double-buffering: submit position 0, then inside the
// consumption loop await position i, submit position i+1, and process the
// awaited result. This overlaps the latency of producing item i+1 with
// whatever the consumer does with item i, while never running more than one
// position ahead.
package prefetch
