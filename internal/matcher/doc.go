// Package matcher holds the batch pipeline core: episode window expansion
// and batching, the per-batch recognition flow, and the reconciliation
// heuristics that turn raw interval guesses into validated scenes.
package matcher
