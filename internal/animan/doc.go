// Package animan is the HTTP client for the match work queue: it fetches
// queued episodes, long-polls for new work, and submits match results.
package animan
