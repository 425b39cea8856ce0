// Package loanapi is the HTTP client for the episode catalog backend. It
// answers two questions: which episodes of a series/dub exist, and where
// each episode's stream playlists live.
package loanapi
