// Package hls fetches and parses HLS media playlists and selects segment
// windows covering the leading or trailing seconds of an episode.
package hls
