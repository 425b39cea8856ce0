// Package audio turns episode playlists into merged audio clips for
// recognition.
//
// The Downloader fetches HLS segments concurrently and merges them with
// ffmpeg; the Provider drives a depth-1 prefetch pipeline over a list of
// episodes, yielding one temporary clip per episode in order and deleting
// each clip once the consumer moves past it.
package audio
