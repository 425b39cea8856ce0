// Package main hosts the matcherctl entrypoint and command graph.
//
// The Cobra-based command tree covers one-shot matching runs, episode
// catalog inspection, and configuration scaffolding. Subcommands stay thin:
// the matching flow itself lives in the internal packages and is only wired
// together here.
package main
