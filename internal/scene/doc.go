// Package scene defines the matcher's core data model: episode identity,
// detected scene intervals, and the per-episode Scenes record handed to the
// result submission boundary.
package scene
