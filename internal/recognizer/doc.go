// Package recognizer wraps the external scene-recognition binary behind a
// small client interface so the batch controller can be tested without the
// binary installed.
package recognizer
