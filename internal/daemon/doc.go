// Package daemon supervises the service loop as a single-instance
// background process guarded by a file lock.
package daemon
