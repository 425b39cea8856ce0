// Package logging builds the slog loggers used throughout the matcher.
//
// It provides a human-oriented console handler and a JSON handler, multi-path
// output (stdout plus a log file), canonical attribute keys, and small helper
// constructors so call sites stay terse.
package logging
