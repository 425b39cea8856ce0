// Package config loads, normalizes, and validates matcher configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANIMAN_TOKEN. The Config type centralizes every knob the daemon and CLI
// need; it is constructed once at startup and passed by value or pointer into
// every component, so workers never read ambient process state.
package config
