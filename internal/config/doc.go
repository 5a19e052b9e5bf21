// Package config loads, normalizes, and validates the TOML configuration
// shared by the daemon and CLI. Backend selection (run state store, media
// store, pipeline driver) happens here once; no other package sniffs the
// environment.
package config
