// Package config loads, normalizes, and validates the snapsheet TOML
// configuration. Load applies defaults, expands ~ in every path field,
// and rejects unusable values before any other subsystem starts.
package config
