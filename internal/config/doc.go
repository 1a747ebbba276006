// Package config loads, normalizes, and validates daemon configuration from
// a TOML file, with sensible defaults when no file is present.
package config
