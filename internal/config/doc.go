// Package config loads, normalizes, and validates stockmeta configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. Provider credentials are deliberately
// absent: the API key is typed in per session and never written to disk or
// read from the environment.
//
// Always obtain settings through this package so downstream code receives
// trimmed URLs, canonical log formats, and clear validation errors.
package config
