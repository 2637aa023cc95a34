// Package config loads, normalizes, and validates crossref configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// NEBULA_API_TOKEN and YOUTUBE_API_KEY. The Config type centralizes every knob
// the CLI and API server need so endpoints, credentials and fetch sizes are
// discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
