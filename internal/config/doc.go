// Package config loads, normalizes, and validates livesub configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and LIVESUB_API_TOKEN. The Config type centralizes every
// knob the daemon, the pipeline, and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
