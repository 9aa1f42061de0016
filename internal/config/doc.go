// Package config loads, normalizes, and validates pagepreview configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PAGEPREVIEW_API_TOKEN and SENTRY_DSN. The Config type centralizes every
// knob the daemon and CLI need: where previews are written and served from,
// how the render service is reached, how the background runner throttles
// itself, and which queue and storage backends are active.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
// Editorial settings (post types, crop, delay) live in the settings package
// because they are stored alongside content, not in the config file.
package config
