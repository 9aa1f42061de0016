// Package api defines wire-format types and converters for the HTTP API. It
// translates runner, preview, and settings models into transport-friendly
// DTOs so clients do not couple to internal types.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds and
// durations are reported in milliseconds.
//
// ErrorStatus maps the services error taxonomy onto HTTP status codes so the
// server and its tests agree on how each failure surfaces.
package api
