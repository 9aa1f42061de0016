// Package settings stores the preview settings record. Stored overrides are
// merged over the defaults on every read, so keys added to the defaults
// later still reach callers that saved settings before they existed.
package settings
