// Package notifications pushes queue and failure events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Event toggles in the notifications config
// section suppress individual event families.
package notifications
