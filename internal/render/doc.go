// Package render talks to the remote screenshot service. One JSON POST per
// content item returns base64-encoded PNG images keyed by size label.
package render
