// Package preview generates, records, and removes page previews.
//
// Generator.Generate runs the per-item workflow: eligibility checks, one
// render call, image persistence through a storage.Filesystem, and the
// metadata write. Triggers turns content events into queued work for the
// background runner.
package preview
