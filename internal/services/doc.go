// Package services defines shared utilities consumed by the preview workflow,
// the job runner, and the API/CLI surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp content IDs, queue process names, batch IDs,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so every caller can
//     classify failures with errors.Is (not found, ineligible, render
//     service failure, persistence failure, lock contention).
//
// Use these helpers when wiring new task logic so operational behaviour (error
// handling, observability, reporting) stays uniform across the pipeline.
package services
