// Package app assembles the preview pipeline from configuration.
//
// New opens the database, selects the job store and image storage backends,
// and wires the content gateway, settings store, render client, generator,
// runner, and triggers into one App. Both binaries build exactly one App and
// pass its handles down; nothing in the pipeline reaches for package-level
// state.
//
// Runner hooks are attached here: completed drains publish a notification,
// and failed items are reported to Sentry and, when they are not simple
// eligibility skips, to ntfy.
package app
