// Package daemon coordinates the long-running pagepreview process.
//
// It takes an assembled app.App and adds the process-level concerns: a
// flock-based single-instance lock, the runner health tick that resumes
// batches abandoned by a crashed process, a preflight snapshot, and the
// HTTP API used by the host site to report content events and by operators
// to inspect and control the queue.
//
// Keep orchestration logic here: preview generation and queue mechanics live
// in their own packages while the daemon focuses on startup, shutdown, and
// exposing those operations over HTTP.
package daemon
