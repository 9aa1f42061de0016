// Package preflight runs the environment checks shown by `pagepreview
// status` and logged when the daemon starts: directory permissions, render
// service reachability, the queue backend, and whether the site URL is
// reachable from the public internet at all.
package preflight
