// Command pagepreview manages page screenshot previews from the shell.
//
// Most subcommands open the application database directly, so they work
// whether or not the daemon is running. The queue they inspect is the same
// one the daemon drains. `pagepreview daemon` runs the daemon in the
// foreground.
package main
