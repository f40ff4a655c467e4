// Package supervisor coordinates the daemon's long-running goroutines.
//
// Each subsystem (device pipeline, session keepalive, status server)
// registers as a named task. Tasks share one context: the first failure
// cancels all of them, and a shutdown signal cancels them all cleanly.
// Shutdown bounds the teardown with a grace period so a stuck task
// cannot hold the process hostage.
package supervisor
